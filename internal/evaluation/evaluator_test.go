package evaluation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genetics-tutor/backend/internal/catalog"
	"github.com/genetics-tutor/backend/internal/memory"
	"github.com/genetics-tutor/backend/internal/response"
	"github.com/genetics-tutor/backend/internal/tutor"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		used     []string
		expected []string
		class    string
		recall   float64
	}{
		{"all found", []string{"a", "b"}, []string{"a"}, ClassFullyRelevant, 1},
		{"partial", []string{"a"}, []string{"a", "b"}, ClassModerate, 0.5},
		{"none", []string{"c"}, []string{"a"}, ClassIrrelevant, 0},
		{"expected fallback", nil, nil, ClassFullyRelevant, 1},
		{"unexpected match", []string{"a"}, nil, ClassIrrelevant, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, recall := Classify(tt.used, tt.expected)
			assert.Equal(t, tt.class, class)
			assert.InDelta(t, tt.recall, recall, 1e-9)
		})
	}
}

func TestRunAgainstEngine(t *testing.T) {
	ds, err := ReadDataset(strings.NewReader(`{"items": [
		{"query": "What is DNA structure?", "expectedTopics": ["dna_structure"], "category": "basics"},
		{"query": "How does a Punnett square work?", "expectedTopics": ["mendelian_inheritance"], "category": "inheritance"},
		{"query": "What is the weather like?", "expectedTopics": []},
		{"query": "   ", "expectedTopics": ["dna_structure"]}
	]}`))
	require.NoError(t, err)

	engine := tutor.NewEngine(
		memory.NewInMemoryStore(memory.DefaultHistoryCap),
		response.NewSelector(catalog.Default(), response.Options{}),
		nil,
		tutor.Config{},
	)

	report, err := NewEvaluator(engine).Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, 4, report.TotalQueries)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 3, report.FullyRelevantCount)
	assert.Equal(t, 1, report.FallbackCount)
	assert.InDelta(t, 1.0, report.TopicRecall, 1e-9)
	assert.InDelta(t, 1.0, report.CategoryRecall["basics"], 1e-9)
	assert.Len(t, report.Items, 3)
}
