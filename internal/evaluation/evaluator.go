package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/genetics-tutor/backend/internal/storage/models"
	"github.com/genetics-tutor/backend/internal/tutor"
	"github.com/genetics-tutor/backend/pkg/logger"
)

const (
	ClassIrrelevant    = "irrelevant"
	ClassModerate      = "moderate"
	ClassFullyRelevant = "fully_relevant"
)

// Chatter is the part of the tutor engine the evaluator drives.
type Chatter interface {
	HandleChat(ctx context.Context, req tutor.ChatRequest) (*tutor.ChatResponse, error)
}

type Dataset struct {
	Items []DatasetItem `json:"items"`
}

type DatasetItem struct {
	Query          string   `json:"query"`
	ExpectedTopics []string `json:"expectedTopics"`
	KnowledgeLevel float64  `json:"knowledgeLevel,omitempty"`
	Category       string   `json:"category,omitempty"`
}

type ItemResult struct {
	Query          string   `json:"query"`
	TopicsUsed     []string `json:"topicsUsed"`
	ExpectedTopics []string `json:"expectedTopics"`
	Classification string   `json:"classification"`
	Confidence     float64  `json:"confidence"`
	Source         string   `json:"source"`
}

type Report struct {
	TotalQueries            int                `json:"totalQueries"`
	Failed                  int                `json:"failed"`
	IrrelevantCount         int                `json:"irrelevantCount"`
	ModerateCount           int                `json:"moderateCount"`
	FullyRelevantCount      int                `json:"fullyRelevantCount"`
	FallbackCount           int                `json:"fallbackCount"`
	AvgConfidence           float64            `json:"avgConfidence"`
	TopicRecall             float64            `json:"topicRecall"`
	FullyRelevantPercentage float64            `json:"fullyRelevantPercentage"`
	CategoryRecall          map[string]float64 `json:"categoryRecall"`
	Items                   []ItemResult       `json:"items"`
}

type Evaluator struct {
	engine Chatter
}

func NewEvaluator(engine Chatter) *Evaluator {
	return &Evaluator{engine: engine}
}

func LoadDataset(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return ReadDataset(f)
}

func ReadDataset(r io.Reader) (*Dataset, error) {
	var ds Dataset
	if err := json.NewDecoder(r).Decode(&ds); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	return &ds, nil
}

// Classify compares the topics an answer used with the expected ones.
func Classify(used, expected []string) (string, float64) {
	if len(expected) == 0 {
		if len(used) == 0 {
			return ClassFullyRelevant, 1
		}
		return ClassIrrelevant, 0
	}

	hits := len(lo.Intersect(lo.Uniq(expected), used))
	recall := float64(hits) / float64(len(lo.Uniq(expected)))

	switch {
	case recall == 1:
		return ClassFullyRelevant, recall
	case recall > 0:
		return ClassModerate, recall
	default:
		return ClassIrrelevant, recall
	}
}

// Run sends every item as a fresh learner so items do not influence each
// other.
func (e *Evaluator) Run(ctx context.Context, ds *Dataset) (*Report, error) {
	logger.Info("Running dataset evaluation", zap.Int("items", len(ds.Items)))

	report := &Report{
		TotalQueries:   len(ds.Items),
		CategoryRecall: make(map[string]float64),
	}

	var totalConfidence, totalRecall float64
	categoryTotals := make(map[string]float64)
	categoryCounts := make(map[string]int)
	answered := 0

	for i, item := range ds.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		session := &models.UserSession{
			ID:             fmt.Sprintf("eval_%d", i),
			KnowledgeLevel: item.KnowledgeLevel,
		}

		resp, err := e.engine.HandleChat(ctx, tutor.ChatRequest{Message: item.Query, Session: session})
		if err != nil {
			logger.Error("Failed to evaluate query", zap.Int("index", i), zap.Error(err))
			report.Failed++
			continue
		}
		answered++

		class, recall := Classify(resp.TopicsUsed, item.ExpectedTopics)
		switch class {
		case ClassIrrelevant:
			report.IrrelevantCount++
		case ClassModerate:
			report.ModerateCount++
		case ClassFullyRelevant:
			report.FullyRelevantCount++
		}
		if resp.Source == tutor.SourceFallback {
			report.FallbackCount++
		}

		totalConfidence += resp.Confidence
		totalRecall += recall

		category := item.Category
		if category == "" {
			category = "general"
		}
		categoryTotals[category] += recall
		categoryCounts[category]++

		report.Items = append(report.Items, ItemResult{
			Query:          item.Query,
			TopicsUsed:     resp.TopicsUsed,
			ExpectedTopics: item.ExpectedTopics,
			Classification: class,
			Confidence:     resp.Confidence,
			Source:         string(resp.Source),
		})
	}

	if answered > 0 {
		report.AvgConfidence = totalConfidence / float64(answered)
		report.TopicRecall = totalRecall / float64(answered)
		report.FullyRelevantPercentage = float64(report.FullyRelevantCount) / float64(answered) * 100
	}
	for category, total := range categoryTotals {
		report.CategoryRecall[category] = total / float64(categoryCounts[category])
	}

	logger.Info("Dataset evaluation completed",
		zap.Int("total", report.TotalQueries),
		zap.Int("irrelevant", report.IrrelevantCount),
		zap.Int("moderate", report.ModerateCount),
		zap.Int("fully_relevant", report.FullyRelevantCount),
	)

	return report, nil
}
