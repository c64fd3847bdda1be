package ingestion

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genetics-tutor/backend/internal/catalog"
)

const sheet = `<html><head><style>p { color: red; }</style></head><body>
<article data-topic="rna_interference" data-difficulty="advanced">
  <h2>RNA   Interference</h2>
  <p>Small RNAs guide the silencing complex to a matching mRNA.</p>
  <p>The target message is cut or blocked.</p>
  <script>alert("x")</script>
  <ul class="keywords"><li>siRNA</li><li>RISC</li></ul>
  <ul class="related"><li>gene_regulation</li></ul>
  <ul class="examples"><li>Plants use RNA interference against viruses.</li></ul>
</article>
<article data-topic="empty_topic"><h2>Nothing here</h2></article>
</body></html>`

func TestParseSheet(t *testing.T) {
	topics, err := NewProcessor().ParseSheet(strings.NewReader(sheet))
	require.NoError(t, err)
	require.Len(t, topics, 1)

	topic := topics[0]
	assert.Equal(t, "rna_interference", topic.ID)
	assert.Equal(t, "RNA Interference", topic.Title)
	assert.Equal(t, "Small RNAs guide the silencing complex to a matching mRNA. The target message is cut or blocked.", topic.Content)
	assert.Equal(t, []string{"sirna", "risc"}, topic.Keywords)
	assert.Equal(t, catalog.Advanced, topic.Difficulty)
	assert.Equal(t, []string{"gene_regulation"}, topic.RelatedTopics)
	assert.Equal(t, []string{"Plants use RNA interference against viruses."}, topic.Examples)
}

func TestLoadDirSkipsEmptySheets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.html"), []byte(sheet), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.html"), []byte("<html><body><p>no articles</p></body></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	topics, err := NewProcessor().LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, topics, 1)

	merged, err := catalog.Default().Merge(topics...)
	require.NoError(t, err)

	found, ok := merged.Lookup("what does risc do")
	require.True(t, ok)
	assert.Equal(t, "rna_interference", found.ID)
}
