package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartlens/internal/gateway/mapgen"
	"chartlens/internal/imageref"
	"chartlens/internal/prompt"
	"chartlens/internal/types"
)

type mockSearcher struct {
	results []types.SimilarChart
	err     error
}

func (m *mockSearcher) Search(_ context.Context, _ string, _ int) ([]types.SimilarChart, error) {
	return m.results, m.err
}

type mockReadiness struct {
	ready map[mapgen.Kind]bool
}

func (m *mockReadiness) Ready(_ context.Context, kind mapgen.Kind) bool {
	return m.ready[kind]
}

const refImage = "data:image/png;base64,AAAA"

func newAggregator(t *testing.T, searcher *mockSearcher, maps *mockReadiness) *Aggregator {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.md"), []byte("系统提示词"), 0o644))
	pm := prompt.NewManager(dir)
	require.NoError(t, pm.Load())

	roots := imageref.Roots{Uploads: t.TempDir(), Public: t.TempDir(), Private: t.TempDir()}
	return &Aggregator{
		ModelName:      "gpt-4o",
		Maps:           maps,
		Searcher:       searcher,
		Prompts:        pm,
		SystemTemplate: "default",
		Assembler:      prompt.NewAssembler(&imageref.InlineResolver{Roots: roots}),
		ReferenceImage: refImage,
		DefaultK:       3,
	}
}

func TestCheck_EmptyRetrievalIsHealthy(t *testing.T) {
	agg := newAggregator(t,
		&mockSearcher{results: nil},
		&mockReadiness{ready: map[mapgen.Kind]bool{mapgen.KindDepth: true, mapgen.KindEdge: true, mapgen.KindGradient: true}},
	)
	status := agg.Check(context.Background(), 5)

	assert.Equal(t, "gpt-4o", status.Model)
	assert.Equal(t, 5, status.RAG.K)
	assert.Zero(t, status.RAG.Found)
	assert.Empty(t, status.RAG.Sample)
	assert.Empty(t, status.RAG.Error)
	assert.True(t, status.MapsReady.Depth)
	assert.True(t, status.MapsReady.Edge)
	assert.True(t, status.MapsReady.Gradient)
}

func TestCheck_RetrievalFailureDegradesOnlyRAGSection(t *testing.T) {
	agg := newAggregator(t,
		&mockSearcher{err: errors.New("检索引擎不可达")},
		&mockReadiness{ready: map[mapgen.Kind]bool{mapgen.KindDepth: true}},
	)
	status := agg.Check(context.Background(), 0)

	assert.Equal(t, 3, status.RAG.K, "k<=0 时采用默认值")
	assert.Zero(t, status.RAG.Found)
	assert.Contains(t, status.RAG.Error, "检索引擎不可达")
	// 其余分节照常产出
	assert.True(t, status.MapsReady.Depth)
	assert.False(t, status.MapsReady.Edge)
	assert.NotEmpty(t, status.MergedPromptPreview)
	assert.Positive(t, status.MergedPromptLength)
}

func TestCheck_SampleIsBounded(t *testing.T) {
	results := []types.SimilarChart{
		{Chart: types.ChartMeta{ID: "c1"}, Similarity: 0.9},
		{Chart: types.ChartMeta{Instrument: "BTCUSDT", Timeframe: "4h"}, Similarity: 0.8},
		{Chart: types.ChartMeta{}, Similarity: 0.7},
		{Chart: types.ChartMeta{ID: "c4"}, Similarity: 0.6},
		{Chart: types.ChartMeta{ID: "c5"}, Similarity: 0.5},
	}
	agg := newAggregator(t, &mockSearcher{results: results}, &mockReadiness{})
	status := agg.Check(context.Background(), 5)

	assert.Equal(t, 5, status.RAG.Found)
	assert.Equal(t, []string{"c1", "BTCUSDT@4h", "#3"}, status.RAG.Sample, "样本有界，不回传全量")
}

func TestCheck_MergedPromptEcho(t *testing.T) {
	agg := newAggregator(t, &mockSearcher{}, &mockReadiness{})
	status := agg.Check(context.Background(), 1)

	require.NotEmpty(t, status.MergedPromptPreview)
	assert.Contains(t, status.MergedPromptPreview, "系统提示词")
	assert.GreaterOrEqual(t, status.MergedPromptLength, len([]rune("系统提示词")))
}
