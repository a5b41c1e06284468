package rag

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeEmbedder returns canned vectors keyed by text, and the query vector for
// every query.
type fakeEmbedder struct {
	vectors  map[string][]float32
	queryVec []float32
	docErr   error
	queryErr error
	batches  int
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.batches++
	if f.docErr != nil {
		return nil, f.docErr
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vectors[text]
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryVec, nil
}

func chunkFor(content, id, domain string) DocumentChunk {
	return DocumentChunk{
		Content:  content,
		Metadata: ChunkMetadata{StartupID: id, Domain: domain},
	}
}

func TestSearchRanksByDescendingSimilarity(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"proche":   {1, 0},
			"moyen":    {0.5, 0.5},
			"lointain": {0, 1},
		},
		queryVec: []float32{1, 0},
	}
	index := NewIndex(embedder, 10, zap.NewNop())
	err := index.Build(context.Background(), []DocumentChunk{
		chunkFor("lointain", "s1", "A"),
		chunkFor("proche", "s2", "B"),
		chunkFor("moyen", "s3", "C"),
	})
	require.NoError(t, err)

	results := index.Search(context.Background(), "peu importe", 3)
	require.Len(t, results, 3)
	assert.Equal(t, "proche", results[0].Content)
	assert.Equal(t, "moyen", results[1].Content)
	assert.Equal(t, "lointain", results[2].Content)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestBuildBatchesRequests(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{}, queryVec: []float32{1}}
	index := NewIndex(embedder, 2, zap.NewNop())

	chunks := []DocumentChunk{
		chunkFor("a", "s1", ""), chunkFor("b", "s2", ""), chunkFor("c", "s3", ""),
		chunkFor("d", "s4", ""), chunkFor("e", "s5", ""),
	}
	require.NoError(t, index.Build(context.Background(), chunks))
	assert.Equal(t, 3, embedder.batches, "5 chunks at batch size 2 need 3 calls")
	assert.Equal(t, 5, index.Len())
}

func TestBuildFailureLeavesIndexEmpty(t *testing.T) {
	embedder := &fakeEmbedder{docErr: errors.New("upstream rate limit")}
	index := NewIndex(embedder, 10, zap.NewNop())

	err := index.Build(context.Background(), []DocumentChunk{chunkFor("a", "s1", "")})
	require.Error(t, err)
	assert.Zero(t, index.Len())
	assert.Empty(t, index.Search(context.Background(), "besoin", 3))
}

func TestQueryEmbeddingFailureYieldsNoResults(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors:  map[string][]float32{"a": {1}},
		queryErr: errors.New("unavailable"),
	}
	index := NewIndex(embedder, 10, zap.NewNop())
	require.NoError(t, index.Build(context.Background(), []DocumentChunk{chunkFor("a", "s1", "")}))

	assert.Empty(t, index.Search(context.Background(), "besoin", 3))
}

// constantEmbedder is safe for concurrent use, unlike fakeEmbedder.
type constantEmbedder struct{ vec []float32 }

func (c constantEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = c.vec
	}
	return out, nil
}

func (c constantEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return c.vec, nil
}

func TestSearchDuringConcurrentRebuild(t *testing.T) {
	index := NewIndex(constantEmbedder{vec: []float32{1, 0}}, 2, zap.NewNop())
	chunks := []DocumentChunk{
		chunkFor("a", "s1", "Tech"),
		chunkFor("b", "s2", "Agritech"),
		chunkFor("c", "s3", "Tourisme"),
	}
	require.NoError(t, index.Build(context.Background(), chunks))

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				index.Search(context.Background(), "besoin", 2)
				index.Len()
			}
		}()
	}
	for n := 0; n < 50; n++ {
		require.NoError(t, index.Build(context.Background(), chunks))
	}
	wg.Wait()
	assert.Equal(t, len(chunks), index.Len())
}

func TestSearchFilteredRestrictsByDomain(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"tech": {1, 0},
			"agro": {0.9, 0.1},
		},
		queryVec: []float32{1, 0},
	}
	index := NewIndex(embedder, 10, zap.NewNop())
	require.NoError(t, index.Build(context.Background(), []DocumentChunk{
		chunkFor("tech", "s1", "Technologie"),
		chunkFor("agro", "s2", "Agritech"),
	}))

	results := index.SearchFiltered(context.Background(), "besoin", 1, Filter{Domain: "Agritech"})
	require.Len(t, results, 1)
	assert.Equal(t, "agro", results[0].Content)
}
