package rag

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lareunion-tech/startup-matcher/internal/metrics"
)

// Embedder is the embedding boundary. langchaingo's embeddings.Embedder
// satisfies it; tests substitute a deterministic fake.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchResult is one ranked chunk.
type SearchResult struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
}

// Filter restricts search results by record metadata. Zero fields match
// everything.
type Filter struct {
	Tags     []string
	Domain   string
	Location string
}

type indexEntry struct {
	chunk  DocumentChunk
	vector []float32
}

// Index holds embedded chunks in memory and ranks them by cosine similarity.
// It is rebuilt wholesale on every data refresh; there is no incremental
// update path. Entries are guarded so searches can run while a refresh
// rebuilds the index.
type Index struct {
	embedder  Embedder
	batchSize int
	logger    *zap.Logger

	mu      sync.RWMutex
	entries []indexEntry
}

// NewIndex builds an empty Index. A non-positive batch size defaults to 10.
func NewIndex(embedder Embedder, batchSize int, logger *zap.Logger) *Index {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Index{embedder: embedder, batchSize: batchSize, logger: logger}
}

// Build embeds the given chunks in batches and replaces the index contents.
// Any batch failure abandons the whole build and leaves the index empty:
// serving a partially embedded corpus would silently hide records from
// semantic search, so the caller falls back to keyword matching instead.
func (i *Index) Build(ctx context.Context, chunks []DocumentChunk) error {
	if len(chunks) == 0 {
		i.setEntries(nil)
		return nil
	}

	entries := make([]indexEntry, 0, len(chunks))
	for start := 0; start < len(chunks); start += i.batchSize {
		end := start + i.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for j, chunk := range batch {
			texts[j] = chunk.Content
		}
		vectors, err := i.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			metrics.ObserveEmbeddingBatch("failed")
			i.logger.Error("embedding batch failed, index left empty",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			i.setEntries(nil)
			return err
		}
		metrics.ObserveEmbeddingBatch("ok")
		for j, vec := range vectors {
			entries = append(entries, indexEntry{chunk: batch[j], vector: vec})
		}
	}

	i.setEntries(entries)
	i.logger.Info("embedding index built",
		zap.Int("chunks", len(chunks)),
		zap.Int("entries", len(entries)),
	)
	return nil
}

func (i *Index) setEntries(entries []indexEntry) {
	i.mu.Lock()
	i.entries = entries
	i.mu.Unlock()
}

// snapshot returns the current entry slice. Builds replace the slice
// wholesale and never mutate it in place, so holding the snapshot outside the
// lock is safe.
func (i *Index) snapshot() []indexEntry {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.entries
}

// Len reports the number of indexed chunks.
func (i *Index) Len() int {
	return len(i.snapshot())
}

// Search ranks every indexed chunk against the query and returns the topK
// best. An empty index or a failed query embedding yields no results.
func (i *Index) Search(ctx context.Context, query string, topK int) []SearchResult {
	return i.SearchFiltered(ctx, query, topK, Filter{})
}

// SearchFiltered is Search with a metadata filter applied after ranking. It
// over-fetches to keep topK results available when the filter drops some.
func (i *Index) SearchFiltered(ctx context.Context, query string, topK int, filter Filter) []SearchResult {
	entries := i.snapshot()
	if len(entries) == 0 || topK <= 0 {
		return nil
	}
	queryVec, err := i.embedder.EmbedQuery(ctx, query)
	if err != nil {
		i.logger.Warn("query embedding failed", zap.Error(err))
		return nil
	}

	ranked := make([]SearchResult, 0, len(entries))
	for _, entry := range entries {
		ranked = append(ranked, SearchResult{
			Content:  entry.chunk.Content,
			Metadata: entry.chunk.Metadata,
			Score:    cosineSimilarity(queryVec, entry.vector),
		})
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].Score > ranked[b].Score })

	fetch := topK
	if !filter.isEmpty() {
		fetch = topK * 2
	}
	if fetch > len(ranked) {
		fetch = len(ranked)
	}

	results := make([]SearchResult, 0, topK)
	for _, res := range ranked[:fetch] {
		if !filter.Matches(res.Metadata) {
			continue
		}
		results = append(results, res)
		if len(results) == topK {
			break
		}
	}
	return results
}

func (f Filter) isEmpty() bool {
	return len(f.Tags) == 0 && f.Domain == "" && f.Location == ""
}

// Matches reports whether a chunk's metadata passes the filter.
func (f Filter) Matches(meta ChunkMetadata) bool {
	if f.Domain != "" && !strings.EqualFold(f.Domain, meta.Domain) {
		return false
	}
	if f.Location != "" && !strings.Contains(strings.ToLower(meta.Location), strings.ToLower(f.Location)) {
		return false
	}
	if len(f.Tags) > 0 && !anyTagMatches(f.Tags, meta.Tags) {
		return false
	}
	return true
}

func anyTagMatches(wanted, present []string) bool {
	for _, w := range wanted {
		for _, p := range present {
			if strings.EqualFold(w, p) {
				return true
			}
		}
	}
	return false
}

// cosineSimilarity computes the cosine of the angle between two vectors in
// float64 to limit accumulation error. Mismatched or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for idx := range a {
		x, y := float64(a[idx]), float64(b[idx])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
