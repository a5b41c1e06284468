// Package matcher scores startups against a free-text need and proposes
// complementary combinations.
package matcher

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/lareunion-tech/startup-matcher/internal/directory"
	"github.com/lareunion-tech/startup-matcher/internal/metrics"
	"github.com/lareunion-tech/startup-matcher/internal/rag"
)

// Weights are the per-field scores added for each keyword that hits a field.
// They are policy, not contract: call sites may tune them.
type Weights struct {
	Name        int
	Description int
	Tags        int
	Domain      int
	Location    int
}

// DefaultWeights mirror the scoring used by the search endpoints.
func DefaultWeights() Weights {
	return Weights{Name: 3, Description: 2, Tags: 2, Domain: 1, Location: 1}
}

// Match is one scored record.
type Match struct {
	Record directory.StartupRecord `json:"record"`
	Score  int                     `json:"score"`
}

// Combination pairs two startups from different domains with a human-readable
// justification.
type Combination struct {
	Startups [2]directory.StartupRecord `json:"startups"`
	Reason   string                     `json:"reason"`
	Score    int                        `json:"score"`
}

// Matcher ranks records by keyword overlap with a need, with an optional
// semantic path through an embedding index.
type Matcher struct {
	weights        Weights
	randomFallback bool
	index          *rag.Index
	logger         *zap.Logger
	rng            *rand.Rand
}

// New builds a Matcher. index may be nil; the matcher then serves the keyword
// path only. randomFallback controls the never-empty-results policy: when a
// need matches nothing, a random sample of records is returned instead of an
// empty list.
func New(weights Weights, randomFallback bool, index *rag.Index, logger *zap.Logger) *Matcher {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	return &Matcher{
		weights:        weights,
		randomFallback: randomFallback,
		index:          index,
		logger:         logger,
		rng:            rand.New(rand.NewSource(rand.Int63())),
	}
}

// Match keyword-scores records against the need and returns up to topK
// matches sorted by non-increasing score. Zero-score records are dropped; if
// nothing scores and the fallback policy is on, a random sample is returned
// so a non-empty record set never yields an empty answer.
func (m *Matcher) Match(needText string, records []directory.StartupRecord, topK int) []Match {
	return m.MatchFiltered(needText, records, topK, rag.Filter{})
}

// MatchFiltered is Match restricted to records passing the metadata filter.
func (m *Matcher) MatchFiltered(needText string, records []directory.StartupRecord, topK int, filter rag.Filter) []Match {
	metrics.ObserveSearch("keyword")
	if topK <= 0 {
		topK = 5
	}
	candidates := filterRecords(records, filter)
	keywords := tokenize(needText)

	matches := make([]Match, 0, len(candidates))
	for _, rec := range candidates {
		if score := m.scoreRecord(rec, keywords); score > 0 {
			matches = append(matches, Match{Record: rec, Score: score})
		}
	}
	sort.SliceStable(matches, func(a, b int) bool { return matches[a].Score > matches[b].Score })

	if len(matches) == 0 && m.randomFallback && len(candidates) > 0 {
		m.logger.Info("no keyword matches, returning random sample",
			zap.String("need", truncate(needText, 100)),
		)
		return m.randomSample(candidates, topK)
	}
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// MatchSemantic ranks records through the embedding index, mapping ranked
// chunks back to their source records. It degrades to the keyword path when
// the index is nil or empty, or when retrieval comes back empty.
func (m *Matcher) MatchSemantic(ctx context.Context, needText string, records []directory.StartupRecord, topK int, filter rag.Filter) []Match {
	if m.index == nil || m.index.Len() == 0 {
		return m.MatchFiltered(needText, records, topK, filter)
	}
	metrics.ObserveSearch("semantic")
	if topK <= 0 {
		topK = 5
	}

	byID := make(map[string]directory.StartupRecord, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	results := m.index.SearchFiltered(ctx, needText, topK*2, filter)
	seen := make(map[string]bool, len(results))
	matches := make([]Match, 0, topK)
	for _, res := range results {
		rec, ok := byID[res.Metadata.StartupID]
		if !ok || seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		matches = append(matches, Match{Record: rec, Score: int(res.Score * 100)})
		if len(matches) == topK {
			break
		}
	}
	if len(matches) == 0 {
		return m.MatchFiltered(needText, records, topK, filter)
	}
	return matches
}

// Combine proposes cross-domain pairs from the best keyword matches. Pairs
// are drawn from the top 10 matches, first element among the top 4, second
// among the top 5, and only when the two domains differ.
func (m *Matcher) Combine(needText string, records []directory.StartupRecord, topK int) []Combination {
	metrics.ObserveSearch("combine")
	if topK <= 0 {
		topK = 3
	}
	top := m.Match(needText, records, 10)

	outer := min(4, len(top))
	inner := min(5, len(top))
	var combos []Combination
	for i := 0; i < outer; i++ {
		for j := i + 1; j < inner; j++ {
			a, b := top[i], top[j]
			if strings.EqualFold(a.Record.Domain, b.Record.Domain) {
				continue
			}
			combos = append(combos, Combination{
				Startups: [2]directory.StartupRecord{a.Record, b.Record},
				Score:    a.Score + b.Score,
				Reason: fmt.Sprintf(
					"%s (%s) et %s (%s) couvrent des domaines complémentaires pour le besoin « %s »",
					a.Record.Name, a.Record.Domain,
					b.Record.Name, b.Record.Domain,
					truncate(needText, 100),
				),
			})
			if len(combos) == topK {
				return combos
			}
		}
	}
	return combos
}

func (m *Matcher) scoreRecord(rec directory.StartupRecord, keywords []string) int {
	name := strings.ToLower(rec.Name)
	desc := strings.ToLower(rec.Description)
	domain := strings.ToLower(rec.Domain)
	location := strings.ToLower(rec.Location)
	tags := strings.ToLower(strings.Join(rec.Tags, " "))

	score := 0
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			score += m.weights.Name
		}
		if strings.Contains(desc, kw) {
			score += m.weights.Description
		}
		if strings.Contains(tags, kw) {
			score += m.weights.Tags
		}
		if strings.Contains(domain, kw) {
			score += m.weights.Domain
		}
		if strings.Contains(location, kw) {
			score += m.weights.Location
		}
	}
	return score
}

func (m *Matcher) randomSample(records []directory.StartupRecord, topK int) []Match {
	indices := m.rng.Perm(len(records))
	if topK > len(indices) {
		topK = len(indices)
	}
	sample := make([]Match, 0, topK)
	for _, idx := range indices[:topK] {
		sample = append(sample, Match{Record: records[idx]})
	}
	return sample
}

// tokenize lowercases and whitespace-splits the need text. No stemming, no
// stop words.
func tokenize(needText string) []string {
	return strings.Fields(strings.ToLower(needText))
}

func filterRecords(records []directory.StartupRecord, filter rag.Filter) []directory.StartupRecord {
	filtered := make([]directory.StartupRecord, 0, len(records))
	for _, rec := range records {
		meta := rag.ChunkMetadata{
			Tags:     rec.Tags,
			Domain:   rec.Domain,
			Location: rec.Location,
		}
		if filter.Matches(meta) {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
