// Package rank orders catalog candidates against a query vector by cosine
// similarity. Two implementations share one contract: an in-process ranker
// and a store-delegated one; callers must not be able to tell which ran.
package rank

import (
	"context"
	"math"
	"sort"

	"github.com/relevo-cloud/relevo/internal/domain"
)

// Candidate is one (item id, vector) pair offered for ranking. Candidates
// with an empty vector are excluded: a missing embedding means "unknown",
// not "no relation".
type Candidate struct {
	ID     string
	Vector []float32
}

// Query carries the ranking inputs. Category is informational for the
// in-process path (callers pre-filter candidates); the store path uses it as
// a TAG filter so both paths see the same candidate set.
type Query struct {
	Vector   []float32
	Category string
	TopK     int
}

// Ranker orders candidates against a query vector.
type Ranker interface {
	Rank(ctx context.Context, q Query, candidates []Candidate) ([]domain.RankedResult, error)
}

// Process ranks candidates in process memory. The zero value is ready to use.
type Process struct{}

var _ Ranker = Process{}

// Rank computes cosine similarity for every candidate with a vector, sorts
// descending by score with ties broken by ascending id, and returns at most
// TopK results. TopK <= 0 yields an empty result.
func (Process) Rank(_ context.Context, q Query, candidates []Candidate) ([]domain.RankedResult, error) {
	if q.TopK <= 0 || len(candidates) == 0 {
		return nil, nil
	}

	results := make([]domain.RankedResult, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) == 0 {
			continue
		}
		results = append(results, domain.RankedResult{
			ID:    c.ID,
			Score: Cosine(q.Vector, c.Vector),
		})
	}

	sortRanked(results)

	if len(results) > q.TopK {
		results = results[:q.TopK]
	}
	return results, nil
}

// Cosine returns the cosine similarity of a and b in [-1, 1]. A zero-norm
// vector (including mismatched or empty input) yields 0, never NaN.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortRanked orders results descending by score, ties by ascending id, so
// ranking is deterministic under floating-point equality.
func sortRanked(results []domain.RankedResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}
