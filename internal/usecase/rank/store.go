package rank

import (
	"context"
	"fmt"
	"strings"

	"github.com/relevo-cloud/relevo/internal/db"
	"github.com/relevo-cloud/relevo/internal/domain"
)

// searcher is the consumer interface for store-side KNN (ISP).
type searcher interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Store delegates nearest-neighbor computation to the storage engine's
// FT.SEARCH KNN with the COSINE metric. The engine reports cosine *distance*;
// scores are normalized to the same [-1, 1] similarity the in-process path
// produces and re-sorted with the same tie-break, so the two paths are
// observably identical for identical data.
type Store struct {
	search    searcher
	indexName string
	keyPrefix string
}

var _ Ranker = (*Store)(nil)

// NewStore creates a store-backed ranker. keyPrefix is the catalog hash key
// prefix stripped from result keys to recover item ids.
func NewStore(search searcher, indexName, keyPrefix string) *Store {
	return &Store{search: search, indexName: indexName, keyPrefix: keyPrefix}
}

// Rank runs a KNN query limited to TopK rows. Only candidates passed in are
// returned: the index may contain items the caller's filter excluded.
func (s *Store) Rank(ctx context.Context, q Query, candidates []Candidate) ([]domain.RankedResult, error) {
	if q.TopK <= 0 || len(candidates) == 0 {
		return nil, nil
	}

	knn := &db.KNNQuery{
		IndexName: s.indexName,
		Vector:    q.Vector,
		// Over-fetch: the index can hold entries outside the candidate set.
		K: q.TopK + len(candidates),
	}
	if q.Category != "" {
		knn.TagFilter = db.TagFilter{Field: "category", Value: q.Category}
	}

	res, err := s.search.SearchKNN(ctx, knn)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}

	allowed := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) > 0 {
			allowed[c.ID] = struct{}{}
		}
	}

	results := make([]domain.RankedResult, 0, len(res.Entries))
	for _, e := range res.Entries {
		id := strings.TrimPrefix(e.Key, s.keyPrefix)
		if _, ok := allowed[id]; !ok {
			continue
		}
		results = append(results, domain.RankedResult{
			ID:    id,
			Score: 1 - e.Score, // cosine distance -> similarity
		})
	}

	sortRanked(results)

	if len(results) > q.TopK {
		results = results[:q.TopK]
	}
	return results, nil
}
