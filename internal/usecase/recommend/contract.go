package recommend

import (
	"context"

	"github.com/relevo-cloud/relevo/internal/domain"
	"github.com/relevo-cloud/relevo/internal/usecase/rank"
)

// CatalogRepository defines the storage contract for recommendation.
type CatalogRepository interface {
	List(ctx context.Context, category string) ([]domain.CatalogItem, error)
	Get(ctx context.Context, id string) (domain.CatalogItem, error)
	// PersistEmbedding atomically writes an item's vector together with the
	// hash of the text it was computed from.
	PersistEmbedding(ctx context.Context, id string, vector []float32, textHash string) error
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Ranker orders candidates against a query vector.
type Ranker interface {
	Rank(ctx context.Context, q rank.Query, candidates []rank.Candidate) ([]domain.RankedResult, error)
}

// ChatCompleter generates a completion for an ordered message list.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []domain.Message) (string, error)
}
