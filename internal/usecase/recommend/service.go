package recommend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/relevo-cloud/relevo/internal/domain"
	"github.com/relevo-cloud/relevo/internal/metrics"
	"github.com/relevo-cloud/relevo/internal/usecase/rank"
)

// DegradedReply is returned when the completion provider fails. A
// conversational caller gets an apology, never an error.
const DegradedReply = "I wasn't able to generate a response just now. Please try again."

// Service orchestrates query embedding, catalog ranking and conversational
// recommendation.
type Service struct {
	repo        CatalogRepository
	queryEmbed  Embedder
	itemEmbed   Embedder
	ranker      Ranker
	completer   ChatCompleter
	defaultTopK int
	concurrency int
	maxChars    int
	logger      *zap.Logger
}

// New creates a recommendation service. queryEmbed is the (cached) embedder
// for raw query text; itemEmbed computes catalog item vectors, which are
// persisted rather than memory-cached.
func New(
	repo CatalogRepository,
	queryEmbed, itemEmbed Embedder,
	ranker Ranker,
	completer ChatCompleter,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:        repo,
		queryEmbed:  queryEmbed,
		itemEmbed:   itemEmbed,
		ranker:      ranker,
		completer:   completer,
		defaultTopK: 3,
		concurrency: 4,
		maxChars:    8000,
		logger:      logger,
	}
}

// WithLimits overrides the default topK, the backfill concurrency bound, and
// the embedding input truncation length.
func (s *Service) WithLimits(defaultTopK, concurrency, maxChars int) *Service {
	if defaultTopK > 0 {
		s.defaultTopK = defaultTopK
	}
	if concurrency > 0 {
		s.concurrency = concurrency
	}
	if maxChars > 0 {
		s.maxChars = maxChars
	}
	return s
}

// Recommend embeds the query, ranks the catalog (optionally scoped to a
// category) and returns the topK items with similarity scores. Provider and
// storage failures degrade to an empty list with the cause logged; only
// invalid input is an error.
func (s *Service) Recommend(
	ctx context.Context, query string, topK int, category string,
) ([]domain.Recommendation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = s.defaultTopK
	}

	queryVec, err := s.embedQuery(ctx, query)
	if err != nil {
		s.logger.Warn("Failed to embed query", zap.Error(err))
		return []domain.Recommendation{}, nil
	}

	items, err := s.repo.List(ctx, category)
	if err != nil {
		s.logger.Error("Failed to list catalog items", zap.Error(err))
		return []domain.Recommendation{}, nil
	}
	if len(items) == 0 {
		return []domain.Recommendation{}, nil
	}

	candidates, persistFailed := s.collectCandidates(ctx, items)

	ranker := s.ranker
	if persistFailed {
		// A store-delegated ranker would miss the vectors that failed to
		// persist; rank this request in process over the in-memory set.
		ranker = rank.Process{}
	}

	ranked, err := ranker.Rank(ctx, rank.Query{
		Vector:   queryVec,
		Category: category,
		TopK:     topK,
	}, candidates)
	if err != nil {
		s.logger.Error("Ranking failed", zap.Error(err))
		return []domain.Recommendation{}, nil
	}

	byID := make(map[string]domain.CatalogItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	recs := make([]domain.Recommendation, 0, len(ranked))
	for _, r := range ranked {
		item, ok := byID[r.ID]
		if !ok {
			continue
		}
		recs = append(recs, domain.Recommendation{Item: item, Score: r.Score})
	}
	return recs, nil
}

// Respond runs Recommend for the user message, assembles a completion request
// from the top items plus the conversation history, and returns the reply. On
// completion failure the reply degrades to a fixed apology with an empty
// recommendation list.
func (s *Service) Respond(
	ctx context.Context, userMessage string, history []domain.Turn,
) (string, []domain.Recommendation, error) {
	userMessage = strings.TrimSpace(userMessage)
	if userMessage == "" {
		return "", nil, fmt.Errorf("empty message: %w", domain.ErrInvalidInput)
	}

	recs, err := s.Recommend(ctx, userMessage, s.defaultTopK, "")
	if err != nil {
		return "", nil, err
	}

	messages := buildMessages(recs, history, userMessage)

	reply, err := s.completer.Complete(ctx, messages)
	if err != nil {
		s.logger.Warn("Completion failed, returning degraded reply", zap.Error(err))
		return DegradedReply, []domain.Recommendation{}, nil
	}

	return reply, recs, nil
}

// Reindex recomputes and persists embeddings for every item whose vector is
// missing or stale. Returns the number of items re-embedded.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	items, err := s.repo.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list catalog items: %w", err)
	}

	var (
		mu      sync.Mutex
		updated int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range items {
		item := items[i]
		if item.HasFreshVector() {
			continue
		}
		g.Go(func() error {
			vec, err := s.embedItem(gctx, &item)
			if err != nil {
				return fmt.Errorf("embed item %s: %w", item.ID, err)
			}
			hash := domain.HashText(item.EmbeddingText())
			if err := s.repo.PersistEmbedding(gctx, item.ID, vec, hash); err != nil {
				return fmt.Errorf("persist embedding %s: %w", item.ID, err)
			}
			mu.Lock()
			updated++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return updated, err
	}
	return updated, nil
}

// collectCandidates resolves each item's vector, computing and persisting
// missing or stale ones in parallel up to the concurrency bound. Items whose
// embedding cannot be computed are excluded from ranking. The second return
// reports whether any persist failed: those vectors are still used for this
// request, but the store-side index cannot be trusted for it.
func (s *Service) collectCandidates(
	ctx context.Context, items []domain.CatalogItem,
) ([]rank.Candidate, bool) {
	candidates := make([]rank.Candidate, len(items))
	var persistFailed bool
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range items {
		i := i
		item := items[i]

		if item.HasFreshVector() {
			candidates[i] = rank.Candidate{ID: item.ID, Vector: item.Vector}
			continue
		}

		g.Go(func() error {
			vec, err := s.embedItem(gctx, &item)
			if err != nil {
				metrics.ItemVectorBackfillTotal.WithLabelValues("error").Inc()
				s.logger.Warn("Failed to embed catalog item",
					zap.String("item_id", item.ID),
					zap.Error(err),
				)
				return nil // exclude from ranking, keep going
			}
			metrics.ItemVectorBackfillTotal.WithLabelValues("ok").Inc()

			candidates[i] = rank.Candidate{ID: item.ID, Vector: vec}

			hash := domain.HashText(item.EmbeddingText())
			if err := s.repo.PersistEmbedding(gctx, item.ID, vec, hash); err != nil {
				// The in-memory vector still serves this request; the stale
				// persisted value stays until a later write succeeds.
				s.logger.Error("Failed to persist item embedding",
					zap.String("item_id", item.ID),
					zap.Error(err),
				)
				mu.Lock()
				persistFailed = true
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait() // workers never return errors; Wait observes ctx cancellation

	out := candidates[:0]
	for _, c := range candidates {
		if c.ID != "" {
			out = append(out, c)
		}
	}
	return out, persistFailed
}

func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, error) {
	res, err := s.queryEmbed.Embed(ctx, truncate(query, s.maxChars))
	if err != nil {
		return nil, err
	}
	return res.Embedding, nil
}

func (s *Service) embedItem(ctx context.Context, item *domain.CatalogItem) ([]float32, error) {
	res, err := s.itemEmbed.Embed(ctx, truncate(item.EmbeddingText(), s.maxChars))
	if err != nil {
		return nil, err
	}
	return res.Embedding, nil
}

// truncate bounds text length before it reaches the provider, which rejects
// rather than truncates.
func truncate(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	// Cut on a rune boundary.
	cut := maxChars
	for cut > 0 && !utf8RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
