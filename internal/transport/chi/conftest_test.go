package chi

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/relevo-cloud/relevo/internal/domain"
	healthuc "github.com/relevo-cloud/relevo/internal/usecase/health"
)

// mockRecommender implements Recommender for tests.
type mockRecommender struct {
	recommendFn func(ctx context.Context, query string, topK int, category string) ([]domain.Recommendation, error)
	respondFn   func(ctx context.Context, userMessage string, history []domain.Turn) (string, []domain.Recommendation, error)
	reindexFn   func(ctx context.Context) (int, error)
}

func (m *mockRecommender) Recommend(
	ctx context.Context, query string, topK int, category string,
) ([]domain.Recommendation, error) {
	if m.recommendFn != nil {
		return m.recommendFn(ctx, query, topK, category)
	}
	return []domain.Recommendation{}, nil
}

func (m *mockRecommender) Respond(
	ctx context.Context, userMessage string, history []domain.Turn,
) (string, []domain.Recommendation, error) {
	if m.respondFn != nil {
		return m.respondFn(ctx, userMessage, history)
	}
	return "", []domain.Recommendation{}, nil
}

func (m *mockRecommender) Reindex(ctx context.Context) (int, error) {
	if m.reindexFn != nil {
		return m.reindexFn(ctx)
	}
	return 0, nil
}

// mockCatalog implements Catalog for tests.
type mockCatalog struct {
	upsertFn func(ctx context.Context, item *domain.CatalogItem) (bool, error)
	getFn    func(ctx context.Context, id string) (domain.CatalogItem, error)
	listFn   func(ctx context.Context, category string) ([]domain.CatalogItem, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockCatalog) Upsert(ctx context.Context, item *domain.CatalogItem) (bool, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, item)
	}
	return false, nil
}

func (m *mockCatalog) Get(ctx context.Context, id string) (domain.CatalogItem, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return domain.CatalogItem{}, domain.ErrNotFound
}

func (m *mockCatalog) List(ctx context.Context, category string) ([]domain.CatalogItem, error) {
	if m.listFn != nil {
		return m.listFn(ctx, category)
	}
	return nil, nil
}

func (m *mockCatalog) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

func newTestRouter(
	t *testing.T, rec *mockRecommender, cat *mockCatalog, pinger *mockPinger,
) http.Handler {
	t.Helper()
	if pinger == nil {
		pinger = &mockPinger{}
	}
	server := NewServer(rec, cat, healthuc.New(pinger, nil), zap.NewNop())

	r := chi.NewRouter()
	server.Routes(r)
	return r
}
