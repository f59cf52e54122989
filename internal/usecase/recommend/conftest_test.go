package recommend

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/relevo-cloud/relevo/internal/domain"
	"github.com/relevo-cloud/relevo/internal/usecase/rank"
)

// mockRepo implements CatalogRepository for tests.
type mockRepo struct {
	listFn    func(ctx context.Context, category string) ([]domain.CatalogItem, error)
	getFn     func(ctx context.Context, id string) (domain.CatalogItem, error)
	persistFn func(ctx context.Context, id string, vector []float32, textHash string) error

	mu        sync.Mutex
	persisted map[string]string // item id -> text hash
}

func (m *mockRepo) List(ctx context.Context, category string) ([]domain.CatalogItem, error) {
	if m.listFn != nil {
		return m.listFn(ctx, category)
	}
	return nil, nil
}

func (m *mockRepo) Get(ctx context.Context, id string) (domain.CatalogItem, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return domain.CatalogItem{}, domain.ErrNotFound
}

func (m *mockRepo) PersistEmbedding(ctx context.Context, id string, vector []float32, textHash string) error {
	m.mu.Lock()
	if m.persisted == nil {
		m.persisted = make(map[string]string)
	}
	m.persisted[id] = textHash
	m.mu.Unlock()

	if m.persistFn != nil {
		return m.persistFn(ctx, id, vector, textHash)
	}
	return nil
}

func (m *mockRepo) persistedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.persisted)
}

// mockEmbedder implements Embedder for tests. vectors maps exact input text to
// the vector to return; inputs without an entry get defaultVec.
type mockEmbedder struct {
	vectors    map[string][]float32
	defaultVec []float32
	err        error

	mu    sync.Mutex
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	if vec, ok := m.vectors[text]; ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	return domain.EmbeddingResult{Embedding: m.defaultVec}, nil
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockRanker implements Ranker for tests and records whether it ran.
type mockRanker struct {
	rankFn func(ctx context.Context, q rank.Query, candidates []rank.Candidate) ([]domain.RankedResult, error)
	called bool
}

func (m *mockRanker) Rank(ctx context.Context, q rank.Query, candidates []rank.Candidate) ([]domain.RankedResult, error) {
	m.called = true
	if m.rankFn != nil {
		return m.rankFn(ctx, q, candidates)
	}
	return nil, nil
}

// mockCompleter implements ChatCompleter for tests.
type mockCompleter struct {
	reply    string
	err      error
	messages []domain.Message
}

func (m *mockCompleter) Complete(_ context.Context, messages []domain.Message) (string, error) {
	m.messages = messages
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func newTestService(
	t *testing.T,
	repo *mockRepo,
	queryEmbed, itemEmbed *mockEmbedder,
	ranker Ranker,
	completer *mockCompleter,
) *Service {
	t.Helper()
	if ranker == nil {
		ranker = rank.Process{}
	}
	return New(repo, queryEmbed, itemEmbed, ranker, completer, zap.NewNop())
}

// freshItem builds an item whose persisted vector matches its current text.
func freshItem(id, name, category string, vec []float32) domain.CatalogItem {
	item := domain.CatalogItem{ID: id, Name: name, Category: category, Vector: vec}
	item.VectorHash = domain.HashText(item.EmbeddingText())
	return item
}
