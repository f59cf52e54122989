package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/relevo-cloud/relevo/internal/db"
	"github.com/relevo-cloud/relevo/internal/domain"
)

// store is the consumer interface for catalog persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo stores catalog items as Redis hashes under <prefix>item:<id>.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a catalog repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix}
}

// Upsert creates or updates an item. Returns true if created. When the item's
// text changed relative to the stored copy, the persisted vector is cleared in
// the same HSET so a stale embedding is never served.
func (r *Repo) Upsert(ctx context.Context, item *domain.CatalogItem) (bool, error) {
	if item.ID == "" {
		return false, fmt.Errorf("item id is required: %w", domain.ErrInvalidInput)
	}
	if item.Name == "" {
		return false, fmt.Errorf("item name is required: %w", domain.ErrInvalidInput)
	}

	key := r.itemKey(item.ID)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, err)
	}

	fields := buildHashFields(item)

	if exists {
		prev, err := r.store.HGetAll(ctx, key)
		if err != nil {
			return false, fmt.Errorf("hgetall %s: %w", key, err)
		}
		prevItem := parseHashFields(item.ID, prev)
		if prevItem.VectorHash == domain.HashText(item.EmbeddingText()) {
			// Text unchanged: keep the persisted vector.
			fields[fieldVector] = vectorToBytes(prevItem.Vector)
			fields[fieldVectorHash] = prevItem.VectorHash
		}
	}

	if err := r.store.HSet(ctx, key, fields); err != nil {
		return false, fmt.Errorf("hset %s: %w", key, err)
	}

	return !exists, nil
}

// Get returns an item by ID.
func (r *Repo) Get(ctx context.Context, id string) (domain.CatalogItem, error) {
	key := r.itemKey(id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.CatalogItem{}, domain.ErrNotFound
		}
		return domain.CatalogItem{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domain.CatalogItem{}, domain.ErrNotFound
	}
	return parseHashFields(id, m), nil
}

// List returns all items, optionally filtered by category. Results are sorted
// by ID so callers see a stable order.
func (r *Repo) List(ctx context.Context, category string) ([]domain.CatalogItem, error) {
	pattern := r.keyPrefix + itemKeyspace + "*"
	keys, err := r.store.Scan(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch items: %w", err)
	}

	items := make([]domain.CatalogItem, 0, len(hashes))
	for i, m := range hashes {
		if len(m) == 0 {
			continue
		}
		item := parseHashFields(r.extractID(keys[i]), m)
		if category != "" && item.Category != category {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// PersistEmbedding writes an item's vector and the hash of the text it was
// computed from in one HSET, so the write is all-or-nothing. Last write wins.
func (r *Repo) PersistEmbedding(ctx context.Context, id string, vector []float32, textHash string) error {
	if len(vector) == 0 {
		return fmt.Errorf("vector is required: %w", domain.ErrInvalidInput)
	}
	key := r.itemKey(id)
	fields := map[string]string{
		fieldVector:     vectorToBytes(vector),
		fieldVectorHash: textHash,
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("persist embedding %s: %w", key, err)
	}
	return nil
}

// Delete removes an item.
func (r *Repo) Delete(ctx context.Context, id string) error {
	key := r.itemKey(id)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

const itemKeyspace = "item:"

// ItemKeyPrefix returns the full hash key prefix for catalog items, shared
// with the store-backed ranker for mapping result keys back to item ids.
func ItemKeyPrefix(keyPrefix string) string {
	return keyPrefix + itemKeyspace
}

func (r *Repo) itemKey(id string) string {
	return r.keyPrefix + itemKeyspace + id
}

func (r *Repo) extractID(key string) string {
	return strings.TrimPrefix(key, r.keyPrefix+itemKeyspace)
}
