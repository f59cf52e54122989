package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/relevo-cloud/relevo/internal/db"
)

// EnsureIndex creates the FT index used by the store-backed ranking path if
// it does not exist yet. Idempotent.
func EnsureIndex(ctx context.Context, mgr db.IndexManager, keyPrefix, name string, dimensions int) error {
	exists, err := mgr.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check index %s: %w", name, err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     name,
		Prefixes: []string{keyPrefix + itemKeyspace},
		Fields: []db.IndexField{
			{Name: fieldCategory, Type: db.IndexFieldTag},
			{
				Name:       fieldVector,
				Type:       db.IndexFieldVector,
				Dimensions: dimensions,
				Metric:     db.DistanceCosine,
			},
		},
	}

	if err := mgr.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}
