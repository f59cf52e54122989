package catalog

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/relevo-cloud/relevo/internal/domain"
)

// Hash field names. The vector field name must match the FT index schema.
const (
	fieldName        = "name"
	fieldDescription = "description"
	fieldTags        = "tags"
	fieldCategory    = "category"
	fieldVector      = "vector"
	fieldVectorHash  = "vector_hash"
)

const tagSeparator = ","

// buildHashFields converts a domain CatalogItem into a flat map for HSET.
// The vector fields are written empty: embeddings go through PersistEmbedding.
func buildHashFields(item *domain.CatalogItem) map[string]string {
	return map[string]string{
		fieldName:        item.Name,
		fieldDescription: item.Description,
		fieldTags:        strings.Join(item.Tags, tagSeparator),
		fieldCategory:    item.Category,
		fieldVector:      "",
		fieldVectorHash:  "",
	}
}

// parseHashFields converts a flat hash map back into a domain CatalogItem.
func parseHashFields(id string, m map[string]string) domain.CatalogItem {
	item := domain.CatalogItem{
		ID:          id,
		Name:        m[fieldName],
		Description: m[fieldDescription],
		Category:    m[fieldCategory],
		VectorHash:  m[fieldVectorHash],
	}
	if tags := m[fieldTags]; tags != "" {
		item.Tags = strings.Split(tags, tagSeparator)
	}
	if raw := m[fieldVector]; raw != "" {
		item.Vector = bytesToVector(raw)
	}
	return item
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float,
// little-endian), the layout FT.SEARCH vector fields expect.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
