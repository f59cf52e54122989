package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CatalogItem is a recommendable entity (a tool, an article) whose text
// fields derive its embedding.
type CatalogItem struct {
	ID          string
	Name        string
	Description string
	Tags        []string
	Category    string

	// Vector is the persisted embedding, nil until computed.
	Vector []float32
	// VectorHash is the hash of the text Vector was computed from. When it
	// no longer matches the current EmbeddingText the vector is stale.
	VectorHash string
}

// EmbeddingText returns the canonical text an item's embedding is computed
// from: name, description and tags joined in a fixed order, so identical item
// content always produces identical text.
func (i *CatalogItem) EmbeddingText() string {
	var b strings.Builder
	b.WriteString(i.Name)
	if i.Description != "" {
		b.WriteString(". ")
		b.WriteString(i.Description)
	}
	if len(i.Tags) > 0 {
		b.WriteString(". ")
		b.WriteString(strings.Join(i.Tags, ", "))
	}
	return b.String()
}

// HasFreshVector reports whether a persisted vector exists and still matches
// the item's current text.
func (i *CatalogItem) HasFreshVector() bool {
	return len(i.Vector) > 0 && i.VectorHash == HashText(i.EmbeddingText())
}

// HashText returns the hex sha256 of text. Used as the staleness marker for
// persisted vectors and as the raw-text cache key.
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
