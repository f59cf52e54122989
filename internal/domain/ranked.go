package domain

// RankedResult is a single ranking hit: an item identifier with its cosine
// similarity to the query, in [-1, 1].
type RankedResult struct {
	ID    string
	Score float64
}

// Recommendation is a ranked result enriched with the item's display fields.
type Recommendation struct {
	Item  CatalogItem
	Score float64
}
