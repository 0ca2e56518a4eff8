package entities

import "time"

// ProductEmbedding is the single current vector for a product. Regeneration
// overwrites it in place.
type ProductEmbedding struct {
	ID           string    `json:"id" db:"id"`
	ProductID    string    `json:"product_id" db:"product_id"`
	Vector       []float32 `json:"vector" db:"embedding"`
	ModelVersion string    `json:"model_version" db:"model_version"`
	// ContentHash fingerprints the product text the vector was built from.
	ContentHash string    `json:"content_hash" db:"content_hash"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// EmbeddingStats reports how much of the catalog has a vector.
type EmbeddingStats struct {
	TotalProducts     int     `json:"total_products"`
	WithEmbeddings    int     `json:"with_embeddings"`
	MissingEmbeddings int     `json:"missing_embeddings"`
	CoveragePercent   float64 `json:"coverage_percent"`
}

// BackfillSummary is the outcome of a batch embedding run.
type BackfillSummary struct {
	TotalProcessed int `json:"total_processed"`
	SuccessCount   int `json:"success"`
	FailureCount   int `json:"failed"`
}
