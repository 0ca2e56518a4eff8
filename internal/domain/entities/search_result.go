package entities

// MatchType records how a product matched a lexical query.
type MatchType string

const (
	MatchTypeExact    MatchType = "exact"
	MatchTypePartial  MatchType = "partial"
	MatchTypeCategory MatchType = "category"
)

// LexicalMatch is a product scored by field-weighted keyword matching.
type LexicalMatch struct {
	ProductID string    `json:"product_id"`
	Score     float64   `json:"score"`
	MatchType MatchType `json:"match_type"`
}

// SemanticMatch is a product scored by cosine similarity to a vector.
type SemanticMatch struct {
	ProductID  string  `json:"product_id"`
	Similarity float64 `json:"similarity"`
}

// RankedProduct is a product with its merged hybrid score.
type RankedProduct struct {
	ProductID string  `json:"product_id"`
	Score     float64 `json:"score"`
}

// SortOrder selects the ordering of advanced search results.
type SortOrder string

const (
	SortRelevance SortOrder = "relevance"
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
	SortRating    SortOrder = "rating"
	SortNewest    SortOrder = "newest"
)

// SearchRequest is the caller-facing search input.
type SearchRequest struct {
	Query     string
	Limit     int
	UserID    string
	SessionID string
}

// AdvancedSearchRequest combines an optional query with catalog filters.
type AdvancedSearchRequest struct {
	Query  string
	Filter ProductFilter
	Sort   SortOrder
	Limit  int
}
