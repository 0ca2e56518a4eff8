package entities

// TrendingProduct is a product ranked by views in a trailing window.
type TrendingProduct struct {
	ProductID string `json:"product_id" db:"product_id"`
	Views     int    `json:"views" db:"views"`
}

// KeywordStat aggregates one query text over the search log.
type KeywordStat struct {
	Query      string  `json:"query" db:"query"`
	Count      int     `json:"count" db:"count"`
	AvgResults float64 `json:"avg_results" db:"avg_results"`
}

// NoResultQuery is a query text that returned nothing.
type NoResultQuery struct {
	Query string `json:"query" db:"query"`
	Count int    `json:"count" db:"count"`
}

// InteractionCounts holds per-type totals used by abandonment reporting.
type InteractionCounts struct {
	CartAdds  int `db:"cart_adds"`
	Purchases int `db:"purchases"`
}

// UserInteractionSummary summarizes a user's most recent interactions.
type UserInteractionSummary struct {
	UserID              string   `json:"user_id"`
	TotalViews          int      `json:"total_views"`
	TotalCartAdds       int      `json:"total_cart_adds"`
	TotalPurchases      int      `json:"total_purchases"`
	TotalFavorites      int      `json:"total_favorites"`
	ConversionRate      float64  `json:"conversion_rate"`
	AverageViewDuration float64  `json:"average_view_duration"`
	RecentProducts      []string `json:"recent_products"`
}
