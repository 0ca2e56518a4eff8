package entities

import "time"

// SearchQuery is one row of the search log. ClickedProductID and
// ClickPosition are set at most once, by click attribution.
type SearchQuery struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id,omitempty"`
	SessionID        string    `json:"session_id"`
	Query            string    `json:"query"`
	ResultsCount     int       `json:"results_count"`
	ClickedProductID string    `json:"clicked_product_id,omitempty"`
	ClickPosition    *int      `json:"click_position,omitempty"`
	NoResultsFound   bool      `json:"no_results_found"`
	CreatedAt        time.Time `json:"created_at"`
}

// SearchClick attributes a result click to the session's latest search.
type SearchClick struct {
	UserID    string
	SessionID string
	Query     string
	ProductID string
	Position  int
}
