package evaluation

import "time"

// Kind groups golden queries by what they exercise.
type Kind string

const (
	KindExact    Kind = "exact"    // product name typed in full
	KindKeyword  Kind = "keyword"  // words that appear in product text
	KindSemantic Kind = "semantic" // meaning without shared words, e.g. "keep tank warm"
)

// IsValid checks if the kind value is one of the defined constants.
func (k Kind) IsValid() bool {
	switch k {
	case KindExact, KindKeyword, KindSemantic:
		return true
	}
	return false
}

// GoldenQuery represents a labeled test query with expected outcomes.
type GoldenQuery struct {
	ID                 string   `json:"id"`
	Query              string   `json:"query"`
	Kind               Kind     `json:"kind"`
	ExpectedProductIDs []string `json:"expected_product_ids"`
	Difficulty         string   `json:"difficulty"` // easy, medium, hard
}

// EvalResult holds the evaluation outcome for a single query.
type EvalResult struct {
	QueryID     string        `json:"query_id"`
	Query       string        `json:"query"`
	Kind        Kind          `json:"kind"`
	RecallAt10  float64       `json:"recall_at_10"`
	MRRAt10     float64       `json:"mrr_at_10"`
	NDCGAt10    float64       `json:"ndcg_at_10"`
	ResultCount int           `json:"result_count"`
	Retrieved   []string      `json:"retrieved"`
	Latency     time.Duration `json:"latency"`
	Error       string        `json:"error,omitempty"`
}

// EvalSummary holds aggregate metrics across all golden queries.
type EvalSummary struct {
	Ranker          string                `json:"ranker"`
	TotalQueries    int                   `json:"total_queries"`
	FailedQueries   int                   `json:"failed_queries"`
	AvgRecallAt10   float64               `json:"avg_recall_at_10"`
	AvgMRRAt10      float64               `json:"avg_mrr_at_10"`
	AvgNDCGAt10     float64               `json:"avg_ndcg_at_10"`
	AvgLatency      time.Duration         `json:"avg_latency"`
	QueriesWithHits int                   `json:"queries_with_hits"` // queries that returned at least 1 result
	ByKind          map[Kind]*KindSummary `json:"by_kind"`
	Results         []EvalResult          `json:"results,omitempty"`
}

// KindSummary holds metrics grouped by query kind.
type KindSummary struct {
	Count         int     `json:"count"`
	AvgRecallAt10 float64 `json:"avg_recall_at_10"`
	AvgMRRAt10    float64 `json:"avg_mrr_at_10"`
	AvgNDCGAt10   float64 `json:"avg_ndcg_at_10"`
}
