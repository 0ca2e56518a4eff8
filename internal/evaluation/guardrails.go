package evaluation

import "fmt"

// GuardrailConfig sets the minimum acceptable ranking quality.
type GuardrailConfig struct {
	MinRecallAt10  float64
	MinMRRAt10     float64
	MaxFailedRatio float64
	MinHitRatio    float64
}

type Guardrails struct {
	config GuardrailConfig
}

func NewGuardrails(config GuardrailConfig) *Guardrails {
	if config.MaxFailedRatio <= 0 {
		config.MaxFailedRatio = 0.1
	}
	return &Guardrails{config: config}
}

// Check returns one message per threshold the summary misses.
func (g *Guardrails) Check(s *EvalSummary) []string {
	var violations []string
	if s.AvgRecallAt10 < g.config.MinRecallAt10 {
		violations = append(violations, fmt.Sprintf("recall@10 %.3f below %.3f", s.AvgRecallAt10, g.config.MinRecallAt10))
	}
	if s.AvgMRRAt10 < g.config.MinMRRAt10 {
		violations = append(violations, fmt.Sprintf("mrr@10 %.3f below %.3f", s.AvgMRRAt10, g.config.MinMRRAt10))
	}
	if s.TotalQueries == 0 {
		return violations
	}
	n := float64(s.TotalQueries)
	if failed := float64(s.FailedQueries) / n; failed > g.config.MaxFailedRatio {
		violations = append(violations, fmt.Sprintf("%.0f%% of queries failed", failed*100))
	}
	if hits := float64(s.QueriesWithHits) / n; hits < g.config.MinHitRatio {
		violations = append(violations, fmt.Sprintf("only %.0f%% of queries returned results", hits*100))
	}
	return violations
}
