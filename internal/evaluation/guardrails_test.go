package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuardrails_PassingSummary(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{MinRecallAt10: 0.5, MinMRRAt10: 0.4, MinHitRatio: 0.8})

	violations := g.Check(&EvalSummary{
		TotalQueries:    10,
		QueriesWithHits: 9,
		AvgRecallAt10:   0.7,
		AvgMRRAt10:      0.6,
	})

	assert.Empty(t, violations)
}

func TestGuardrails_ReportsEveryMiss(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{MinRecallAt10: 0.5, MinMRRAt10: 0.4, MinHitRatio: 0.8})

	violations := g.Check(&EvalSummary{
		TotalQueries:    10,
		FailedQueries:   3,
		QueriesWithHits: 5,
		AvgRecallAt10:   0.2,
		AvgMRRAt10:      0.1,
	})

	assert.Len(t, violations, 4)
}

func TestGuardrails_EmptySummaryOnlyChecksAverages(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{MinHitRatio: 1})

	assert.Empty(t, g.Check(&EvalSummary{}))
}
