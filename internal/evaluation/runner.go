package evaluation

import (
	"context"
	"time"
)

const evalK = 10

// Ranker returns product ids for query, best first.
type Ranker interface {
	Rank(ctx context.Context, query string, limit int) ([]string, error)
}

// RankerFunc adapts a function to Ranker.
type RankerFunc func(ctx context.Context, query string, limit int) ([]string, error)

func (f RankerFunc) Rank(ctx context.Context, query string, limit int) ([]string, error) {
	return f(ctx, query, limit)
}

// Runner runs evaluation across a set of golden queries.
type Runner struct {
	name   string
	ranker Ranker
}

func NewRunner(name string, ranker Ranker) *Runner {
	return &Runner{name: name, ranker: ranker}
}

// Run ranks every golden query and aggregates the @10 metrics. Failed queries
// score zero and are counted separately.
func (r *Runner) Run(ctx context.Context, queries []GoldenQuery) (*EvalSummary, error) {
	summary := &EvalSummary{
		Ranker:       r.name,
		TotalQueries: len(queries),
		ByKind:       make(map[Kind]*KindSummary),
		Results:      make([]EvalResult, 0, len(queries)),
	}

	for _, gq := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		ids, err := r.ranker.Rank(ctx, gq.Query, evalK)
		duration := time.Since(start)

		result := EvalResult{
			QueryID:     gq.ID,
			Query:       gq.Query,
			Kind:        gq.Kind,
			ResultCount: len(ids),
			Retrieved:   ids,
			Latency:     duration,
		}
		if err != nil {
			result.Error = err.Error()
			result.ResultCount = 0
			result.Retrieved = nil
			summary.FailedQueries++
		} else {
			result.RecallAt10 = RecallAtK(gq.ExpectedProductIDs, ids, evalK)
			result.MRRAt10 = MRRAtK(gq.ExpectedProductIDs, ids, evalK)
			result.NDCGAt10 = NDCGAtK(gq.ExpectedProductIDs, ids, evalK)
		}

		r.updateSummary(summary, result)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	s.Results = append(s.Results, res)
	s.AvgRecallAt10 += res.RecallAt10
	s.AvgMRRAt10 += res.MRRAt10
	s.AvgNDCGAt10 += res.NDCGAt10
	s.AvgLatency += res.Latency
	if res.ResultCount > 0 {
		s.QueriesWithHits++
	}

	if _, ok := s.ByKind[res.Kind]; !ok {
		s.ByKind[res.Kind] = &KindSummary{}
	}
	ks := s.ByKind[res.Kind]
	ks.Count++
	ks.AvgRecallAt10 += res.RecallAt10
	ks.AvgMRRAt10 += res.MRRAt10
	ks.AvgNDCGAt10 += res.NDCGAt10
}

func (r *Runner) finalizeSummary(s *EvalSummary) {
	if s.TotalQueries > 0 {
		n := float64(s.TotalQueries)
		s.AvgRecallAt10 /= n
		s.AvgMRRAt10 /= n
		s.AvgNDCGAt10 /= n
		s.AvgLatency /= time.Duration(s.TotalQueries)
	}

	for _, ks := range s.ByKind {
		if ks.Count > 0 {
			n := float64(ks.Count)
			ks.AvgRecallAt10 /= n
			ks.AvgMRRAt10 /= n
			ks.AvgNDCGAt10 /= n
		}
	}
}
