package graph

import (
	"fmt"

	"github.com/OFFIS-RIT/recgraph/pkg/logger"
)

// Normalize converts every edge aggregate into its final weight and marks
// the graph as finished. It must run exactly once, after all accumulation.
//
// The graph-wide average predicted score is
//
//	avg = sum(ScoreSum) / sum(ScoreCount)
//
// and in weighted mode each edge gets Weight = (ScoreSum / avg) * 100, its
// deviation from the average as a percentage. Otherwise every edge gets
// Weight = 1.
//
// Normalize mutates and returns g.
func Normalize(g *Graph, weighted bool) (*Graph, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: graph has no edges", ErrDegenerateGraph)
	}
	if g.normalized {
		return nil, fmt.Errorf("%w: graph is already normalized", ErrPrecondition)
	}

	totalScoreSum, totalScoreCount := g.edges.totals()
	if totalScoreCount == 0 {
		return nil, fmt.Errorf("%w: graph has no edges", ErrDegenerateGraph)
	}

	avgPredictedScore := totalScoreSum / float64(totalScoreCount)
	if weighted && avgPredictedScore == 0 {
		return nil, fmt.Errorf("%w: average predicted score is zero", ErrDegenerateGraph)
	}
	logger.Debug("[Graph] Average score", "avg", avgPredictedScore)

	for i := range g.edges.edges {
		e := &g.edges.edges[i]
		if weighted {
			e.Weight = (e.ScoreSum / avgPredictedScore) * 100
		} else {
			e.Weight = 1
		}
	}
	g.normalized = true
	g.avgPredictedScore = avgPredictedScore

	stats := g.WeightStats()
	logger.Info(
		"[Graph] Normalized",
		"edges", stats.Edges,
		"weight_avg", fmt.Sprintf("%.4f", stats.Mean),
		"weight_std", fmt.Sprintf("%.4f", stats.StdDev),
	)

	return g, nil
}
