package graph

import (
	"errors"
	"math"
	"testing"

	"github.com/OFFIS-RIT/recgraph/pkg/common"
)

func buildExample(t *testing.T, weighted bool) *Graph {
	t.Helper()
	var g *Graph
	var err error
	for _, ev := range exampleEvents() {
		g, err = ItemGraphUpdate(g, ev.ItemID, ev.Recommendations, weighted)
		if err != nil {
			t.Fatalf("ItemGraphUpdate error: %v", err)
		}
	}
	return g
}

func TestNormalizeWeighted(t *testing.T) {
	g := buildExample(t, true)

	out, err := Normalize(g, true)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if out != g {
		t.Fatal("Normalize must return the same graph")
	}
	if !g.Normalized() {
		t.Fatal("graph not marked normalized")
	}

	tests := []struct {
		target string
		want   float64
	}{
		{target: "X", want: 250.0},
		{target: "Y", want: 50.0},
	}
	for _, tt := range tests {
		e, _ := g.EdgeBetween("A", tt.target)
		if !approxEqual(e.Weight, tt.want) {
			t.Fatalf("weight(A,%s) = %v, want %v", tt.target, e.Weight, tt.want)
		}
	}

	stats := g.WeightStats()
	if stats.Edges != 2 || stats.AvgPredictedScore != 4.0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if !approxEqual(stats.Mean, 150.0) || !approxEqual(stats.StdDev, 100.0) {
		t.Fatalf("weight mean/std = %v/%v, want 150/100", stats.Mean, stats.StdDev)
	}
}

func TestNormalizeWeightFormula(t *testing.T) {
	var g *Graph
	var err error
	events := []struct {
		source string
		recs   []common.Recommendation
	}{
		{"A", []common.Recommendation{rec("B", 0.3), rec("C", 0.9), rec("D", 1.7)}},
		{"B", []common.Recommendation{rec("C", 2.2), rec("A", 0.05)}},
		{"A", []common.Recommendation{rec("C", 1.1)}},
	}
	for _, ev := range events {
		g, err = ItemGraphUpdate(g, ev.source, ev.recs, true)
		if err != nil {
			t.Fatalf("ItemGraphUpdate error: %v", err)
		}
	}

	var totalSum float64
	var totalCount int
	for e := range g.Edges() {
		totalSum += e.ScoreSum
		totalCount += e.ScoreCount
	}
	avg := totalSum / float64(totalCount)

	if _, err := Normalize(g, true); err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	for e := range g.Edges() {
		want := (e.ScoreSum / avg) * 100
		if !approxEqual(e.Weight, want) {
			t.Fatalf("edge %+v weight = %v, want %v", e, e.Weight, want)
		}
	}
}

func TestNormalizeUnweighted(t *testing.T) {
	g := buildExample(t, false)
	if _, err := Normalize(g, false); err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	for e := range g.Edges() {
		if e.Weight != 1 {
			t.Fatalf("presence edge weight = %v, want 1", e.Weight)
		}
	}
	stats := g.WeightStats()
	if stats.Edges != 3 || stats.Mean != 1 || stats.StdDev != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestNormalizeDegenerate(t *testing.T) {
	zero := 0.0
	vertexOnly, _ := ItemGraphUpdate(nil, "A", nil, true)
	zeroScores, _ := ItemGraphUpdate(nil, "A", []common.Recommendation{{ItemID: "X", Score: &zero}}, true)

	tests := []struct {
		name     string
		graph    *Graph
		weighted bool
	}{
		{name: "nil graph", graph: nil, weighted: true},
		{name: "empty graph", graph: NewGraph(), weighted: true},
		{name: "vertices without edges", graph: vertexOnly, weighted: true},
		{name: "empty graph unweighted", graph: NewGraph(), weighted: false},
		{name: "zero average score", graph: zeroScores, weighted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.graph, tt.weighted)
			if !errors.Is(err, ErrDegenerateGraph) {
				t.Fatalf("expected ErrDegenerateGraph, got %v", err)
			}
			if tt.graph != nil {
				for e := range tt.graph.Edges() {
					if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
						t.Fatalf("weight was written on failure: %+v", e)
					}
				}
			}
		})
	}
}

func TestNormalizeIsTerminal(t *testing.T) {
	g := buildExample(t, true)
	if _, err := Normalize(g, true); err != nil {
		t.Fatalf("Normalize error: %v", err)
	}

	if _, err := Normalize(g, true); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("second Normalize: expected ErrPrecondition, got %v", err)
	}
	if err := g.Accumulate("A", "X", 1, true); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("Accumulate after Normalize: expected ErrPrecondition, got %v", err)
	}
	if _, err := ItemGraphUpdate(g, "A", []common.Recommendation{rec("X", 1)}, true); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("update after Normalize: expected ErrPrecondition, got %v", err)
	}
}

func TestWeightStatsBeforeNormalize(t *testing.T) {
	g := buildExample(t, true)
	stats := g.WeightStats()
	if stats.Edges != 2 || stats.Mean != 0 || stats.StdDev != 0 {
		t.Fatalf("unexpected stats before normalization: %+v", stats)
	}
}
