package graph

import (
	"fmt"
	"iter"
	"math"

	"github.com/OFFIS-RIT/recgraph/pkg/common"
)

// Graph is a directed recommendation graph. It exclusively owns its vertex
// registry and edge store and is not safe for concurrent use; build
// independent graphs per goroutine and combine them with Merge.
type Graph struct {
	vertices vertexRegistry
	edges    edgeStore

	normalized        bool
	avgPredictedScore float64
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		vertices: newVertexRegistry(),
		edges:    newEdgeStore(),
	}
}

// EnsureVertex returns the vertex registered under label, whatever its
// namespace, creating an un-namespaced vertex if it does not exist yet.
func (g *Graph) EnsureVertex(label string) (VertexRef, error) {
	if ref, ok := g.vertices.lookup(label); ok {
		return ref, nil
	}
	return g.vertices.ensure(label, NamespaceNone)
}

// Accumulate records one observation of score for the source -> target pair.
// Both labels must already be registered.
//
// In weighted mode the observation is added to the pair's single aggregate
// edge. Otherwise a new parallel edge is created for it.
func (g *Graph) Accumulate(source, target string, score float64, weighted bool) error {
	if g.normalized {
		return fmt.Errorf("%w: graph is already normalized", ErrPrecondition)
	}
	src, ok := g.vertices.lookup(source)
	if !ok {
		return fmt.Errorf("%w: source vertex %q is not registered", ErrPrecondition, source)
	}
	dst, ok := g.vertices.lookup(target)
	if !ok {
		return fmt.Errorf("%w: target vertex %q is not registered", ErrPrecondition, target)
	}
	if weighted && !isFinite(score) {
		return fmt.Errorf("%w: score %v for %q -> %q is not a finite number", ErrInputShape, score, source, target)
	}

	g.edges.observe(src, dst, score, weighted)
	return nil
}

// Vertex returns the vertex for ref. It panics if ref does not belong to g.
func (g *Graph) Vertex(ref VertexRef) Vertex {
	return g.vertices.vertices[ref]
}

// VertexByLabel looks up a vertex by its label.
func (g *Graph) VertexByLabel(label string) (Vertex, bool) {
	ref, ok := g.vertices.lookup(label)
	if !ok {
		return Vertex{}, false
	}
	return g.vertices.vertices[ref], true
}

// EdgeBetween returns the aggregate edge for the source -> target pair.
// Parallel edges are not addressable by pair and are never returned.
func (g *Graph) EdgeBetween(source, target string) (Edge, bool) {
	src, ok := g.vertices.lookup(source)
	if !ok {
		return Edge{}, false
	}
	dst, ok := g.vertices.lookup(target)
	if !ok {
		return Edge{}, false
	}
	ref, ok := g.edges.index[edgeKey{source: src, target: dst}]
	if !ok {
		return Edge{}, false
	}
	return g.edges.edges[ref], true
}

// Vertices yields the vertices in insertion order.
func (g *Graph) Vertices() iter.Seq[Vertex] {
	return func(yield func(Vertex) bool) {
		for _, v := range g.vertices.vertices {
			if !yield(v) {
				return
			}
		}
	}
}

// Edges yields the edges in creation order.
func (g *Graph) Edges() iter.Seq[Edge] {
	return func(yield func(Edge) bool) {
		for _, e := range g.edges.edges {
			if !yield(e) {
				return
			}
		}
	}
}

func (g *Graph) NumVertices() int {
	return len(g.vertices.vertices)
}

func (g *Graph) NumEdges() int {
	return len(g.edges.edges)
}

// Normalized reports whether the normalization pass has run.
func (g *Graph) Normalized() bool {
	return g.normalized
}

// WeightStats returns the mean and population standard deviation of the
// final edge weights. Before normalization only the edge count is set.
func (g *Graph) WeightStats() common.WeightStats {
	stats := common.WeightStats{Edges: len(g.edges.edges)}
	if !g.normalized || stats.Edges == 0 {
		return stats
	}
	stats.AvgPredictedScore = g.avgPredictedScore

	var sum float64
	for i := range g.edges.edges {
		sum += g.edges.edges[i].Weight
	}
	mean := sum / float64(stats.Edges)

	var sq float64
	for i := range g.edges.edges {
		d := g.edges.edges[i].Weight - mean
		sq += d * d
	}
	stats.Mean = mean
	stats.StdDev = math.Sqrt(sq / float64(stats.Edges))
	return stats
}

// Snapshot converts the graph into its serializable form. Identity fields
// (ID, Name, Mode, TopN) are left for the caller to fill.
func (g *Graph) Snapshot() common.Graph {
	out := common.Graph{
		Stats:    g.WeightStats(),
		Vertices: make([]common.Vertex, 0, len(g.vertices.vertices)),
		Edges:    make([]common.Edge, 0, len(g.edges.edges)),
	}
	for _, v := range g.vertices.vertices {
		out.Vertices = append(out.Vertices, common.Vertex{
			Label:     v.Label,
			Namespace: string(v.Namespace),
		})
	}
	for _, e := range g.edges.edges {
		out.Edges = append(out.Edges, common.Edge{
			Source:     g.vertices.vertices[e.Source].Label,
			Target:     g.vertices.vertices[e.Target].Label,
			ScoreSum:   e.ScoreSum,
			ScoreCount: e.ScoreCount,
			Weight:     e.Weight,
			Parallel:   e.Parallel,
		})
	}
	return out
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
