package graph

// EdgeRef is a stable handle to an edge within one Graph.
type EdgeRef int

// Edge is a directed source -> target relationship.
//
// ScoreSum and ScoreCount aggregate every observation of the pair. Weight is
// zero until the graph is normalized. Parallel edges come from presence-mode
// accumulation and always carry exactly one observation.
type Edge struct {
	Ref        EdgeRef
	Source     VertexRef
	Target     VertexRef
	ScoreSum   float64
	ScoreCount int
	Weight     float64
	Parallel   bool
}

type edgeKey struct {
	source VertexRef
	target VertexRef
}

// edgeStore holds all edges. Only aggregated (non-parallel) edges are
// indexed by their (source, target) pair.
type edgeStore struct {
	edges []Edge
	index map[edgeKey]EdgeRef
}

func newEdgeStore() edgeStore {
	return edgeStore{index: make(map[edgeKey]EdgeRef)}
}

// aggregate adds sum and count to the indexed edge for the pair, creating it
// on first use.
func (s *edgeStore) aggregate(source, target VertexRef, sum float64, count int) EdgeRef {
	key := edgeKey{source: source, target: target}
	ref, ok := s.index[key]
	if !ok {
		ref = EdgeRef(len(s.edges))
		s.edges = append(s.edges, Edge{Ref: ref, Source: source, Target: target})
		s.index[key] = ref
	}

	e := &s.edges[ref]
	e.ScoreSum += sum
	e.ScoreCount += count
	return ref
}

func (s *edgeStore) addParallel(source, target VertexRef, score float64) EdgeRef {
	ref := EdgeRef(len(s.edges))
	s.edges = append(s.edges, Edge{
		Ref:        ref,
		Source:     source,
		Target:     target,
		ScoreSum:   score,
		ScoreCount: 1,
		Parallel:   true,
	})
	return ref
}

func (s *edgeStore) observe(source, target VertexRef, score float64, weighted bool) EdgeRef {
	if !weighted {
		return s.addParallel(source, target, score)
	}
	return s.aggregate(source, target, score, 1)
}

func (s *edgeStore) totals() (float64, int) {
	var sum float64
	var count int
	for i := range s.edges {
		sum += s.edges[i].ScoreSum
		count += s.edges[i].ScoreCount
	}
	return sum, count
}
