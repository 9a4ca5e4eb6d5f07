package graph

import "fmt"

// Merge folds the aggregates of src into dst. Vertices are united by label,
// aggregate edges sum their ScoreSum and ScoreCount per pair, and parallel
// edges are appended. Both graphs must still be unnormalized.
//
// Merging shard graphs built from contiguous slices of an event sequence, in
// slice order, yields the same vertices in the same order as a sequential
// build, with aggregates equal up to floating-point rounding.
func Merge(dst, src *Graph) error {
	if dst == nil || src == nil {
		return fmt.Errorf("%w: cannot merge a nil graph", ErrPrecondition)
	}
	if dst.normalized || src.normalized {
		return fmt.Errorf("%w: cannot merge normalized graphs", ErrPrecondition)
	}

	for _, v := range src.vertices.vertices {
		if err := dst.vertices.check(v.Label, v.Namespace); err != nil {
			return err
		}
	}

	remap := make([]VertexRef, len(src.vertices.vertices))
	for i, v := range src.vertices.vertices {
		ref, err := dst.vertices.ensure(v.Label, v.Namespace)
		if err != nil {
			return err
		}
		remap[i] = ref
	}

	for _, e := range src.edges.edges {
		source, target := remap[e.Source], remap[e.Target]
		if e.Parallel {
			dst.edges.addParallel(source, target, e.ScoreSum)
			continue
		}
		dst.edges.aggregate(source, target, e.ScoreSum, e.ScoreCount)
	}

	return nil
}
