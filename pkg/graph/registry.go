package graph

import "fmt"

// Namespace tags a vertex with the identifier space it was created in.
type Namespace string

const (
	NamespaceNone Namespace = ""
	NamespaceItem Namespace = "item"
	NamespaceUser Namespace = "user"
)

const (
	userLabelPrefix = "u_"
	itemLabelPrefix = "i_"
)

// VertexRef is a stable handle to a vertex within one Graph.
type VertexRef int

// Vertex is a node of the recommendation graph. Its label never changes
// after creation.
type Vertex struct {
	Ref       VertexRef
	Label     string
	Namespace Namespace
}

// vertexRegistry is an arena of vertices with a label index. A label maps to
// at most one vertex.
type vertexRegistry struct {
	vertices []Vertex
	index    map[string]VertexRef
}

func newVertexRegistry() vertexRegistry {
	return vertexRegistry{index: make(map[string]VertexRef)}
}

// check reports whether ensure(label, ns) would succeed without mutating.
func (r *vertexRegistry) check(label string, ns Namespace) error {
	if label == "" {
		return fmt.Errorf("%w: empty vertex label", ErrPrecondition)
	}
	ref, ok := r.index[label]
	if !ok {
		return nil
	}
	if existing := r.vertices[ref].Namespace; existing != ns {
		return fmt.Errorf(
			"%w: vertex %q already registered in namespace %q, not %q",
			ErrPrecondition, label, existing, ns,
		)
	}
	return nil
}

func (r *vertexRegistry) ensure(label string, ns Namespace) (VertexRef, error) {
	if err := r.check(label, ns); err != nil {
		return -1, err
	}
	if ref, ok := r.index[label]; ok {
		return ref, nil
	}

	ref := VertexRef(len(r.vertices))
	r.vertices = append(r.vertices, Vertex{Ref: ref, Label: label, Namespace: ns})
	r.index[label] = ref
	return ref, nil
}

func (r *vertexRegistry) lookup(label string) (VertexRef, bool) {
	ref, ok := r.index[label]
	return ref, ok
}
