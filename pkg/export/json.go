package export

import (
	"io"

	"github.com/goccy/go-json"

	"github.com/OFFIS-RIT/recgraph/pkg/common"
)

type jsonVertex struct {
	common.Vertex
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Clicked bool    `json:"clicked"`
}

type jsonDocument struct {
	common.Graph
	Vertices []jsonVertex `json:"vertices"`
}

// WriteJSON encodes g as indented JSON. Vertices carry their ring layout
// position.
func WriteJSON(w io.Writer, g common.Graph) error {
	layout := RingLayout(g)

	doc := jsonDocument{
		Graph:    g,
		Vertices: make([]jsonVertex, len(g.Vertices)),
	}
	for i, v := range g.Vertices {
		doc.Vertices[i] = jsonVertex{
			Vertex:  v,
			X:       layout[i].X,
			Y:       layout[i].Y,
			Clicked: layout[i].Clicked,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
