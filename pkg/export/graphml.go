package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/OFFIS-RIT/recgraph/pkg/common"
)

const graphMLNamespace = "http://graphml.graphdrawing.org/xmlns"

type graphMLDocument struct {
	XMLName xml.Name     `xml:"graphml"`
	XMLNS   string       `xml:"xmlns,attr"`
	Keys    []graphMLKey `xml:"key"`
	Graph   graphMLGraph `xml:"graph"`
}

type graphMLKey struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
	AttrType string `xml:"attr.type,attr"`
}

type graphMLGraph struct {
	ID          string        `xml:"id,attr"`
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphMLNode `xml:"node"`
	Edges       []graphMLEdge `xml:"edge"`
}

type graphMLNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphMLData `xml:"data"`
}

type graphMLEdge struct {
	ID     string        `xml:"id,attr"`
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	Data   []graphMLData `xml:"data"`
}

type graphMLData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// graphMLKeys uses the property names and value types graph-tool reads back
// as vertex and edge property maps.
var graphMLKeys = []graphMLKey{
	{ID: "text", For: "node", AttrName: "text", AttrType: "string"},
	{ID: "color", For: "node", AttrName: "color", AttrType: "vector_double"},
	{ID: "pos", For: "node", AttrName: "pos", AttrType: "vector_double"},
	{ID: "scoreSum", For: "edge", AttrName: "scoreSum", AttrType: "double"},
	{ID: "scoreCount", For: "edge", AttrName: "scoreCount", AttrType: "int"},
	{ID: "weight", For: "edge", AttrName: "weight", AttrType: "double"},
}

// WriteGraphML encodes g as a directed GraphML document. Vertex ids are
// positional ("n0", "n1", ...); the label is stored in the text property.
func WriteGraphML(w io.Writer, g common.Graph) error {
	layout := RingLayout(g)

	doc := graphMLDocument{
		XMLNS: graphMLNamespace,
		Keys:  graphMLKeys,
		Graph: graphMLGraph{
			ID:          "G",
			EdgeDefault: "directed",
			Nodes:       make([]graphMLNode, 0, len(g.Vertices)),
			Edges:       make([]graphMLEdge, 0, len(g.Edges)),
		},
	}

	ids := make(map[string]string, len(g.Vertices))
	for i, v := range g.Vertices {
		id := "n" + strconv.Itoa(i)
		ids[v.Label] = id
		p := layout[i]
		doc.Graph.Nodes = append(doc.Graph.Nodes, graphMLNode{
			ID: id,
			Data: []graphMLData{
				{Key: "text", Value: v.Label},
				{Key: "color", Value: fmt.Sprintf("%d, %d, %d, %s", p.Color.R, p.Color.G, p.Color.B, formatFloat(p.Color.A))},
				{Key: "pos", Value: formatFloat(p.X) + ", " + formatFloat(p.Y)},
			},
		})
	}

	for i, e := range g.Edges {
		source, ok := ids[e.Source]
		if !ok {
			return fmt.Errorf("edge %d references unknown vertex %q", i, e.Source)
		}
		target, ok := ids[e.Target]
		if !ok {
			return fmt.Errorf("edge %d references unknown vertex %q", i, e.Target)
		}
		doc.Graph.Edges = append(doc.Graph.Edges, graphMLEdge{
			ID:     "e" + strconv.Itoa(i),
			Source: source,
			Target: target,
			Data: []graphMLData{
				{Key: "scoreSum", Value: formatFloat(e.ScoreSum)},
				{Key: "scoreCount", Value: strconv.Itoa(e.ScoreCount)},
				{Key: "weight", Value: formatFloat(e.Weight)},
			},
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
