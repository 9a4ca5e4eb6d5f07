package export

import (
	"encoding/xml"
	"io"
	"strconv"

	"github.com/OFFIS-RIT/recgraph/pkg/common"
)

const (
	gexfNamespace    = "http://www.gexf.net/1.2draft"
	gexfVizNamespace = "http://www.gexf.net/1.2draft/viz"
)

type gexfDocument struct {
	XMLName xml.Name  `xml:"gexf"`
	XMLNS   string    `xml:"xmlns,attr"`
	VizNS   string    `xml:"xmlns:viz,attr"`
	Version string    `xml:"version,attr"`
	Graph   gexfGraph `xml:"graph"`
}

type gexfGraph struct {
	DefaultEdgeType string           `xml:"defaultedgetype,attr"`
	Mode            string           `xml:"mode,attr"`
	Attributes      []gexfAttributes `xml:"attributes"`
	Nodes           []gexfNode       `xml:"nodes>node"`
	Edges           []gexfEdge       `xml:"edges>edge"`
}

type gexfAttributes struct {
	Class      string          `xml:"class,attr"`
	Attributes []gexfAttribute `xml:"attribute"`
}

type gexfAttribute struct {
	ID    string `xml:"id,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type gexfNode struct {
	ID        string         `xml:"id,attr"`
	Label     string         `xml:"label,attr"`
	AttValues *gexfAttValues `xml:"attvalues"`
	Color     gexfColor      `xml:"viz:color"`
	Position  gexfPosition   `xml:"viz:position"`
}

// gexfAttValues is nil for nodes without attributes; GEXF requires at
// least one attvalue inside attvalues.
type gexfAttValues struct {
	Values []gexfValue `xml:"attvalue"`
}

type gexfEdge struct {
	ID        string      `xml:"id,attr"`
	Source    string      `xml:"source,attr"`
	Target    string      `xml:"target,attr"`
	Weight    string      `xml:"weight,attr"`
	AttValues []gexfValue `xml:"attvalues>attvalue"`
}

type gexfValue struct {
	For   string `xml:"for,attr"`
	Value string `xml:"value,attr"`
}

type gexfColor struct {
	R uint8  `xml:"r,attr"`
	G uint8  `xml:"g,attr"`
	B uint8  `xml:"b,attr"`
	A string `xml:"a,attr"`
}

type gexfPosition struct {
	X string `xml:"x,attr"`
	Y string `xml:"y,attr"`
	Z string `xml:"z,attr"`
}

// WriteGEXF encodes g as a directed GEXF 1.2 document with viz colours and
// ring positions. Edge weight is the normalized weight; the raw aggregates
// are kept as edge attributes.
func WriteGEXF(w io.Writer, g common.Graph) error {
	layout := RingLayout(g)

	doc := gexfDocument{
		XMLNS:   gexfNamespace,
		VizNS:   gexfVizNamespace,
		Version: "1.2",
		Graph: gexfGraph{
			DefaultEdgeType: "directed",
			Mode:            "static",
			Attributes: []gexfAttributes{
				{
					Class: "node",
					Attributes: []gexfAttribute{
						{ID: "namespace", Title: "namespace", Type: "string"},
					},
				},
				{
					Class: "edge",
					Attributes: []gexfAttribute{
						{ID: "scoreSum", Title: "scoreSum", Type: "double"},
						{ID: "scoreCount", Title: "scoreCount", Type: "integer"},
					},
				},
			},
			Nodes: make([]gexfNode, 0, len(g.Vertices)),
			Edges: make([]gexfEdge, 0, len(g.Edges)),
		},
	}

	for i, v := range g.Vertices {
		p := layout[i]
		node := gexfNode{
			ID:    v.Label,
			Label: v.Label,
			Color: gexfColor{R: p.Color.R, G: p.Color.G, B: p.Color.B, A: formatFloat(p.Color.A)},
			Position: gexfPosition{
				X: formatFloat(p.X),
				Y: formatFloat(p.Y),
				Z: "0.0",
			},
		}
		if v.Namespace != "" {
			node.AttValues = &gexfAttValues{Values: []gexfValue{{For: "namespace", Value: v.Namespace}}}
		}
		doc.Graph.Nodes = append(doc.Graph.Nodes, node)
	}

	for i, e := range g.Edges {
		doc.Graph.Edges = append(doc.Graph.Edges, gexfEdge{
			ID:     strconv.Itoa(i),
			Source: e.Source,
			Target: e.Target,
			Weight: formatFloat(e.Weight),
			AttValues: []gexfValue{
				{For: "scoreSum", Value: formatFloat(e.ScoreSum)},
				{For: "scoreCount", Value: strconv.Itoa(e.ScoreCount)},
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
