package export

import (
	"math"

	"github.com/OFFIS-RIT/recgraph/pkg/common"
)

const (
	OuterRadius = 1000.0
	InnerRadius = 600.0
)

type Color struct {
	R, G, B uint8
	A       float64
}

var (
	ClickedColor     = Color{R: 255, A: 1}
	RecommendedColor = Color{B: 255, A: 1}
)

// Placement is the visual position and colour of one vertex.
type Placement struct {
	X, Y    float64
	Color   Color
	Clicked bool
}

// RingLayout places vertices on two concentric rings. Vertices that are the
// source of an edge (clicked items, or users) go on the outer ring in red,
// all others on the inner ring in blue. Each ring is divided evenly in
// vertex order, starting at angle 0.
//
// The result is indexed like g.Vertices.
func RingLayout(g common.Graph) []Placement {
	sources := g.SourceLabels()

	var outer, inner []int
	for i, v := range g.Vertices {
		if _, ok := sources[v.Label]; ok {
			outer = append(outer, i)
		} else {
			inner = append(inner, i)
		}
	}

	out := make([]Placement, len(g.Vertices))
	placeRing(out, outer, OuterRadius, ClickedColor, true)
	placeRing(out, inner, InnerRadius, RecommendedColor, false)
	return out
}

func placeRing(out []Placement, ring []int, radius float64, color Color, clicked bool) {
	if len(ring) == 0 {
		return
	}
	step := 2 * math.Pi / float64(len(ring))
	for n, i := range ring {
		angle := float64(n) * step
		out[i] = Placement{
			X:       radius * math.Cos(angle),
			Y:       radius * math.Sin(angle),
			Color:   color,
			Clicked: clicked,
		}
	}
}
