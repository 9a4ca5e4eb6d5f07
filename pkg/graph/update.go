package graph

import (
	"fmt"
	"math"

	"github.com/OFFIS-RIT/recgraph/pkg/common"
)

// Mode selects how an event is addressed onto the graph.
type Mode string

const (
	// ModeItem links the clicked item to every recommended item.
	ModeItem Mode = "item"
	// ModeUserItem links the clicking user to every recommended item, with
	// user and item labels kept in disjoint namespaces.
	ModeUserItem Mode = "user-item"
)

// ParseMode parses a textual mode. The empty string selects ModeItem.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeItem:
		return ModeItem, nil
	case ModeUserItem:
		return ModeUserItem, nil
	default:
		return "", fmt.Errorf("%w: unknown graph mode %q", ErrPrecondition, s)
	}
}

type addressing struct {
	sourcePrefix string
	sourceNS     Namespace
	targetPrefix string
	targetNS     Namespace
}

var (
	itemAddressing     = addressing{}
	userItemAddressing = addressing{
		sourcePrefix: userLabelPrefix,
		sourceNS:     NamespaceUser,
		targetPrefix: itemLabelPrefix,
		targetNS:     NamespaceItem,
	}
)

// ItemGraphUpdate folds one click into g: the clicked item is linked to
// every recommended item, in input order. A nil g starts a new graph.
//
// The event is validated before anything is written, so a failing event
// leaves g untouched.
func ItemGraphUpdate(g *Graph, clickedItemID string, recs []common.Recommendation, weighted bool) (*Graph, error) {
	return itemAddressing.apply(g, clickedItemID, recs, weighted)
}

// UserItemGraphUpdate folds one click into a user-item bipartite graph: the
// user vertex "u_<id>" is linked to every recommended item "i_<id>". A nil
// g starts a new graph.
func UserItemGraphUpdate(g *Graph, userID string, recs []common.Recommendation, weighted bool) (*Graph, error) {
	return userItemAddressing.apply(g, userID, recs, weighted)
}

// ApplyEvent truncates the event to its first topN recommendations and folds
// it into g according to mode. A negative topN keeps every recommendation.
func ApplyEvent(g *Graph, mode Mode, event common.Event, topN int, weighted bool) (*Graph, error) {
	recs := event.TopN(topN)
	switch mode {
	case ModeItem:
		return ItemGraphUpdate(g, event.ItemID, recs, weighted)
	case ModeUserItem:
		return UserItemGraphUpdate(g, event.UserID, recs, weighted)
	default:
		return nil, fmt.Errorf("%w: unknown graph mode %q", ErrPrecondition, mode)
	}
}

func (a addressing) apply(g *Graph, sourceID string, recs []common.Recommendation, weighted bool) (*Graph, error) {
	if g == nil {
		g = NewGraph()
	}
	if g.normalized {
		return nil, fmt.Errorf("%w: graph is already normalized", ErrPrecondition)
	}
	if sourceID == "" {
		return nil, fmt.Errorf("%w: empty source id", ErrPrecondition)
	}

	sourceLabel := a.sourcePrefix + sourceID
	if err := g.vertices.check(sourceLabel, a.sourceNS); err != nil {
		return nil, err
	}

	scores := make([]float64, len(recs))
	for i, rec := range recs {
		if rec.ItemID == "" {
			return nil, fmt.Errorf("%w: recommendation %d for %q has an empty item id", ErrPrecondition, i, sourceID)
		}
		if err := g.vertices.check(a.targetPrefix+rec.ItemID, a.targetNS); err != nil {
			return nil, err
		}
		score, err := scoreOf(rec, weighted)
		if err != nil {
			return nil, fmt.Errorf("recommendation %d for %q: %w", i, sourceID, err)
		}
		scores[i] = score
	}

	src, err := g.vertices.ensure(sourceLabel, a.sourceNS)
	if err != nil {
		return nil, err
	}
	for i, rec := range recs {
		dst, err := g.vertices.ensure(a.targetPrefix+rec.ItemID, a.targetNS)
		if err != nil {
			return nil, err
		}
		g.edges.observe(src, dst, scores[i], weighted)
	}

	return g, nil
}

// scoreOf extracts the score of rec. Weighted accumulation needs a finite
// score; presence mode ignores unusable scores.
func scoreOf(rec common.Recommendation, weighted bool) (float64, error) {
	if rec.Score == nil {
		if weighted {
			return 0, fmt.Errorf("%w: missing score for candidate %q", ErrInputShape, rec.ItemID)
		}
		return 0, nil
	}

	score := *rec.Score
	if math.IsNaN(score) || math.IsInf(score, 0) {
		if weighted {
			return 0, fmt.Errorf("%w: non-numeric score for candidate %q", ErrInputShape, rec.ItemID)
		}
		return 0, nil
	}
	return score, nil
}
