package graph

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/recgraph/pkg/common"
)

// BuildFull builds the finished item-centric graph for an ordered event
// sequence. Each event keeps only its first topN recommendations, every
// event is folded in weighted mode and the result is normalized once.
//
// Any error aborts the build and no graph is returned.
func BuildFull(events []common.Event, topN int) (*Graph, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("%w: topN must be positive, got %d", ErrPrecondition, topN)
	}

	g, err := fold(context.Background(), events, 0, ModeItem, topN, true)
	if err != nil {
		return nil, err
	}

	g, err = Normalize(g, true)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize graph: %w", err)
	}
	return g, nil
}

// fold applies events in order to a fresh graph. offset is the index of
// events[0] in the caller's sequence and is only used in error messages.
// The result is nil when events is empty.
func fold(ctx context.Context, events []common.Event, offset int, mode Mode, topN int, weighted bool) (*Graph, error) {
	var g *Graph
	for i, event := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := ApplyEvent(g, mode, event, topN, weighted)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", offset+i, err)
		}
		g = next
	}
	return g, nil
}
