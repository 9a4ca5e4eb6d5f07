package graph

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/recgraph/pkg/common"
	"github.com/OFFIS-RIT/recgraph/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const defaultTopN = 5

// GraphClient drives full graph builds with a fixed configuration: the
// addressing mode, the per-event top-N truncation, weighted or presence
// accumulation, and how many shards may be built in parallel.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	topN           int
	mode           Mode
	weighted       bool
	parallelShards int
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// TopN is the number of leading recommendations kept per event (default 5).
// Mode selects item-centric or user-item graphs (default ModeItem).
// Unweighted switches to presence mode, where every observation is its own
// edge of weight 1.
// ParallelShards controls how many contiguous slices of the event sequence
// are built concurrently before being merged (default 1, sequential).
type NewGraphClientParams struct {
	TopN           int
	Mode           Mode
	Unweighted     bool
	ParallelShards int
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		TopN:           10,
//		Mode:           graph.ModeUserItem,
//		ParallelShards: 4,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	topN := params.TopN
	if topN <= 0 {
		topN = defaultTopN
	}
	mode, err := ParseMode(string(params.Mode))
	if err != nil {
		return nil, err
	}
	shards := params.ParallelShards
	if shards <= 0 {
		shards = 1
	}

	return &GraphClient{
		topN:           topN,
		mode:           mode,
		weighted:       !params.Unweighted,
		parallelShards: shards,
	}, nil
}

func (c *GraphClient) TopN() int      { return c.topN }
func (c *GraphClient) Mode() Mode     { return c.mode }
func (c *GraphClient) Weighted() bool { return c.weighted }

// ProcessGraph builds and normalizes the graph for events. Events are split
// into contiguous shards that are folded in parallel and merged in order, so
// the result matches a sequential fold.
//
// Any error aborts the whole build.
func (c *GraphClient) ProcessGraph(ctx context.Context, events []common.Event) (*Graph, error) {
	shards := splitShards(len(events), c.parallelShards)
	logger.Info(
		"[Graph] Processing",
		"total_events", len(events),
		"mode", c.mode,
		"top_n", c.topN,
		"weighted", c.weighted,
		"shards", len(shards),
	)

	partials := make([]*Graph, len(shards))
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.parallelShards)
	for i, s := range shards {
		eg.Go(func() error {
			g, err := fold(gCtx, events[s.start:s.end], s.start, c.mode, c.topN, c.weighted)
			if err != nil {
				return err
			}
			partials[i] = g
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to process events: %w", err)
	}

	var g *Graph
	for _, partial := range partials {
		if g == nil {
			g = partial
			continue
		}
		if err := Merge(g, partial); err != nil {
			return nil, fmt.Errorf("failed to merge shard graphs: %w", err)
		}
	}

	if g != nil {
		logger.Info("[Graph] Events processed", "vertices", g.NumVertices(), "edges", g.NumEdges())
	}

	g, err := Normalize(g, c.weighted)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize graph: %w", err)
	}
	return g, nil
}

// Snapshot returns the serializable form of a graph built by this client,
// tagged with the client's configuration.
func (c *GraphClient) Snapshot(g *Graph, id string, name string) common.Graph {
	out := g.Snapshot()
	out.ID = id
	out.Name = name
	out.Mode = string(c.mode)
	out.Weighted = c.weighted
	out.TopN = c.topN
	return out
}

type shard struct {
	start int
	end   int
}

// splitShards cuts [0, total) into at most n contiguous, non-empty ranges.
func splitShards(total, n int) []shard {
	if total <= 0 {
		return nil
	}
	if n <= 1 || total == 1 {
		return []shard{{start: 0, end: total}}
	}

	size := (total + n - 1) / n
	shards := make([]shard, 0, n)
	for start := 0; start < total; start += size {
		shards = append(shards, shard{start: start, end: min(start+size, total)})
	}
	return shards
}
