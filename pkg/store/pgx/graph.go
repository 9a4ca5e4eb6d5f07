package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/recgraph/pkg/common"
	"github.com/OFFIS-RIT/recgraph/pkg/logger"
	"github.com/OFFIS-RIT/recgraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

var (
	vertexColumns = []string{"graph_id", "idx", "label", "namespace"}
	edgeColumns   = []string{"graph_id", "idx", "source_idx", "target_idx", "score_sum", "score_count", "weight", "parallel"}
)

// vertexRows converts the vertices of g into COPY rows and returns the
// label -> index mapping used to encode edges.
func vertexRows(g common.Graph) ([][]any, map[string]int32) {
	rows := make([][]any, 0, len(g.Vertices))
	index := make(map[string]int32, len(g.Vertices))
	for i, v := range g.Vertices {
		idx := int32(i)
		index[v.Label] = idx
		rows = append(rows, []any{g.ID, idx, v.Label, v.Namespace})
	}
	return rows, index
}

func edgeRows(g common.Graph, index map[string]int32) ([][]any, error) {
	rows := make([][]any, 0, len(g.Edges))
	for i, e := range g.Edges {
		source, ok := index[e.Source]
		if !ok {
			return nil, fmt.Errorf("edge %d references unknown vertex %q", i, e.Source)
		}
		target, ok := index[e.Target]
		if !ok {
			return nil, fmt.Errorf("edge %d references unknown vertex %q", i, e.Target)
		}
		rows = append(rows, []any{
			g.ID, int32(i), source, target,
			e.ScoreSum, int32(e.ScoreCount), e.Weight, e.Parallel,
		})
	}
	return rows, nil
}

func (s *GraphDBStorage) copyRows(ctx context.Context, tx pgxv5.Tx, table string, columns []string, rows [][]any) error {
	return store.ChunkRange(len(rows), s.chunkSize, func(start, end int) error {
		_, err := tx.CopyFrom(ctx, pgxv5.Identifier{table}, columns, pgxv5.CopyFromRows(rows[start:end]))
		if err != nil {
			return fmt.Errorf("failed to copy %s rows %d-%d: %w", table, start, end, err)
		}
		return nil
	})
}

// SaveGraph writes the finished graph in a single transaction.
func (s *GraphDBStorage) SaveGraph(ctx context.Context, g common.Graph, exportKey string) error {
	vRows, index := vertexRows(g)
	eRows, err := edgeRows(g, index)
	if err != nil {
		return err
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE graphs
		SET status = $2, error = '', export_key = $3, vertices = $4, edges = $5,
		    avg_predicted_score = $6, weight_mean = $7, weight_std = $8, updated_at = now()
		WHERE id = $1`,
		g.ID, string(store.GraphStatusReady), exportKey, len(g.Vertices), len(g.Edges),
		g.Stats.AvgPredictedScore, g.Stats.Mean, g.Stats.StdDev,
	)
	if err != nil {
		return fmt.Errorf("failed to update graph %s: %w", g.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM graph_edges WHERE graph_id = $1`, g.ID); err != nil {
		return fmt.Errorf("failed to clear edges: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM graph_vertices WHERE graph_id = $1`, g.ID); err != nil {
		return fmt.Errorf("failed to clear vertices: %w", err)
	}

	if err := s.copyRows(ctx, tx, "graph_vertices", vertexColumns, vRows); err != nil {
		return err
	}
	if err := s.copyRows(ctx, tx, "graph_edges", edgeColumns, eRows); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info("[Store] Saved graph", "id", g.ID, "vertices", len(vRows), "edges", len(eRows))
	return nil
}

// LoadGraph reads a stored graph back into its snapshot form.
func (s *GraphDBStorage) LoadGraph(ctx context.Context, id string) (common.Graph, error) {
	record, err := s.GetGraphRecord(ctx, id)
	if err != nil {
		return common.Graph{}, err
	}
	if record.Status != store.GraphStatusReady {
		return common.Graph{}, fmt.Errorf("%w: graph %s is %s", store.ErrNotFound, id, record.Status)
	}

	g := common.Graph{
		ID:       record.ID,
		Name:     record.Name,
		Mode:     record.Mode,
		Weighted: record.Weighted,
		TopN:     record.TopN,
		Stats:    record.Stats,
	}

	rows, err := s.conn.Query(ctx, `
		SELECT label, namespace FROM graph_vertices
		WHERE graph_id = $1 ORDER BY idx`, id)
	if err != nil {
		return common.Graph{}, fmt.Errorf("failed to load vertices: %w", err)
	}
	g.Vertices, err = pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Vertex, error) {
		var v common.Vertex
		err := row.Scan(&v.Label, &v.Namespace)
		return v, err
	})
	if err != nil {
		return common.Graph{}, fmt.Errorf("failed to load vertices: %w", err)
	}

	rows, err = s.conn.Query(ctx, `
		SELECT source_idx, target_idx, score_sum, score_count, weight, parallel
		FROM graph_edges
		WHERE graph_id = $1 ORDER BY idx`, id)
	if err != nil {
		return common.Graph{}, fmt.Errorf("failed to load edges: %w", err)
	}
	g.Edges, err = pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Edge, error) {
		var e common.Edge
		var source, target int32
		if err := row.Scan(&source, &target, &e.ScoreSum, &e.ScoreCount, &e.Weight, &e.Parallel); err != nil {
			return e, err
		}
		if int(source) >= len(g.Vertices) || int(target) >= len(g.Vertices) || source < 0 || target < 0 {
			return e, errors.New("edge references a missing vertex")
		}
		e.Source = g.Vertices[source].Label
		e.Target = g.Vertices[target].Label
		return e, nil
	})
	if err != nil {
		return common.Graph{}, fmt.Errorf("failed to load edges: %w", err)
	}

	return g, nil
}
