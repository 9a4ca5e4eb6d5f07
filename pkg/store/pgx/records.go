package pgx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/recgraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const recordColumns = `
	id, name, source, mode, top_n, weighted, parallel_shards, export_format, owner_id,
	status, error, export_key, vertices, edges,
	avg_predicted_score, weight_mean, weight_std, created_at, updated_at`

func scanRecord(row pgxv5.Row) (store.GraphRecord, error) {
	var r store.GraphRecord
	var status string
	err := row.Scan(
		&r.ID, &r.Name, &r.Source, &r.Mode, &r.TopN, &r.Weighted, &r.ParallelShards, &r.ExportFormat, &r.OwnerID,
		&status, &r.Error, &r.ExportKey, &r.NumVertices, &r.NumEdges,
		&r.Stats.AvgPredictedScore, &r.Stats.Mean, &r.Stats.StdDev, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return store.GraphRecord{}, err
	}
	r.Status = store.GraphStatus(status)
	r.Stats.Edges = r.NumEdges
	return r, nil
}

// CreateGraph inserts a pending graph record. An empty ID is replaced with
// a generated one.
func (s *GraphDBStorage) CreateGraph(ctx context.Context, record store.GraphRecord) (store.GraphRecord, error) {
	if record.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return store.GraphRecord{}, fmt.Errorf("failed to generate graph id: %w", err)
		}
		record.ID = id
	}
	if record.Status == "" {
		record.Status = store.GraphStatusPending
	}

	row := s.conn.QueryRow(ctx, `
		INSERT INTO graphs (id, name, source, mode, top_n, weighted, parallel_shards, export_format, owner_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING`+recordColumns,
		record.ID, record.Name, record.Source, record.Mode, record.TopN,
		record.Weighted, record.ParallelShards, record.ExportFormat, record.OwnerID, string(record.Status),
	)
	created, err := scanRecord(row)
	if err != nil {
		return store.GraphRecord{}, fmt.Errorf("failed to create graph: %w", err)
	}
	return created, nil
}

func (s *GraphDBStorage) GetGraphRecord(ctx context.Context, id string) (store.GraphRecord, error) {
	row := s.conn.QueryRow(ctx, `SELECT`+recordColumns+` FROM graphs WHERE id = $1`, id)
	record, err := scanRecord(row)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return store.GraphRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.GraphRecord{}, fmt.Errorf("failed to get graph %s: %w", id, err)
	}
	return record, nil
}

// ListGraphs returns the graphs of ownerID, newest first. An ownerID of 0
// lists every graph.
func (s *GraphDBStorage) ListGraphs(ctx context.Context, ownerID int32, limit int, offset int) ([]store.GraphRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT`+recordColumns+`
		FROM graphs
		WHERE $1::int = 0 OR owner_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}
	return collectRecords(rows)
}

// ListStaleBuilds returns pending or building graphs that have not been
// touched for olderThan, oldest first.
func (s *GraphDBStorage) ListStaleBuilds(ctx context.Context, olderThan time.Duration) ([]store.GraphRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT`+recordColumns+`
		FROM graphs
		WHERE status IN ('pending', 'building')
		  AND updated_at < now() - ($1::bigint * interval '1 millisecond')
		ORDER BY updated_at`,
		olderThan.Milliseconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale builds: %w", err)
	}
	return collectRecords(rows)
}

func collectRecords(rows pgxv5.Rows) ([]store.GraphRecord, error) {
	defer rows.Close()

	var out []store.GraphRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GraphDBStorage) setStatus(ctx context.Context, id string, status store.GraphStatus, reason string) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE graphs SET status = $2, error = $3, updated_at = now()
		WHERE id = $1`,
		id, string(status), reason,
	)
	if err != nil {
		return fmt.Errorf("failed to mark graph %s %s: %w", id, status, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *GraphDBStorage) MarkBuilding(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, store.GraphStatusBuilding, "")
}

func (s *GraphDBStorage) MarkFailed(ctx context.Context, id string, reason string) error {
	return s.setStatus(ctx, id, store.GraphStatusFailed, reason)
}

// DeleteGraph removes the graph record; vertices and edges cascade.
func (s *GraphDBStorage) DeleteGraph(ctx context.Context, id string) error {
	tag, err := s.conn.Exec(ctx, `DELETE FROM graphs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete graph %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
