package store

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/recgraph/pkg/common"
)

var ErrNotFound = errors.New("graph not found")

type GraphStatus string

const (
	GraphStatusPending  GraphStatus = "pending"
	GraphStatusBuilding GraphStatus = "building"
	GraphStatusReady    GraphStatus = "ready"
	GraphStatusFailed   GraphStatus = "failed"
)

// GraphRecord is the bookkeeping row of one graph: how it is to be built,
// where its events come from and how far the build got.
type GraphRecord struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Source         string             `json:"source"`
	Mode           string             `json:"mode"`
	TopN           int                `json:"top_n"`
	Weighted       bool               `json:"weighted"`
	ParallelShards int                `json:"parallel_shards"`
	ExportFormat   string             `json:"export_format"`
	OwnerID        int32              `json:"owner_id"`
	Status         GraphStatus        `json:"status"`
	Error          string             `json:"error,omitempty"`
	ExportKey      string             `json:"export_key,omitempty"`
	NumVertices    int                `json:"vertices"`
	NumEdges       int                `json:"edges"`
	Stats          common.WeightStats `json:"stats"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// GraphStorage defines the interface for persisting build jobs and the
// finished recommendation graphs they produce.
type GraphStorage interface {
	CreateGraph(ctx context.Context, record GraphRecord) (GraphRecord, error)
	GetGraphRecord(ctx context.Context, id string) (GraphRecord, error)
	ListGraphs(ctx context.Context, ownerID int32, limit int, offset int) ([]GraphRecord, error)
	ListStaleBuilds(ctx context.Context, olderThan time.Duration) ([]GraphRecord, error)

	MarkBuilding(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error

	// SaveGraph replaces the stored vertices and edges of g.ID and marks
	// the graph ready.
	SaveGraph(ctx context.Context, g common.Graph, exportKey string) error
	LoadGraph(ctx context.Context, id string) (common.Graph, error)
	DeleteGraph(ctx context.Context, id string) error
}
