package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/recgraph/internal/queue"
	"github.com/OFFIS-RIT/recgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/recgraph/pkg/graph"
	"github.com/OFFIS-RIT/recgraph/pkg/loader"
	"github.com/OFFIS-RIT/recgraph/pkg/logger"
	"github.com/OFFIS-RIT/recgraph/pkg/store"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
)

type createGraphBody struct {
	Name           string `json:"name" validate:"required"`
	Source         string `json:"source" validate:"required"`
	Mode           string `json:"mode" validate:"omitempty,oneof=item user-item"`
	TopN           int    `json:"top_n" validate:"gte=0"`
	Unweighted     bool   `json:"unweighted"`
	ParallelShards int    `json:"parallel_shards" validate:"gte=0,lte=64"`
	ExportFormat   string `json:"export_format" validate:"omitempty,oneof=gexf graphml json"`
}

// record turns a validated request into a pending graph record owned by
// ownerID.
func (b createGraphBody) record(ownerID int32, defaultTopN int) (store.GraphRecord, error) {
	if _, err := loader.FormatFromPath(b.Source); err != nil {
		return store.GraphRecord{}, err
	}
	mode := graph.Mode(b.Mode)
	if mode == "" {
		mode = graph.ModeItem
	}
	topN := b.TopN
	if topN == 0 {
		topN = defaultTopN
	}
	exportFormat := b.ExportFormat
	if exportFormat == "" {
		exportFormat = "gexf"
	}
	return store.GraphRecord{
		Name:           b.Name,
		Source:         b.Source,
		Mode:           string(mode),
		TopN:           topN,
		Weighted:       !b.Unweighted,
		ParallelShards: b.ParallelShards,
		ExportFormat:   exportFormat,
		OwnerID:        ownerID,
		Status:         store.GraphStatusPending,
	}, nil
}

func CreateGraphHandler(c echo.Context) error {
	body := new(createGraphBody)
	if err := c.Bind(body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	user := c.(*middleware.AppContext).User
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	record, err := body.record(user.UserID, app.DefaultTopN)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	record, err = app.Graphs.CreateGraph(ctx, record)
	if err != nil {
		return errorResponse(c, err)
	}

	msg, err := json.Marshal(queue.NewBuildGraphMsg(record))
	if err != nil {
		return errorResponse(c, err)
	}
	if err := app.Queue.PublishFIFO(queue.BuildQueue, msg); err != nil {
		// The record stays pending and is picked up by stale-build recovery.
		logger.Error("[Server] Failed to enqueue build", "graph_id", record.ID, "err", err)
	}

	return c.JSON(http.StatusAccepted, record)
}
