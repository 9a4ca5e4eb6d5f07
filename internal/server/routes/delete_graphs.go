package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/recgraph/internal/queue"
	"github.com/OFFIS-RIT/recgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/recgraph/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
)

func DeleteGraphHandler(c echo.Context) error {
	params := new(graphIDParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	user := c.(*middleware.AppContext).User
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	record, err := app.Graphs.GetGraphRecord(ctx, params.GraphID)
	if err != nil {
		return errorResponse(c, err)
	}
	if record.OwnerID != user.UserID && !middleware.IsAdmin(user) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "graph not found"})
	}

	if err := app.Graphs.DeleteGraph(ctx, record.ID); err != nil {
		return errorResponse(c, err)
	}

	msg, err := json.Marshal(queue.QueueDeleteGraphMsg{GraphID: record.ID})
	if err != nil {
		return errorResponse(c, err)
	}
	if err := app.Queue.PublishFIFO(queue.DeleteQueue, msg); err != nil {
		logger.Error("[Server] Failed to enqueue export cleanup", "graph_id", record.ID, "err", err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Graph deleted"})
}
