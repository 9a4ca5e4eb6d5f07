package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/recgraph/internal/queue"
	"github.com/OFFIS-RIT/recgraph/pkg/graph"
	"github.com/OFFIS-RIT/recgraph/pkg/logger"
	"github.com/OFFIS-RIT/recgraph/pkg/store"

	"github.com/labstack/echo/v4"
)

// statusFor maps an error to the HTTP status reported for it.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrInputShape),
		errors.Is(err, graph.ErrPrecondition),
		errors.Is(err, queue.ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, graph.ErrDegenerateGraph):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(c echo.Context, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("[Server] Request failed", "path", c.Path(), "err", err)
		return c.JSON(status, map[string]string{"error": "Internal server error"})
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
