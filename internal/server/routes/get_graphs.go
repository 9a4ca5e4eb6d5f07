package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/recgraph/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

const maxPageSize = 200

func GetGraphsHandler(c echo.Context) error {
	type getGraphsParams struct {
		Limit  int `query:"limit" validate:"gte=0"`
		Offset int `query:"offset" validate:"gte=0"`
	}

	params := new(getGraphsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if params.Limit == 0 || params.Limit > maxPageSize {
		params.Limit = maxPageSize
	}

	user := c.(*middleware.AppContext).User
	app := c.(*middleware.AppContext).App

	ownerID := user.UserID
	if middleware.HasPermission(user, middleware.PermGraphViewAll) {
		ownerID = 0
	}

	res, err := app.Graphs.ListGraphs(c.Request().Context(), ownerID, params.Limit, params.Offset)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, res)
}

type graphIDParams struct {
	GraphID string `param:"id" validate:"required"`
}

func GetGraphHandler(c echo.Context) error {
	params := new(graphIDParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	user := c.(*middleware.AppContext).User
	app := c.(*middleware.AppContext).App

	record, err := app.Graphs.GetGraphRecord(c.Request().Context(), params.GraphID)
	if err != nil {
		return errorResponse(c, err)
	}
	if !middleware.CanViewGraph(user, record.OwnerID) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "graph not found"})
	}

	return c.JSON(http.StatusOK, record)
}
