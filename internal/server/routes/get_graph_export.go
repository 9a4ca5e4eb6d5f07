package routes

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/OFFIS-RIT/recgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/recgraph/internal/storage"
	"github.com/OFFIS-RIT/recgraph/pkg/export"
	"github.com/OFFIS-RIT/recgraph/pkg/store"

	"github.com/labstack/echo/v4"
)

// ExportGraphHandler renders a finished graph in the requested format.
// With link=true and a format matching the stored export it answers with
// a presigned download URL instead.
func ExportGraphHandler(c echo.Context) error {
	type exportParams struct {
		GraphID string `param:"id" validate:"required"`
		Format  string `query:"format" validate:"omitempty,oneof=gexf graphml xml json"`
		Link    bool   `query:"link"`
	}

	params := new(exportParams)
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
	if !middleware.CanViewGraph(user, record.OwnerID) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "graph not found"})
	}
	if record.Status != store.GraphStatusReady {
		return c.JSON(http.StatusConflict, map[string]string{"error": fmt.Sprintf("graph is %s", record.Status)})
	}

	format, err := exportFormat(params.Format, record.ExportFormat)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if params.Link && app.S3 != nil && record.ExportKey != "" && format == storedFormat(record) {
		url, err := storage.GenerateDownloadLink(ctx, app.S3, record.ExportKey)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, map[string]string{"url": url})
	}

	g, err := app.Graphs.LoadGraph(ctx, record.ID)
	if err != nil {
		return errorResponse(c, err)
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, g, format); err != nil {
		return errorResponse(c, err)
	}

	c.Response().Header().Set(
		echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", record.ID+"."+format.Extension()),
	)
	return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}

// exportFormat resolves the requested format, falling back to the format
// the graph was built with.
func exportFormat(requested string, stored string) (export.Format, error) {
	if requested != "" {
		return export.ParseFormat(requested)
	}
	if stored != "" {
		return export.ParseFormat(stored)
	}
	return export.FormatGEXF, nil
}

func storedFormat(record store.GraphRecord) export.Format {
	f, err := export.FormatFromPath(record.ExportKey)
	if err != nil {
		return ""
	}
	return f
}
