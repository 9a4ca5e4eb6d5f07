package server

import (
	"github.com/OFFIS-RIT/recgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/recgraph/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	canView := middleware.RequireAnyPermission(middleware.PermGraphView, middleware.PermGraphViewAll)

	apiRoutes.GET("/graphs", routes.GetGraphsHandler, canView)
	apiRoutes.POST("/graphs", routes.CreateGraphHandler, middleware.RequirePermission(middleware.PermGraphCreate))
	apiRoutes.GET("/graphs/:id", routes.GetGraphHandler, canView)
	apiRoutes.GET("/graphs/:id/export", routes.ExportGraphHandler, canView)
	apiRoutes.DELETE("/graphs/:id", routes.DeleteGraphHandler, middleware.RequirePermission(middleware.PermGraphDelete))
}
