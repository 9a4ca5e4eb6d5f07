package middleware

import (
	"github.com/OFFIS-RIT/recgraph/internal/queue"
	"github.com/OFFIS-RIT/recgraph/pkg/store"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      int32
	Role        string
	Permissions []string
}

type App struct {
	Graphs         store.GraphStorage
	Queue          queue.Publisher
	Key            *keyfunc.Keyfunc
	S3             *s3.Client
	DefaultTopN    int
	MasterAPIKey   string
	MasterUserID   int32
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

// AppContextMiddleware wraps every request context in an AppContext
// carrying the shared app.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
