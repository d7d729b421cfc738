package cli

import (
	"errors"

	"github.com/felixgeelhaar/portal/internal/subscriptions/application"
	"github.com/felixgeelhaar/portal/pkg/observability"
	"github.com/google/uuid"
)

// ErrNotInitialized is returned by commands that need the container when it
// could not be built.
var ErrNotInitialized = errors.New("application not initialized - database connection required")

// App holds the CLI application dependencies.
type App struct {
	Lifecycle *application.Lifecycle

	// CurrentSubscriberID is the default subscriber for commands that take
	// --subscriber.
	CurrentSubscriberID uuid.UUID

	Health  *observability.HealthRegistry
	Metrics *observability.PrometheusMetrics
	APIAddr string
}

// NewApp creates a new CLI application around the lifecycle service.
func NewApp(lifecycle *application.Lifecycle) *App {
	return &App{Lifecycle: lifecycle}
}

// SetCurrentSubscriberID updates the default subscriber.
func (a *App) SetCurrentSubscriberID(id uuid.UUID) {
	a.CurrentSubscriberID = id
}

// SetObservability attaches the health registry and metrics served by the
// API.
func (a *App) SetObservability(health *observability.HealthRegistry, metrics *observability.PrometheusMetrics) {
	a.Health = health
	a.Metrics = metrics
}

// SetAPIAddr sets the default listen address for serve.
func (a *App) SetAPIAddr(addr string) {
	a.APIAddr = addr
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}

// RequireApp returns the application or ErrNotInitialized.
func RequireApp() (*App, error) {
	if app == nil || app.Lifecycle == nil {
		return nil, ErrNotInitialized
	}
	return app, nil
}
