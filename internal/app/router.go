package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/brightsmile-hq/brightsmile-portal/internal/auth"
	"github.com/brightsmile-hq/brightsmile-portal/internal/locations"
	"github.com/brightsmile-hq/brightsmile-portal/internal/observability"
	"github.com/brightsmile-hq/brightsmile-portal/internal/roles"
	"github.com/brightsmile-hq/brightsmile-portal/internal/shared"
	"github.com/brightsmile-hq/brightsmile-portal/internal/users"
	"github.com/brightsmile-hq/brightsmile-portal/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	UsersHandler     *users.Handler
	RolesHandler     *roles.Handler
	LocationsHandler *locations.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.RolesHandler != nil {
		r.Route("/roles", params.RolesHandler.MountRoutes)
	}
	if params.LocationsHandler != nil {
		r.Route("/locations", params.LocationsHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
