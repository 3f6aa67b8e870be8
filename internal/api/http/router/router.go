package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dtroode/schoolhub-client/internal/api/http/handler"
	"github.com/dtroode/schoolhub-client/internal/api/http/middleware"
	"github.com/dtroode/schoolhub-client/internal/logger"
	"github.com/dtroode/schoolhub-client/internal/model"
)

// Router builds the portal's HTTP routes.
// Health and metrics stay outside the route guards.
type Router struct {
	sessions       handler.SessionService
	authorizer     middleware.Authorizer
	notices        handler.Notices
	contextManager model.ContextManager
	gatherer       prometheus.Gatherer
	logger         *logger.Logger
}

// New creates a Router. A nil gatherer disables /metrics.
func New(
	sessions handler.SessionService,
	authorizer middleware.Authorizer,
	notices handler.Notices,
	contextManager model.ContextManager,
	gatherer prometheus.Gatherer,
	logger *logger.Logger,
) *Router {
	return &Router{
		sessions:       sessions,
		authorizer:     authorizer,
		notices:        notices,
		contextManager: contextManager,
		gatherer:       gatherer,
		logger:         logger,
	}
}

// Register returns the configured handler.
func (r *Router) Register() http.Handler {
	logging := middleware.NewLogging(r.logger)
	guard := middleware.NewGuard(r.sessions, r.authorizer, r.contextManager)

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID, chimw.Recoverer, logging.Handle)

	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if r.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	}

	mux.Group(func(g chi.Router) {
		g.Use(guard.Handle)
		r.registerAuthRoutes(g)
		r.registerPortalRoutes(g)
	})

	return mux
}

func (r *Router) registerAuthRoutes(mux chi.Router) {
	auth := handler.NewAuth(r.sessions, r.notices, r.logger)

	mux.Get(model.LoginRoute, auth.LoginScreen)
	mux.Post(model.LoginRoute, auth.Login)
	mux.Post("/signup", auth.Signup)
	mux.Post("/logout", auth.Logout)
}

func (r *Router) registerPortalRoutes(mux chi.Router) {
	portal := handler.NewPortal(r.sessions, r.contextManager)

	mux.Get(model.HomeRoute, portal.Home)
	mux.Get("/session", portal.Session)
	mux.Get(model.UnauthorizedRoute, portal.Unauthorized)
	mux.Get("/profile", portal.Profile)
	mux.Get("/{role}/dashboard", portal.Dashboard)
}
