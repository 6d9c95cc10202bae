// internal/web/web.go
//
// HTTP surface.
//
// Context
// -------
// One chi router for the whole JSON API.  Handlers stay thin: resolve the
// scope, call the owning package, translate fault kinds into HTTP codes.
// The feed read is the one exception to straight error translation — it
// degrades to an empty success body so an embedded widget never renders a
// browser error page inside a customer's Notion doc.
//
// Notes
// -----
//   • Dashboard mutations authenticate by dashboard-token possession plus
//     a widget-ownership check; there is no session layer.
//   • /metrics and /healthz are registered here so cmd/web only mounts
//     one handler.

package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gridfolio/gridfolio/internal/binding"
	"github.com/gridfolio/gridfolio/internal/feed"
	"github.com/gridfolio/gridfolio/internal/notion"
	"github.com/gridfolio/gridfolio/internal/scope"
	"github.com/gridfolio/gridfolio/internal/widget"
)

// validate checks POST payloads; shared, concurrency-safe.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Deps collects everything the handlers call.  All fields are required
// except Notion geo-style extras; cmd/web fills the struct once at boot.
type Deps struct {
	Scopes   *scope.Cache
	Resolver *scope.Resolver
	Bindings *binding.Manager
	Widgets  *widget.Store
	Setup    *widget.SetupService
	Notion   *notion.Client
	Feeds    *feed.Aggregator

	// DashboardURL is the absolute base the setup flow redirects to,
	// e.g. "https://gridfolio.io/dashboard".
	DashboardURL string
}

// Server owns the API handlers.
type Server struct {
	deps Deps
}

// New builds the API server.
func New(d Deps) *Server { return &Server{deps: d} }

// Routes assembles the router.  Middleware (security headers, request
// enrichment, HTTPS redirect) is layered on by the caller.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/feed", s.handleFeed)
		r.Get("/resolve", s.handleResolve)

		r.Get("/widget-databases", s.handleListBindings)
		r.Post("/widget-databases", s.handleBindingAction)

		r.Get("/validate-token", s.handleValidateToken)

		r.Get("/widgets", s.handleListWidgets)
		r.Post("/widgets", s.handleWidgetAction)

		r.Get("/connect", s.handleConnect)
		r.Get("/callback", s.handleCallback)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	return r
}
