// internal/web/feed.go
//
// Public feed read and scope resolution.
//
// Context
// -------
// The feed endpoint backs the embedded widget, so its failure contract is
// asymmetric: an unknown slug is a hard 404, but anything that breaks
// *after* the scope resolved (store hiccup, missing connection, upstream
// outage) degrades to the empty feed shape with a 200.  The embed shows
// its empty state instead of an error page inside the customer's doc.

package web

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/gridfolio/gridfolio/internal/binding"
	"github.com/gridfolio/gridfolio/internal/fault"
	"github.com/gridfolio/gridfolio/internal/feed"
	"github.com/gridfolio/gridfolio/internal/policy"
	"github.com/gridfolio/gridfolio/internal/widget"
)

// widgetView is the widget identity slice exposed to clients.
type widgetView struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type feedResponse struct {
	Profile   *feed.Profile     `json:"profile"`
	Posts     []feed.Post       `json:"posts"`
	Plan      string            `json:"plan"`
	Widget    widgetView        `json:"widget"`
	Settings  widget.Settings   `json:"widget_settings"`
	Databases []binding.Binding `json:"databases"`
}

// handleFeed serves GET /api/feed?slug=&db=.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slug := r.URL.Query().Get("slug")
	if slug == "" {
		writeBadRequest(w, "slug is required")
		return
	}

	sc, err := s.deps.Scopes.Get(ctx, slug)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := feedResponse{
		Posts:     []feed.Post{},
		Plan:      sc.Plan,
		Widget:    widgetView{Slug: sc.WidgetSlug, Name: sc.WidgetName},
		Settings:  widget.DefaultSettings(),
		Databases: []binding.Binding{},
	}

	// Display settings ride along for the embed to apply; a failed read
	// falls back to the defaults rather than spoiling the feed.
	if set, err := s.deps.Widgets.SettingsByWidget(ctx, sc.WidgetID); err == nil {
		resp.Settings = set
	} else {
		zap.S().Warnw("widget settings read failed",
			"widget_slug", slug, "err", err)
	}

	// Feeds are always fresh; embeds poll and a stale grid looks broken.
	w.Header().Set("Cache-Control", "no-store")

	bs, err := s.deps.Bindings.List(ctx, sc.WidgetID)
	if err != nil {
		zap.S().Warnw("feed degraded: binding list failed",
			"widget_slug", slug, "err", err)
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Databases = orderPrimaryFirst(bs)

	ids := policy.SelectDatabaseIDs(sc.Plan, r.URL.Query().Get("db"), binding.PolicyView(bs))

	credential := ""
	if conn, err := s.deps.Resolver.ConnectionByCustomer(ctx, sc.CustomerID); err == nil {
		credential = conn.AccessToken
	} else if !errors.Is(err, fault.ErrNotFound) {
		zap.S().Warnw("feed degraded: connection lookup failed",
			"widget_slug", slug, "err", err)
	}

	fd := s.deps.Feeds.Assemble(ctx, credential, ids)
	resp.Profile = fd.Profile
	resp.Posts = fd.Posts

	writeJSON(w, http.StatusOK, resp)
}

type resolveResponse struct {
	CustomerSlug string `json:"customer_slug"`
	Plan         string `json:"plan"`
	WidgetSlug   string `json:"widget_slug,omitempty"`
	WidgetName   string `json:"widget_name,omitempty"`
	Connected    bool   `json:"connected"`
}

// handleResolve serves GET /api/resolve?slug=|token=.  Slug resolution is
// the embed's boot call; token resolution lets the dashboard confirm a
// stored credential still works.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	switch {
	case q.Get("slug") != "":
		sc, err := s.deps.Scopes.Get(ctx, q.Get("slug"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resolveResponse{
			CustomerSlug: sc.CustomerSlug,
			Plan:         sc.Plan,
			WidgetSlug:   sc.WidgetSlug,
			WidgetName:   sc.WidgetName,
			Connected:    sc.ConnectionID != "",
		})

	case q.Get("token") != "":
		sc, err := s.deps.Resolver.ResolveDashboardToken(ctx, q.Get("token"))
		if err != nil {
			writeError(w, err)
			return
		}
		_, connErr := s.deps.Resolver.ConnectionByCustomer(ctx, sc.CustomerID)
		writeJSON(w, http.StatusOK, resolveResponse{
			CustomerSlug: sc.CustomerSlug,
			Plan:         sc.Plan,
			Connected:    connErr == nil,
		})

	default:
		writeBadRequest(w, "slug or token is required")
	}
}
