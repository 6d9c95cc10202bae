// internal/web/oauth.go
//
// Workspace-connection flow.
//
// Context
// -------
// /api/connect bounces the visitor to the provider's consent screen with
// the setup token riding along as `state`; /api/callback finishes the
// job — exchange the code, store the credential, provision the first
// widget, consume the token, mint the dashboard token — and forwards to
// the dashboard.  Both endpoints treat an already-consumed token as a
// redirect to the existing dashboard, so a bookmarked setup link keeps
// working after onboarding.

package web

import (
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// dashboardRedirect builds the post-setup destination URL.
func (s *Server) dashboardRedirect(widgetSlug, dashboardToken string) string {
	q := url.Values{}
	if widgetSlug != "" {
		q.Set("widget", widgetSlug)
	}
	if dashboardToken != "" {
		q.Set("token", dashboardToken)
	}
	if len(q) == 0 {
		return s.deps.DashboardURL
	}
	return s.deps.DashboardURL + "?" + q.Encode()
}

// handleConnect serves GET /api/connect?token=.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeBadRequest(w, "token is required")
		return
	}

	res, err := s.deps.Resolver.ResolveSetupToken(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	if res.Consumed {
		http.Redirect(w, r, s.dashboardRedirect(res.WidgetSlug, ""), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, s.deps.Notion.AuthorizeURL(token), http.StatusFound)
}

// handleCallback serves GET /api/callback?code=&state=.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		writeBadRequest(w, "code and state are required")
		return
	}

	res, err := s.deps.Resolver.ResolveSetupToken(ctx, state)
	if err != nil {
		writeError(w, err)
		return
	}
	if res.Consumed {
		// Replayed callback (refresh, double click); setup already ran.
		http.Redirect(w, r, s.dashboardRedirect(res.WidgetSlug, ""), http.StatusSeeOther)
		return
	}

	tok, err := s.deps.Notion.ExchangeCode(ctx, code)
	if err != nil {
		zap.S().Errorw("oauth exchange failed", "customer_id", res.CustomerID, "err", err)
		writeError(w, err)
		return
	}

	result, err := s.deps.Setup.Complete(ctx, res.CustomerID, res.CustomerSlug, tok)
	if err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r,
		s.dashboardRedirect(result.Widget.Slug, result.DashboardToken),
		http.StatusSeeOther)
}
