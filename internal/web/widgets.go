// internal/web/widgets.go
//
// Dashboard widget listing/provisioning and setup-token validation.
//
// Context
// -------
// Widget provisioning is the pro plan's multi-surface feature: one
// customer, several embeds, each with its own slug and binding set.
// Free and advanced customers keep the single widget the setup flow
// created for them.

package web

import (
	"net/http"

	"github.com/gridfolio/gridfolio/internal/policy"
	"github.com/gridfolio/gridfolio/internal/widget"
)

type validateTokenResponse struct {
	Status string `json:"status"` // "valid" | "already_used"
	Plan   string `json:"plan"`
	Widget string `json:"widget,omitempty"`
}

// handleValidateToken serves GET /api/validate-token?token=.  The setup
// page calls this before showing the connect button; a consumed token
// gets the oldest widget slug so the page can forward to the dashboard
// instead of dead-ending.
func (s *Server) handleValidateToken(w http.ResponseWriter, r *http.Request) {
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

	resp := validateTokenResponse{Status: "valid", Plan: res.Plan}
	if res.Consumed {
		resp.Status = "already_used"
		resp.Widget = res.WidgetSlug
	}
	writeJSON(w, http.StatusOK, resp)
}

type widgetsResponse struct {
	Plan    string          `json:"plan"`
	Widgets []widget.Widget `json:"widgets"`
}

// handleListWidgets serves GET /api/widgets?token=.
func (s *Server) handleListWidgets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := r.URL.Query().Get("token")
	if token == "" {
		writeBadRequest(w, "token is required")
		return
	}

	sc, err := s.deps.Resolver.ResolveDashboardToken(ctx, token)
	if err != nil {
		writeError(w, err)
		return
	}

	ws, err := s.deps.Widgets.ListByCustomer(ctx, sc.CustomerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, widgetsResponse{Plan: sc.Plan, Widgets: ws})
}

type widgetActionRequest struct {
	Token  string `json:"token"  validate:"required"`
	Action string `json:"action" validate:"required,oneof=create"`
	Name   string `json:"name,omitempty"`
}

// handleWidgetAction serves POST /api/widgets.
func (s *Server) handleWidgetAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req widgetActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	sc, err := s.deps.Resolver.ResolveDashboardToken(ctx, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	existing, err := s.deps.Widgets.ListByCustomer(ctx, sc.CustomerID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := policy.AuthorizeWidgetCreate(sc.Plan, len(existing)); err != nil {
		writeError(w, err)
		return
	}

	name := req.Name
	if name == "" {
		name = widget.DefaultName
	}
	created, err := s.deps.Widgets.Create(ctx, sc.CustomerID, name, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
