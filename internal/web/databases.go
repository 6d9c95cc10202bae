// internal/web/databases.go
//
// Binding management endpoints.
//
// Context
// -------
// The dashboard manages a widget's source databases through one
// consolidated endpoint: GET lists, POST carries an action discriminator.
// Mutations require a dashboard token, and the named widget must belong
// to the token's customer — a valid token for customer A must not touch
// customer B's widget.
//
// `add` validates the database against the live workspace before binding
// it, and borrows the source's title when the client sends no label.

package web

import (
	"net/http"

	"github.com/gridfolio/gridfolio/internal/binding"
	"github.com/gridfolio/gridfolio/internal/fault"
	"github.com/gridfolio/gridfolio/internal/notion"
	"github.com/gridfolio/gridfolio/internal/scope"
)

// orderPrimaryFirst returns bindings with the primary at index 0; the
// rest keep their registration order.
func orderPrimaryFirst(bs []binding.Binding) []binding.Binding {
	out := make([]binding.Binding, 0, len(bs))
	for _, b := range bs {
		if b.IsPrimary {
			out = append(out, b)
		}
	}
	for _, b := range bs {
		if !b.IsPrimary {
			out = append(out, b)
		}
	}
	return out
}

type bindingsResponse struct {
	Plan      string            `json:"plan"`
	Databases []binding.Binding `json:"databases"`
}

// handleListBindings serves GET /api/widget-databases?slug=.
func (s *Server) handleListBindings(w http.ResponseWriter, r *http.Request) {
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

	bs, err := s.deps.Bindings.List(ctx, sc.WidgetID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bindingsResponse{
		Plan:      sc.Plan,
		Databases: orderPrimaryFirst(bs),
	})
}

type bindingActionRequest struct {
	Token  string `json:"token"  validate:"required"`
	Widget string `json:"widget" validate:"required"`
	Action string `json:"action" validate:"required,oneof=add rename set_primary delete"`

	// Action-specific fields; per-action checks happen in the handler.
	Database  string `json:"database,omitempty"`
	BindingID string `json:"binding_id,omitempty"`
	Label     string `json:"label,omitempty"`
}

// handleBindingAction serves POST /api/widget-databases.
func (s *Server) handleBindingAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req bindingActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	sc, err := s.ownedWidgetScope(r, req.Token, req.Widget)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	switch req.Action {
	case "add":
		id := notion.ExtractDatabaseID(req.Database)
		if id == "" {
			writeBadRequest(w, "database must be a Notion database id or URL")
			return
		}

		conn, err := s.deps.Resolver.ConnectionByCustomer(ctx, sc.CustomerID)
		if err != nil {
			writeError(w, err)
			return
		}
		db, err := s.deps.Notion.RetrieveDatabase(ctx, id, conn.AccessToken)
		if err != nil {
			writeError(w, err)
			return
		}

		label := req.Label
		if label == "" {
			label = db.DisplayTitle()
		}
		if _, err := s.deps.Bindings.Add(ctx, sc.WidgetID, sc.CustomerID, sc.Plan, id, label); err != nil {
			writeError(w, err)
			return
		}
		status = http.StatusCreated

	case "rename":
		if req.BindingID == "" || req.Label == "" {
			writeBadRequest(w, "binding_id and label are required")
			return
		}
		if err := s.deps.Bindings.Rename(ctx, sc.WidgetID, req.BindingID, req.Label); err != nil {
			writeError(w, err)
			return
		}

	case "set_primary":
		if req.BindingID == "" {
			writeBadRequest(w, "binding_id is required")
			return
		}
		if err := s.deps.Bindings.SetPrimary(ctx, sc.WidgetID, req.BindingID); err != nil {
			writeError(w, err)
			return
		}

	case "delete":
		if req.BindingID == "" {
			writeBadRequest(w, "binding_id is required")
			return
		}
		if err := s.deps.Bindings.Delete(ctx, sc.WidgetID, req.BindingID); err != nil {
			writeError(w, err)
			return
		}
	}

	bs, err := s.deps.Bindings.List(ctx, sc.WidgetID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, bindingsResponse{
		Plan:      sc.Plan,
		Databases: orderPrimaryFirst(bs),
	})
}

// ownedWidgetScope authenticates the dashboard token and confirms that
// widgetSlug belongs to the token's customer.  Ownership failures look
// identical to a bad token.
func (s *Server) ownedWidgetScope(r *http.Request, token, widgetSlug string) (*scope.Scope, error) {
	ctx := r.Context()

	cust, err := s.deps.Resolver.ResolveDashboardToken(ctx, token)
	if err != nil {
		return nil, err
	}
	sc, err := s.deps.Scopes.Get(ctx, widgetSlug)
	if err != nil {
		return nil, err
	}
	if sc.CustomerID != cust.CustomerID {
		return nil, fault.ErrUnauthorized
	}
	return sc, nil
}
