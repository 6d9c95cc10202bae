// internal/scope/scope.go
//
// Tenant scope types.
//
// Context
// -------
// A Scope answers "whose data and which policy?" for one request.  It is
// produced by the resolver from one of three identifiers — public widget
// slug, dashboard token, or one-time setup token — and is treated as
// immutable afterwards.  The canonical scope key for data sources is the
// widget; customer and connection are derived lookups, not separate
// ownership edges.
package scope

// Customer statuses as stored on the row.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Scope identifies the customer, widget, and connection a request acts
// on.  ConnectionID is empty until the workspace has been connected;
// WidgetID is empty for customer-level (dashboard-token) scopes.
type Scope struct {
	CustomerID   string
	CustomerSlug string
	Plan         string
	WidgetID     string
	WidgetSlug   string
	WidgetName   string
	ConnectionID string
}

// SetupResolution is the outcome of a setup-token lookup.  A consumed
// token resolves only for read-redirect purposes: Consumed is true and
// WidgetSlug names the oldest widget so the setup page can forward the
// visitor, but the resolution must never authorize a mutation.
type SetupResolution struct {
	CustomerID   string
	CustomerSlug string
	Plan         string
	Consumed     bool
	WidgetSlug   string
}

// Connection is one acquired workspace credential.  AccessToken never
// crosses the HTTP boundary.
type Connection struct {
	ID            string `db:"id"`
	CustomerID    string `db:"customer_id"`
	AccessToken   string `db:"access_token"`
	WorkspaceID   string `db:"workspace_id"`
	WorkspaceName string `db:"workspace_name"`
	BotID         string `db:"bot_id"`
}
