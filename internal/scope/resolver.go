// internal/scope/resolver.go
//
// Identifier → Scope resolution.
//
// Context
// -------
// Three inbound identifiers exist, with different contracts:
//
//   - Public widget slug — feed reads and binding management.  Requires
//     an active customer; inactive and missing look identical (NotFound)
//     so a suspended tenant does not leak its existence.
//   - Dashboard token — long-lived reusable credential, no consumption
//     semantics.  Invalid token is Unauthorized.
//   - Setup token — single use.  Lookup distinguishes not-found,
//     inactive, and already-consumed; a consumed token resolves only to
//     the redirect slug.
//
// Everything here is a pure read; consumption of the setup token happens
// in the setup-completion flow, not during resolution.
package scope

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gridfolio/gridfolio/internal/cache"
	"github.com/gridfolio/gridfolio/internal/fault"
)

// connTTL bounds how long a memoized credential row may serve feed
// reads; re-authorization lands within this window without a restart.
const connTTL = 30 * time.Second

// Resolver performs scope lookups against the shared store.
type Resolver struct {
	db    *sqlx.DB
	conns *cache.LRU // customerID → *Connection
}

// NewResolver binds a Resolver to a pool.
func NewResolver(db *sqlx.DB) *Resolver {
	return &Resolver{db: db, conns: cache.New(1024)}
}

// ResolveWidgetSlug maps a public widget slug to its full Scope.
func (r *Resolver) ResolveWidgetSlug(ctx context.Context, slug string) (*Scope, error) {
	const q = `
        SELECT w.id   AS widget_id,
               w.slug AS widget_slug,
               w.name AS widget_name,
               c.id   AS customer_id,
               c.slug AS customer_slug,
               c.plan
        FROM   widget w
        JOIN   customer c ON c.id = w.customer_id
        WHERE  w.slug = ?
          AND  c.status = 'active'
        LIMIT  1`

	var row struct {
		WidgetID     string `db:"widget_id"`
		WidgetSlug   string `db:"widget_slug"`
		WidgetName   string `db:"widget_name"`
		CustomerID   string `db:"customer_id"`
		CustomerSlug string `db:"customer_slug"`
		Plan         string `db:"plan"`
	}
	if err := r.db.GetContext(ctx, &row, q, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.ErrNotFound
		}
		return nil, fmt.Errorf("resolve widget slug: %w", err)
	}

	sc := &Scope{
		CustomerID:   row.CustomerID,
		CustomerSlug: row.CustomerSlug,
		Plan:         row.Plan,
		WidgetID:     row.WidgetID,
		WidgetSlug:   row.WidgetSlug,
		WidgetName:   row.WidgetName,
	}
	if conn, err := r.ConnectionByCustomer(ctx, row.CustomerID); err == nil {
		sc.ConnectionID = conn.ID
	}
	return sc, nil
}

// ResolveDashboardToken maps a dashboard token to a customer-level
// scope.  The token is a reusable credential; no consumption semantics.
func (r *Resolver) ResolveDashboardToken(ctx context.Context, token string) (*Scope, error) {
	const q = `
        SELECT id, slug, plan
        FROM   customer
        WHERE  dashboard_token = ?
          AND  status = 'active'
        LIMIT  1`

	var row struct {
		ID   string `db:"id"`
		Slug string `db:"slug"`
		Plan string `db:"plan"`
	}
	if err := r.db.GetContext(ctx, &row, q, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.ErrUnauthorized
		}
		return nil, fmt.Errorf("resolve dashboard token: %w", err)
	}
	return &Scope{CustomerID: row.ID, CustomerSlug: row.Slug, Plan: row.Plan}, nil
}

// ResolveSetupToken looks up a one-time setup token.  Outcomes:
//
//   - unknown token            → ErrUnauthorized
//   - customer not active      → ErrNotFound
//   - token already consumed   → Consumed=true plus the oldest widget
//     slug (read-redirect only)
//   - fresh token              → Consumed=false, ready for setup
func (r *Resolver) ResolveSetupToken(ctx context.Context, token string) (*SetupResolution, error) {
	const q = `
        SELECT id, slug, plan, status, setup_used
        FROM   customer
        WHERE  setup_token = ?
        LIMIT  1`

	var row struct {
		ID        string `db:"id"`
		Slug      string `db:"slug"`
		Plan      string `db:"plan"`
		Status    string `db:"status"`
		SetupUsed bool   `db:"setup_used"`
	}
	if err := r.db.GetContext(ctx, &row, q, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.ErrUnauthorized
		}
		return nil, fmt.Errorf("resolve setup token: %w", err)
	}
	if row.Status != StatusActive {
		return nil, fault.ErrNotFound
	}

	res := &SetupResolution{
		CustomerID:   row.ID,
		CustomerSlug: row.Slug,
		Plan:         row.Plan,
		Consumed:     row.SetupUsed,
	}
	if res.Consumed {
		// Oldest widget wins the redirect, matching first-registered
		// tie-break used elsewhere.
		const wq = `
            SELECT slug FROM widget
            WHERE  customer_id = ?
            ORDER  BY created_at ASC
            LIMIT  1`
		if err := r.db.GetContext(ctx, &res.WidgetSlug, wq, row.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("resolve setup redirect: %w", err)
		}
	}
	return res, nil
}

// ConnectionByCustomer fetches the customer's workspace credential.
// One active connection per customer; re-authorizing replaces it.  Hits
// are memoized for connTTL — every feed read needs the credential and
// the row changes only on re-authorization.
func (r *Resolver) ConnectionByCustomer(ctx context.Context, customerID string) (*Connection, error) {
	if v, ok := r.conns.Get(customerID); ok {
		return v.(*Connection), nil
	}

	const q = `
        SELECT id, customer_id, access_token,
               workspace_id, workspace_name, bot_id
        FROM   connection
        WHERE  customer_id = ?
        LIMIT  1`

	var conn Connection
	if err := r.db.GetContext(ctx, &conn, q, customerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.ErrNotFound
		}
		return nil, fmt.Errorf("connection lookup: %w", err)
	}
	r.conns.Add(customerID, &conn, connTTL)
	return &conn, nil
}
