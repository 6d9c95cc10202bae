// internal/scope/resolver_test.go
//
// Unit-tests for identifier → scope resolution using sqlmock.
//
// Run: go test ./internal/scope -v

package scope

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/gridfolio/gridfolio/internal/fault"
)

func newResolver(t *testing.T) (*Resolver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewResolver(sqlx.NewDb(db, "sqlmock")), mock
}

func TestResolveWidgetSlug(t *testing.T) {
	r, mock := newResolver(t)

	mock.ExpectQuery(`(?s)SELECT.*FROM\s+widget w.*JOIN\s+customer c.*c\.status = 'active'`).
		WithArgs("my-grid").
		WillReturnRows(sqlmock.NewRows(
			[]string{"widget_id", "widget_slug", "widget_name", "customer_id", "customer_slug", "plan"}).
			AddRow("w1", "my-grid", "My Grid", "c1", "acme", "advanced"))
	mock.ExpectQuery(`(?s)SELECT.*FROM\s+connection`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "customer_id", "access_token", "workspace_id", "workspace_name", "bot_id"}).
			AddRow("conn1", "c1", "tk", "ws", "Acme", "b"))

	sc, err := r.ResolveWidgetSlug(context.Background(), "my-grid")
	if err != nil {
		t.Fatalf("ResolveWidgetSlug: %v", err)
	}
	if sc.WidgetID != "w1" || sc.CustomerID != "c1" || sc.Plan != "advanced" {
		t.Fatalf("scope = %+v", sc)
	}
	if sc.ConnectionID != "conn1" {
		t.Fatalf("ConnectionID = %q", sc.ConnectionID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestResolveWidgetSlugSuspendedLooksMissing(t *testing.T) {
	r, mock := newResolver(t)

	// The active filter is in the query; a suspended customer's widget
	// comes back as no rows, indistinguishable from absent.
	mock.ExpectQuery(`(?s)SELECT.*FROM\s+widget w`).
		WithArgs("their-grid").
		WillReturnError(sql.ErrNoRows)

	if _, err := r.ResolveWidgetSlug(context.Background(), "their-grid"); !errors.Is(err, fault.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveDashboardToken(t *testing.T) {
	r, mock := newResolver(t)

	mock.ExpectQuery(`(?s)SELECT id, slug, plan.*FROM\s+customer.*dashboard_token = \?`).
		WithArgs("tok123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "plan"}).
			AddRow("c1", "acme", "pro"))

	sc, err := r.ResolveDashboardToken(context.Background(), "tok123")
	if err != nil {
		t.Fatalf("ResolveDashboardToken: %v", err)
	}
	if sc.CustomerID != "c1" || sc.Plan != "pro" || sc.WidgetID != "" {
		t.Fatalf("scope = %+v", sc)
	}
}

func TestResolveDashboardTokenInvalid(t *testing.T) {
	r, mock := newResolver(t)

	mock.ExpectQuery(`(?s)SELECT id, slug, plan.*FROM\s+customer`).
		WithArgs("bogus").
		WillReturnError(sql.ErrNoRows)

	if _, err := r.ResolveDashboardToken(context.Background(), "bogus"); !errors.Is(err, fault.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestResolveSetupTokenFresh(t *testing.T) {
	r, mock := newResolver(t)

	mock.ExpectQuery(`(?s)SELECT id, slug, plan, status, setup_used.*setup_token = \?`).
		WithArgs("setup1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "plan", "status", "setup_used"}).
			AddRow("c1", "acme", "free", "active", false))

	res, err := r.ResolveSetupToken(context.Background(), "setup1")
	if err != nil {
		t.Fatalf("ResolveSetupToken: %v", err)
	}
	if res.Consumed || res.CustomerID != "c1" || res.CustomerSlug != "acme" {
		t.Fatalf("resolution = %+v", res)
	}
}

func TestResolveSetupTokenConsumed(t *testing.T) {
	r, mock := newResolver(t)

	mock.ExpectQuery(`(?s)SELECT id, slug, plan, status, setup_used.*setup_token = \?`).
		WithArgs("setup1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "plan", "status", "setup_used"}).
			AddRow("c1", "acme", "free", "active", true))
	mock.ExpectQuery(`(?s)SELECT slug FROM widget.*ORDER\s+BY created_at ASC`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"slug"}).AddRow("first-grid"))

	res, err := r.ResolveSetupToken(context.Background(), "setup1")
	if err != nil {
		t.Fatalf("ResolveSetupToken: %v", err)
	}
	if !res.Consumed || res.WidgetSlug != "first-grid" {
		t.Fatalf("resolution = %+v", res)
	}
}

func TestResolveSetupTokenInactive(t *testing.T) {
	r, mock := newResolver(t)

	mock.ExpectQuery(`(?s)SELECT id, slug, plan, status, setup_used`).
		WithArgs("setup1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "plan", "status", "setup_used"}).
			AddRow("c1", "acme", "free", "suspended", false))

	if _, err := r.ResolveSetupToken(context.Background(), "setup1"); !errors.Is(err, fault.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveSetupTokenUnknown(t *testing.T) {
	r, mock := newResolver(t)

	mock.ExpectQuery(`(?s)SELECT id, slug, plan, status, setup_used`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	if _, err := r.ResolveSetupToken(context.Background(), "nope"); !errors.Is(err, fault.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestConnectionByCustomerMemoized(t *testing.T) {
	r, mock := newResolver(t)

	// One SQL round trip; the second call is served from the LRU.
	mock.ExpectQuery(`(?s)SELECT.*FROM\s+connection`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "customer_id", "access_token", "workspace_id", "workspace_name", "bot_id"}).
			AddRow("conn1", "c1", "tk", "ws", "Acme", "b"))

	for i := 0; i < 2; i++ {
		conn, err := r.ConnectionByCustomer(context.Background(), "c1")
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if conn.AccessToken != "tk" {
			t.Fatalf("call %d: conn = %+v", i, conn)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}
