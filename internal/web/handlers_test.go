// internal/web/handlers_test.go
//
// Handler tests over sqlmock-backed dependencies.
//
// Run: go test ./internal/web -v

package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/gridfolio/gridfolio/internal/binding"
	"github.com/gridfolio/gridfolio/internal/feed"
	"github.com/gridfolio/gridfolio/internal/notion"
	"github.com/gridfolio/gridfolio/internal/scope"
	"github.com/gridfolio/gridfolio/internal/widget"
)

func jsonBody(s string) io.Reader { return strings.NewReader(s) }

// newTestServer builds a Server whose resolver, scope cache, and binding
// manager share one sqlmock connection.  Notion-facing deps stay nil;
// tests that hit them provide their own.
func newTestServer(t *testing.T) (*Server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sdb := sqlx.NewDb(db, "sqlmock")
	resolver := scope.NewResolver(sdb)
	srv := New(Deps{
		Scopes:       scope.NewCache(resolver, scope.IdleTTL, scope.MaxAge, scope.MaxEntries),
		Resolver:     resolver,
		Bindings:     binding.NewManager(binding.NewSQLStore(sdb)),
		Widgets:      widget.NewStore(sdb),
		Feeds:        feed.NewAggregator(nilFetcher{}),
		DashboardURL: "https://gridfolio.test/dashboard",
	})
	return srv, mock
}

type nilFetcher struct{}

func (nilFetcher) FetchAll(context.Context, string, string) ([]notion.Page, error) {
	return nil, nil
}

func TestHandleFeedUnknownSlug(t *testing.T) {
	srv, mock := newTestServer(t)

	mock.ExpectQuery(`(?s)SELECT.*FROM\s+widget w`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/feed?slug=ghost", nil)
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleFeedDegradesOnStoreFailure(t *testing.T) {
	srv, mock := newTestServer(t)

	mock.ExpectQuery(`(?s)SELECT.*FROM\s+widget w`).
		WithArgs("my-grid").
		WillReturnRows(sqlmock.NewRows(
			[]string{"widget_id", "widget_slug", "widget_name", "customer_id", "customer_slug", "plan"}).
			AddRow("w1", "my-grid", "My Grid", "c1", "acme", "free"))
	mock.ExpectQuery(`(?s)SELECT.*FROM\s+connection`).
		WithArgs("c1").
		WillReturnError(sql.ErrNoRows)
	// No settings row: the response carries the defaults.
	mock.ExpectQuery(`(?s)SELECT.*FROM\s+widget_settings`).
		WithArgs("w1").
		WillReturnError(sql.ErrNoRows)
	// Binding list breaks; the embed still gets a 200 empty feed.
	mock.ExpectQuery(`(?s)SELECT.*FROM\s+binding`).
		WithArgs("w1").
		WillReturnError(sql.ErrConnDone)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/feed?slug=my-grid", nil)
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("Cache-Control = %q", cc)
	}
	var body feedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Profile != nil || body.Posts == nil || len(body.Posts) != 0 {
		t.Fatalf("degraded body = %+v, want empty feed", body)
	}
	if body.Plan != "free" || body.Widget.Slug != "my-grid" {
		t.Fatalf("scope fields = %+v", body)
	}
	if body.Settings.LayoutMode != "grid" || body.Settings.ThemeMode != "default" {
		t.Fatalf("settings = %+v, want defaults", body.Settings)
	}
}

func TestHandleValidateToken(t *testing.T) {
	srv, mock := newTestServer(t)

	mock.ExpectQuery(`(?s)SELECT id, slug, plan, status, setup_used`).
		WithArgs("fresh").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "plan", "status", "setup_used"}).
			AddRow("c1", "acme", "pro", "active", false))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/validate-token?token=fresh", nil)
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body validateTokenResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Status != "valid" || body.Plan != "pro" {
		t.Fatalf("body = %+v", body)
	}
}

func TestHandleValidateTokenConsumed(t *testing.T) {
	srv, mock := newTestServer(t)

	mock.ExpectQuery(`(?s)SELECT id, slug, plan, status, setup_used`).
		WithArgs("used").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "plan", "status", "setup_used"}).
			AddRow("c1", "acme", "free", "active", true))
	mock.ExpectQuery(`(?s)SELECT slug FROM widget`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"slug"}).AddRow("first-grid"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/validate-token?token=used", nil)
	srv.Routes().ServeHTTP(rec, req)

	var body validateTokenResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Status != "already_used" || body.Widget != "first-grid" {
		t.Fatalf("body = %+v", body)
	}
}

func TestHandleBindingActionRejectsForeignWidget(t *testing.T) {
	srv, mock := newTestServer(t)

	// Token belongs to customer c1...
	mock.ExpectQuery(`(?s)SELECT id, slug, plan.*dashboard_token = \?`).
		WithArgs("tok1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "plan"}).
			AddRow("c1", "acme", "pro"))
	// ...but the widget resolves to customer c2.
	mock.ExpectQuery(`(?s)SELECT.*FROM\s+widget w`).
		WithArgs("other-grid").
		WillReturnRows(sqlmock.NewRows(
			[]string{"widget_id", "widget_slug", "widget_name", "customer_id", "customer_slug", "plan"}).
			AddRow("w2", "other-grid", "Other", "c2", "rival", "free"))
	mock.ExpectQuery(`(?s)SELECT.*FROM\s+connection`).
		WithArgs("c2").
		WillReturnError(sql.ErrNoRows)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/widget-databases",
		jsonBody(`{"token":"tok1","widget":"other-grid","action":"delete","binding_id":"b1"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHandleBindingActionValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/widget-databases",
		jsonBody(`{"token":"t","widget":"w","action":"explode"}`))
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestOrderPrimaryFirst(t *testing.T) {
	bs := []binding.Binding{
		{ID: "b1", ExternalID: "aaa"},
		{ID: "b2", ExternalID: "bbb", IsPrimary: true},
		{ID: "b3", ExternalID: "ccc"},
	}
	got := orderPrimaryFirst(bs)
	if got[0].ID != "b2" || got[1].ID != "b1" || got[2].ID != "b3" {
		t.Fatalf("order = %v %v %v", got[0].ID, got[1].ID, got[2].ID)
	}
}
