// internal/binding/store_test.go
//
// Unit-tests for the SQL binding store using sqlmock.
//
// Run: go test ./internal/binding -v

package binding

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/gridfolio/gridfolio/internal/fault"
)

func newStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestListByWidgetOrder(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery(`(?s)SELECT.*FROM\s+binding.*ORDER\s+BY created_at ASC, id ASC`).
		WithArgs("w1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "widget_id", "customer_id", "external_database_id", "label", "is_primary", "created_at"}).
			AddRow("b1", "w1", "c1", "aaa", "First", true, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)).
			AddRow("b2", "w1", "c1", "bbb", "Second", false, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)))

	got, err := s.ListByWidget(context.Background(), "w1")
	if err != nil {
		t.Fatalf("ListByWidget: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b1" || !got[0].IsPrimary || got[1].ExternalID != "bbb" {
		t.Fatalf("unexpected result: %#v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestInsertGuardedLimited(t *testing.T) {
	s, mock := newStore(t)

	b := Binding{ID: "b1", WidgetID: "w1", CustomerID: "c1", ExternalID: "aaa", Label: "Plan"}

	mock.ExpectExec(`(?s)INSERT INTO binding.*NOT EXISTS.*FROM\s+DUAL.*< \?`).
		WithArgs("b1", "w1", "c1", "aaa", "Plan", "w1", "w1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.InsertGuarded(context.Background(), b, 2); err != nil {
		t.Fatalf("InsertGuarded: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestInsertGuardedUnlimited(t *testing.T) {
	s, mock := newStore(t)

	b := Binding{ID: "b1", WidgetID: "w1", CustomerID: "c1", ExternalID: "aaa"}

	// The unlimited variant carries no guard clause.
	mock.ExpectExec(`(?s)INSERT INTO binding.*NOT EXISTS.*NOW\(6\)$`).
		WithArgs("b1", "w1", "c1", "aaa", "", "w1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.InsertGuarded(context.Background(), b, -1); err != nil {
		t.Fatalf("InsertGuarded: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestInsertGuardedCapTripped(t *testing.T) {
	s, mock := newStore(t)

	// The guard clause matched no row: a concurrent add already filled
	// the last slot.
	mock.ExpectExec(`(?s)INSERT INTO binding.*FROM\s+DUAL`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.InsertGuarded(context.Background(), Binding{WidgetID: "w1"}, 1)
	if !fault.IsPlanLimit(err) {
		t.Fatalf("err = %v, want PlanLimitError", err)
	}
}

func TestInsertGuardedDuplicate(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectExec(`(?s)INSERT INTO binding`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := s.InsertGuarded(context.Background(), Binding{WidgetID: "w1"}, 1)
	if !errors.Is(err, fault.ErrDuplicateBinding) {
		t.Fatalf("err = %v, want ErrDuplicateBinding", err)
	}
}

func TestSwapPrimary(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT 1 FROM binding WHERE id = ? AND widget_id = ?`)).
		WithArgs("b2", "w1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE binding SET is_primary = (id = ?) WHERE widget_id = ?`)).
		WithArgs("b2", "w1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(`(?s)SELECT COUNT\(\*\) FROM binding.*is_primary = TRUE`).
		WithArgs("w1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	if err := s.SwapPrimary(context.Background(), "w1", "b2"); err != nil {
		t.Fatalf("SwapPrimary: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestSwapPrimaryIncomplete(t *testing.T) {
	s, mock := newStore(t)

	// Target vanished between lookup and swap: swap cleared every primary.
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT 1 FROM binding WHERE id = ? AND widget_id = ?`)).
		WithArgs("gone", "w1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE binding SET is_primary = (id = ?) WHERE widget_id = ?`)).
		WithArgs("gone", "w1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`(?s)SELECT COUNT\(\*\) FROM binding.*is_primary = TRUE`).
		WithArgs("w1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	err := s.SwapPrimary(context.Background(), "w1", "gone")
	if !errors.Is(err, fault.ErrPrimaryTransitionIncomplete) {
		t.Fatalf("err = %v, want ErrPrimaryTransitionIncomplete", err)
	}
}

func TestSwapPrimaryAlreadyPrimary(t *testing.T) {
	s, mock := newStore(t)

	// Re-electing the current primary changes no rows (the driver reports
	// changed rows, not matched rows) but must still succeed.
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT 1 FROM binding WHERE id = ? AND widget_id = ?`)).
		WithArgs("b1", "w1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE binding SET is_primary = (id = ?) WHERE widget_id = ?`)).
		WithArgs("b1", "w1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`(?s)SELECT COUNT\(\*\) FROM binding.*is_primary = TRUE`).
		WithArgs("w1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	if err := s.SwapPrimary(context.Background(), "w1", "b1"); err != nil {
		t.Fatalf("SwapPrimary: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestSwapPrimaryTargetAbsent(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT 1 FROM binding WHERE id = ? AND widget_id = ?`)).
		WithArgs("b1", "w9").
		WillReturnError(sql.ErrNoRows)

	if err := s.SwapPrimary(context.Background(), "w9", "b1"); !errors.Is(err, fault.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteAndPromote(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT is_primary FROM binding.*FOR UPDATE`).
		WithArgs("b1", "w1").
		WillReturnRows(sqlmock.NewRows([]string{"is_primary"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta(
		`DELETE FROM binding WHERE id = ? AND widget_id = ?`)).
		WithArgs("b1", "w1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)UPDATE binding SET is_primary = TRUE.*ORDER\s+BY created_at ASC, id ASC.*LIMIT\s+1`).
		WithArgs("w1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.DeleteAndPromote(context.Background(), "w1", "b1"); err != nil {
		t.Fatalf("DeleteAndPromote: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestDeleteNonPrimarySkipsPromotion(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT is_primary FROM binding.*FOR UPDATE`).
		WithArgs("b2", "w1").
		WillReturnRows(sqlmock.NewRows([]string{"is_primary"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta(
		`DELETE FROM binding WHERE id = ? AND widget_id = ?`)).
		WithArgs("b2", "w1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.DeleteAndPromote(context.Background(), "w1", "b2"); err != nil {
		t.Fatalf("DeleteAndPromote: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestDeleteAndPromoteNotFound(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT is_primary FROM binding.*FOR UPDATE`).
		WithArgs("nope", "w1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	if err := s.DeleteAndPromote(context.Background(), "w1", "nope"); !errors.Is(err, fault.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
