// internal/binding/store.go
//
// SQL store for widget bindings.
//
// Context
// -------
// The two check-then-act races in this schema — concurrent adds both
// passing the plan-limit read, and interleaved primary swaps leaving
// zero or two primaries — are closed here with single conditional
// statements rather than read-plus-write sequences:
//
//   - InsertGuarded computes is_primary and enforces the plan cap inside
//     one INSERT ... SELECT, so the count it acts on is the count the
//     database sees at commit time.
//   - SwapPrimary is one UPDATE setting is_primary = (id = target) over
//     the whole scope; no interleaving can observe two primaries.
//
// A UNIQUE(widget_id, external_database_id) key backs duplicate
// detection at the same level.
package binding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/gridfolio/gridfolio/internal/fault"
)

// Store is the persistence contract the manager consumes.  The SQL
// implementation below is the production adapter; tests may substitute
// their own.
type Store interface {
	ListByWidget(ctx context.Context, widgetID string) ([]Binding, error)
	CountByWidget(ctx context.Context, widgetID string) (int, error)
	InsertGuarded(ctx context.Context, b Binding, limit int) error
	Rename(ctx context.Context, widgetID, id, label string) error
	SwapPrimary(ctx context.Context, widgetID, id string) error
	DeleteAndPromote(ctx context.Context, widgetID, id string) error
}

// SQLStore implements Store on sqlx/MySQL.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore binds the store to a pool.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

const bindingColumns = `
        id, widget_id, customer_id, external_database_id,
        label, is_primary, created_at`

// ListByWidget returns the widget's bindings in registration order.
// created_at defines the order; id breaks exact-timestamp ties stably.
func (s *SQLStore) ListByWidget(ctx context.Context, widgetID string) ([]Binding, error) {
	const q = `
        SELECT` + bindingColumns + `
        FROM   binding
        WHERE  widget_id = ?
        ORDER  BY created_at ASC, id ASC`

	bs := make([]Binding, 0, 4)
	if err := s.db.SelectContext(ctx, &bs, q, widgetID); err != nil {
		return nil, fmt.Errorf("list bindings: %w", err)
	}
	return bs, nil
}

// CountByWidget returns the number of registered bindings.  Callers use
// it for the user-facing limit check; InsertGuarded re-enforces the cap.
func (s *SQLStore) CountByWidget(ctx context.Context, widgetID string) (int, error) {
	const q = `SELECT COUNT(*) FROM binding WHERE widget_id = ?`
	var n int
	if err := s.db.GetContext(ctx, &n, q, widgetID); err != nil {
		return 0, fmt.Errorf("count bindings: %w", err)
	}
	return n, nil
}

// InsertGuarded inserts b, making it primary iff the widget has no
// bindings yet, and refusing when the widget already holds `limit`
// bindings.  limit < 0 means unlimited.  A duplicate external id maps to
// ErrDuplicateBinding via the unique key.
func (s *SQLStore) InsertGuarded(ctx context.Context, b Binding, limit int) error {
	var (
		res sql.Result
		err error
	)
	if limit < 0 {
		const q = `
        INSERT INTO binding
               (id, widget_id, customer_id, external_database_id,
                label, is_primary, created_at)
        SELECT ?, ?, ?, ?, ?,
               NOT EXISTS (SELECT 1 FROM binding WHERE widget_id = ?),
               NOW(6)`
		res, err = s.db.ExecContext(ctx, q,
			b.ID, b.WidgetID, b.CustomerID, b.ExternalID, b.Label, b.WidgetID)
	} else {
		const q = `
        INSERT INTO binding
               (id, widget_id, customer_id, external_database_id,
                label, is_primary, created_at)
        SELECT ?, ?, ?, ?, ?,
               NOT EXISTS (SELECT 1 FROM binding WHERE widget_id = ?),
               NOW(6)
        FROM   DUAL
        WHERE  (SELECT COUNT(*) FROM binding WHERE widget_id = ?) < ?`
		res, err = s.db.ExecContext(ctx, q,
			b.ID, b.WidgetID, b.CustomerID, b.ExternalID, b.Label,
			b.WidgetID, b.WidgetID, limit)
	}
	if err != nil {
		if isDuplicateKey(err) {
			return fault.ErrDuplicateBinding
		}
		return fmt.Errorf("insert binding: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert binding: %w", err)
	}
	if n == 0 {
		// The guard clause rejected the insert: a concurrent add filled
		// the last slot after the caller's count.
		return &fault.PlanLimitError{Plan: "", Limit: limit}
	}
	return nil
}

// Rename updates a binding's display label, scoped to the widget.
func (s *SQLStore) Rename(ctx context.Context, widgetID, id, label string) error {
	const exists = `SELECT 1 FROM binding WHERE id = ? AND widget_id = ?`
	var one int
	if err := s.db.GetContext(ctx, &one, exists, id, widgetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fault.ErrNotFound
		}
		return fmt.Errorf("rename binding: %w", err)
	}

	const q = `UPDATE binding SET label = ? WHERE id = ? AND widget_id = ?`
	if _, err := s.db.ExecContext(ctx, q, label, id, widgetID); err != nil {
		return fmt.Errorf("rename binding: %w", err)
	}
	return nil
}

// SwapPrimary makes id the widget's primary in one statement: every row
// in the scope gets is_primary = (id = target).  The scope can never be
// observed with two primaries.  Absence is detected with an explicit
// lookup rather than RowsAffected: the MySQL driver reports changed
// rows, so re-electing the current primary affects zero rows even
// though the request is valid (and must stay idempotent).  If the
// target vanishes between the lookup and the swap, the statement clears
// every primary; that zero-primary outcome is reported as
// ErrPrimaryTransitionIncomplete so the caller can retry the set step.
func (s *SQLStore) SwapPrimary(ctx context.Context, widgetID, id string) error {
	const exists = `SELECT 1 FROM binding WHERE id = ? AND widget_id = ?`
	var one int
	if err := s.db.GetContext(ctx, &one, exists, id, widgetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fault.ErrNotFound
		}
		return fmt.Errorf("swap primary: %w", err)
	}

	const q = `UPDATE binding SET is_primary = (id = ?) WHERE widget_id = ?`
	if _, err := s.db.ExecContext(ctx, q, id, widgetID); err != nil {
		return fmt.Errorf("swap primary: %w", err)
	}

	const verify = `
        SELECT COUNT(*) FROM binding
        WHERE  widget_id = ? AND is_primary = TRUE`
	var primaries int
	if err := s.db.GetContext(ctx, &primaries, verify, widgetID); err != nil {
		return fmt.Errorf("swap primary verify: %w", err)
	}
	if primaries == 0 {
		return fault.ErrPrimaryTransitionIncomplete
	}
	return nil
}

// DeleteAndPromote removes a binding and, when it held primary, promotes
// the oldest remaining binding inside the same transaction.  An emptied
// scope simply returns to the no-primary state.
func (s *SQLStore) DeleteAndPromote(ctx context.Context, widgetID, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete binding: %w", err)
	}
	defer tx.Rollback()

	const get = `
        SELECT is_primary FROM binding
        WHERE  id = ? AND widget_id = ?
        FOR UPDATE`
	var wasPrimary bool
	if err := tx.GetContext(ctx, &wasPrimary, get, id, widgetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fault.ErrNotFound
		}
		return fmt.Errorf("delete binding: %w", err)
	}

	const del = `DELETE FROM binding WHERE id = ? AND widget_id = ?`
	if _, err := tx.ExecContext(ctx, del, id, widgetID); err != nil {
		return fmt.Errorf("delete binding: %w", err)
	}

	if wasPrimary {
		const promote = `
        UPDATE binding SET is_primary = TRUE
        WHERE  widget_id = ?
        ORDER  BY created_at ASC, id ASC
        LIMIT  1`
		if _, err := tx.ExecContext(ctx, promote, widgetID); err != nil {
			return fmt.Errorf("promote binding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete binding: %w", err)
	}
	return nil
}

// isDuplicateKey recognises MySQL/MariaDB error 1062 without string
// matching.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
