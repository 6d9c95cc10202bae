// internal/widget/widget.go
//
// Widget model and store.
//
// Context
// -------
// A widget is one public display surface owned by a customer.  Its slug
// is globally unique and appears in embed URLs, so it doubles as the
// public scope identifier.  Free and advanced customers get exactly one
// widget, created lazily when setup completes; the pro plan may create
// more through the dashboard.
package widget

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gridfolio/gridfolio/internal/fault"
)

// Widget mirrors one row in the `widget` table.
type Widget struct {
	ID         string    `db:"id"          json:"id"`
	CustomerID string    `db:"customer_id" json:"-"`
	Slug       string    `db:"slug"        json:"slug"`
	Name       string    `db:"name"        json:"name"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"  json:"updated_at"`
}

// DefaultName is used when a widget is created without an explicit name.
const DefaultName = "My Grid"

// Store performs widget reads and writes.
type Store struct {
	db *sqlx.DB
}

// NewStore binds the store to a pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// ListByCustomer returns the customer's widgets, oldest first.
func (s *Store) ListByCustomer(ctx context.Context, customerID string) ([]Widget, error) {
	const q = `
        SELECT id, customer_id, slug, name, created_at, updated_at
        FROM   widget
        WHERE  customer_id = ?
        ORDER  BY created_at ASC`

	ws := make([]Widget, 0, 2)
	if err := s.db.SelectContext(ctx, &ws, q, customerID); err != nil {
		return nil, fmt.Errorf("list widgets: %w", err)
	}
	return ws, nil
}

// OldestByCustomer returns the customer's first widget, or ErrNotFound.
func (s *Store) OldestByCustomer(ctx context.Context, customerID string) (*Widget, error) {
	const q = `
        SELECT id, customer_id, slug, name, created_at, updated_at
        FROM   widget
        WHERE  customer_id = ?
        ORDER  BY created_at ASC
        LIMIT  1`

	var w Widget
	if err := s.db.GetContext(ctx, &w, q, customerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.ErrNotFound
		}
		return nil, fmt.Errorf("oldest widget: %w", err)
	}
	return &w, nil
}

// Create inserts a widget with a fresh globally-unique slug derived from
// slugBase.  Collisions on the random suffix are retried a few times
// before giving up.
func (s *Store) Create(ctx context.Context, customerID, name, slugBase string) (*Widget, error) {
	if name == "" {
		name = DefaultName
	}
	base := MakeSlug(slugBase)

	const q = `
        INSERT INTO widget (id, customer_id, slug, name, created_at, updated_at)
        VALUES (?, ?, ?, ?, NOW(6), NOW(6))`

	for attempt := 0; attempt < 3; attempt++ {
		w := Widget{
			ID:         uuid.NewString(),
			CustomerID: customerID,
			Slug:       base + "-" + randomSuffix(6),
			Name:       name,
		}
		_, err := s.db.ExecContext(ctx, q, w.ID, w.CustomerID, w.Slug, w.Name)
		if err == nil {
			return &w, nil
		}
		if !isDuplicateKey(err) {
			return nil, fmt.Errorf("create widget: %w", err)
		}
	}
	return nil, fmt.Errorf("create widget: slug space exhausted for %q", base)
}
