// internal/binding/binding.go
//
// Binding model.
//
// Context
// -------
// A binding registers one external content database under a widget.  The
// widget is the canonical scope key; customer_id is carried for
// reporting only.  Invariant: at most one binding per widget has
// is_primary set, and the set is primary-less only in the window before
// the first insert lands.
package binding

import (
	"time"

	"github.com/gridfolio/gridfolio/internal/policy"
)

// Binding mirrors one row in the `binding` table.
type Binding struct {
	ID         string    `db:"id"                   json:"id"`
	WidgetID   string    `db:"widget_id"            json:"-"`
	CustomerID string    `db:"customer_id"          json:"-"`
	ExternalID string    `db:"external_database_id" json:"database_id"`
	Label      string    `db:"label"                json:"label"`
	IsPrimary  bool      `db:"is_primary"           json:"is_primary"`
	CreatedAt  time.Time `db:"created_at"           json:"created_at"`
}

// PolicyView projects bindings into the shape the policy engine reads.
// Input order (created_at ascending) is preserved.
func PolicyView(bs []Binding) []policy.Binding {
	out := make([]policy.Binding, len(bs))
	for i, b := range bs {
		out[i] = policy.Binding{ExternalID: b.ExternalID, IsPrimary: b.IsPrimary}
	}
	return out
}

// ExternalIDs lists the external database ids in registration order.
func ExternalIDs(bs []Binding) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.ExternalID
	}
	return out
}
