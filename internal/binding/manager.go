// internal/binding/manager.go
//
// Primary manager: plan-checked mutations with the single-primary
// invariant.
//
// Context
// -------
// The store's conditional statements are the hard guarantee; the manager
// adds the user-facing policy checks (limit and duplicate, evaluated on
// a count taken immediately before the insert attempt) and serializes
// mutations per widget with a keyed mutex so two dashboard tabs cannot
// interleave add / set-primary / delete against the same scope.  Locks
// are per process; the conditional SQL covers multi-instance overlap.
package binding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridfolio/gridfolio/internal/fault"
	"github.com/gridfolio/gridfolio/internal/policy"
)

// Manager owns binding mutations for all widgets.
type Manager struct {
	store Store
	locks sync.Map // widgetID → *sync.Mutex
}

// NewManager wires a Manager to its store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

func (m *Manager) lock(widgetID string) *sync.Mutex {
	v, _ := m.locks.LoadOrStore(widgetID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// List returns the widget's bindings in registration order.
func (m *Manager) List(ctx context.Context, widgetID string) ([]Binding, error) {
	return m.store.ListByWidget(ctx, widgetID)
}

// Add registers an external database under the widget.  The first
// binding in a scope becomes primary atomically with its insertion.
func (m *Manager) Add(ctx context.Context, widgetID, customerID, plan, externalID, label string) (*Binding, error) {
	mu := m.lock(widgetID)
	mu.Lock()
	defer mu.Unlock()

	count, err := m.store.CountByWidget(ctx, widgetID)
	if err != nil {
		return nil, err
	}
	if err := policy.AuthorizeAdd(plan, count); err != nil {
		return nil, err
	}

	existing, err := m.store.ListByWidget(ctx, widgetID)
	if err != nil {
		return nil, err
	}
	if err := policy.AuthorizeDuplicate(externalID, ExternalIDs(existing)); err != nil {
		return nil, err
	}

	b := Binding{
		ID:         uuid.NewString(),
		WidgetID:   widgetID,
		CustomerID: customerID,
		ExternalID: externalID,
		Label:      label,
		IsPrimary:  count == 0,
	}
	if err := m.store.InsertGuarded(ctx, b, policy.MaxBindings(plan)); err != nil {
		if fault.IsPlanLimit(err) {
			// The guard tripped on a concurrent add; report the same
			// violation the pre-check would have.
			return nil, &fault.PlanLimitError{Plan: plan, Limit: policy.MaxBindings(plan)}
		}
		return nil, err
	}

	zap.S().Infow("binding added",
		"widget_id", widgetID,
		"database_id", externalID,
		"primary", b.IsPrimary,
	)
	return &b, nil
}

// Rename updates a binding's display label.
func (m *Manager) Rename(ctx context.Context, widgetID, id, label string) error {
	mu := m.lock(widgetID)
	mu.Lock()
	defer mu.Unlock()

	return m.store.Rename(ctx, widgetID, id, label)
}

// SetPrimary designates id as the widget's primary binding.
func (m *Manager) SetPrimary(ctx context.Context, widgetID, id string) error {
	mu := m.lock(widgetID)
	mu.Lock()
	defer mu.Unlock()

	if err := m.store.SwapPrimary(ctx, widgetID, id); err != nil {
		if errors.Is(err, fault.ErrPrimaryTransitionIncomplete) {
			zap.S().Warnw("primary transition incomplete",
				"widget_id", widgetID, "target", id)
		}
		return err
	}
	return nil
}

// Delete removes a binding, promoting the oldest remaining binding when
// the deleted one held primary.
func (m *Manager) Delete(ctx context.Context, widgetID, id string) error {
	mu := m.lock(widgetID)
	mu.Lock()
	defer mu.Unlock()

	if err := m.store.DeleteAndPromote(ctx, widgetID, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}
