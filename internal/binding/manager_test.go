// internal/binding/manager_test.go
//
// Unit-tests for the primary manager over a fake store.
//
// Run: go test ./internal/binding -v

package binding

import (
	"context"
	"errors"
	"testing"

	"github.com/gridfolio/gridfolio/internal/fault"
)

// fakeStore is an in-memory Store for manager-level behavior.
type fakeStore struct {
	bindings  []Binding
	insertErr error
	inserted  []Binding
}

func (f *fakeStore) ListByWidget(_ context.Context, _ string) ([]Binding, error) {
	return f.bindings, nil
}

func (f *fakeStore) CountByWidget(_ context.Context, _ string) (int, error) {
	return len(f.bindings), nil
}

func (f *fakeStore) InsertGuarded(_ context.Context, b Binding, _ int) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, b)
	return nil
}

func (f *fakeStore) Rename(_ context.Context, _, _, _ string) error        { return nil }
func (f *fakeStore) SwapPrimary(_ context.Context, _, _ string) error      { return nil }
func (f *fakeStore) DeleteAndPromote(_ context.Context, _, _ string) error { return nil }

func TestAddFirstBindingIsPrimary(t *testing.T) {
	fs := &fakeStore{}
	m := NewManager(fs)

	b, err := m.Add(context.Background(), "w1", "c1", "free", "aaa", "Plan")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !b.IsPrimary {
		t.Fatal("first binding must be primary")
	}
	if b.ID == "" {
		t.Fatal("binding id not minted")
	}
	if len(fs.inserted) != 1 || fs.inserted[0].ExternalID != "aaa" {
		t.Fatalf("inserted = %#v", fs.inserted)
	}
}

func TestAddSecondBindingNotPrimary(t *testing.T) {
	fs := &fakeStore{bindings: []Binding{{ID: "b1", ExternalID: "aaa", IsPrimary: true}}}
	m := NewManager(fs)

	b, err := m.Add(context.Background(), "w1", "c1", "advanced", "bbb", "")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if b.IsPrimary {
		t.Fatal("second binding must not be primary")
	}
}

func TestAddPlanLimit(t *testing.T) {
	fs := &fakeStore{bindings: []Binding{{ID: "b1", ExternalID: "aaa", IsPrimary: true}}}
	m := NewManager(fs)

	_, err := m.Add(context.Background(), "w1", "c1", "free", "bbb", "")
	if !fault.IsPlanLimit(err) {
		t.Fatalf("err = %v, want PlanLimitError", err)
	}
	if len(fs.inserted) != 0 {
		t.Fatal("insert attempted past the plan limit")
	}
}

func TestAddDuplicate(t *testing.T) {
	fs := &fakeStore{bindings: []Binding{{ID: "b1", ExternalID: "aaa", IsPrimary: true}}}
	m := NewManager(fs)

	_, err := m.Add(context.Background(), "w1", "c1", "pro", "aaa", "")
	if !errors.Is(err, fault.ErrDuplicateBinding) {
		t.Fatalf("err = %v, want ErrDuplicateBinding", err)
	}
}

func TestAddConcurrentGuardRewrapped(t *testing.T) {
	// The store's guard trips (another instance won the race); the error
	// must carry the caller's plan, not the store's anonymous one.
	fs := &fakeStore{insertErr: &fault.PlanLimitError{Limit: 2}}
	m := NewManager(fs)

	_, err := m.Add(context.Background(), "w1", "c1", "advanced", "bbb", "")
	var ple *fault.PlanLimitError
	if !errors.As(err, &ple) {
		t.Fatalf("err = %v, want PlanLimitError", err)
	}
	if ple.Plan != "advanced" || ple.Limit != 2 {
		t.Fatalf("detail = %+v", ple)
	}
}
