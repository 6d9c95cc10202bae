// internal/policy/policy.go
//
// Plan policy for widget data sources.
//
// Context
// -------
// Everything here is a pure function of the customer's plan, the caller's
// requested selection, and the bindings already registered under the
// widget.  No I/O, no clock, no globals — the store adapter re-enforces
// the add limit with a conditional insert, so these checks are the
// user-facing half of the policy, not the last line of defence.
//
// The advanced-plan limit has been 2 since the current pricing page went
// live; an older value of 3 still circulates in support macros and is
// superseded.
package policy

import "github.com/gridfolio/gridfolio/internal/fault"

// Plan names as stored on the customer row.
const (
	PlanFree     = "free"
	PlanAdvanced = "advanced"
	PlanPro      = "pro"
)

// ModeMerge asks for every bound source in one feed (pro only).
const ModeMerge = "merge"

// Unlimited is the sentinel MaxBindings value for the pro plan.
const Unlimited = -1

// Binding is the minimal shape policy decisions need.  The binding
// package's full record satisfies it by construction; callers pass the
// already-ordered (created_at ascending) slice from the store.
type Binding struct {
	ExternalID string
	IsPrimary  bool
}

// MaxBindings returns the plan's registered-source cap, or Unlimited.
// Unknown plans are treated as free.
func MaxBindings(plan string) int {
	switch plan {
	case PlanAdvanced:
		return 2
	case PlanPro:
		return Unlimited
	default:
		return 1
	}
}

// SelectDatabaseIDs decides which external databases a feed read queries.
//
//   - free:     the primary binding, always; any override is ignored.
//   - advanced: a named *bound* database if requested, else the primary.
//   - pro:      "merge" selects every binding in registration order; a
//     named bound database if requested; else the primary.
//
// A requested id that is not bound to the widget falls back to the
// primary — the selection never queries a database outside the binding
// set, whatever the caller asks for.  An empty binding set yields an
// empty selection, never an error.
func SelectDatabaseIDs(plan, requested string, bindings []Binding) []string {
	if len(bindings) == 0 {
		return nil
	}

	primary := ""
	bound := false
	for _, b := range bindings {
		if b.IsPrimary && primary == "" {
			primary = b.ExternalID
		}
		if b.ExternalID == requested {
			bound = true
		}
	}

	switch plan {
	case PlanAdvanced:
		if bound {
			return []string{requested}
		}
	case PlanPro:
		if requested == ModeMerge {
			ids := make([]string, len(bindings))
			for i, b := range bindings {
				ids[i] = b.ExternalID
			}
			return ids
		}
		if bound {
			return []string{requested}
		}
	}

	if primary == "" {
		return nil
	}
	return []string{primary}
}

// AuthorizeAdd rejects an add that would exceed the plan's cap.  The
// count must be read immediately before the insert attempt; the store's
// conditional insert closes the remaining read-to-write window.
func AuthorizeAdd(plan string, existingCount int) error {
	limit := MaxBindings(plan)
	if limit == Unlimited {
		return nil
	}
	if existingCount >= limit {
		return &fault.PlanLimitError{Plan: plan, Limit: limit}
	}
	return nil
}

// AuthorizeWidgetCreate gates multi-surface provisioning: pro runs any
// number of widgets, every other plan gets exactly one.
func AuthorizeWidgetCreate(plan string, existingCount int) error {
	if plan == PlanPro {
		return nil
	}
	if existingCount >= 1 {
		return &fault.PlanLimitError{Plan: plan, Limit: 1, Resource: "widget"}
	}
	return nil
}

// AuthorizeDuplicate rejects registering an external database twice
// under the same widget.
func AuthorizeDuplicate(candidate string, existing []string) error {
	for _, id := range existing {
		if id == candidate {
			return fault.ErrDuplicateBinding
		}
	}
	return nil
}
