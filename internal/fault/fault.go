// internal/fault/fault.go
//
// Typed failure kinds shared across the service.
//
// Context
// -------
// Scope resolution and binding mutations surface these verbatim to the
// caller; the feed path intentionally degrades instead (see feed package).
// Kinds are plain sentinel errors except where the caller needs structured
// detail (PlanLimitError carries plan and limit so the HTTP layer can
// build a user-actionable message).
//
// All kinds play well with errors.Is / errors.As; wrap with
// fmt.Errorf("context: %w", err) when adding call-site detail.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers an absent or inactive scope, widget, or binding.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized covers an invalid, expired, or consumed token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrDuplicateBinding is returned when the external database is
	// already registered under the same widget.
	ErrDuplicateBinding = errors.New("database already added to this widget")

	// ErrPrimaryTransitionIncomplete reports a primary swap that cleared
	// the old primary but could not designate the new one.  The scope is
	// observably primary-less; the caller should retry the set step.
	ErrPrimaryTransitionIncomplete = errors.New("primary transition incomplete")

	// ErrUpstreamUnavailable is a non-success status from the content
	// source.  It aborts one source's fetch only.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMalformedUpstreamResponse marks a response page whose record
	// list is missing or not an array.  Accumulated records up to that
	// point are still usable.
	ErrMalformedUpstreamResponse = errors.New("malformed upstream response")
)

// PlanLimitError reports a mutation rejected by the plan's limit.
// Resource defaults to "database"; widget provisioning sets "widget".
type PlanLimitError struct {
	Plan     string
	Limit    int
	Resource string
}

func (e *PlanLimitError) Error() string {
	res := e.Resource
	if res == "" {
		res = "database"
	}
	switch {
	case e.Plan != "" && e.Limit == 1:
		return fmt.Sprintf("%s plan allows only 1 %s", e.Plan, res)
	case e.Plan != "" && e.Limit > 1:
		return fmt.Sprintf("%s plan allows up to %d %ss", e.Plan, e.Limit, res)
	default:
		return fmt.Sprintf("%s limit reached", res)
	}
}

// IsPlanLimit reports whether err is (or wraps) a PlanLimitError.
func IsPlanLimit(err error) bool {
	var ple *PlanLimitError
	return errors.As(err, &ple)
}
