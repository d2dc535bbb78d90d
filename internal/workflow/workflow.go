// Package workflow defines the status vocabularies of handovers, snagging reports
// and requests, and the tables deciding which actions a role may take in each status.
//
// Everything in this package is a pure function of (status, role) or
// (status, action). Unknown statuses and roles map to an empty action set so that
// unrecognized states fail closed.
package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrTransitionNotAllowed is returned when an action is not valid for a status.
	ErrTransitionNotAllowed = errors.New("transition not allowed")
	// ErrForbidden is returned when the caller's role or ownership excludes them.
	ErrForbidden = errors.New("forbidden")
)

// Role is the caller's role in the dashboard.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleOwner Role = "OWNER"
)

// ParseRole converts a raw string to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleOwner:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// IsAdmin reports whether r is the admin role.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// Actor is the authenticated caller of a server-side operation.
type Actor struct {
	ID    string
	Email string
	Role  Role
}

// Owns reports whether the actor is the owner identified by ownerID.
// Admins never own anything.
func (a Actor) Owns(ownerID string) bool {
	return a.Role == RoleOwner && ownerID != "" && a.ID == ownerID
}

// CanSee reports whether the actor may read an entity belonging to ownerID.
func (a Actor) CanSee(ownerID string) bool {
	return a.Role.IsAdmin() || a.Owns(ownerID)
}

// Action is a user-invocable workflow step.
type Action string

const (
	ActionEdit           Action = "edit"
	ActionSend           Action = "send"
	ActionAccept         Action = "accept"
	ActionRequestChanges Action = "request-changes"
	ActionCancel         Action = "cancel"
	ActionDownloadPDF    Action = "download-pdf"
	ActionSchedule       Action = "schedule"
	ActionSign           Action = "sign"
	ActionRegeneratePDF  Action = "regenerate-pdf"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionRevoke         Action = "revoke"

	// Deprecated handover actions from the owner-confirm/admin-confirm flow.
	// ActionOwnerConfirm is treated as ActionAccept; the other two are never granted.
	ActionOwnerConfirm Action = "owner-confirm"
	ActionAdminConfirm Action = "admin-confirm"
	ActionComplete     Action = "complete"
)

// Canonical maps deprecated action names onto their current equivalent.
func (a Action) Canonical() Action {
	if a == ActionOwnerConfirm {
		return ActionAccept
	}
	return a
}

// IsDestructive reports whether the action needs explicit confirmation.
func (a Action) IsDestructive() bool {
	switch a.Canonical() {
	case ActionCancel, ActionRevoke, ActionReject:
		return true
	}
	return false
}

// ActionSet is an unordered set of actions.
type ActionSet map[Action]struct{}

// NewActionSet builds a set from the given actions.
func NewActionSet(actions ...Action) ActionSet {
	s := make(ActionSet, len(actions))
	for _, a := range actions {
		s[a] = struct{}{}
	}
	return s
}

// Has reports whether a (or its canonical form) is in the set.
func (s ActionSet) Has(a Action) bool {
	_, ok := s[a.Canonical()]
	return ok
}

// Len returns the number of actions.
func (s ActionSet) Len() int { return len(s) }

// Slice returns the actions sorted by name.
func (s ActionSet) Slice() []Action {
	out := make([]Action, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String renders the set as a comma-separated list.
func (s ActionSet) String() string {
	parts := make([]string, 0, len(s))
	for _, a := range s.Slice() {
		parts = append(parts, string(a))
	}
	return strings.Join(parts, ", ")
}

// legacyActions narrows the actions of a record in a deprecated status. Such
// records are read-only, except that an admin may still cancel one that has
// not ended.
func legacyActions(canonical ActionSet, role Role) ActionSet {
	if role == RoleAdmin && canonical.Has(ActionCancel) {
		return NewActionSet(ActionCancel)
	}
	return ActionSet{}
}

// legacyNext applies the same narrowing to the transition table.
func legacyNext[S ~string](t transitions[S], legacy, canonical S, action Action) (S, error) {
	if action.Canonical() != ActionCancel {
		var zero S
		return zero, fmt.Errorf("%s from %s: %w", action, legacy, ErrTransitionNotAllowed)
	}
	return t.next(canonical, action)
}

// permissions is a (status -> role -> actions) table.
type permissions[S ~string] map[S]map[Role][]Action

func (p permissions[S]) lookup(status S, role Role) ActionSet {
	byRole, ok := p[status]
	if !ok {
		return ActionSet{}
	}
	return NewActionSet(byRole[role]...)
}

// transitions is a (status -> action -> next status) table.
type transitions[S ~string] map[S]map[Action]S

func (t transitions[S]) next(status S, action Action) (S, error) {
	to, ok := t[status][action.Canonical()]
	if !ok {
		var zero S
		return zero, fmt.Errorf("%s from %s: %w", action, status, ErrTransitionNotAllowed)
	}
	return to, nil
}
