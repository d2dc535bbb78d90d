package workflow

// SnaggingStatus is the lifecycle status of a snagging report.
type SnaggingStatus string

const (
	SnaggingDraft       SnaggingStatus = "DRAFT"
	SnaggingSentToOwner SnaggingStatus = "SENT_TO_OWNER"
	SnaggingAccepted    SnaggingStatus = "ACCEPTED"
	SnaggingCancelled   SnaggingStatus = "CANCELLED"
)

const (
	// Deprecated aliases used by the message-thread view.
	SnaggingOpen       SnaggingStatus = "OPEN"
	SnaggingInProgress SnaggingStatus = "IN_PROGRESS"
	SnaggingResolved   SnaggingStatus = "RESOLVED"
	SnaggingClosed     SnaggingStatus = "CLOSED"
)

// Legacy statuses are mapped for display and filtering only. A record carrying
// one is read-only apart from an admin cancel; IN_PROGRESS in particular says
// nothing about the owner having been sent the report.
var legacySnaggingStatus = map[SnaggingStatus]SnaggingStatus{
	SnaggingOpen:       SnaggingDraft,
	SnaggingInProgress: SnaggingSentToOwner,
	SnaggingResolved:   SnaggingAccepted,
	SnaggingClosed:     SnaggingCancelled,
}

// Canonical maps deprecated statuses onto the current vocabulary.
func (s SnaggingStatus) Canonical() SnaggingStatus {
	if c, ok := legacySnaggingStatus[s]; ok {
		return c
	}
	return s
}

// IsLegacy reports whether s belongs to the deprecated vocabulary.
func (s SnaggingStatus) IsLegacy() bool {
	_, ok := legacySnaggingStatus[s]
	return ok
}

// IsKnown reports whether s (after alias mapping) is a canonical status.
func (s SnaggingStatus) IsKnown() bool {
	_, ok := snaggingPermissions[s.Canonical()]
	return ok
}

var snaggingPermissions = permissions[SnaggingStatus]{
	SnaggingDraft: {
		RoleAdmin: {ActionEdit, ActionSend, ActionSchedule, ActionCancel},
	},
	SnaggingSentToOwner: {
		RoleAdmin: {ActionSchedule, ActionCancel},
		RoleOwner: {ActionAccept, ActionSign},
	},
	SnaggingAccepted: {
		RoleAdmin: {ActionDownloadPDF, ActionRegeneratePDF},
		RoleOwner: {ActionDownloadPDF},
	},
	SnaggingCancelled: {},
}

// Actions that keep the status (edit, schedule, sign, regenerate-pdf) map to
// themselves so the same table answers "is this legal here".
var snaggingTransitions = transitions[SnaggingStatus]{
	SnaggingDraft: {
		ActionEdit:     SnaggingDraft,
		ActionSchedule: SnaggingDraft,
		ActionSend:     SnaggingSentToOwner,
		ActionCancel:   SnaggingCancelled,
	},
	SnaggingSentToOwner: {
		ActionSchedule: SnaggingSentToOwner,
		ActionSign:     SnaggingSentToOwner,
		ActionAccept:   SnaggingAccepted,
		ActionCancel:   SnaggingCancelled,
	},
	SnaggingAccepted: {
		ActionRegeneratePDF: SnaggingAccepted,
	},
}

// SnaggingActions returns the actions role may take on a snagging in status.
func SnaggingActions(status SnaggingStatus, role Role) ActionSet {
	actions := snaggingPermissions.lookup(status.Canonical(), role)
	if status.IsLegacy() {
		return legacyActions(actions, role)
	}
	return actions
}

// NextSnaggingStatus returns the status reached by applying action to status.
func NextSnaggingStatus(status SnaggingStatus, action Action) (SnaggingStatus, error) {
	if status.IsLegacy() {
		return legacyNext(snaggingTransitions, status, status.Canonical(), action)
	}
	return snaggingTransitions.next(status, action)
}

// Priority is the urgency of a snagging report.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// EffectivePriority applies the creation rule: owners always get MEDIUM, admins
// get MEDIUM when they leave the priority empty.
func EffectivePriority(role Role, requested Priority) Priority {
	if role != RoleAdmin || requested == "" {
		return PriorityMedium
	}
	return requested
}
