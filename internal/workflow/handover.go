package workflow

// Handover lifecycle:
//
//	DRAFT ──send──► SENT_TO_OWNER ──accept──► ACCEPTED
//	  ▲                  │
//	  └─request-changes──┤
//	  │                  │
//	  └──────cancel──────┴──► CANCELLED
//
// ACCEPTED and CANCELLED are terminal.

// HandoverStatus is the lifecycle status of a handover.
type HandoverStatus string

const (
	HandoverDraft       HandoverStatus = "DRAFT"
	HandoverSentToOwner HandoverStatus = "SENT_TO_OWNER"
	HandoverAccepted    HandoverStatus = "ACCEPTED"
	HandoverCancelled   HandoverStatus = "CANCELLED"
)

const (
	// Deprecated aliases from the owner-confirm/admin-confirm flow. Records carrying
	// them are still readable; nothing writes them any more.
	HandoverOwnerConfirmed   HandoverStatus = "OWNER_CONFIRMED"
	HandoverChangesRequested HandoverStatus = "CHANGES_REQUESTED"
	HandoverAdminConfirmed   HandoverStatus = "ADMIN_CONFIRMED"
	HandoverCompleted        HandoverStatus = "COMPLETED"
)

var legacyHandoverStatus = map[HandoverStatus]HandoverStatus{
	HandoverOwnerConfirmed:   HandoverAccepted,
	HandoverAdminConfirmed:   HandoverAccepted,
	HandoverCompleted:        HandoverAccepted,
	HandoverChangesRequested: HandoverDraft,
}

// Canonical maps deprecated statuses onto the current vocabulary.
// Unknown values are returned unchanged.
func (s HandoverStatus) Canonical() HandoverStatus {
	if c, ok := legacyHandoverStatus[s]; ok {
		return c
	}
	return s
}

// IsLegacy reports whether s belongs to the deprecated vocabulary.
func (s HandoverStatus) IsLegacy() bool {
	_, ok := legacyHandoverStatus[s]
	return ok
}

// IsKnown reports whether s (after alias mapping) is a canonical status.
func (s HandoverStatus) IsKnown() bool {
	_, ok := handoverPermissions[s.Canonical()]
	return ok
}

// IsActive reports whether the handover still blocks a new one for its unit.
func (s HandoverStatus) IsActive() bool {
	return s.Canonical() != HandoverCancelled
}

// IsTerminal reports whether no further transitions are possible.
func (s HandoverStatus) IsTerminal() bool {
	c := s.Canonical()
	return c == HandoverAccepted || c == HandoverCancelled
}

var handoverPermissions = permissions[HandoverStatus]{
	HandoverDraft: {
		RoleAdmin: {ActionEdit, ActionSend, ActionCancel},
	},
	HandoverSentToOwner: {
		RoleAdmin: {ActionCancel},
		RoleOwner: {ActionAccept, ActionRequestChanges},
	},
	HandoverAccepted: {
		RoleAdmin: {ActionDownloadPDF},
		RoleOwner: {ActionDownloadPDF},
	},
	HandoverCancelled: {},
}

var handoverTransitions = transitions[HandoverStatus]{
	HandoverDraft: {
		ActionEdit:   HandoverDraft,
		ActionSend:   HandoverSentToOwner,
		ActionCancel: HandoverCancelled,
	},
	HandoverSentToOwner: {
		ActionAccept:         HandoverAccepted,
		ActionRequestChanges: HandoverDraft,
		ActionCancel:         HandoverCancelled,
	},
}

// HandoverActions returns the actions role may take on a handover in status.
// A legacy status only ever allows an admin cancel.
func HandoverActions(status HandoverStatus, role Role) ActionSet {
	actions := handoverPermissions.lookup(status.Canonical(), role)
	if status.IsLegacy() {
		return legacyActions(actions, role)
	}
	return actions
}

// NextHandoverStatus returns the status reached by applying action to status.
func NextHandoverStatus(status HandoverStatus, action Action) (HandoverStatus, error) {
	if status.IsLegacy() {
		return legacyNext(handoverTransitions, status, status.Canonical(), action)
	}
	return handoverTransitions.next(status, action)
}

// CanHandover reports whether role may take action on a handover in status.
func CanHandover(status HandoverStatus, role Role, action Action) bool {
	return HandoverActions(status, role).Has(action)
}
