package workflow

// RequestStatus is the lifecycle status of an owner request.
type RequestStatus string

const (
	RequestSubmitted RequestStatus = "SUBMITTED"
	RequestApproved  RequestStatus = "APPROVED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestExpired   RequestStatus = "EXPIRED"
	RequestCancelled RequestStatus = "CANCELLED"
)

// IsKnown reports whether s is a recognized request status.
func (s RequestStatus) IsKnown() bool {
	_, ok := requestPermissions[s]
	return ok
}

var requestPermissions = permissions[RequestStatus]{
	RequestSubmitted: {
		RoleAdmin: {ActionApprove, ActionReject, ActionCancel},
		RoleOwner: {ActionCancel},
	},
	RequestApproved: {
		RoleAdmin: {ActionRevoke, ActionDownloadPDF},
		RoleOwner: {ActionDownloadPDF},
	},
	RequestRejected:  {},
	RequestExpired:   {},
	RequestCancelled: {},
}

// Revocation lands in CANCELLED; the record keeps its revokedAt timestamp.
var requestTransitions = transitions[RequestStatus]{
	RequestSubmitted: {
		ActionApprove: RequestApproved,
		ActionReject:  RequestRejected,
		ActionCancel:  RequestCancelled,
	},
	RequestApproved: {
		ActionRevoke: RequestCancelled,
	},
}

// RequestActions returns the actions role may take on a request in status.
func RequestActions(status RequestStatus, role Role) ActionSet {
	return requestPermissions.lookup(status, role)
}

// NextRequestStatus returns the status reached by applying action to status.
func NextRequestStatus(status RequestStatus, action Action) (RequestStatus, error) {
	return requestTransitions.next(status, action)
}

// RequestType is the kind of permission an owner asks for.
type RequestType string

const (
	RequestGuestVisit         RequestType = "GUEST_VISIT"
	RequestWorkPermission     RequestType = "WORK_PERMISSION"
	RequestOwnershipTransfer  RequestType = "OWNERSHIP_TRANSFER"
	RequestTenantRegistration RequestType = "TENANT_REGISTRATION"
	RequestUnitModification   RequestType = "UNIT_MODIFICATION"
)

// IsValid reports whether t is a known request type.
func (t RequestType) IsValid() bool {
	switch t {
	case RequestGuestVisit, RequestWorkPermission, RequestOwnershipTransfer,
		RequestTenantRegistration, RequestUnitModification:
		return true
	}
	return false
}

// Label returns a human-readable name, e.g. "Guest visit".
func (t RequestType) Label() string {
	switch t {
	case RequestGuestVisit:
		return "Guest visit"
	case RequestWorkPermission:
		return "Work permission"
	case RequestOwnershipTransfer:
		return "Ownership transfer"
	case RequestTenantRegistration:
		return "Tenant registration"
	case RequestUnitModification:
		return "Unit modification"
	}
	return string(t)
}

// ExpiresMode controls how an approved request stops being valid.
type ExpiresMode string

const (
	ExpiresByDate ExpiresMode = "DATE"
	ExpiresByUses ExpiresMode = "USES"
	ExpiresNever  ExpiresMode = "UNLIMITED"
)

// IsValid reports whether m is a known expiry mode.
func (m ExpiresMode) IsValid() bool {
	switch m {
	case ExpiresByDate, ExpiresByUses, ExpiresNever:
		return true
	}
	return false
}
