package request

import (
	"fmt"
	"strings"

	"github.com/evcraddock/propdesk/internal/validate"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// Validate checks the type-specific rules go-playground tags cannot express.
// It is shared by the server and by client-side pre-flight.
func (in *CreateInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return err
	}

	fields := map[string]string{}
	if !in.Type.IsValid() {
		fields["type"] = fmt.Sprintf("unknown request type %q", in.Type)
	}

	if in.ExpiresMode == "" {
		in.ExpiresMode = workflow.ExpiresNever
	}
	switch in.ExpiresMode {
	case workflow.ExpiresByDate:
		if in.ExpiresAt == nil {
			fields["expiresAt"] = "is required when expiresMode is DATE"
		}
	case workflow.ExpiresByUses:
		if in.MaxUses == nil || *in.MaxUses <= 0 {
			fields["maxUses"] = "must be greater than 0 when expiresMode is USES"
		}
	case workflow.ExpiresNever:
	default:
		fields["expiresMode"] = "must be one of: DATE USES UNLIMITED"
	}

	if in.Type == workflow.RequestOwnershipTransfer {
		if len(in.TransferUnitIDs) == 0 {
			fields["transferUnitIds"] = "must list at least one unit"
		}
	} else if in.UnitID == "" {
		fields["unitId"] = "is required"
	}

	for _, key := range requiredPayload[in.Type] {
		v, ok := in.Payload[key]
		if s, isString := v.(string); !ok || v == nil || (isString && strings.TrimSpace(s) == "") {
			fields["payload."+key] = "is required"
		}
	}

	if len(fields) > 0 {
		return &validate.Error{Fields: fields}
	}
	return nil
}

// Units returns every unit the request concerns.
func (in *CreateInput) Units() []string {
	if in.Type == workflow.RequestOwnershipTransfer {
		return in.TransferUnitIDs
	}
	return []string{in.UnitID}
}
