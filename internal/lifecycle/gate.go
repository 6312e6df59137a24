package lifecycle

import (
	"fmt"

	"asset-custody-api/internal/models"
)

// Operation names an engine operation for authorization and metrics
type Operation string

const (
	OpCreateAsset       Operation = "create_asset"
	OpGetAsset          Operation = "get_asset"
	OpListAssets        Operation = "list_assets"
	OpUpdateAsset       Operation = "update_asset"
	OpDeleteAsset       Operation = "delete_asset"
	OpAssign            Operation = "assign"
	OpUnassign          Operation = "unassign"
	OpReturn            Operation = "return"
	OpSetMaintenance    Operation = "set_maintenance"
	OpRetire            Operation = "retire"
	OpRestore           Operation = "restore"
	OpCurrentHolderView Operation = "current_holder_view"
	OpHistoryView       Operation = "history_view"
	OpAssignedBetween   Operation = "assigned_between"
)

// Resource is what an operation acts on. HolderID is the holder on the
// asset's open assignment, when one exists.
type Resource struct {
	AssetID  string
	HolderID string
}

// adminOnly lists the operations reserved to the admin role
var adminOnly = map[Operation]bool{
	OpCreateAsset:       true,
	OpGetAsset:          true,
	OpListAssets:        true,
	OpUpdateAsset:       true,
	OpDeleteAsset:       true,
	OpAssign:            true,
	OpUnassign:          true,
	OpSetMaintenance:    true,
	OpRetire:            true,
	OpRestore:           true,
	OpCurrentHolderView: true,
	OpHistoryView:       true,
	OpAssignedBetween:   true,
}

// Authorize decides whether principal may perform op on res.
// It returns nil or an error wrapping models.ErrForbidden.
func Authorize(principal models.Principal, op Operation, res Resource) error {
	if principal.ID == "" || !models.IsValidRole(string(principal.Role)) {
		return fmt.Errorf("%w: unauthenticated caller", models.ErrForbidden)
	}

	if op == OpReturn {
		// Only the holder on the open record may return it, whatever the role
		if res.HolderID == "" || res.HolderID != principal.ID {
			return fmt.Errorf("%w: %s is not the current holder of asset %s", models.ErrForbidden, principal.ID, res.AssetID)
		}
		return nil
	}

	if !adminOnly[op] {
		return fmt.Errorf("%w: unknown operation %q", models.ErrForbidden, op)
	}
	if !principal.IsAdmin() {
		return fmt.Errorf("%w: %s requires the admin role", models.ErrForbidden, op)
	}
	return nil
}
