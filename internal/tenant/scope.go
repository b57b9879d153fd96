package tenant

import (
	"fmt"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
)

// Operation classifies data access for the scope policy.
type Operation string

const (
	OpList   Operation = "list"
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"

	// OpDirectory covers the tenant directory and profile administration,
	// whose records are not owned by a single tenant.
	OpDirectory Operation = "directory"
)

// OperationFor maps a permission action to the data operation it performs.
// View maps to OpRead; list endpoints pass OpList explicitly.
func OperationFor(action auth.Action) Operation {
	switch action {
	case auth.ActionCreate:
		return OpCreate
	case auth.ActionEdit:
		return OpUpdate
	case auth.ActionDelete:
		return OpDelete
	default:
		return OpRead
	}
}

// RequireScope is the single policy deciding whether op may run under res.
//
// A resolved tenant always satisfies the policy. Without one, only an elevated
// caller that selected nothing may run OpList or OpDirectory, across all
// tenants. Every write and every single-record read needs a tenant. An explicit but unusable
// selection is never widened to all tenants.
func RequireScope(res Resolution, role auth.Role, op Operation) error {
	if res.HasTenant() {
		return nil
	}

	switch res.Reason {
	case ReasonInactive:
		return auth.NewAccessError(auth.ErrorTenantInactive, fmt.Errorf("tenant %s is inactive", res.Requested))
	case ReasonLookupFailed:
		return auth.NewAccessError(auth.ErrorUnknown, fmt.Errorf("resolve tenant %s: %w", res.Requested, res.Err))
	case ReasonNotSelected:
		if role.IsElevated() && (op == OpList || op == OpDirectory) {
			return nil
		}
		return auth.NewAccessError(auth.ErrorTenantRequired, fmt.Errorf("%s requires a selected tenant", op))
	case ReasonNotFound:
		return auth.NewAccessError(auth.ErrorTenantRequired, fmt.Errorf("tenant %s not found", res.Requested))
	default:
		return auth.NewAccessError(auth.ErrorTenantRequired, fmt.Errorf("no tenant assigned"))
	}
}

// Unscoped reports whether a request that passed RequireScope runs across all tenants.
func Unscoped(res Resolution, role auth.Role) bool {
	return !res.HasTenant() && role.IsElevated() && res.Reason == ReasonNotSelected
}
