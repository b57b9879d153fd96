package auth

import "sort"

// Evaluator answers permission questions against a Matrix.
// All methods are pure and safe for concurrent use.
type Evaluator struct {
	matrix *Matrix
}

// NewEvaluator creates an evaluator over the given matrix.
func NewEvaluator(matrix *Matrix) *Evaluator {
	return &Evaluator{matrix: matrix}
}

// Authorize reports whether role may perform action on section.
//
// Elevated roles are allowed before the matrix is consulted. For every other role
// a missing section or action is a deny, and a role without entries behaves
// exactly like an unknown role.
func (e *Evaluator) Authorize(role Role, section Section, action Action) bool {
	if role.IsElevated() {
		return true
	}
	if !role.Valid() {
		return false
	}
	return e.matrix.Lookup(role, section, action)
}

// AuthorizeWithTenant is Authorize plus tenant isolation: the resource tenant must
// equal the caller's effective tenant even when the permission bit is set.
//
// An elevated caller with no selected tenant (callerTenant == "") is operating
// in unscoped mode and is not tenant-restricted here; whether that mode is
// permitted for the operation is decided by the tenant scope policy.
func (e *Evaluator) AuthorizeWithTenant(role Role, callerTenant, resourceTenant string, section Section, action Action) bool {
	if !e.Authorize(role, section, action) {
		return false
	}
	if role.IsElevated() && callerTenant == "" {
		return true
	}
	if callerTenant == "" || resourceTenant == "" {
		return false
	}
	return callerTenant == resourceTenant
}

// AuthorizeClient is the advisory check used to shape UI affordances.
// It gives the same answer as Authorize; callers must never treat it as enforcement.
func (e *Evaluator) AuthorizeClient(role Role, section Section, action Action) bool {
	return e.Authorize(role, section, action)
}

// Permissions returns every allowed action per section for role, for UI rendering.
// Elevated roles receive every known section and action.
func (e *Evaluator) Permissions(role Role) map[Section][]Action {
	out := make(map[Section][]Action)
	if role.IsElevated() {
		for section := range knownSections {
			out[section] = allActions()
		}
		return out
	}
	for _, section := range e.matrix.Sections(role) {
		for _, action := range allActions() {
			if e.matrix.Lookup(role, section, action) {
				out[section] = append(out[section], action)
			}
		}
	}
	return out
}

func allActions() []Action {
	actions := make([]Action, 0, len(knownActions))
	for a := range knownActions {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}
