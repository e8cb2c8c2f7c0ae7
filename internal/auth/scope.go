package auth

// ScopeKind distinguishes global from department-bound data visibility.
type ScopeKind string

const (
	ScopeGlobal     ScopeKind = "global"
	ScopeDepartment ScopeKind = "department"
)

// Scope is derived per request from the caller's role; it is never stored.
// A department scope restricts both read filtering and write guarding to
// the caller's own department.
type Scope struct {
	Kind         ScopeKind
	DepartmentID string
}

// GlobalScope acts on any department's data.
var GlobalScope = Scope{Kind: ScopeGlobal}

// ScopeFor computes the data-visibility boundary for an identity.
func ScopeFor(id Identity) Scope {
	if id.Role.Global() {
		return GlobalScope
	}
	return Scope{Kind: ScopeDepartment, DepartmentID: id.DepartmentID}
}

// Allows reports whether an entity bound to departmentID is visible and
// mutable under this scope. Entities without a department binding are
// global and pass any scope.
func (s Scope) Allows(departmentID string) bool {
	if s.Kind == ScopeGlobal {
		return true
	}
	if departmentID == "" {
		return true
	}
	return s.DepartmentID != "" && s.DepartmentID == departmentID
}

// Department returns the department filter for read queries: empty means
// unrestricted.
func (s Scope) Department() string {
	if s.Kind == ScopeGlobal {
		return ""
	}
	return s.DepartmentID
}
