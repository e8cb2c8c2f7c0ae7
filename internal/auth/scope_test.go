package auth

import "testing"

func TestScopeForGlobalRoles(t *testing.T) {
	for _, role := range []Role{RoleSuperadmin, RoleAdmin} {
		scope := ScopeFor(Identity{ID: "u", Role: role, DepartmentID: "dep-1"})
		if scope.Kind != ScopeGlobal {
			t.Fatalf("%s should resolve to global scope", role)
		}
		if !scope.Allows("dep-7") {
			t.Fatalf("global scope must allow any department")
		}
		if scope.Department() != "" {
			t.Fatalf("global scope must not filter reads")
		}
	}
}

func TestScopeForManagerBindsDepartment(t *testing.T) {
	scope := ScopeFor(Identity{ID: "u", Role: RoleManager, DepartmentID: "dep-5"})
	if scope.Kind != ScopeDepartment {
		t.Fatal("manager should resolve to department scope")
	}
	if !scope.Allows("dep-5") {
		t.Fatal("own department must be allowed")
	}
	if scope.Allows("dep-7") {
		t.Fatal("foreign department must be denied")
	}
	if scope.Department() != "dep-5" {
		t.Fatalf("read filter should be dep-5, got %q", scope.Department())
	}
}

func TestScopeAllowsUnboundEntities(t *testing.T) {
	scope := Scope{Kind: ScopeDepartment, DepartmentID: "dep-5"}
	if !scope.Allows("") {
		t.Fatal("entities without a department binding are global")
	}
}

func TestScopeWithoutDepartmentDeniesEverything(t *testing.T) {
	// A scoped role with no department binding must not leak other rows.
	scope := Scope{Kind: ScopeDepartment}
	if scope.Allows("dep-5") {
		t.Fatal("scope without department must deny bound entities")
	}
}
