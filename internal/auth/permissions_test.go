package auth

import "testing"

func TestRolePermissionMatrix(t *testing.T) {
	allPerms := []Permission{
		PermViewProducts, PermEditProducts,
		PermEditCategories, PermEditFilters, PermEditDepartments,
		PermViewOrders, PermEditOrders,
		PermViewUsers, PermEditUsers,
		PermEditPromotions, PermEditServiceKits,
		PermViewAudit,
	}
	allRoles := []Role{RoleSuperadmin, RoleAdmin, RoleManager, RoleClient}

	for _, role := range allRoles {
		granted := make(map[Permission]bool)
		for _, p := range PermissionsForRole(role) {
			granted[p] = true
		}
		for _, perm := range allPerms {
			if got := RoleHasPermission(role, perm); got != granted[perm] {
				t.Fatalf("RoleHasPermission(%s, %s)=%v, inconsistent with PermissionsForRole", role, perm, got)
			}
		}
	}
}

func TestSuperadminHoldsEveryPermission(t *testing.T) {
	for perm := range rolePermissions[RoleAdmin] {
		if !RoleHasPermission(RoleSuperadmin, perm) {
			t.Fatalf("superadmin missing %s", perm)
		}
	}
	if !RoleHasPermission(RoleSuperadmin, PermEditDepartments) {
		t.Fatal("superadmin must manage departments")
	}
}

func TestClientHasNoAdminPermissions(t *testing.T) {
	if perms := PermissionsForRole(RoleClient); len(perms) != 0 {
		t.Fatalf("client role must have no permissions, got %v", perms)
	}
}

func TestManagerCannotManageUsersOrDepartments(t *testing.T) {
	for _, perm := range []Permission{PermEditUsers, PermViewUsers, PermEditDepartments, PermViewAudit} {
		if RoleHasPermission(RoleManager, perm) {
			t.Fatalf("manager must not hold %s", perm)
		}
	}
}

func TestUnknownRoleHasNoPermissions(t *testing.T) {
	if RoleHasPermission(Role("owner"), PermViewProducts) {
		t.Fatal("unknown role must never pass the permission check")
	}
}

func TestParseRole(t *testing.T) {
	if role, err := ParseRole(" Manager "); err != nil || role != RoleManager {
		t.Fatalf("ParseRole: %v %v", role, err)
	}
	if _, err := ParseRole("root"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
