package auth

// Permission is an atomic capability checked by the HTTP guard before a
// handler runs. The catalog is fixed at deploy time.
type Permission string

const (
	PermViewProducts    Permission = "view_products"
	PermEditProducts    Permission = "edit_products"
	PermEditCategories  Permission = "edit_categories"
	PermEditFilters     Permission = "edit_filters"
	PermEditDepartments Permission = "edit_departments"
	PermViewOrders      Permission = "view_orders"
	PermEditOrders      Permission = "edit_orders"
	PermViewUsers       Permission = "view_users"
	PermEditUsers       Permission = "edit_users"
	PermEditPromotions  Permission = "edit_promotions"
	PermEditServiceKits Permission = "edit_service_kits"
	PermViewAudit       Permission = "view_audit"
)

// rolePermissions is the static role -> capability mapping. Invariant for
// the process lifetime.
var rolePermissions = map[Role]map[Permission]struct{}{
	RoleSuperadmin: permSet(
		PermViewProducts, PermEditProducts,
		PermEditCategories, PermEditFilters, PermEditDepartments,
		PermViewOrders, PermEditOrders,
		PermViewUsers, PermEditUsers,
		PermEditPromotions, PermEditServiceKits,
		PermViewAudit,
	),
	RoleAdmin: permSet(
		PermViewProducts, PermEditProducts,
		PermEditCategories, PermEditFilters,
		PermViewOrders, PermEditOrders,
		PermViewUsers, PermEditUsers,
		PermEditPromotions, PermEditServiceKits,
		PermViewAudit,
	),
	RoleManager: permSet(
		PermViewProducts, PermEditProducts,
		PermViewOrders, PermEditOrders,
	),
	RoleClient: permSet(),
}

func permSet(perms ...Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// RoleHasPermission reports whether the role's fixed set contains perm.
func RoleHasPermission(role Role, perm Permission) bool {
	set, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = set[perm]
	return ok
}

// PermissionsForRole returns a copy of the role's capability set.
func PermissionsForRole(role Role) []Permission {
	set := rolePermissions[role]
	out := make([]Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}
