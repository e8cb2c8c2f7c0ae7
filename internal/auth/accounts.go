package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zapchasti.org/internal/ids"
)

// Accounts provides back-office user management on top of IdentityStore.
// Department scoping applies: a manager sees and mutates only identities
// bound to the manager's own department.
type Accounts struct {
	store IdentityStore
}

// NewAccounts constructs the account service.
func NewAccounts(store IdentityStore) (*Accounts, error) {
	if store == nil {
		return nil, errors.New("identity store is required")
	}
	return &Accounts{store: store}, nil
}

// Login checks phone+password and returns the active identity.
func (a *Accounts) Login(ctx context.Context, phone, password string) (Identity, error) {
	phone = normalizePhone(phone)
	if phone == "" {
		return Identity{}, fmt.Errorf("%w: phone is required", ErrInvalidInput)
	}
	if strings.TrimSpace(password) == "" {
		return Identity{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	id, err := a.store.FindIdentityByPhone(ctx, phone)
	if err != nil {
		return Identity{}, err
	}
	if id.Status != StatusActive {
		return Identity{}, ErrNotFound
	}
	if err := VerifyPassword(id.PasswordHash, password); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// AdminLogin is Login restricted to back-office roles.
func (a *Accounts) AdminLogin(ctx context.Context, phone, password string) (Identity, error) {
	id, err := a.store.FindIdentityByPhone(ctx, normalizePhone(phone))
	if err != nil {
		return Identity{}, err
	}
	if !id.Role.Admin() || id.Status != StatusActive {
		// Indistinguishable from an unknown phone on purpose.
		return Identity{}, ErrNotFound
	}
	if err := VerifyPassword(id.PasswordHash, password); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// Register creates a storefront customer account. Self-signup carries no
// back-office actor, so the store writes no audit entry for it.
func (a *Accounts) Register(ctx context.Context, phone, name, password string) (Identity, error) {
	id, err := buildIdentity(phone, name, password, RoleClient, "")
	if err != nil {
		return Identity{}, err
	}
	return a.store.CreateIdentity(ctx, "", id)
}

// Create adds an identity on behalf of an admin actor. Managers may only
// create identities inside their own department.
func (a *Accounts) Create(ctx context.Context, actor Identity, scope Scope, phone, name, password, role, departmentID string) (Identity, error) {
	parsedRole, err := ParseRole(role)
	if err != nil {
		return Identity{}, err
	}
	departmentID = strings.TrimSpace(departmentID)
	if parsedRole == RoleManager && departmentID == "" {
		return Identity{}, fmt.Errorf("%w: manager requires a department", ErrInvalidInput)
	}
	if !scope.Allows(departmentID) {
		return Identity{}, ErrForbidden
	}
	id, err := buildIdentity(phone, name, password, parsedRole, departmentID)
	if err != nil {
		return Identity{}, err
	}
	return a.store.CreateIdentity(ctx, actor.ID, id)
}

// List returns identities visible under the scope.
func (a *Accounts) List(ctx context.Context, scope Scope) ([]Identity, error) {
	return a.store.ListIdentities(ctx, scope)
}

// Get fetches one identity, applying the department scope.
func (a *Accounts) Get(ctx context.Context, scope Scope, id string) (Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Identity{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	found, err := a.store.FindIdentity(ctx, id)
	if err != nil {
		return Identity{}, err
	}
	if !scope.Allows(found.DepartmentID) {
		return Identity{}, ErrForbidden
	}
	return found, nil
}

// Update applies a partial mutation. The store enforces scope again inside
// the transaction and writes the audit entry with before/after snapshots.
func (a *Accounts) Update(ctx context.Context, actor Identity, scope Scope, id string, upd IdentityUpdate) (Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Identity{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if upd.Phone != nil {
		phone := normalizePhone(*upd.Phone)
		if phone == "" {
			return Identity{}, fmt.Errorf("%w: valid phone is required", ErrInvalidInput)
		}
		upd.Phone = &phone
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		upd.Name = &name
	}
	if upd.Password != nil {
		pw := strings.TrimSpace(*upd.Password)
		if pw == "" {
			return Identity{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
		}
		hash, err := HashPassword(pw)
		if err != nil {
			return Identity{}, err
		}
		upd.Password = &hash
	}
	if upd.Role != nil {
		role, err := ParseRole(string(*upd.Role))
		if err != nil {
			return Identity{}, err
		}
		upd.Role = &role
	}
	if upd.Status != nil {
		status := strings.TrimSpace(strings.ToLower(*upd.Status))
		if status != StatusActive && status != StatusDisabled {
			return Identity{}, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
		}
		upd.Status = &status
	}
	if upd.DepartmentID != nil {
		dep := strings.TrimSpace(*upd.DepartmentID)
		if !scope.Allows(dep) {
			return Identity{}, ErrForbidden
		}
		upd.DepartmentID = &dep
	}
	return a.store.UpdateIdentity(ctx, actor.ID, scope, id, upd)
}

// Disable soft-deletes an identity. Hard deletion is not supported.
func (a *Accounts) Disable(ctx context.Context, actor Identity, scope Scope, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if id == actor.ID {
		return fmt.Errorf("%w: cannot disable own account", ErrInvalidInput)
	}
	return a.store.DisableIdentity(ctx, actor.ID, scope, id)
}

func buildIdentity(phone, name, password string, role Role, departmentID string) (Identity, error) {
	phone = normalizePhone(phone)
	if phone == "" {
		return Identity{}, fmt.Errorf("%w: valid phone is required", ErrInvalidInput)
	}
	if strings.TrimSpace(password) == "" {
		return Identity{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := HashPassword(strings.TrimSpace(password))
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		ID:           ids.New(),
		Phone:        phone,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Role:         role,
		DepartmentID: departmentID,
		Status:       StatusActive,
	}, nil
}

// normalizePhone strips everything except digits; an empty or too-short
// result is treated as invalid by callers.
func normalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 10 {
		return ""
	}
	return digits
}
