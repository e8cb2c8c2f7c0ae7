package auth

import (
	"context"
	"time"
)

const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// Identity is an authenticated actor: a storefront customer or a
// back-office employee. DepartmentID is set only for department-scoped
// roles. Identities are never hard-deleted, only disabled.
type Identity struct {
	ID           string    `json:"id"`
	Phone        string    `json:"phone"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	DepartmentID string    `json:"department_id,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IdentityUpdate carries partial mutations; nil fields stay untouched.
type IdentityUpdate struct {
	Phone        *string
	Name         *string
	Password     *string
	Role         *Role
	DepartmentID *string
	Status       *string
}

// IdentityStore is the persistence contract for identities. The pg store
// writes the user audit entry inside the same transaction as the mutation.
type IdentityStore interface {
	CreateIdentity(ctx context.Context, actorID string, id Identity) (Identity, error)
	FindIdentity(ctx context.Context, id string) (Identity, error)
	FindIdentityByPhone(ctx context.Context, phone string) (Identity, error)
	ListIdentities(ctx context.Context, scope Scope) ([]Identity, error)
	UpdateIdentity(ctx context.Context, actorID string, scope Scope, id string, upd IdentityUpdate) (Identity, error)
	DisableIdentity(ctx context.Context, actorID string, scope Scope, id string) error
}
