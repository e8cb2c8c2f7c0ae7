package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"zapchasti.org/internal/audit"
	"zapchasti.org/internal/auth"
)

const identityColumns = `id, phone, name, password_hash, role, coalesce(department_id, ''), status, created_at, updated_at`

func scanIdentity(row interface{ Scan(...any) error }) (auth.Identity, error) {
	var id auth.Identity
	err := row.Scan(&id.ID, &id.Phone, &id.Name, &id.PasswordHash, &id.Role,
		&id.DepartmentID, &id.Status, &id.CreatedAt, &id.UpdatedAt)
	return id, err
}

func (s *Store) CreateIdentity(ctx context.Context, actorID string, id auth.Identity) (auth.Identity, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.Identity{}, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		insert into identities (id, phone, name, password_hash, role, department_id, status)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning created_at, updated_at
	`, id.ID, id.Phone, id.Name, id.PasswordHash, string(id.Role), nullIfEmpty(id.DepartmentID), id.Status).
		Scan(&id.CreatedAt, &id.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.Identity{}, auth.ErrConflict
			case pgErrForeignKeyViolation:
				return auth.Identity{}, fmt.Errorf("%w: unknown department", auth.ErrInvalidInput)
			}
		}
		return auth.Identity{}, err
	}

	// Self-signup has no back-office actor; only staff-made accounts are
	// audited.
	var entry audit.Entry
	if actorID != "" {
		after, err := userSnapshot(ctx, tx, id.ID)
		if err != nil {
			return auth.Identity{}, err
		}
		entry, err = audit.NewEntry(audit.EntityUser, audit.ActionCreate, actorID, id.ID, after.DepartmentID, nil, after, "")
		if err != nil {
			return auth.Identity{}, err
		}
		if err := appendAuditEntry(ctx, tx, entry); err != nil {
			return auth.Identity{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return auth.Identity{}, err
	}
	if actorID != "" {
		audit.LogWritten(ctx, entry)
	}
	return id, nil
}

// FindIdentity sits on the authentication path of every guarded request,
// so a transient fault here is retried rather than bounced to the caller.
func (s *Store) FindIdentity(ctx context.Context, id string) (auth.Identity, error) {
	var found auth.Identity
	err := s.withRetry(ctx, func() error {
		var scanErr error
		found, scanErr = scanIdentity(s.db.QueryRowContext(ctx, `select `+identityColumns+` from identities where id = $1`, id))
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Identity{}, auth.ErrNotFound
	}
	return found, err
}

func (s *Store) FindIdentityByPhone(ctx context.Context, phone string) (auth.Identity, error) {
	found, err := scanIdentity(s.db.QueryRowContext(ctx, `select `+identityColumns+` from identities where phone = $1`, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Identity{}, auth.ErrNotFound
	}
	return found, err
}

func (s *Store) ListIdentities(ctx context.Context, scope auth.Scope) ([]auth.Identity, error) {
	query := `select ` + identityColumns + ` from identities`
	args := []any{}
	if dep := scope.Department(); dep != "" {
		args = append(args, dep)
		query += ` where department_id = $1`
	}
	query += ` order by created_at desc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []auth.Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	return result, rows.Err()
}

func (s *Store) UpdateIdentity(ctx context.Context, actorID string, scope auth.Scope, id string, upd auth.IdentityUpdate) (auth.Identity, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.Identity{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var currentDep sql.NullString
	err = tx.QueryRowContext(ctx, `select department_id from identities where id = $1 for update`, id).Scan(&currentDep)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Identity{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Identity{}, err
	}
	if !scope.Allows(currentDep.String) {
		return auth.Identity{}, auth.ErrForbidden
	}

	before, err := userSnapshot(ctx, tx, id)
	if err != nil {
		return auth.Identity{}, err
	}

	var (
		sets []string
		args []any
	)
	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Phone != nil {
		appendSet("phone", *upd.Phone)
	}
	if upd.Name != nil {
		appendSet("name", *upd.Name)
	}
	if upd.Password != nil {
		appendSet("password_hash", *upd.Password)
	}
	if upd.Role != nil {
		appendSet("role", string(*upd.Role))
	}
	if upd.DepartmentID != nil {
		appendSet("department_id", nullIfEmpty(*upd.DepartmentID))
	}
	if upd.Status != nil {
		appendSet("status", *upd.Status)
	}
	if len(sets) == 0 {
		return auth.Identity{}, fmt.Errorf("%w: no fields to update", auth.ErrInvalidInput)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)
	query := fmt.Sprintf(`update identities set %s where id = $%d`, strings.Join(sets, ", "), len(args))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.Identity{}, auth.ErrConflict
			case pgErrForeignKeyViolation:
				return auth.Identity{}, fmt.Errorf("%w: unknown department", auth.ErrInvalidInput)
			}
		}
		return auth.Identity{}, err
	}

	after, err := userSnapshot(ctx, tx, id)
	if err != nil {
		return auth.Identity{}, err
	}
	entry, err := audit.NewEntry(audit.EntityUser, audit.ActionUpdate, actorID, id, after.DepartmentID, before, after, "")
	if err != nil {
		return auth.Identity{}, err
	}
	if err := appendAuditEntry(ctx, tx, entry); err != nil {
		return auth.Identity{}, err
	}

	updated, err := scanIdentity(tx.QueryRowContext(ctx, `select `+identityColumns+` from identities where id = $1`, id))
	if err != nil {
		return auth.Identity{}, err
	}
	if err := tx.Commit(); err != nil {
		return auth.Identity{}, err
	}
	audit.LogWritten(ctx, entry)
	return updated, nil
}

// DisableIdentity is the soft delete: the row stays, the account can no
// longer log in. Audited as a delete with the pre-disable snapshot.
func (s *Store) DisableIdentity(ctx context.Context, actorID string, scope auth.Scope, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var currentDep sql.NullString
	err = tx.QueryRowContext(ctx, `select department_id from identities where id = $1 for update`, id).Scan(&currentDep)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound
	}
	if err != nil {
		return err
	}
	if !scope.Allows(currentDep.String) {
		return auth.ErrForbidden
	}

	before, err := userSnapshot(ctx, tx, id)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`update identities set status = $1, updated_at = now() where id = $2`, auth.StatusDisabled, id); err != nil {
		return err
	}
	entry, err := audit.NewEntry(audit.EntityUser, audit.ActionDelete, actorID, id, before.DepartmentID, before, nil, "account disabled")
	if err != nil {
		return err
	}
	if err := appendAuditEntry(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	audit.LogWritten(ctx, entry)
	return nil
}
