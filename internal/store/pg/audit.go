package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"zapchasti.org/internal/audit"
	"zapchasti.org/internal/auth"
)

// querier is satisfied by *sql.DB and *sql.Tx; snapshots are taken inside
// the mutation transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func auditTable(entity audit.Entity) (string, error) {
	switch entity {
	case audit.EntityProduct:
		return "product_audit_log", nil
	case audit.EntityUser:
		return "user_audit_log", nil
	}
	return "", fmt.Errorf("%w: no audit table for entity %q", audit.ErrInvalidEntry, entity)
}

// appendAuditEntry persists one immutable entry. Called with the mutation
// transaction so the entry commits or rolls back with the mutation.
func appendAuditEntry(ctx context.Context, q querier, e audit.Entry) error {
	table, err := auditTable(e.Entity)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, fmt.Sprintf(`
		insert into %s (id, action, actor_id, target_id, department_id, before_snapshot, after_snapshot, message, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, table),
		e.ID, string(e.Action), e.ActorID, e.TargetID, nullIfEmpty(e.DepartmentID),
		nullableJSON(e.Before), nullableJSON(e.After), nullIfEmpty(e.Message), e.CreatedAt)
	return err
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// ListEntries returns recent audit entries, newest first, filtered to the
// caller's department under a scoped role.
func (s *Store) ListEntries(ctx context.Context, entity audit.Entity, scope auth.Scope, limit int) ([]audit.Entry, error) {
	table, err := auditTable(entity)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := fmt.Sprintf(`
		select id, action, actor_id, target_id, coalesce(department_id, ''), before_snapshot, after_snapshot, coalesce(message, ''), created_at
		from %s`, table)
	args := []any{}
	if dep := scope.Department(); dep != "" {
		query += ` where department_id = $1`
		args = append(args, dep)
	}
	query += fmt.Sprintf(` order by created_at desc limit $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []audit.Entry
	for rows.Next() {
		var (
			e      audit.Entry
			action string
			before sql.NullString
			after  sql.NullString
		)
		if err := rows.Scan(&e.ID, &action, &e.ActorID, &e.TargetID, &e.DepartmentID, &before, &after, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Entity = entity
		e.Action = audit.Action(action)
		if before.Valid {
			e.Before = []byte(before.String)
		}
		if after.Valid {
			e.After = []byte(after.String)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// productSnapshot captures the denormalized product state, resolving the
// category title and department name at write time.
func productSnapshot(ctx context.Context, q querier, id string) (audit.ProductSnapshot, error) {
	var snap audit.ProductSnapshot
	err := q.QueryRowContext(ctx, `
		select p.id, p.title, p.sku, coalesce(p.brand, ''), p.price, p.quantity,
		       coalesce(p.category_id, ''), coalesce(c.title, ''),
		       coalesce(p.department_id, ''), coalesce(d.name, '')
		from products p
		left join categories c on c.id = p.category_id
		left join departments d on d.id = p.department_id
		where p.id = $1
	`, id).Scan(&snap.ID, &snap.Title, &snap.SKU, &snap.Brand, &snap.Price, &snap.Quantity,
		&snap.CategoryID, &snap.CategoryTitle, &snap.DepartmentID, &snap.DepartmentName)
	if errors.Is(err, sql.ErrNoRows) {
		return audit.ProductSnapshot{}, sql.ErrNoRows
	}
	return snap, err
}

// userSnapshot captures the denormalized identity state. The password
// hash never enters the audit log.
func userSnapshot(ctx context.Context, q querier, id string) (audit.UserSnapshot, error) {
	var snap audit.UserSnapshot
	err := q.QueryRowContext(ctx, `
		select i.id, i.phone, coalesce(i.name, ''), i.role, i.status,
		       coalesce(i.department_id, ''), coalesce(d.name, '')
		from identities i
		left join departments d on d.id = i.department_id
		where i.id = $1
	`, id).Scan(&snap.ID, &snap.Phone, &snap.Name, &snap.Role, &snap.Status,
		&snap.DepartmentID, &snap.DepartmentName)
	if errors.Is(err, sql.ErrNoRows) {
		return audit.UserSnapshot{}, sql.ErrNoRows
	}
	return snap, err
}
