package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"zapchasti.org/internal/auth"
	"zapchasti.org/internal/orders"
)

const orderColumns = `id, customer_name, customer_phone, status, coalesce(department_id, ''), total, items, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (orders.Order, error) {
	var (
		o   orders.Order
		raw []byte
	)
	if err := row.Scan(&o.ID, &o.CustomerName, &o.CustomerPhone, &o.Status, &o.DepartmentID,
		&o.Total, &raw, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return orders.Order{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o.Items); err != nil {
			return orders.Order{}, fmt.Errorf("decode order items: %w", err)
		}
	}
	return o, nil
}

func (s *Store) CreateOrder(ctx context.Context, o orders.Order) (orders.Order, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return orders.Order{}, err
	}
	err = s.db.QueryRowContext(ctx, `
		insert into orders (id, customer_name, customer_phone, status, department_id, total, items)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning created_at, updated_at
	`, o.ID, o.CustomerName, o.CustomerPhone, string(o.Status), nullIfEmpty(o.DepartmentID), o.Total, items).
		Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, q orders.Query) ([]orders.Order, error) {
	var (
		where []string
		args  []any
	)
	if q.Status != "" {
		args = append(args, string(q.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if q.DepartmentID != "" {
		args = append(args, q.DepartmentID)
		where = append(where, fmt.Sprintf("department_id = $%d", len(args)))
	}
	query := `select ` + orderColumns + ` from orders`
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	args = append(args, q.Limit)
	query += fmt.Sprintf(" order by created_at desc limit $%d", len(args))
	args = append(args, q.Offset)
	query += fmt.Sprintf(" offset $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (s *Store) FindOrder(ctx context.Context, id string) (orders.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, `select `+orderColumns+` from orders where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, err
}

func (s *Store) UpdateOrderStatus(ctx context.Context, scope auth.Scope, id string, status orders.Status) (orders.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return orders.Order{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var dep sql.NullString
	err = tx.QueryRowContext(ctx, `select department_id from orders where id = $1 for update`, id).Scan(&dep)
	if errors.Is(err, sql.ErrNoRows) {
		return orders.Order{}, orders.ErrNotFound
	}
	if err != nil {
		return orders.Order{}, err
	}
	if !scope.Allows(dep.String) {
		return orders.Order{}, auth.ErrForbidden
	}

	if _, err := tx.ExecContext(ctx,
		`update orders set status = $1, updated_at = now() where id = $2`, string(status), id); err != nil {
		return orders.Order{}, err
	}
	o, err := scanOrder(tx.QueryRowContext(ctx, `select `+orderColumns+` from orders where id = $1`, id))
	if err != nil {
		return orders.Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

// CountOrdersByStatus powers the back-office dashboard. Retried on
// transient failures; the service layer degrades the result to zeros when
// the store still cannot answer.
func (s *Store) CountOrdersByStatus(ctx context.Context, scope auth.Scope) (map[orders.Status]int, error) {
	query := `select status, count(*) from orders`
	args := []any{}
	if dep := scope.Department(); dep != "" {
		args = append(args, dep)
		query += ` where department_id = $1`
	}
	query += ` group by status`

	counts := make(map[orders.Status]int, len(orders.Statuses))
	err := s.withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		clear(counts)
		for rows.Next() {
			var (
				status string
				n      int
			)
			if err := rows.Scan(&status, &n); err != nil {
				return err
			}
			counts[orders.Status(status)] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
