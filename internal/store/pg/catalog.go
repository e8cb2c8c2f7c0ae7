package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"zapchasti.org/internal/audit"
	"zapchasti.org/internal/auth"
	"zapchasti.org/internal/catalog"
)

// --- products ---

const productColumns = `id, title, sku, coalesce(brand, ''), coalesce(description, ''), price, quantity,
	coalesce(category_id, ''), coalesce(department_id, ''), created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Title, &p.SKU, &p.Brand, &p.Description, &p.Price, &p.Quantity,
		&p.CategoryID, &p.DepartmentID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) ListProducts(ctx context.Context, q catalog.ProductQuery) ([]catalog.Product, error) {
	var (
		where []string
		args  []any
	)
	if q.CategoryID != "" {
		args = append(args, q.CategoryID)
		where = append(where, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if q.DepartmentID != "" {
		args = append(args, q.DepartmentID)
		where = append(where, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		where = append(where, fmt.Sprintf("(title ilike $%d or sku ilike $%d)", len(args), len(args)))
	}
	query := `select ` + productColumns + ` from products`
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	args = append(args, q.Limit)
	query += fmt.Sprintf(" order by created_at desc limit $%d", len(args))
	args = append(args, q.Offset)
	query += fmt.Sprintf(" offset $%d", len(args))

	var result []catalog.Product
	err := s.withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		result = result[:0]
		for rows.Next() {
			p, err := scanProduct(rows)
			if err != nil {
				return err
			}
			result = append(result, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) FindProduct(ctx context.Context, id string) (catalog.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `select `+productColumns+` from products where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, err
}

func (s *Store) CreateProduct(ctx context.Context, actorID string, p catalog.Product) (catalog.Product, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return catalog.Product{}, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		insert into products (id, title, sku, brand, description, price, quantity, category_id, department_id)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning created_at, updated_at
	`, p.ID, p.Title, p.SKU, nullIfEmpty(p.Brand), nullIfEmpty(p.Description), p.Price, p.Quantity,
		nullIfEmpty(p.CategoryID), nullIfEmpty(p.DepartmentID)).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return catalog.Product{}, catalog.ErrConflict
			case pgErrForeignKeyViolation:
				return catalog.Product{}, fmt.Errorf("%w: unknown category or department", catalog.ErrInvalidInput)
			}
		}
		return catalog.Product{}, err
	}

	after, err := productSnapshot(ctx, tx, p.ID)
	if err != nil {
		return catalog.Product{}, err
	}
	entry, err := audit.NewEntry(audit.EntityProduct, audit.ActionCreate, actorID, p.ID, after.DepartmentID, nil, after, "")
	if err != nil {
		return catalog.Product{}, err
	}
	if err := appendAuditEntry(ctx, tx, entry); err != nil {
		return catalog.Product{}, err
	}
	if err := tx.Commit(); err != nil {
		return catalog.Product{}, err
	}
	audit.LogWritten(ctx, entry)
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, actorID string, scope auth.Scope, id string, upd catalog.ProductUpdate) (catalog.Product, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return catalog.Product{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var currentDep sql.NullString
	err = tx.QueryRowContext(ctx, `select department_id from products where id = $1 for update`, id).Scan(&currentDep)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Product{}, err
	}
	if !scope.Allows(currentDep.String) {
		return catalog.Product{}, auth.ErrForbidden
	}

	before, err := productSnapshot(ctx, tx, id)
	if err != nil {
		return catalog.Product{}, err
	}

	var (
		sets []string
		args []any
	)
	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Title != nil {
		appendSet("title", *upd.Title)
	}
	if upd.SKU != nil {
		appendSet("sku", *upd.SKU)
	}
	if upd.Brand != nil {
		appendSet("brand", nullIfEmpty(*upd.Brand))
	}
	if upd.Description != nil {
		appendSet("description", nullIfEmpty(*upd.Description))
	}
	if upd.Price != nil {
		appendSet("price", *upd.Price)
	}
	if upd.Quantity != nil {
		appendSet("quantity", *upd.Quantity)
	}
	if upd.CategoryID != nil {
		appendSet("category_id", nullIfEmpty(*upd.CategoryID))
	}
	if upd.DepartmentID != nil {
		appendSet("department_id", nullIfEmpty(*upd.DepartmentID))
	}
	if len(sets) == 0 {
		return catalog.Product{}, fmt.Errorf("%w: no fields to update", catalog.ErrInvalidInput)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)
	query := fmt.Sprintf(`update products set %s where id = $%d`, strings.Join(sets, ", "), len(args))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return catalog.Product{}, catalog.ErrConflict
			case pgErrForeignKeyViolation:
				return catalog.Product{}, fmt.Errorf("%w: unknown category or department", catalog.ErrInvalidInput)
			}
		}
		return catalog.Product{}, err
	}

	after, err := productSnapshot(ctx, tx, id)
	if err != nil {
		return catalog.Product{}, err
	}
	entry, err := audit.NewEntry(audit.EntityProduct, audit.ActionUpdate, actorID, id, after.DepartmentID, before, after, "")
	if err != nil {
		return catalog.Product{}, err
	}
	if err := appendAuditEntry(ctx, tx, entry); err != nil {
		return catalog.Product{}, err
	}

	p, err := scanProduct(tx.QueryRowContext(ctx, `select `+productColumns+` from products where id = $1`, id))
	if err != nil {
		return catalog.Product{}, err
	}
	if err := tx.Commit(); err != nil {
		return catalog.Product{}, err
	}
	audit.LogWritten(ctx, entry)
	return p, nil
}

// DeleteProducts removes a batch atomically. If any member is missing the
// whole batch fails with ErrNotFound; if any member is outside the
// caller's department scope the whole batch fails with ErrForbidden and
// no row is touched.
func (s *Store) DeleteProducts(ctx context.Context, actorID string, scope auth.Scope, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: product ids are required", catalog.ErrInvalidInput)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf(`select id from products where id in (%s) for update`, placeholders(1, len(ids))), args...)
	if err != nil {
		return err
	}
	found := make(map[string]struct{}, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		found[id] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(found) != len(ids) {
		return catalog.ErrNotFound
	}

	// Snapshot every member and verify scope before touching any row.
	entries := make([]audit.Entry, 0, len(ids))
	for _, id := range ids {
		before, err := productSnapshot(ctx, tx, id)
		if err != nil {
			return err
		}
		if !scope.Allows(before.DepartmentID) {
			return auth.ErrForbidden
		}
		entry, err := audit.NewEntry(audit.EntityProduct, audit.ActionDelete, actorID, id, before.DepartmentID, before, nil, "")
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`delete from products where id in (%s)`, placeholders(1, len(ids))), args...); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := appendAuditEntry(ctx, tx, entry); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	for _, entry := range entries {
		audit.LogWritten(ctx, entry)
	}
	return nil
}

// --- categories ---

const categoryColumns = `id, title, slug, coalesce(parent_id, ''), position, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (catalog.Category, error) {
	var c catalog.Category
	err := row.Scan(&c.ID, &c.Title, &c.Slug, &c.ParentID, &c.Position, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *Store) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := s.db.QueryContext(ctx, `select `+categoryColumns+` from categories order by position, title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []catalog.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *Store) FindCategory(ctx context.Context, id string) (catalog.Category, error) {
	c, err := scanCategory(s.db.QueryRowContext(ctx, `select `+categoryColumns+` from categories where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Category{}, catalog.ErrNotFound
	}
	return c, err
}

func (s *Store) CreateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error) {
	err := s.db.QueryRowContext(ctx, `
		insert into categories (id, title, slug, parent_id, position)
		values ($1, $2, $3, $4, $5)
		returning created_at, updated_at
	`, c.ID, c.Title, c.Slug, nullIfEmpty(c.ParentID), c.Position).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return catalog.Category{}, catalog.ErrConflict
		}
		return catalog.Category{}, err
	}
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, id string, upd catalog.CategoryUpdate) (catalog.Category, error) {
	var (
		sets []string
		args []any
	)
	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Title != nil {
		appendSet("title", *upd.Title)
	}
	if upd.Slug != nil {
		appendSet("slug", *upd.Slug)
	}
	if upd.ParentID != nil {
		appendSet("parent_id", nullIfEmpty(*upd.ParentID))
	}
	if upd.Position != nil {
		appendSet("position", *upd.Position)
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		args = append(args, id)
		query := fmt.Sprintf(`update categories set %s where id = $%d`, strings.Join(sets, ", "), len(args))
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return catalog.Category{}, catalog.ErrConflict
			}
			return catalog.Category{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return catalog.Category{}, err
		}
		if aff == 0 {
			return catalog.Category{}, catalog.ErrNotFound
		}
	}
	return s.FindCategory(ctx, id)
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from categories where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// --- filters ---

func (s *Store) ListFilters(ctx context.Context, categoryID string) ([]catalog.Filter, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, category_id, name, "values", created_at, updated_at
		from filters where category_id = $1 order by name
	`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []catalog.Filter
	for rows.Next() {
		f, err := scanFilter(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func scanFilter(row interface{ Scan(...any) error }) (catalog.Filter, error) {
	var (
		f   catalog.Filter
		raw []byte
	)
	if err := row.Scan(&f.ID, &f.CategoryID, &f.Name, &raw, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return catalog.Filter{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &f.Values); err != nil {
			return catalog.Filter{}, fmt.Errorf("decode filter values: %w", err)
		}
	}
	return f, nil
}

func (s *Store) CreateFilter(ctx context.Context, f catalog.Filter) (catalog.Filter, error) {
	values, err := json.Marshal(f.Values)
	if err != nil {
		return catalog.Filter{}, err
	}
	err = s.db.QueryRowContext(ctx, `
		insert into filters (id, category_id, name, "values")
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, f.ID, f.CategoryID, f.Name, values).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return catalog.Filter{}, catalog.ErrNotFound
		}
		return catalog.Filter{}, err
	}
	return f, nil
}

func (s *Store) UpdateFilter(ctx context.Context, id string, upd catalog.FilterUpdate) (catalog.Filter, error) {
	var (
		sets []string
		args []any
	)
	if upd.Name != nil {
		args = append(args, *upd.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if upd.Values != nil {
		values, err := json.Marshal(*upd.Values)
		if err != nil {
			return catalog.Filter{}, err
		}
		args = append(args, values)
		sets = append(sets, fmt.Sprintf(`"values" = $%d`, len(args)))
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		args = append(args, id)
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`update filters set %s where id = $%d`, strings.Join(sets, ", "), len(args)), args...)
		if err != nil {
			return catalog.Filter{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return catalog.Filter{}, err
		}
		if aff == 0 {
			return catalog.Filter{}, catalog.ErrNotFound
		}
	}
	f, err := scanFilter(s.db.QueryRowContext(ctx, `
		select id, category_id, name, "values", created_at, updated_at from filters where id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Filter{}, catalog.ErrNotFound
	}
	return f, err
}

func (s *Store) DeleteFilter(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from filters where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// --- departments ---

const departmentColumns = `id, name, coalesce(city, ''), coalesce(address, ''), coalesce(phone, ''), created_at, updated_at`

func scanDepartment(row interface{ Scan(...any) error }) (catalog.Department, error) {
	var d catalog.Department
	err := row.Scan(&d.ID, &d.Name, &d.City, &d.Address, &d.Phone, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (s *Store) ListDepartments(ctx context.Context) ([]catalog.Department, error) {
	rows, err := s.db.QueryContext(ctx, `select `+departmentColumns+` from departments order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []catalog.Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Store) FindDepartment(ctx context.Context, id string) (catalog.Department, error) {
	d, err := scanDepartment(s.db.QueryRowContext(ctx, `select `+departmentColumns+` from departments where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Department{}, catalog.ErrNotFound
	}
	return d, err
}

func (s *Store) CreateDepartment(ctx context.Context, d catalog.Department) (catalog.Department, error) {
	err := s.db.QueryRowContext(ctx, `
		insert into departments (id, name, city, address, phone)
		values ($1, $2, $3, $4, $5)
		returning created_at, updated_at
	`, d.ID, d.Name, nullIfEmpty(d.City), nullIfEmpty(d.Address), nullIfEmpty(d.Phone)).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return catalog.Department{}, catalog.ErrConflict
		}
		return catalog.Department{}, err
	}
	return d, nil
}

func (s *Store) UpdateDepartment(ctx context.Context, id string, upd catalog.DepartmentUpdate) (catalog.Department, error) {
	var (
		sets []string
		args []any
	)
	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Name != nil {
		appendSet("name", *upd.Name)
	}
	if upd.City != nil {
		appendSet("city", nullIfEmpty(*upd.City))
	}
	if upd.Address != nil {
		appendSet("address", nullIfEmpty(*upd.Address))
	}
	if upd.Phone != nil {
		appendSet("phone", nullIfEmpty(*upd.Phone))
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		args = append(args, id)
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`update departments set %s where id = $%d`, strings.Join(sets, ", "), len(args)), args...)
		if err != nil {
			return catalog.Department{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return catalog.Department{}, err
		}
		if aff == 0 {
			return catalog.Department{}, catalog.ErrNotFound
		}
	}
	return s.FindDepartment(ctx, id)
}

func (s *Store) DeleteDepartment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from departments where id = $1`, id)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("%w: department still referenced", catalog.ErrConflict)
		}
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// --- promotions ---

const promotionColumns = `id, title, coalesce(body, ''), starts_at, ends_at, active, created_at, updated_at`

func scanPromotion(row interface{ Scan(...any) error }) (catalog.Promotion, error) {
	var p catalog.Promotion
	err := row.Scan(&p.ID, &p.Title, &p.Body, &p.StartsAt, &p.EndsAt, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) ListPromotions(ctx context.Context, activeOnly bool, now time.Time) ([]catalog.Promotion, error) {
	query := `select ` + promotionColumns + ` from promotions`
	args := []any{}
	if activeOnly {
		args = append(args, now)
		query += ` where active and starts_at <= $1 and ends_at >= $1`
	}
	query += ` order by starts_at desc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []catalog.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) CreatePromotion(ctx context.Context, p catalog.Promotion) (catalog.Promotion, error) {
	err := s.db.QueryRowContext(ctx, `
		insert into promotions (id, title, body, starts_at, ends_at, active)
		values ($1, $2, $3, $4, $5, $6)
		returning created_at, updated_at
	`, p.ID, p.Title, nullIfEmpty(p.Body), p.StartsAt, p.EndsAt, p.Active).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return catalog.Promotion{}, err
	}
	return p, nil
}

func (s *Store) UpdatePromotion(ctx context.Context, id string, upd catalog.PromotionUpdate) (catalog.Promotion, error) {
	var (
		sets []string
		args []any
	)
	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Title != nil {
		appendSet("title", *upd.Title)
	}
	if upd.Body != nil {
		appendSet("body", nullIfEmpty(*upd.Body))
	}
	if upd.StartsAt != nil {
		appendSet("starts_at", *upd.StartsAt)
	}
	if upd.EndsAt != nil {
		appendSet("ends_at", *upd.EndsAt)
	}
	if upd.Active != nil {
		appendSet("active", *upd.Active)
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		args = append(args, id)
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`update promotions set %s where id = $%d`, strings.Join(sets, ", "), len(args)), args...)
		if err != nil {
			return catalog.Promotion{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return catalog.Promotion{}, err
		}
		if aff == 0 {
			return catalog.Promotion{}, catalog.ErrNotFound
		}
	}
	p, err := scanPromotion(s.db.QueryRowContext(ctx, `select `+promotionColumns+` from promotions where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Promotion{}, catalog.ErrNotFound
	}
	return p, err
}

func (s *Store) DeletePromotion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from promotions where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// --- service kits ---

func scanServiceKit(row interface{ Scan(...any) error }) (catalog.ServiceKit, error) {
	var (
		k   catalog.ServiceKit
		raw []byte
	)
	if err := row.Scan(&k.ID, &k.Title, &k.Vehicle, &k.Description, &k.Price, &raw, &k.CreatedAt, &k.UpdatedAt); err != nil {
		return catalog.ServiceKit{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &k.Parts); err != nil {
			return catalog.ServiceKit{}, fmt.Errorf("decode kit parts: %w", err)
		}
	}
	return k, nil
}

const serviceKitColumns = `id, title, coalesce(vehicle, ''), coalesce(description, ''), price, parts, created_at, updated_at`

func (s *Store) ListServiceKits(ctx context.Context) ([]catalog.ServiceKit, error) {
	rows, err := s.db.QueryContext(ctx, `select `+serviceKitColumns+` from service_kits order by title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []catalog.ServiceKit
	for rows.Next() {
		k, err := scanServiceKit(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, k)
	}
	return result, rows.Err()
}

func (s *Store) FindServiceKit(ctx context.Context, id string) (catalog.ServiceKit, error) {
	k, err := scanServiceKit(s.db.QueryRowContext(ctx, `select `+serviceKitColumns+` from service_kits where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.ServiceKit{}, catalog.ErrNotFound
	}
	return k, err
}

func (s *Store) CreateServiceKit(ctx context.Context, k catalog.ServiceKit) (catalog.ServiceKit, error) {
	parts, err := json.Marshal(k.Parts)
	if err != nil {
		return catalog.ServiceKit{}, err
	}
	err = s.db.QueryRowContext(ctx, `
		insert into service_kits (id, title, vehicle, description, price, parts)
		values ($1, $2, $3, $4, $5, $6)
		returning created_at, updated_at
	`, k.ID, k.Title, nullIfEmpty(k.Vehicle), nullIfEmpty(k.Description), k.Price, parts).Scan(&k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return catalog.ServiceKit{}, err
	}
	return k, nil
}

func (s *Store) UpdateServiceKit(ctx context.Context, id string, upd catalog.ServiceKitUpdate) (catalog.ServiceKit, error) {
	var (
		sets []string
		args []any
	)
	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Title != nil {
		appendSet("title", *upd.Title)
	}
	if upd.Vehicle != nil {
		appendSet("vehicle", nullIfEmpty(*upd.Vehicle))
	}
	if upd.Description != nil {
		appendSet("description", nullIfEmpty(*upd.Description))
	}
	if upd.Price != nil {
		appendSet("price", *upd.Price)
	}
	if upd.Parts != nil {
		parts, err := json.Marshal(*upd.Parts)
		if err != nil {
			return catalog.ServiceKit{}, err
		}
		appendSet("parts", parts)
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		args = append(args, id)
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`update service_kits set %s where id = $%d`, strings.Join(sets, ", "), len(args)), args...)
		if err != nil {
			return catalog.ServiceKit{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return catalog.ServiceKit{}, err
		}
		if aff == 0 {
			return catalog.ServiceKit{}, catalog.ErrNotFound
		}
	}
	return s.FindServiceKit(ctx, id)
}

func (s *Store) DeleteServiceKit(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from service_kits where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return catalog.ErrNotFound
	}
	return nil
}
