package rbac

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tripdesk/tripdesk/internal/platform/db"
)

var (
	// ErrNotFound indicates that the requested record does not exist or is soft-deleted.
	ErrNotFound = errors.New("rbac: not found")
	// ErrDuplicateSlug indicates a role slug uniqueness violation surfaced by the store.
	ErrDuplicateSlug = errors.New("rbac: duplicate slug")
	// ErrDuplicate indicates some other uniqueness violation surfaced by the store.
	ErrDuplicate = errors.New("rbac: duplicate entry")
)

// Repository defines persistence operations for the RBAC core. Reads exclude
// soft-deleted rows unless stated otherwise; the replace operations run inside
// a single transaction so no reader observes a half-updated grant set.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	ListActivePermissions(ctx context.Context) ([]Permission, error)
	PermissionsByCodes(ctx context.Context, codes []string) ([]Permission, error)
	UpsertPermission(ctx context.Context, seed PermissionSeed) (Permission, error)

	ListActiveRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64, includeDeleted bool) (Role, error)
	RolesBySlugs(ctx context.Context, slugs []string) ([]Role, error)
	SlugTaken(ctx context.Context, slug string, excludeID int64) (bool, error)
	CreateRole(ctx context.Context, name, slug, description string) (Role, error)
	UpdateRole(ctx context.Context, id int64, name, slug, description string) (Role, error)
	SoftDeleteRole(ctx context.Context, id int64) error
	RestoreRole(ctx context.Context, id int64) error
	HardDeleteRole(ctx context.Context, id int64) error

	RolePermissionCodes(ctx context.Context, roleID int64) ([]string, error)
	CodesByRoleIDs(ctx context.Context, roleIDs []int64) (map[int64][]string, error)
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error

	UserRoles(ctx context.Context, userID int64) ([]Role, error)
	ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64, assignedBy int64) error
	UserPermissionCodes(ctx context.Context, userID int64) ([]string, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

// WithTx runs fn against a repository bound to a single transaction. A
// repository already inside a transaction reuses it rather than nesting.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if _, ok := r.db.(pgx.Tx); ok {
		return fn(ctx, r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const permissionColumns = `id, uuid, code, module, action, description, created_at, updated_at, is_deleted, deleted_at`

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.UUID, &p.Code, &p.Module, &p.Action, &p.Description, &p.CreatedAt, &p.UpdatedAt, &p.IsDeleted, &p.DeletedAt)
	return p, err
}

func (r *repository) ListActivePermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.db.Query(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE is_deleted = FALSE ORDER BY module, action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (r *repository) PermissionsByCodes(ctx context.Context, codes []string) ([]Permission, error) {
	rows, err := r.db.Query(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE code = ANY($1) AND is_deleted = FALSE`, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// UpsertPermission inserts or refreshes a catalog entry keyed by code.
// Reseeding restores a soft-deleted entry instead of duplicating it.
func (r *repository) UpsertPermission(ctx context.Context, seed PermissionSeed) (Permission, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO permissions (code, module, action, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE
		SET module = EXCLUDED.module, action = EXCLUDED.action, description = EXCLUDED.description,
		    is_deleted = FALSE, deleted_at = NULL, updated_at = NOW()
		RETURNING `+permissionColumns,
		seed.Code, seed.Module, seed.Action, seed.Description)
	return scanPermission(row)
}

const roleColumns = `id, uuid, name, slug, description, created_at, updated_at, is_deleted, deleted_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.UUID, &role.Name, &role.Slug, &role.Description, &role.CreatedAt, &role.UpdatedAt, &role.IsDeleted, &role.DeletedAt)
	return role, err
}

func (r *repository) collectRoles(rows pgx.Rows) ([]Role, error) {
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *repository) ListActiveRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.db.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE is_deleted = FALSE ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return r.collectRoles(rows)
}

func (r *repository) GetRole(ctx context.Context, id int64, includeDeleted bool) (Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE id = $1`
	if !includeDeleted {
		query += ` AND is_deleted = FALSE`
	}
	role, err := scanRole(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

func (r *repository) RolesBySlugs(ctx context.Context, slugs []string) ([]Role, error) {
	rows, err := r.db.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE slug = ANY($1) AND is_deleted = FALSE`, slugs)
	if err != nil {
		return nil, err
	}
	return r.collectRoles(rows)
}

// SlugTaken reports whether an active role other than excludeID already holds
// the slug under case-insensitive comparison. This pre-check only exists to
// produce a friendly validation error; the partial unique index on
// LOWER(slug) is the actual correctness guard.
func (r *repository) SlugTaken(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM roles WHERE LOWER(slug) = LOWER($1) AND is_deleted = FALSE AND id <> $2)`, slug, excludeID).Scan(&taken)
	return taken, err
}

func (r *repository) CreateRole(ctx context.Context, name, slug, description string) (Role, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO roles (name, slug, description)
		VALUES ($1, $2, $3)
		RETURNING `+roleColumns,
		name, slug, description)
	role, err := scanRole(row)
	if err != nil {
		return Role{}, translateUnique(err)
	}
	return role, nil
}

func (r *repository) UpdateRole(ctx context.Context, id int64, name, slug, description string) (Role, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE roles SET name = $2, slug = $3, description = $4, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE
		RETURNING `+roleColumns,
		id, name, slug, description)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, translateUnique(err)
	}
	return role, nil
}

func (r *repository) SoftDeleteRole(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE roles SET is_deleted = TRUE, deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) RestoreRole(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE roles SET is_deleted = FALSE, deleted_at = NULL, updated_at = NOW() WHERE id = $1 AND is_deleted = TRUE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// HardDeleteRole physically removes the role and, via FK cascade, its grant
// and assignment rows. Irreversible.
func (r *repository) HardDeleteRole(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) RolePermissionCodes(ctx context.Context, roleID int64) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.code
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id AND p.is_deleted = FALSE
		WHERE rp.role_id = $1
		ORDER BY p.code`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStrings(rows)
}

func (r *repository) CodesByRoleIDs(ctx context.Context, roleIDs []int64) (map[int64][]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT rp.role_id, p.code
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id AND p.is_deleted = FALSE
		WHERE rp.role_id = ANY($1)
		ORDER BY p.code`, roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	codes := make(map[int64][]string, len(roleIDs))
	for rows.Next() {
		var roleID int64
		var code string
		if err := rows.Scan(&roleID, &code); err != nil {
			return nil, err
		}
		codes[roleID] = append(codes[roleID], code)
	}
	return codes, rows.Err()
}

// ReplaceRolePermissions swaps the role's entire grant set inside one
// transaction. Join rows are physically removed: with full-replace semantics
// a tombstoned grant row carries no information the audit log does not.
func (r *repository) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return r.WithTx(ctx, func(ctx context.Context, txRepo Repository) error {
		tx := txRepo.(*repository)
		if _, err := tx.db.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		if len(permissionIDs) == 0 {
			return nil
		}
		_, err := tx.db.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT $1, unnest($2::bigint[])`, roleID, permissionIDs)
		return translateUnique(err)
	})
}

func (r *repository) UserRoles(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := r.db.Query(ctx, `
		SELECT r.id, r.uuid, r.name, r.slug, r.description, r.created_at, r.updated_at, r.is_deleted, r.deleted_at
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id AND r.is_deleted = FALSE
		WHERE ur.user_id = $1
		ORDER BY ur.id`, userID)
	if err != nil {
		return nil, err
	}
	return r.collectRoles(rows)
}

// ReplaceUserRoles swaps the user's entire role set inside one transaction,
// stamping assigned_by with the acting administrator.
func (r *repository) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64, assignedBy int64) error {
	return r.WithTx(ctx, func(ctx context.Context, txRepo Repository) error {
		tx := txRepo.(*repository)
		if _, err := tx.db.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
			return err
		}
		if len(roleIDs) == 0 {
			return nil
		}
		_, err := tx.db.Exec(ctx, `
			INSERT INTO user_roles (user_id, role_id, assigned_by_id, assigned_at)
			SELECT $1, unnest($2::bigint[]), NULLIF($3, 0), NOW()`, userID, roleIDs, assignedBy)
		return translateUnique(err)
	})
}

func (r *repository) UserPermissionCodes(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT p.code
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id AND r.is_deleted = FALSE
		JOIN role_permissions rp ON rp.role_id = r.id
		JOIN permissions p ON p.id = rp.permission_id AND p.is_deleted = FALSE
		WHERE ur.user_id = $1
		ORDER BY p.code`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStrings(rows)
}

func collectStrings(rows pgx.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// translateUnique maps unique-violation errors from the store onto domain
// sentinels so a race lost at commit surfaces as a validation problem, not an
// internal error.
func translateUnique(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if strings.Contains(pgErr.ConstraintName, "slug") {
			return ErrDuplicateSlug
		}
		return ErrDuplicate
	}
	return err
}
