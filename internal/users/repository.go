package users

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates the user does not exist or is soft-deleted.
	ErrNotFound = errors.New("users: not found")
	// ErrDuplicateEmail indicates an email uniqueness violation from the store.
	ErrDuplicateEmail = errors.New("users: duplicate email")
)

// Repository provides PostgreSQL backed persistence for principals.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, uuid, email, name, legacy_role, is_superuser, is_active, phone, avatar_url, locale, created_at, updated_at, is_deleted, deleted_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.UUID, &u.Email, &u.Name, &u.LegacyRole, &u.IsSuperuser, &u.IsActive,
		&u.Profile.Phone, &u.Profile.AvatarURL, &u.Profile.Locale,
		&u.CreatedAt, &u.UpdatedAt, &u.IsDeleted, &u.DeletedAt)
	return u, err
}

// List returns active users matching the filters plus the unpaged total.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]User, int, error) {
	perPage := filters.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	search := "%" + strings.TrimSpace(filters.Search) + "%"

	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM users
		WHERE is_deleted = FALSE AND (email ILIKE $1 OR name ILIKE $1)`, search).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE is_deleted = FALSE AND (email ILIKE $1 OR name ILIKE $1)
		ORDER BY email
		LIMIT $2 OFFSET $3`, search, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// Get fetches a user by ID; soft-deleted rows only when includeDeleted.
func (r *Repository) Get(ctx context.Context, id int64, includeDeleted bool) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if !includeDeleted {
		query += ` AND is_deleted = FALSE`
	}
	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// GetByEmail fetches an active user by case-insensitive email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE LOWER(email) = LOWER($1) AND is_deleted = FALSE`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, name, legacy_role, is_superuser, is_active, phone, avatar_url, locale)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+userColumns,
		u.Email, u.Name, u.LegacyRole, u.IsSuperuser, u.IsActive,
		u.Profile.Phone, u.Profile.AvatarURL, u.Profile.Locale)
	created, err := scanUser(row)
	if err != nil {
		return User{}, translateUnique(err)
	}
	return created, nil
}

// Update rewrites the mutable fields of a user record.
func (r *Repository) Update(ctx context.Context, id int64, u User) (User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET email = $2, name = $3, legacy_role = $4, is_active = $5,
		    phone = $6, avatar_url = $7, locale = $8, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE
		RETURNING `+userColumns,
		id, u.Email, u.Name, u.LegacyRole, u.IsActive,
		u.Profile.Phone, u.Profile.AvatarURL, u.Profile.Locale)
	updated, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, translateUnique(err)
	}
	return updated, nil
}

// SoftDelete marks the user deleted.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_deleted = TRUE, deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Restore reverses a soft delete.
func (r *Repository) Restore(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_deleted = FALSE, deleted_at = NULL, updated_at = NOW() WHERE id = $1 AND is_deleted = TRUE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// HardDelete physically removes the user row. Irreversible.
func (r *Repository) HardDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func translateUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateEmail
	}
	return err
}
