package menu

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
	// ErrNotFound indicates the record does not exist or is soft-deleted.
	ErrNotFound = errors.New("menu: not found")
	// ErrDuplicate indicates a uniqueness violation from the store.
	ErrDuplicate = errors.New("menu: duplicate entry")
)

// Repository provides PostgreSQL backed persistence for the menu builder.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const menuColumns = `id, uuid, name, location, is_active, created_at, updated_at, is_deleted, deleted_at`

func scanMenu(row pgx.Row) (Menu, error) {
	var m Menu
	err := row.Scan(&m.ID, &m.UUID, &m.Name, &m.Location, &m.IsActive, &m.CreatedAt, &m.UpdatedAt, &m.IsDeleted, &m.DeletedAt)
	return m, err
}

// ListMenus returns active menus ordered by location.
func (r *Repository) ListMenus(ctx context.Context) ([]Menu, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+menuColumns+` FROM menus WHERE is_deleted = FALSE ORDER BY location`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var menus []Menu
	for rows.Next() {
		m, err := scanMenu(rows)
		if err != nil {
			return nil, err
		}
		menus = append(menus, m)
	}
	return menus, rows.Err()
}

// GetMenu fetches an active menu by ID.
func (r *Repository) GetMenu(ctx context.Context, id int64) (Menu, error) {
	m, err := scanMenu(r.pool.QueryRow(ctx, `SELECT `+menuColumns+` FROM menus WHERE id = $1 AND is_deleted = FALSE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Menu{}, ErrNotFound
		}
		return Menu{}, err
	}
	return m, nil
}

// CreateMenu inserts a new menu.
func (r *Repository) CreateMenu(ctx context.Context, name, location string) (Menu, error) {
	m, err := scanMenu(r.pool.QueryRow(ctx, `
		INSERT INTO menus (name, location, is_active) VALUES ($1, $2, TRUE)
		RETURNING `+menuColumns, name, location))
	if err != nil {
		return Menu{}, translateUnique(err)
	}
	return m, nil
}

// SoftDeleteMenu marks a menu deleted.
func (r *Repository) SoftDeleteMenu(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE menus SET is_deleted = TRUE, deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const pageColumns = `id, uuid, key, title, path, default_icon, permission, type, is_active, created_at, updated_at, is_deleted, deleted_at`

func scanPage(row pgx.Row) (Page, error) {
	var p Page
	err := row.Scan(&p.ID, &p.UUID, &p.Key, &p.Title, &p.Path, &p.DefaultIcon, &p.Permission, &p.Type, &p.IsActive, &p.CreatedAt, &p.UpdatedAt, &p.IsDeleted, &p.DeletedAt)
	return p, err
}

// ListPages returns active registry pages ordered by title.
func (r *Repository) ListPages(ctx context.Context) ([]Page, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+pageColumns+` FROM page_registry WHERE is_deleted = FALSE ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pages []Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// GetPage fetches an active registry page.
func (r *Repository) GetPage(ctx context.Context, id int64) (Page, error) {
	p, err := scanPage(r.pool.QueryRow(ctx, `SELECT `+pageColumns+` FROM page_registry WHERE id = $1 AND is_deleted = FALSE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Page{}, ErrNotFound
		}
		return Page{}, err
	}
	return p, nil
}

// UpsertPage inserts or refreshes a registry page keyed by key.
func (r *Repository) UpsertPage(ctx context.Context, p Page) (Page, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO page_registry (key, title, path, default_icon, permission, type, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (key) DO UPDATE
		SET title = EXCLUDED.title, path = EXCLUDED.path, default_icon = EXCLUDED.default_icon,
		    permission = EXCLUDED.permission, type = EXCLUDED.type, is_active = EXCLUDED.is_active,
		    is_deleted = FALSE, deleted_at = NULL, updated_at = NOW()
		RETURNING `+pageColumns,
		p.Key, p.Title, p.Path, p.DefaultIcon, p.Permission, p.Type, p.IsActive)
	return scanPage(row)
}

const itemColumns = `id, uuid, menu_id, parent_id, page_id, link_type, custom_label, custom_path, url, icon, permission, sort_order, is_active, created_at, updated_at, is_deleted, deleted_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.UUID, &it.MenuID, &it.ParentID, &it.PageID, &it.LinkType,
		&it.CustomLabel, &it.CustomPath, &it.URL, &it.Icon, &it.Permission,
		&it.SortOrder, &it.IsActive, &it.CreatedAt, &it.UpdatedAt, &it.IsDeleted, &it.DeletedAt)
	return it, err
}

// ListItems returns all active items of a menu ordered by (sort_order, id).
func (r *Repository) ListItems(ctx context.Context, menuID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+itemColumns+` FROM menu_items
		WHERE menu_id = $1 AND is_deleted = FALSE
		ORDER BY sort_order, id`, menuID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetItem fetches an active item by ID.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	it, err := scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM menu_items WHERE id = $1 AND is_deleted = FALSE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return it, nil
}

// CreateItem inserts a new menu item.
func (r *Repository) CreateItem(ctx context.Context, it Item) (Item, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO menu_items (menu_id, parent_id, page_id, link_type, custom_label, custom_path, url, icon, permission, sort_order, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+itemColumns,
		it.MenuID, it.ParentID, it.PageID, it.LinkType, it.CustomLabel, it.CustomPath,
		it.URL, it.Icon, it.Permission, it.SortOrder, it.IsActive)
	created, err := scanItem(row)
	if err != nil {
		return Item{}, translateUnique(err)
	}
	return created, nil
}

// UpdateItem rewrites an item's mutable fields.
func (r *Repository) UpdateItem(ctx context.Context, id int64, it Item) (Item, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE menu_items
		SET parent_id = $2, page_id = $3, link_type = $4, custom_label = $5, custom_path = $6,
		    url = $7, icon = $8, permission = $9, sort_order = $10, is_active = $11, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE
		RETURNING `+itemColumns,
		id, it.ParentID, it.PageID, it.LinkType, it.CustomLabel, it.CustomPath,
		it.URL, it.Icon, it.Permission, it.SortOrder, it.IsActive)
	updated, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, translateUnique(err)
	}
	return updated, nil
}

// SoftDeleteItem marks an item and its direct children deleted.
func (r *Repository) SoftDeleteItem(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE menu_items SET is_deleted = TRUE, deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND is_deleted = FALSE`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(ctx, `UPDATE menu_items SET is_deleted = TRUE, deleted_at = NOW(), updated_at = NOW() WHERE parent_id = $1 AND is_deleted = FALSE`, id)
		return err
	})
}

// ReorderItems applies new sort positions inside one transaction so partial
// reorders are never visible.
func (r *Repository) ReorderItems(ctx context.Context, menuID int64, order []ReorderEntry) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, entry := range order {
			tag, err := tx.Exec(ctx, `UPDATE menu_items SET sort_order = $3, updated_at = NOW() WHERE id = $1 AND menu_id = $2 AND is_deleted = FALSE`, entry.ID, menuID, entry.SortOrder)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return ErrNotFound
			}
		}
		return nil
	})
}

func translateUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	if err != nil && strings.Contains(err.Error(), "violates foreign key") {
		return ErrNotFound
	}
	return err
}
