package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed reads over audit_logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Timeline returns entries matching the filters, newest first, plus the
// unpaged total. Actor emails come from a left join so entries survive actor
// deletion.
func (r *Repository) Timeline(ctx context.Context, filters TimelineFilters) ([]Entry, int, error) {
	where, args := buildWhere(filters)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs a`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := filters.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)
	query := `
		SELECT a.id, a.actor_id, COALESCE(u.email, ''), a.action, a.entity, a.entity_id, a.meta, a.occurred_at
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.actor_id` + where + `
		ORDER BY a.occurred_at DESC, a.id DESC
		LIMIT $` + fmt.Sprint(len(args)-1) + ` OFFSET $` + fmt.Sprint(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorEmail, &e.Action, &e.Entity, &e.EntityID, &e.Meta, &e.At); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// TimelineAll returns every matching entry without paging, for exports.
func (r *Repository) TimelineAll(ctx context.Context, filters TimelineFilters) ([]Entry, error) {
	where, args := buildWhere(filters)
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.actor_id, COALESCE(u.email, ''), a.action, a.entity, a.entity_id, a.meta, a.occurred_at
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.actor_id`+where+`
		ORDER BY a.occurred_at DESC, a.id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorEmail, &e.Action, &e.Entity, &e.EntityID, &e.Meta, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func buildWhere(filters TimelineFilters) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !filters.From.IsZero() {
		add("a.occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("a.occurred_at <= $%d", filters.To)
	}
	if filters.ActorID > 0 {
		add("a.actor_id = $%d", filters.ActorID)
	}
	if v := strings.TrimSpace(filters.Entity); v != "" {
		add("a.entity = $%d", v)
	}
	if v := strings.TrimSpace(filters.Action); v != "" {
		add("a.action = $%d", v)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
