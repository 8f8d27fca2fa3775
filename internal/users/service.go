package users

import (
	"context"
	"errors"
	"strings"

	"github.com/tripdesk/tripdesk/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, filters ListFilters) ([]User, int, error)
	Get(ctx context.Context, id int64, includeDeleted bool) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, id int64, u User) (User, error)
	SoftDelete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
	HardDelete(ctx context.Context, id int64) error
}

// Service handles principal account business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns active users matching the filters with pagination metadata.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]User, shared.Pagination, error) {
	out, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return out, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

// Get fetches a user by ID.
func (s *Service) Get(ctx context.Context, id int64, includeDeleted bool) (User, error) {
	if id <= 0 {
		return User{}, ErrNotFound
	}
	return s.repo.Get(ctx, id, includeDeleted)
}

// Create inserts a new user account. Email uniqueness is ultimately enforced
// by the store; the friendly error comes from constraint translation.
func (s *Service) Create(ctx context.Context, u User) (User, error) {
	u.Email = strings.TrimSpace(u.Email)
	if u.Email == "" {
		return User{}, shared.NewValidationError("email", "email required")
	}
	if u.LegacyRole == "" {
		u.LegacyRole = LegacyRoleCustomer
	}
	if u.LegacyRole != LegacyRoleAdmin && u.LegacyRole != LegacyRoleCustomer {
		return User{}, shared.NewValidationError("role", "role must be admin or customer")
	}
	created, err := s.repo.Create(ctx, u)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return User{}, shared.NewValidationError("email", "email must be unique")
		}
		return User{}, err
	}
	return created, nil
}

// Update rewrites a user's mutable fields.
func (s *Service) Update(ctx context.Context, id int64, u User) (User, error) {
	u.Email = strings.TrimSpace(u.Email)
	if u.Email == "" {
		return User{}, shared.NewValidationError("email", "email required")
	}
	if u.LegacyRole != "" && u.LegacyRole != LegacyRoleAdmin && u.LegacyRole != LegacyRoleCustomer {
		return User{}, shared.NewValidationError("role", "role must be admin or customer")
	}
	updated, err := s.repo.Update(ctx, id, u)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return User{}, shared.NewValidationError("email", "email must be unique")
		}
		return User{}, err
	}
	return updated, nil
}

// Delete soft-deletes the account.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.SoftDelete(ctx, id)
}

// Restore reverses a soft delete.
func (s *Service) Restore(ctx context.Context, id int64) error {
	return s.repo.Restore(ctx, id)
}

// HardDelete physically removes the account. Irreversible.
func (s *Service) HardDelete(ctx context.Context, id int64) error {
	return s.repo.HardDelete(ctx, id)
}
