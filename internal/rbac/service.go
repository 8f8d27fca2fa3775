package rbac

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/tripdesk/tripdesk/internal/nav"
	"github.com/tripdesk/tripdesk/internal/shared"
)

// Service orchestrates RBAC operations: permission resolution, the role and
// assignment mutation protocol, and the permission-filtered dashboard
// configuration.
type Service struct {
	repo   Repository
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Resolve computes the effective permission set for a principal: the full
// active catalog for superusers, otherwise the union of codes granted by all
// active assigned roles. A principal with no assignments resolves to the
// empty set, never an error. The result is sorted lexicographically.
func (s *Service) Resolve(ctx context.Context, principal *shared.Principal) ([]string, error) {
	if principal == nil {
		return nil, errors.New("rbac: principal required")
	}
	if principal.IsSuperuser {
		perms, err := s.repo.ListActivePermissions(ctx)
		if err != nil {
			return nil, err
		}
		codes := make([]string, 0, len(perms))
		for _, p := range perms {
			codes = append(codes, p.Code)
		}
		sort.Strings(codes)
		return codes, nil
	}
	codes, err := s.repo.UserPermissionCodes(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	if codes == nil {
		codes = []string{}
	}
	sort.Strings(codes)
	return codes, nil
}

// HasCode reports whether code is in the principal's effective permission set.
func (s *Service) HasCode(ctx context.Context, principal *shared.Principal, code string) (bool, error) {
	codes, err := s.Resolve(ctx, principal)
	if err != nil {
		return false, err
	}
	for _, c := range codes {
		if c == code {
			return true, nil
		}
	}
	return false, nil
}

// RoleSlugs returns the slugs of the principal's active roles in stored
// assignment order.
func (s *Service) RoleSlugs(ctx context.Context, principal *shared.Principal) ([]string, error) {
	if principal == nil {
		return nil, errors.New("rbac: principal required")
	}
	roles, err := s.repo.UserRoles(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	slugs := make([]string, 0, len(roles))
	for _, role := range roles {
		slugs = append(slugs, role.Slug)
	}
	return slugs, nil
}

// UserRoles returns the active roles assigned to a user, in stored
// assignment order.
func (s *Service) UserRoles(ctx context.Context, userID int64) ([]Role, error) {
	return s.repo.UserRoles(ctx, userID)
}

// DashboardUser identifies the principal inside a dashboard configuration.
type DashboardUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// DashboardConfig is the resolution output consumed by the client shell:
// role slugs, sorted permission codes, and the permission-filtered menu and
// widget trees.
type DashboardConfig struct {
	User        DashboardUser `json:"user"`
	Roles       []string      `json:"roles"`
	Permissions []string      `json:"permissions"`
	Menu        []nav.Node    `json:"menu"`
	Widgets     []nav.Node    `json:"widgets"`
}

// BuildDashboardConfig resolves the principal and filters the registry down
// to what they may see.
func (s *Service) BuildDashboardConfig(ctx context.Context, principal *shared.Principal, registry *nav.Registry) (DashboardConfig, error) {
	codes, err := s.Resolve(ctx, principal)
	if err != nil {
		return DashboardConfig{}, err
	}
	slugs, err := s.RoleSlugs(ctx, principal)
	if err != nil {
		return DashboardConfig{}, err
	}
	granted := nav.GrantSet(codes)
	menu := nav.Filter(registry.Menu, granted, principal.IsSuperuser)
	widgets := nav.Filter(registry.Widgets, granted, principal.IsSuperuser)
	if menu == nil {
		menu = []nav.Node{}
	}
	if widgets == nil {
		widgets = []nav.Node{}
	}
	return DashboardConfig{
		User:        DashboardUser{ID: principal.ID, Email: principal.Email},
		Roles:       slugs,
		Permissions: codes,
		Menu:        menu,
		Widgets:     widgets,
	}, nil
}

// ListPermissions returns the active catalog ordered by module then action.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListActivePermissions(ctx)
}

// ListRoles returns all active roles with their granted codes.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	roles, err := s.repo.ListActiveRoles(ctx)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return roles, nil
	}
	ids := make([]int64, 0, len(roles))
	for _, role := range roles {
		ids = append(ids, role.ID)
	}
	codes, err := s.repo.CodesByRoleIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		roles[i].Permissions = codes[roles[i].ID]
		if roles[i].Permissions == nil {
			roles[i].Permissions = []string{}
		}
	}
	return roles, nil
}

// GetRole fetches a role by ID. Soft-deleted roles are only returned when
// includeDeleted is set, so they stay addressable for restore.
func (s *Service) GetRole(ctx context.Context, id int64, includeDeleted bool) (Role, error) {
	role, err := s.repo.GetRole(ctx, id, includeDeleted)
	if err != nil {
		return Role{}, err
	}
	codes, err := s.repo.RolePermissionCodes(ctx, role.ID)
	if err != nil {
		return Role{}, err
	}
	if codes == nil {
		codes = []string{}
	}
	role.Permissions = codes
	return role, nil
}

// CreateRole inserts a new role after validating slug uniqueness. The slug
// defaults to a slugified name when omitted.
func (s *Service) CreateRole(ctx context.Context, name, slug, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, shared.NewValidationError("name", "role name required")
	}
	if slug == "" {
		slug = name
	}
	slug = shared.Slugify(slug)
	if slug == "" {
		return Role{}, shared.NewValidationError("slug", "slug required")
	}
	taken, err := s.repo.SlugTaken(ctx, slug, 0)
	if err != nil {
		return Role{}, err
	}
	if taken {
		return Role{}, shared.NewValidationError("slug", "slug must be unique")
	}
	role, err := s.repo.CreateRole(ctx, name, slug, strings.TrimSpace(description))
	if err != nil {
		if errors.Is(err, ErrDuplicateSlug) {
			return Role{}, shared.NewValidationError("slug", "slug must be unique")
		}
		return Role{}, err
	}
	role.Permissions = []string{}
	return role, nil
}

// UpdateRole updates an existing role, enforcing slug uniqueness excluding
// the record being updated.
func (s *Service) UpdateRole(ctx context.Context, id int64, name, slug, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, shared.NewValidationError("name", "role name required")
	}
	if slug == "" {
		slug = name
	}
	slug = shared.Slugify(slug)
	taken, err := s.repo.SlugTaken(ctx, slug, id)
	if err != nil {
		return Role{}, err
	}
	if taken {
		return Role{}, shared.NewValidationError("slug", "slug must be unique")
	}
	role, err := s.repo.UpdateRole(ctx, id, name, slug, strings.TrimSpace(description))
	if err != nil {
		if errors.Is(err, ErrDuplicateSlug) {
			return Role{}, shared.NewValidationError("slug", "slug must be unique")
		}
		return Role{}, err
	}
	codes, err := s.repo.RolePermissionCodes(ctx, role.ID)
	if err != nil {
		return Role{}, err
	}
	role.Permissions = codes
	return role, nil
}

// DeleteRole soft-deletes a role. Assignments survive but stop contributing
// to resolution until the role is restored.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	return s.repo.SoftDeleteRole(ctx, id)
}

// RestoreRole reverses a soft delete.
func (s *Service) RestoreRole(ctx context.Context, id int64) error {
	return s.repo.RestoreRole(ctx, id)
}

// HardDeleteRole physically removes a role. Irreversible; kept as a separate
// operation so permanent loss requires a deliberate call.
func (s *Service) HardDeleteRole(ctx context.Context, id int64) error {
	return s.repo.HardDeleteRole(ctx, id)
}

// SetRolePermissions replaces the role's entire granted set with exactly the
// given codes. Unknown codes fail the whole call with the missing values and
// no change is applied.
func (s *Service) SetRolePermissions(ctx context.Context, actorID, roleID int64, codes []string) (Role, error) {
	role, err := s.repo.GetRole(ctx, roleID, false)
	if err != nil {
		return Role{}, err
	}
	codes = normalizeList(codes)
	perms, err := s.repo.PermissionsByCodes(ctx, codes)
	if err != nil {
		return Role{}, err
	}
	found := make(map[string]int64, len(perms))
	for _, p := range perms {
		found[p.Code] = p.ID
	}
	var missing []string
	for _, code := range codes {
		if _, ok := found[code]; !ok {
			missing = append(missing, code)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Role{}, shared.NewValidationError("permissions", "permission codes not found", missing...)
	}
	ids := make([]int64, 0, len(codes))
	for _, code := range codes {
		ids = append(ids, found[code])
	}
	if err := s.repo.ReplaceRolePermissions(ctx, roleID, ids); err != nil {
		return Role{}, err
	}
	s.recordAudit(ctx, actorID, "rbac.role.set_permissions", "role", role.ID, map[string]any{"slug": role.Slug, "permissions": codes})
	granted, err := s.repo.RolePermissionCodes(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	role.Permissions = granted
	return role, nil
}

// SetUserRoles replaces the user's entire role set with exactly the roles
// named by slugs, stamping assigned_by with the acting administrator.
// Unknown slugs fail the whole call with the missing values and no change is
// applied. Re-issuing the same set is idempotent.
func (s *Service) SetUserRoles(ctx context.Context, actorID, userID int64, slugs []string) ([]Role, error) {
	slugs = normalizeList(slugs)
	roles, err := s.repo.RolesBySlugs(ctx, slugs)
	if err != nil {
		return nil, err
	}
	bySlug := make(map[string]Role, len(roles))
	for _, role := range roles {
		bySlug[role.Slug] = role
	}
	var missing []string
	for _, slug := range slugs {
		if _, ok := bySlug[slug]; !ok {
			missing = append(missing, slug)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, shared.NewValidationError("roles", "role slugs not found", missing...)
	}
	ids := make([]int64, 0, len(slugs))
	ordered := make([]Role, 0, len(slugs))
	for _, slug := range slugs {
		role := bySlug[slug]
		ids = append(ids, role.ID)
		ordered = append(ordered, role)
	}
	if err := s.repo.ReplaceUserRoles(ctx, userID, ids, actorID); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "rbac.user.set_roles", "user", userID, map[string]any{"roles": slugs})
	return ordered, nil
}

// SeedCatalog idempotently upserts the permission catalog and default roles
// inside one transaction. Safe to re-run; existing grants for seeded roles
// are replaced with the seed definition.
func (s *Service) SeedCatalog(ctx context.Context, perms []PermissionSeed, roles []RoleSeed) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		for _, seed := range perms {
			if _, err := repo.UpsertPermission(ctx, seed); err != nil {
				return err
			}
		}
		for _, seed := range roles {
			existing, err := repo.RolesBySlugs(ctx, []string{seed.Slug})
			if err != nil {
				return err
			}
			var role Role
			if len(existing) > 0 {
				role = existing[0]
			} else {
				role, err = repo.CreateRole(ctx, seed.Name, seed.Slug, seed.Description)
				if err != nil {
					return err
				}
			}
			granted, err := repo.PermissionsByCodes(ctx, seed.Permissions)
			if err != nil {
				return err
			}
			ids := make([]int64, 0, len(granted))
			for _, p := range granted {
				ids = append(ids, p.ID)
			}
			if err := repo.ReplaceRolePermissions(ctx, role.ID, ids); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: formatID(entityID),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("rbac audit record", slog.Any("error", err))
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// normalizeList trims entries, drops empties and deduplicates while
// preserving first-seen order.
func normalizeList(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
