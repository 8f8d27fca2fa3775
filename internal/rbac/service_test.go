package rbac_test

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripdesk/tripdesk/internal/nav"
	"github.com/tripdesk/tripdesk/internal/rbac"
	"github.com/tripdesk/tripdesk/internal/shared"
)

// stubRepo is an in-memory Repository. Grant replacement mimics the store's
// all-or-nothing behavior; soft-deleted rows are excluded from default reads.
type stubRepo struct {
	perms  []rbac.Permission
	roles  []rbac.Role
	grants map[int64][]int64 // roleID -> permissionIDs
	users  map[int64][]int64 // userID -> roleIDs

	nextRoleID   int64
	replaceCalls int

	// duplicateSlug makes role writes fail with the store's uniqueness error,
	// as when a concurrent insert lands between the pre-check and the write.
	duplicateSlug bool
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		grants:     make(map[int64][]int64),
		users:      make(map[int64][]int64),
		nextRoleID: 1,
	}
}

func (s *stubRepo) addPermission(id int64, code string) {
	s.perms = append(s.perms, rbac.Permission{Record: rbac.Record{ID: id}, Code: code})
}

func (s *stubRepo) addRole(name, slug string) rbac.Role {
	role := rbac.Role{Record: rbac.Record{ID: s.nextRoleID}, Name: name, Slug: slug}
	s.nextRoleID++
	s.roles = append(s.roles, role)
	return role
}

func (s *stubRepo) WithTx(ctx context.Context, fn func(context.Context, rbac.Repository) error) error {
	return fn(ctx, s)
}

func (s *stubRepo) ListActivePermissions(ctx context.Context) ([]rbac.Permission, error) {
	var out []rbac.Permission
	for _, p := range s.perms {
		if !p.IsDeleted {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubRepo) PermissionsByCodes(ctx context.Context, codes []string) ([]rbac.Permission, error) {
	want := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		want[c] = struct{}{}
	}
	var out []rbac.Permission
	for _, p := range s.perms {
		if _, ok := want[p.Code]; ok && !p.IsDeleted {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubRepo) UpsertPermission(ctx context.Context, seed rbac.PermissionSeed) (rbac.Permission, error) {
	for i, p := range s.perms {
		if p.Code == seed.Code {
			s.perms[i].IsDeleted = false
			return s.perms[i], nil
		}
	}
	p := rbac.Permission{Record: rbac.Record{ID: int64(len(s.perms) + 1000)}, Code: seed.Code, Module: seed.Module, Action: seed.Action}
	s.perms = append(s.perms, p)
	return p, nil
}

func (s *stubRepo) ListActiveRoles(ctx context.Context) ([]rbac.Role, error) {
	var out []rbac.Role
	for _, r := range s.roles {
		if !r.IsDeleted {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubRepo) GetRole(ctx context.Context, id int64, includeDeleted bool) (rbac.Role, error) {
	for _, r := range s.roles {
		if r.ID == id && (includeDeleted || !r.IsDeleted) {
			return r, nil
		}
	}
	return rbac.Role{}, rbac.ErrNotFound
}

func (s *stubRepo) RolesBySlugs(ctx context.Context, slugs []string) ([]rbac.Role, error) {
	want := make(map[string]struct{}, len(slugs))
	for _, slug := range slugs {
		want[slug] = struct{}{}
	}
	var out []rbac.Role
	for _, r := range s.roles {
		if _, ok := want[r.Slug]; ok && !r.IsDeleted {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubRepo) SlugTaken(ctx context.Context, slug string, excludeID int64) (bool, error) {
	for _, r := range s.roles {
		if r.Slug == slug && !r.IsDeleted && r.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRepo) CreateRole(ctx context.Context, name, slug, description string) (rbac.Role, error) {
	if s.duplicateSlug {
		return rbac.Role{}, rbac.ErrDuplicateSlug
	}
	role := s.addRole(name, slug)
	role.Description = description
	s.roles[len(s.roles)-1].Description = description
	return role, nil
}

func (s *stubRepo) UpdateRole(ctx context.Context, id int64, name, slug, description string) (rbac.Role, error) {
	if s.duplicateSlug {
		return rbac.Role{}, rbac.ErrDuplicateSlug
	}
	for i, r := range s.roles {
		if r.ID == id && !r.IsDeleted {
			s.roles[i].Name = name
			s.roles[i].Slug = slug
			s.roles[i].Description = description
			return s.roles[i], nil
		}
	}
	return rbac.Role{}, rbac.ErrNotFound
}

func (s *stubRepo) SoftDeleteRole(ctx context.Context, id int64) error {
	for i, r := range s.roles {
		if r.ID == id && !r.IsDeleted {
			s.roles[i].IsDeleted = true
			return nil
		}
	}
	return rbac.ErrNotFound
}

func (s *stubRepo) RestoreRole(ctx context.Context, id int64) error {
	for i, r := range s.roles {
		if r.ID == id && r.IsDeleted {
			s.roles[i].IsDeleted = false
			return nil
		}
	}
	return rbac.ErrNotFound
}

func (s *stubRepo) HardDeleteRole(ctx context.Context, id int64) error {
	for i, r := range s.roles {
		if r.ID == id {
			s.roles = append(s.roles[:i], s.roles[i+1:]...)
			delete(s.grants, id)
			return nil
		}
	}
	return rbac.ErrNotFound
}

func (s *stubRepo) RolePermissionCodes(ctx context.Context, roleID int64) ([]string, error) {
	var codes []string
	for _, permID := range s.grants[roleID] {
		for _, p := range s.perms {
			if p.ID == permID && !p.IsDeleted {
				codes = append(codes, p.Code)
			}
		}
	}
	sort.Strings(codes)
	return codes, nil
}

func (s *stubRepo) CodesByRoleIDs(ctx context.Context, roleIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(roleIDs))
	for _, id := range roleIDs {
		codes, _ := s.RolePermissionCodes(ctx, id)
		if codes != nil {
			out[id] = codes
		}
	}
	return out, nil
}

func (s *stubRepo) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	s.replaceCalls++
	s.grants[roleID] = append([]int64(nil), permissionIDs...)
	return nil
}

func (s *stubRepo) UserRoles(ctx context.Context, userID int64) ([]rbac.Role, error) {
	var out []rbac.Role
	for _, roleID := range s.users[userID] {
		for _, r := range s.roles {
			if r.ID == roleID && !r.IsDeleted {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (s *stubRepo) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64, assignedBy int64) error {
	s.users[userID] = append([]int64(nil), roleIDs...)
	return nil
}

func (s *stubRepo) UserPermissionCodes(ctx context.Context, userID int64) ([]string, error) {
	seen := make(map[string]struct{})
	roles, _ := s.UserRoles(ctx, userID)
	for _, role := range roles {
		codes, _ := s.RolePermissionCodes(ctx, role.ID)
		for _, c := range codes {
			seen[c] = struct{}{}
		}
	}
	var out []string
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

var _ rbac.Repository = (*stubRepo)(nil)

func newService(repo rbac.Repository) *rbac.Service {
	return rbac.NewService(repo, nil, nil)
}

func TestResolveSuperuserGetsFullCatalog(t *testing.T) {
	repo := newStubRepo()
	repo.addPermission(1, "hotels.view")
	repo.addPermission(2, "cars.view")
	repo.addPermission(3, "rbac.manage_roles")

	codes, err := newService(repo).Resolve(context.Background(), &shared.Principal{ID: 1, IsSuperuser: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"cars.view", "hotels.view", "rbac.manage_roles"}, codes)
}

func TestResolveSuperuserSeesNewPermissionImmediately(t *testing.T) {
	repo := newStubRepo()
	repo.addPermission(1, "hotels.view")
	svc := newService(repo)
	root := &shared.Principal{ID: 1, IsSuperuser: true}

	codes, err := svc.Resolve(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"hotels.view"}, codes)

	// The superuser set is recomputed per call, not cached.
	repo.addPermission(2, "visa.view")
	codes, err = svc.Resolve(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"hotels.view", "visa.view"}, codes)
}

func TestResolveNoAssignmentsIsEmptyNotError(t *testing.T) {
	repo := newStubRepo()
	codes, err := newService(repo).Resolve(context.Background(), &shared.Principal{ID: 42})
	require.NoError(t, err)
	require.NotNil(t, codes)
	assert.Empty(t, codes)
}

func TestResolveUnionsAcrossRoles(t *testing.T) {
	repo := newStubRepo()
	repo.addPermission(1, "hotels.view")
	repo.addPermission(2, "cars.view")
	repo.addPermission(3, "visa.view")
	support := repo.addRole("Support", "support")
	ops := repo.addRole("Ops", "ops")
	repo.grants[support.ID] = []int64{1, 2}
	repo.grants[ops.ID] = []int64{2, 3}
	repo.users[7] = []int64{support.ID, ops.ID}

	codes, err := newService(repo).Resolve(context.Background(), &shared.Principal{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, []string{"cars.view", "hotels.view", "visa.view"}, codes)
}

func TestResolveExcludesSoftDeletedRole(t *testing.T) {
	repo := newStubRepo()
	repo.addPermission(1, "hotels.view")
	repo.addPermission(2, "visa.view")
	support := repo.addRole("Support", "support")
	ops := repo.addRole("Ops", "ops")
	repo.grants[support.ID] = []int64{1}
	repo.grants[ops.ID] = []int64{2}
	repo.users[7] = []int64{support.ID, ops.ID}
	svc := newService(repo)

	require.NoError(t, svc.DeleteRole(context.Background(), ops.ID))
	codes, err := svc.Resolve(context.Background(), &shared.Principal{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, []string{"hotels.view"}, codes)

	// Restore brings the grants back without re-assignment.
	require.NoError(t, svc.RestoreRole(context.Background(), ops.ID))
	codes, err = svc.Resolve(context.Background(), &shared.Principal{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, []string{"hotels.view", "visa.view"}, codes)
}

func TestSetRolePermissionsReplacesEntireSet(t *testing.T) {
	repo := newStubRepo()
	repo.addPermission(1, "hotels.view")
	repo.addPermission(2, "cars.view")
	repo.addPermission(3, "visa.view")
	role := repo.addRole("Support", "support")
	repo.grants[role.ID] = []int64{1, 2}
	svc := newService(repo)

	updated, err := svc.SetRolePermissions(context.Background(), 1, role.ID, []string{"visa.view"})
	require.NoError(t, err)
	assert.Equal(t, []string{"visa.view"}, updated.Permissions)
	assert.Equal(t, []int64{3}, repo.grants[role.ID])
}

func TestSetRolePermissionsIdempotent(t *testing.T) {
	repo := newStubRepo()
	repo.addPermission(1, "hotels.view")
	role := repo.addRole("Support", "support")
	svc := newService(repo)

	first, err := svc.SetRolePermissions(context.Background(), 1, role.ID, []string{"hotels.view"})
	require.NoError(t, err)
	second, err := svc.SetRolePermissions(context.Background(), 1, role.ID, []string{"hotels.view"})
	require.NoError(t, err)
	assert.Equal(t, first.Permissions, second.Permissions)
	assert.Equal(t, []int64{1}, repo.grants[role.ID])
}

func TestSetRolePermissionsUnknownCodeFailsWhole(t *testing.T) {
	repo := newStubRepo()
	repo.addPermission(1, "hotels.view")
	role := repo.addRole("Support", "support")
	repo.grants[role.ID] = []int64{1}
	svc := newService(repo)

	_, err := svc.SetRolePermissions(context.Background(), 1, role.ID, []string{"hotels.view", "zz.nope", "aa.nope"})
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "permissions", ve.Field)
	assert.Equal(t, []string{"aa.nope", "zz.nope"}, ve.Missing)
	// No partial application: the existing grant set is untouched.
	assert.Equal(t, []int64{1}, repo.grants[role.ID])
}

func TestSetRolePermissionsDeduplicatesInput(t *testing.T) {
	repo := newStubRepo()
	repo.addPermission(1, "hotels.view")
	role := repo.addRole("Support", "support")
	svc := newService(repo)

	updated, err := svc.SetRolePermissions(context.Background(), 1, role.ID, []string{"hotels.view", " hotels.view ", "hotels.view"})
	require.NoError(t, err)
	assert.Equal(t, []string{"hotels.view"}, updated.Permissions)
	assert.Equal(t, []int64{1}, repo.grants[role.ID])
}

func TestSetUserRolesReplacesAndOrders(t *testing.T) {
	repo := newStubRepo()
	support := repo.addRole("Support", "support")
	ops := repo.addRole("Ops", "ops")
	repo.users[7] = []int64{support.ID}
	svc := newService(repo)

	roles, err := svc.SetUserRoles(context.Background(), 1, 7, []string{"ops", "support"})
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "ops", roles[0].Slug)
	assert.Equal(t, "support", roles[1].Slug)
	assert.Equal(t, []int64{ops.ID, support.ID}, repo.users[7])
}

func TestSetUserRolesUnknownSlugFailsWhole(t *testing.T) {
	repo := newStubRepo()
	support := repo.addRole("Support", "support")
	repo.users[7] = []int64{support.ID}
	svc := newService(repo)

	_, err := svc.SetUserRoles(context.Background(), 1, 7, []string{"support", "ghost"})
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "roles", ve.Field)
	assert.Equal(t, []string{"ghost"}, ve.Missing)
	assert.Equal(t, []int64{support.ID}, repo.users[7])
}

func TestSetUserRolesEmptyListClearsAssignments(t *testing.T) {
	repo := newStubRepo()
	support := repo.addRole("Support", "support")
	repo.users[7] = []int64{support.ID}
	svc := newService(repo)

	roles, err := svc.SetUserRoles(context.Background(), 1, 7, nil)
	require.NoError(t, err)
	assert.Empty(t, roles)
	assert.Empty(t, repo.users[7])
}

func TestCreateRoleSlugDefaultsFromName(t *testing.T) {
	repo := newStubRepo()
	svc := newService(repo)

	role, err := svc.CreateRole(context.Background(), "Travel Ops", "", "ops people")
	require.NoError(t, err)
	assert.Equal(t, "travel-ops", role.Slug)
	assert.NotNil(t, role.Permissions)
}

func TestCreateRoleDuplicateSlugRejected(t *testing.T) {
	repo := newStubRepo()
	repo.addRole("Support", "support")
	svc := newService(repo)

	_, err := svc.CreateRole(context.Background(), "Support", "support", "")
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "slug", ve.Field)
}

func TestCreateRoleConcurrentDuplicateSlugTranslated(t *testing.T) {
	repo := newStubRepo()
	repo.duplicateSlug = true
	svc := newService(repo)

	// The pre-check sees a free slug, but the store's unique constraint fires
	// on insert; the store error surfaces as the same friendly rejection.
	_, err := svc.CreateRole(context.Background(), "Support", "support", "")
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "slug", ve.Field)
	assert.Equal(t, "slug must be unique", ve.Message)
}

func TestUpdateRoleConcurrentDuplicateSlugTranslated(t *testing.T) {
	repo := newStubRepo()
	role := repo.addRole("Support", "support")
	repo.duplicateSlug = true
	svc := newService(repo)

	_, err := svc.UpdateRole(context.Background(), role.ID, "Support", "ops", "")
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "slug", ve.Field)
	assert.Equal(t, "slug must be unique", ve.Message)
}

func TestCreateRoleSlugReusableAfterSoftDelete(t *testing.T) {
	repo := newStubRepo()
	old := repo.addRole("Support", "support")
	svc := newService(repo)

	require.NoError(t, svc.DeleteRole(context.Background(), old.ID))
	role, err := svc.CreateRole(context.Background(), "Support v2", "support", "")
	require.NoError(t, err)
	assert.Equal(t, "support", role.Slug)
}

func TestUpdateRoleKeepingOwnSlug(t *testing.T) {
	repo := newStubRepo()
	role := repo.addRole("Support", "support")
	svc := newService(repo)

	updated, err := svc.UpdateRole(context.Background(), role.ID, "Support Team", "support", "renamed")
	require.NoError(t, err)
	assert.Equal(t, "Support Team", updated.Name)
	assert.Equal(t, "support", updated.Slug)
}

func TestGetRoleSoftDeletedOnlyWithFlag(t *testing.T) {
	repo := newStubRepo()
	role := repo.addRole("Support", "support")
	svc := newService(repo)
	require.NoError(t, svc.DeleteRole(context.Background(), role.ID))

	_, err := svc.GetRole(context.Background(), role.ID, false)
	assert.ErrorIs(t, err, rbac.ErrNotFound)

	got, err := svc.GetRole(context.Background(), role.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
}

func TestSeedCatalogIdempotent(t *testing.T) {
	repo := newStubRepo()
	svc := newService(repo)

	perms := []rbac.PermissionSeed{
		{Code: "hotels.view", Module: "hotels", Action: "view"},
		{Code: "visa.view", Module: "visa", Action: "view"},
	}
	roles := []rbac.RoleSeed{{Name: "Admin", Slug: "admin", Permissions: []string{"hotels.view", "visa.view"}}}

	require.NoError(t, svc.SeedCatalog(context.Background(), perms, roles))
	require.NoError(t, svc.SeedCatalog(context.Background(), perms, roles))

	listed, err := svc.ListRoles(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, []string{"hotels.view", "visa.view"}, listed[0].Permissions)
}

func TestDefaultCatalogContainsManagementCodes(t *testing.T) {
	codes := make(map[string]struct{})
	for _, seed := range rbac.DefaultCatalog() {
		codes[seed.Code] = struct{}{}
	}
	for _, want := range []string{
		shared.PermManageRoles,
		shared.PermManageUsers,
		shared.PermViewPermissions,
		shared.PermDashboardView,
		shared.PermHotelsView,
	} {
		assert.Contains(t, codes, want)
	}
}

func TestBuildDashboardConfig(t *testing.T) {
	repo := newStubRepo()
	repo.addPermission(1, "hotels.view")
	repo.addPermission(2, "settings.view")
	support := repo.addRole("Support", "support")
	repo.grants[support.ID] = []int64{1}
	repo.users[7] = []int64{support.ID}
	svc := newService(repo)

	registry := &nav.Registry{
		Menu: []nav.Node{
			{Key: "dashboard", Path: "/dashboard"},
			nav.Node{Key: "hotels"}.Gated("hotels.view"),
			nav.Node{Key: "settings"}.Gated("settings.view", "settings.manage"),
		},
		Widgets: []nav.Node{
			nav.Node{Key: "bookings"}.Gated("hotels.view"),
			nav.Node{Key: "earnings"}.Gated("earning.view"),
		},
	}

	cfg, err := svc.BuildDashboardConfig(context.Background(), &shared.Principal{ID: 7, Email: "support@test.local"}, registry)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.User.ID)
	assert.Equal(t, []string{"support"}, cfg.Roles)
	assert.Equal(t, []string{"hotels.view"}, cfg.Permissions)
	require.Len(t, cfg.Menu, 2)
	assert.Equal(t, "dashboard", cfg.Menu[0].Key)
	assert.Equal(t, "hotels", cfg.Menu[1].Key)
	require.Len(t, cfg.Widgets, 1)
	assert.Equal(t, "bookings", cfg.Widgets[0].Key)
}

func TestBuildDashboardConfigEmptySetsAreNonNil(t *testing.T) {
	repo := newStubRepo()
	svc := newService(repo)
	registry := &nav.Registry{
		Menu:    []nav.Node{nav.Node{Key: "hotels"}.Gated("hotels.view")},
		Widgets: []nav.Node{nav.Node{Key: "bookings"}.Gated("hotels.view")},
	}

	cfg, err := svc.BuildDashboardConfig(context.Background(), &shared.Principal{ID: 9}, registry)
	require.NoError(t, err)
	require.NotNil(t, cfg.Permissions)
	require.NotNil(t, cfg.Menu)
	require.NotNil(t, cfg.Widgets)
	assert.Empty(t, cfg.Menu)
	assert.Empty(t, cfg.Widgets)
}

func TestBuildDashboardConfigSuperuserBypassesGates(t *testing.T) {
	repo := newStubRepo()
	repo.addPermission(1, "hotels.view")
	svc := newService(repo)
	registry := &nav.Registry{
		Menu: []nav.Node{
			nav.Node{Key: "settings"}.Gated("settings.view", "settings.manage"),
		},
	}

	cfg, err := svc.BuildDashboardConfig(context.Background(), &shared.Principal{ID: 1, IsSuperuser: true}, registry)
	require.NoError(t, err)
	require.Len(t, cfg.Menu, 1)
	assert.Equal(t, "settings", cfg.Menu[0].Key)
}
