package users_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripdesk/tripdesk/internal/shared"
	"github.com/tripdesk/tripdesk/internal/users"
)

type stubRepo struct {
	records map[int64]users.User
	nextID  int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{records: make(map[int64]users.User), nextID: 1}
}

func (s *stubRepo) List(ctx context.Context, filters users.ListFilters) ([]users.User, int, error) {
	var out []users.User
	for _, u := range s.records {
		if u.IsDeleted {
			continue
		}
		if filters.Search != "" && !strings.Contains(u.Email, filters.Search) && !strings.Contains(u.Name, filters.Search) {
			continue
		}
		out = append(out, u)
	}
	return out, len(out), nil
}

func (s *stubRepo) Get(ctx context.Context, id int64, includeDeleted bool) (users.User, error) {
	u, ok := s.records[id]
	if !ok || (u.IsDeleted && !includeDeleted) {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func (s *stubRepo) GetByEmail(ctx context.Context, email string) (users.User, error) {
	for _, u := range s.records {
		if strings.EqualFold(u.Email, email) && !u.IsDeleted {
			return u, nil
		}
	}
	return users.User{}, users.ErrNotFound
}

func (s *stubRepo) Create(ctx context.Context, u users.User) (users.User, error) {
	for _, existing := range s.records {
		if strings.EqualFold(existing.Email, u.Email) && !existing.IsDeleted {
			return users.User{}, users.ErrDuplicateEmail
		}
	}
	u.ID = s.nextID
	s.nextID++
	s.records[u.ID] = u
	return u, nil
}

func (s *stubRepo) Update(ctx context.Context, id int64, u users.User) (users.User, error) {
	existing, ok := s.records[id]
	if !ok || existing.IsDeleted {
		return users.User{}, users.ErrNotFound
	}
	u.ID = id
	s.records[id] = u
	return u, nil
}

func (s *stubRepo) SoftDelete(ctx context.Context, id int64) error {
	u, ok := s.records[id]
	if !ok || u.IsDeleted {
		return users.ErrNotFound
	}
	u.IsDeleted = true
	s.records[id] = u
	return nil
}

func (s *stubRepo) Restore(ctx context.Context, id int64) error {
	u, ok := s.records[id]
	if !ok || !u.IsDeleted {
		return users.ErrNotFound
	}
	u.IsDeleted = false
	s.records[id] = u
	return nil
}

func (s *stubRepo) HardDelete(ctx context.Context, id int64) error {
	if _, ok := s.records[id]; !ok {
		return users.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

var _ users.RepositoryPort = (*stubRepo)(nil)

func TestCreateDefaultsToCustomerRole(t *testing.T) {
	svc := users.NewService(newStubRepo())
	u, err := svc.Create(context.Background(), users.User{Email: "a@test.local"})
	require.NoError(t, err)
	assert.Equal(t, users.LegacyRoleCustomer, u.LegacyRole)
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	svc := users.NewService(newStubRepo())
	_, err := svc.Create(context.Background(), users.User{Email: "a@test.local", LegacyRole: "manager"})
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "role", ve.Field)
}

func TestCreateRejectsEmptyEmail(t *testing.T) {
	svc := users.NewService(newStubRepo())
	_, err := svc.Create(context.Background(), users.User{Email: "   "})
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "email", ve.Field)
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo := newStubRepo()
	svc := users.NewService(repo)
	_, err := svc.Create(context.Background(), users.User{Email: "a@test.local"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), users.User{Email: "A@test.local"})
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "email", ve.Field)
}

func TestSoftDeleteHidesFromDefaultReads(t *testing.T) {
	repo := newStubRepo()
	svc := users.NewService(repo)
	u, err := svc.Create(context.Background(), users.User{Email: "a@test.local"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), u.ID))

	_, err = svc.Get(context.Background(), u.ID, false)
	assert.ErrorIs(t, err, users.ErrNotFound)

	got, err := svc.Get(context.Background(), u.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)

	listed, _, err := svc.List(context.Background(), users.ListFilters{})
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestRestoreBringsUserBack(t *testing.T) {
	repo := newStubRepo()
	svc := users.NewService(repo)
	u, err := svc.Create(context.Background(), users.User{Email: "a@test.local"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), u.ID))

	require.NoError(t, svc.Restore(context.Background(), u.ID))
	got, err := svc.Get(context.Background(), u.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsDeleted)
}

func TestEmailReusableAfterSoftDelete(t *testing.T) {
	repo := newStubRepo()
	svc := users.NewService(repo)
	first, err := svc.Create(context.Background(), users.User{Email: "a@test.local"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), first.ID))

	second, err := svc.Create(context.Background(), users.User{Email: "a@test.local"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestHardDeleteIrreversible(t *testing.T) {
	repo := newStubRepo()
	svc := users.NewService(repo)
	u, err := svc.Create(context.Background(), users.User{Email: "a@test.local"})
	require.NoError(t, err)

	require.NoError(t, svc.HardDelete(context.Background(), u.ID))
	_, err = svc.Get(context.Background(), u.ID, true)
	assert.ErrorIs(t, err, users.ErrNotFound)
	assert.ErrorIs(t, svc.Restore(context.Background(), u.ID), users.ErrNotFound)
}

func TestListPaginationMetadata(t *testing.T) {
	repo := newStubRepo()
	svc := users.NewService(repo)
	for _, email := range []string{"a@test.local", "b@test.local", "c@test.local"} {
		_, err := svc.Create(context.Background(), users.User{Email: email})
		require.NoError(t, err)
	}

	_, paging, err := svc.List(context.Background(), users.ListFilters{Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, paging.Total)
	assert.Equal(t, 2, paging.TotalPages)
}
