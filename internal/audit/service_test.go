package audit_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripdesk/tripdesk/internal/audit"
	"github.com/tripdesk/tripdesk/internal/shared"
)

type stubRepo struct {
	entries []audit.Entry
	last    audit.TimelineFilters
}

func (s *stubRepo) match(filters audit.TimelineFilters) []audit.Entry {
	var out []audit.Entry
	for _, e := range s.entries {
		if !filters.From.IsZero() && e.At.Before(filters.From) {
			continue
		}
		if !filters.To.IsZero() && e.At.After(filters.To) {
			continue
		}
		if filters.ActorID > 0 && e.ActorID != filters.ActorID {
			continue
		}
		if filters.Entity != "" && e.Entity != filters.Entity {
			continue
		}
		if filters.Action != "" && e.Action != filters.Action {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (s *stubRepo) Timeline(ctx context.Context, filters audit.TimelineFilters) ([]audit.Entry, int, error) {
	s.last = filters
	matched := s.match(filters)
	return matched, len(matched), nil
}

func (s *stubRepo) TimelineAll(ctx context.Context, filters audit.TimelineFilters) ([]audit.Entry, error) {
	s.last = filters
	return s.match(filters), nil
}

var _ audit.RepositoryPort = (*stubRepo)(nil)

func sampleEntries() []audit.Entry {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []audit.Entry{
		{ID: 3, ActorID: 1, ActorEmail: "root@tripdesk.local", Action: "rbac.role.update", Entity: "role", EntityID: "4", At: base.Add(2 * time.Hour)},
		{ID: 2, ActorID: 2, ActorEmail: "admin@tripdesk.local", Action: "menu.item.create", Entity: "menu_item", EntityID: "9", Meta: map[string]any{"menu_id": float64(1)}, At: base.Add(time.Hour)},
		{ID: 1, ActorID: 1, ActorEmail: "root@tripdesk.local", Action: "rbac.role.create", Entity: "role", EntityID: "4", At: base},
	}
}

func TestTimelineFilterByEntity(t *testing.T) {
	repo := &stubRepo{entries: sampleEntries()}
	svc := audit.NewService(repo)

	entries, paging, err := svc.Timeline(context.Background(), audit.TimelineFilters{Entity: "role"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, paging.Total)
	for _, e := range entries {
		assert.Equal(t, "role", e.Entity)
	}
}

func TestTimelineRejectsInvertedRange(t *testing.T) {
	svc := audit.NewService(&stubRepo{})
	now := time.Now()

	_, _, err := svc.Timeline(context.Background(), audit.TimelineFilters{From: now, To: now.Add(-time.Hour)})
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "to", ve.Field)
}

func TestTimelineClampsPerPage(t *testing.T) {
	repo := &stubRepo{}
	svc := audit.NewService(repo)

	_, _, err := svc.Timeline(context.Background(), audit.TimelineFilters{PerPage: 5000})
	require.NoError(t, err)
	assert.Equal(t, 100, repo.last.PerPage)
}

func TestExportCSV(t *testing.T) {
	repo := &stubRepo{entries: sampleEntries()}
	svc := audit.NewService(repo)

	data, err := svc.ExportCSV(context.Background(), audit.TimelineFilters{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "at,actor_id,actor_email,action,entity,entity_id,meta", lines[0])
	assert.Contains(t, lines[1], "rbac.role.update")
	assert.Contains(t, lines[2], `"{""menu_id"":1}"`)
}

func TestExportCSVPassesFiltersThrough(t *testing.T) {
	repo := &stubRepo{entries: sampleEntries()}
	svc := audit.NewService(repo)

	data, err := svc.ExportCSV(context.Background(), audit.TimelineFilters{ActorID: 2})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "menu.item.create")
}
