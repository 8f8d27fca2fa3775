package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strconv"

	"github.com/tripdesk/tripdesk/internal/shared"
)

// RepositoryPort defines data access for the audit timeline.
type RepositoryPort interface {
	Timeline(ctx context.Context, filters TimelineFilters) ([]Entry, int, error)
	TimelineAll(ctx context.Context, filters TimelineFilters) ([]Entry, error)
}

// Service coordinates audit timeline reads.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

const maxPerPage = 100

// Timeline returns one page of the timeline plus pagination metadata.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) ([]Entry, shared.Pagination, error) {
	if err := validateRange(filters); err != nil {
		return nil, shared.Pagination{}, err
	}
	if filters.PerPage > maxPerPage {
		filters.PerPage = maxPerPage
	}
	entries, total, err := s.repo.Timeline(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return entries, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

// ExportCSV renders every matching entry as CSV. Meta is embedded as JSON in
// the last column.
func (s *Service) ExportCSV(ctx context.Context, filters TimelineFilters) ([]byte, error) {
	if err := validateRange(filters); err != nil {
		return nil, err
	}
	entries, err := s.repo.TimelineAll(ctx, filters)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"at", "actor_id", "actor_email", "action", "entity", "entity_id", "meta"}); err != nil {
		return nil, err
	}
	for _, e := range entries {
		meta := ""
		if len(e.Meta) > 0 {
			raw, err := json.Marshal(e.Meta)
			if err != nil {
				return nil, err
			}
			meta = string(raw)
		}
		record := []string{
			e.At.UTC().Format("2006-01-02T15:04:05Z"),
			strconv.FormatInt(e.ActorID, 10),
			e.ActorEmail,
			e.Action,
			e.Entity,
			e.EntityID,
			meta,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func validateRange(filters TimelineFilters) error {
	if !filters.From.IsZero() && !filters.To.IsZero() && filters.To.Before(filters.From) {
		return shared.NewValidationError("to", "range end precedes range start")
	}
	return nil
}
