package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tripdesk/tripdesk/internal/platform/httpx"
	"github.com/tripdesk/tripdesk/internal/rbac"
	"github.com/tripdesk/tripdesk/internal/shared"
)

// Handler exposes the audit timeline over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers audit routes. The trail is a settings-management
// surface.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermSettingsManage, shared.PermManageRoles))
		r.Get("/audit", h.timeline)
		r.Get("/audit/export", h.export)
	})
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	entries, paging, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries, "pagination": paging})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	data, err := h.service.ExportCSV(r.Context(), filters)
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	filters := TimelineFilters{
		Entity: q.Get("entity"),
		Action: q.Get("action"),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return TimelineFilters{}, shared.NewValidationError("from", "from must be RFC 3339")
		}
		filters.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return TimelineFilters{}, shared.NewValidationError("to", "to must be RFC 3339")
		}
		filters.To = t
	}
	if v := q.Get("actor_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return TimelineFilters{}, shared.NewValidationError("actor_id", "actor_id must be a positive integer")
		}
		filters.ActorID = id
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	return filters, nil
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if !shared.IsValidation(err) {
		h.logger.Error("audit handler", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
