package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tripdesk/tripdesk/internal/platform/httpx"
	"github.com/tripdesk/tripdesk/internal/rbac"
	"github.com/tripdesk/tripdesk/internal/shared"
)

// Handler manages user administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermManageUsers))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/restore", h.restore)
	})
}

type userResponse struct {
	ID          int64           `json:"id"`
	UUID        string          `json:"uuid"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	Role        string          `json:"role"`
	IsSuperuser bool            `json:"is_superuser"`
	IsActive    bool            `json:"is_active"`
	Profile     profileResponse `json:"profile"`
}

type profileResponse struct {
	Phone     *string `json:"phone"`
	AvatarURL *string `json:"avatar_url"`
	Locale    *string `json:"locale"`
}

func toUserResponse(u User) userResponse {
	return userResponse{
		ID:          u.ID,
		UUID:        u.UUID.String(),
		Email:       u.Email,
		Name:        u.Name,
		Role:        u.LegacyRole,
		IsSuperuser: u.IsSuperuser,
		IsActive:    u.IsActive,
		Profile: profileResponse{
			Phone:     u.Profile.Phone,
			AvatarURL: u.Profile.AvatarURL,
			Locale:    u.Profile.Locale,
		},
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	users, paging, err := h.service.List(r.Context(), ListFilters{
		Search:  q.Get("search"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": out, "pagination": paging})
}

type userRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	Name      string  `json:"name"`
	Role      string  `json:"role"`
	IsActive  *bool   `json:"is_active"`
	Phone     *string `json:"phone"`
	AvatarURL *string `json:"avatar_url"`
	Locale    *string `json:"locale"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "a valid email is required")
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	u, err := h.service.Create(r.Context(), User{
		Email:      req.Email,
		Name:       req.Name,
		LegacyRole: req.Role,
		IsActive:   active,
		Profile:    Profile{Phone: req.Phone, AvatarURL: req.AvatarURL, Locale: req.Locale},
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toUserResponse(u))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"
	u, err := h.service.Get(r.Context(), id, includeDeleted)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req userRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "a valid email is required")
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	u, err := h.service.Update(r.Context(), id, User{
		Email:      req.Email,
		Name:       req.Name,
		LegacyRole: req.Role,
		IsActive:   active,
		Profile:    Profile{Phone: req.Phone, AvatarURL: req.AvatarURL, Locale: req.Locale},
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Restore(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	u, err := h.service.Get(r.Context(), id, false)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var ve *shared.ValidationError
	switch {
	case errors.As(err, &ve):
		httpx.JSON(w, http.StatusBadRequest, map[string]any{"detail": ve.Error(), "field": ve.Field})
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	default:
		h.logger.Error("users handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
