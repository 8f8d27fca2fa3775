package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tripdesk/tripdesk/internal/nav"
	"github.com/tripdesk/tripdesk/internal/platform/httpx"
	"github.com/tripdesk/tripdesk/internal/shared"
)

// Handler wires the RBAC administration and dashboard-config endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	registry  *nav.Registry
	rbac      Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, registry *nav.Registry, rbac Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		registry:  registry,
		rbac:      rbac,
		validator: validator.New(),
	}
}

// MountRoutes registers RBAC routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard/config", h.dashboardConfig)

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermViewPermissions, shared.PermManageRoles))
		r.Get("/permissions", h.listPermissions)
	})

	r.Route("/roles", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny(shared.PermManageRoles))
			r.Get("/", h.listRoles)
			r.Post("/", h.createRole)
			r.Get("/{id}", h.getRole)
			r.Put("/{id}", h.updateRole)
			r.Delete("/{id}", h.deleteRole)
			r.Post("/{id}/restore", h.restoreRole)
			r.Delete("/{id}/purge", h.hardDeleteRole)
			r.Put("/{id}/permissions", h.setRolePermissions)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermManageUsers))
		r.Get("/users/{id}/roles", h.getUserRoles)
		r.Put("/users/{id}/roles", h.setUserRoles)
	})
}

func (h *Handler) dashboardConfig(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	cfg, err := h.service.BuildDashboardConfig(r.Context(), principal, h.registry)
	if err != nil {
		h.logger.Error("dashboard config", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, cfg)
}

type permissionResponse struct {
	ID          int64  `json:"id"`
	UUID        string `json:"uuid"`
	Code        string `json:"code"`
	Module      string `json:"module"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionResponse{
			ID:          p.ID,
			UUID:        p.UUID.String(),
			Code:        p.Code,
			Module:      p.Module,
			Action:      p.Action,
			Description: p.Description,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": out})
}

type roleResponse struct {
	ID          int64    `json:"id"`
	UUID        string   `json:"uuid"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
	IsDeleted   bool     `json:"is_deleted,omitempty"`
}

func toRoleResponse(role Role) roleResponse {
	perms := role.Permissions
	if perms == nil {
		perms = []string{}
	}
	return roleResponse{
		ID:          role.ID,
		UUID:        role.UUID.String(),
		Name:        role.Name,
		Slug:        role.Slug,
		Description: role.Description,
		Permissions: perms,
		IsDeleted:   role.IsDeleted,
	}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

type roleRequest struct {
	Name        string `json:"name" validate:"required"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name is required")
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Name, req.Slug, req.Description)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"
	role, err := h.service.GetRole(r.Context(), id, includeDeleted)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name is required")
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, req.Name, req.Slug, req.Description)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) restoreRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.RestoreRole(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	role, err := h.service.GetRole(r.Context(), id, false)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) hardDeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.HardDeleteRole(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setPermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

func (h *Handler) setRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req setPermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "permissions must be a list of permission codes")
		return
	}
	actor := shared.PrincipalFromContext(r.Context())
	role, err := h.service.SetRolePermissions(r.Context(), actorID(actor), id, req.Permissions)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) getUserRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	roles, err := h.service.UserRoles(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	slugs := make([]string, 0, len(roles))
	for _, role := range roles {
		slugs = append(slugs, role.Slug)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "roles": slugs})
}

type setRolesRequest struct {
	Roles []string `json:"roles"`
}

func (h *Handler) setUserRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req setRolesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "roles must be a list of role slugs")
		return
	}
	actor := shared.PrincipalFromContext(r.Context())
	roles, err := h.service.SetUserRoles(r.Context(), actorID(actor), id, req.Roles)
	if err != nil {
		h.respondError(w, err)
		return
	}
	slugs := make([]string, 0, len(roles))
	for _, role := range roles {
		slugs = append(slugs, role.Slug)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "roles": slugs})
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
		payload := map[string]any{"detail": ve.Error(), "field": ve.Field}
		if len(ve.Missing) > 0 {
			payload["missing"] = ve.Missing
		}
		httpx.JSON(w, http.StatusBadRequest, payload)
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	default:
		h.logger.Error("rbac handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func actorID(p *shared.Principal) int64 {
	if p == nil {
		return 0
	}
	return p.ID
}
