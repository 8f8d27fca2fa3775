package menu

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tripdesk/tripdesk/internal/nav"
	"github.com/tripdesk/tripdesk/internal/platform/httpx"
	"github.com/tripdesk/tripdesk/internal/rbac"
	"github.com/tripdesk/tripdesk/internal/shared"
)

// Handler wires menu builder administration and tree rendering endpoints.
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

// MountRoutes registers menu routes. The rendered tree is available to any
// authenticated principal; editing requires settings management.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/menus/{id}/tree", h.tree)

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermSettingsManage, shared.PermManageRoles))
		r.Get("/menus", h.listMenus)
		r.Post("/menus", h.createMenu)
		r.Get("/menus/{id}", h.getMenu)
		r.Delete("/menus/{id}", h.deleteMenu)
		r.Get("/menus/{id}/items", h.listItems)
		r.Post("/menus/{id}/items", h.createItem)
		r.Put("/menus/{id}/reorder", h.reorder)
		r.Put("/items/{id}", h.updateItem)
		r.Delete("/items/{id}", h.deleteItem)
		r.Get("/pages", h.listPages)
	})
}

type menuResponse struct {
	ID       int64  `json:"id"`
	UUID     string `json:"uuid"`
	Name     string `json:"name"`
	Location string `json:"location"`
	IsActive bool   `json:"is_active"`
}

func toMenuResponse(m Menu) menuResponse {
	return menuResponse{ID: m.ID, UUID: m.UUID.String(), Name: m.Name, Location: m.Location, IsActive: m.IsActive}
}

func (h *Handler) listMenus(w http.ResponseWriter, r *http.Request) {
	menus, err := h.service.ListMenus(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]menuResponse, 0, len(menus))
	for _, m := range menus {
		out = append(out, toMenuResponse(m))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"menus": out})
}

type menuRequest struct {
	Name     string `json:"name" validate:"required"`
	Location string `json:"location" validate:"required"`
}

func (h *Handler) createMenu(w http.ResponseWriter, r *http.Request) {
	var req menuRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name and location are required")
		return
	}
	m, err := h.service.CreateMenu(r.Context(), req.Name, req.Location)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMenuResponse(m))
}

func (h *Handler) getMenu(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	m, err := h.service.GetMenu(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMenuResponse(m))
}

func (h *Handler) deleteMenu(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteMenu(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) tree(w http.ResponseWriter, r *http.Request) {
	if shared.PrincipalFromContext(r.Context()) == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.service.GetMenu(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	nodes, err := h.service.Tree(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if nodes == nil {
		nodes = []nav.Node{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"menu": nodes})
}

type itemResponse struct {
	ID          int64    `json:"id"`
	UUID        string   `json:"uuid"`
	MenuID      int64    `json:"menu_id"`
	ParentID    *int64   `json:"parent_id"`
	PageID      *int64   `json:"page_id"`
	LinkType    string   `json:"link_type"`
	CustomLabel *string  `json:"custom_label"`
	CustomPath  *string  `json:"custom_path"`
	URL         *string  `json:"url"`
	Icon        *string  `json:"icon"`
	Permission  []string `json:"permission"`
	SortOrder   int      `json:"sort_order"`
	IsActive    bool     `json:"is_active"`
}

func toItemResponse(it Item) itemResponse {
	return itemResponse{
		ID:          it.ID,
		UUID:        it.UUID.String(),
		MenuID:      it.MenuID,
		ParentID:    it.ParentID,
		PageID:      it.PageID,
		LinkType:    it.LinkType,
		CustomLabel: it.CustomLabel,
		CustomPath:  it.CustomPath,
		URL:         it.URL,
		Icon:        it.Icon,
		Permission:  it.Permission,
		SortOrder:   it.SortOrder,
		IsActive:    it.IsActive,
	}
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	items, err := h.service.ListItems(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResponse(it))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out})
}

type itemRequest struct {
	ParentID    *int64   `json:"parent_id"`
	PageID      *int64   `json:"page_id"`
	LinkType    string   `json:"link_type" validate:"required"`
	CustomLabel *string  `json:"custom_label"`
	CustomPath  *string  `json:"custom_path"`
	URL         *string  `json:"url"`
	Icon        *string  `json:"icon"`
	Permission  []string `json:"permission"`
	SortOrder   int      `json:"sort_order"`
	IsActive    *bool    `json:"is_active"`
}

func (req itemRequest) toItem() Item {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return Item{
		ParentID:    req.ParentID,
		PageID:      req.PageID,
		LinkType:    req.LinkType,
		CustomLabel: req.CustomLabel,
		CustomPath:  req.CustomPath,
		URL:         req.URL,
		Icon:        req.Icon,
		Permission:  req.Permission,
		SortOrder:   req.SortOrder,
		IsActive:    active,
	}
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	menuID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "link_type is required")
		return
	}
	it := req.toItem()
	it.MenuID = menuID
	actor := shared.PrincipalFromContext(r.Context())
	created, err := h.service.CreateItem(r.Context(), actorID(actor), it)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toItemResponse(created))
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "link_type is required")
		return
	}
	actor := shared.PrincipalFromContext(r.Context())
	updated, err := h.service.UpdateItem(r.Context(), actorID(actor), id, req.toItem())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(updated))
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor := shared.PrincipalFromContext(r.Context())
	if err := h.service.DeleteItem(r.Context(), actorID(actor), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reorderRequest struct {
	Order []ReorderEntry `json:"order"`
}

func (h *Handler) reorder(w http.ResponseWriter, r *http.Request) {
	menuID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req reorderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "order must be a list of {id, sort_order} entries")
		return
	}
	actor := shared.PrincipalFromContext(r.Context())
	if err := h.service.Reorder(r.Context(), actorID(actor), menuID, req.Order); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pageResponse struct {
	ID          int64    `json:"id"`
	UUID        string   `json:"uuid"`
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Path        string   `json:"path"`
	DefaultIcon string   `json:"default_icon"`
	Permission  []string `json:"permission"`
	Type        string   `json:"type"`
	IsActive    bool     `json:"is_active"`
}

func (h *Handler) listPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.service.ListPages(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]pageResponse, 0, len(pages))
	for _, p := range pages {
		out = append(out, pageResponse{
			ID:          p.ID,
			UUID:        p.UUID.String(),
			Key:         p.Key,
			Title:       p.Title,
			Path:        p.Path,
			DefaultIcon: p.DefaultIcon,
			Permission:  p.Permission,
			Type:        p.Type,
			IsActive:    p.IsActive,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pages": out})
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
		h.logger.Error("menu handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func actorID(p *shared.Principal) int64 {
	if p == nil {
		return 0
	}
	return p.ID
}
