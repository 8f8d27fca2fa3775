package menu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tripdesk/tripdesk/internal/nav"
	"github.com/tripdesk/tripdesk/internal/shared"
)

// RepositoryPort defines data access methods for the menu builder.
type RepositoryPort interface {
	ListMenus(ctx context.Context) ([]Menu, error)
	GetMenu(ctx context.Context, id int64) (Menu, error)
	CreateMenu(ctx context.Context, name, location string) (Menu, error)
	SoftDeleteMenu(ctx context.Context, id int64) error
	ListPages(ctx context.Context) ([]Page, error)
	GetPage(ctx context.Context, id int64) (Page, error)
	UpsertPage(ctx context.Context, p Page) (Page, error)
	ListItems(ctx context.Context, menuID int64) ([]Item, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	CreateItem(ctx context.Context, it Item) (Item, error)
	UpdateItem(ctx context.Context, id int64, it Item) (Item, error)
	SoftDeleteItem(ctx context.Context, id int64) error
	ReorderItems(ctx context.Context, menuID int64, order []ReorderEntry) error
}

// Service handles menu builder business logic.
type Service struct {
	repo   RepositoryPort
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// ListMenus returns all active menus.
func (s *Service) ListMenus(ctx context.Context) ([]Menu, error) {
	return s.repo.ListMenus(ctx)
}

// GetMenu fetches an active menu.
func (s *Service) GetMenu(ctx context.Context, id int64) (Menu, error) {
	return s.repo.GetMenu(ctx, id)
}

// CreateMenu inserts a menu at a unique client location.
func (s *Service) CreateMenu(ctx context.Context, name, location string) (Menu, error) {
	name = strings.TrimSpace(name)
	location = strings.TrimSpace(strings.ToLower(location))
	if name == "" {
		return Menu{}, shared.NewValidationError("name", "name required")
	}
	if location == "" {
		return Menu{}, shared.NewValidationError("location", "location required")
	}
	m, err := s.repo.CreateMenu(ctx, name, location)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return Menu{}, shared.NewValidationError("location", "a menu already exists at this location")
		}
		return Menu{}, err
	}
	return m, nil
}

// DeleteMenu soft-deletes a menu.
func (s *Service) DeleteMenu(ctx context.Context, id int64) error {
	return s.repo.SoftDeleteMenu(ctx, id)
}

// ListPages returns the active page registry.
func (s *Service) ListPages(ctx context.Context) ([]Page, error) {
	return s.repo.ListPages(ctx)
}

// ListItems returns the flat active item list of a menu.
func (s *Service) ListItems(ctx context.Context, menuID int64) ([]Item, error) {
	if _, err := s.repo.GetMenu(ctx, menuID); err != nil {
		return nil, err
	}
	return s.repo.ListItems(ctx, menuID)
}

// CreateItem validates and inserts a new menu item.
func (s *Service) CreateItem(ctx context.Context, actorID int64, it Item) (Item, error) {
	if _, err := s.repo.GetMenu(ctx, it.MenuID); err != nil {
		return Item{}, err
	}
	if err := s.validateItem(ctx, it, 0); err != nil {
		return Item{}, err
	}
	created, err := s.repo.CreateItem(ctx, it)
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, actorID, "menu.item.create", "menu_item", created.ID)
	return created, nil
}

// UpdateItem validates and rewrites an existing item. Parent reassignment is
// checked against cycles through the stored parent chain.
func (s *Service) UpdateItem(ctx context.Context, actorID int64, id int64, it Item) (Item, error) {
	current, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	it.MenuID = current.MenuID
	if err := s.validateItem(ctx, it, id); err != nil {
		return Item{}, err
	}
	updated, err := s.repo.UpdateItem(ctx, id, it)
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, actorID, "menu.item.update", "menu_item", id)
	return updated, nil
}

// DeleteItem soft-deletes an item and its children.
func (s *Service) DeleteItem(ctx context.Context, actorID int64, id int64) error {
	if err := s.repo.SoftDeleteItem(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "menu.item.delete", "menu_item", id)
	return nil
}

// Reorder applies explicit sort positions to items of one menu, atomically.
func (s *Service) Reorder(ctx context.Context, actorID int64, menuID int64, order []ReorderEntry) error {
	if _, err := s.repo.GetMenu(ctx, menuID); err != nil {
		return err
	}
	if len(order) == 0 {
		return shared.NewValidationError("order", "order required")
	}
	seen := make(map[int64]struct{}, len(order))
	for _, entry := range order {
		if entry.ID <= 0 {
			return shared.NewValidationError("order", "invalid item id")
		}
		if _, dup := seen[entry.ID]; dup {
			return shared.NewValidationError("order", "duplicate item id")
		}
		seen[entry.ID] = struct{}{}
	}
	if err := s.repo.ReorderItems(ctx, menuID, order); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "menu.reorder", "menu", menuID)
	return nil
}

// Tree renders a menu as nested navigable nodes ordered by (sort_order, id).
// Inactive items are skipped; item overrides win over page defaults.
func (s *Service) Tree(ctx context.Context, menuID int64) ([]nav.Node, error) {
	items, err := s.repo.ListItems(ctx, menuID)
	if err != nil {
		return nil, err
	}

	pages := make(map[int64]Page)
	for _, it := range items {
		if it.PageID == nil {
			continue
		}
		if _, ok := pages[*it.PageID]; ok {
			continue
		}
		p, err := s.repo.GetPage(ctx, *it.PageID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		pages[*it.PageID] = p
	}

	children := make(map[int64][]Item)
	var roots []Item
	for _, it := range items {
		if !it.IsActive {
			continue
		}
		if it.ParentID == nil {
			roots = append(roots, it)
			continue
		}
		children[*it.ParentID] = append(children[*it.ParentID], it)
	}

	nodes := make([]nav.Node, 0, len(roots))
	for _, root := range roots {
		node, ok := s.renderNode(root, pages)
		if !ok {
			continue
		}
		if kids := children[root.ID]; len(kids) > 0 {
			rendered := make([]nav.Node, 0, len(kids))
			for _, kid := range kids {
				child, ok := s.renderNode(kid, pages)
				if !ok {
					continue
				}
				rendered = append(rendered, child)
			}
			node = node.WithChildren(rendered...)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (s *Service) renderNode(it Item, pages map[int64]Page) (nav.Node, bool) {
	node := nav.Node{Key: fmt.Sprintf("item-%d", it.ID)}

	switch it.LinkType {
	case LinkExternal:
		if it.URL == nil {
			return nav.Node{}, false
		}
		node.Path = *it.URL
	default:
		if it.PageID != nil {
			page, ok := pages[*it.PageID]
			if !ok || !page.IsActive {
				return nav.Node{}, false
			}
			node.Key = page.Key
			node.Label = page.Title
			node.Path = page.Path
			node.Icon = page.DefaultIcon
			if len(page.Permission) > 0 {
				node = node.Gated(page.Permission...)
			}
		} else if it.CustomPath != nil {
			node.Path = *it.CustomPath
		}
	}

	if it.CustomLabel != nil {
		node.Label = *it.CustomLabel
	}
	if it.Icon != nil {
		node.Icon = *it.Icon
	}
	if len(it.Permission) > 0 {
		node = node.Gated(it.Permission...)
	}
	if node.Label == "" {
		return nav.Node{}, false
	}
	return node, true
}

// validateItem checks link-type requirements and the parent assignment.
// selfID is zero for creates.
func (s *Service) validateItem(ctx context.Context, it Item, selfID int64) error {
	switch it.LinkType {
	case LinkInternal:
		if it.PageID != nil {
			if _, err := s.repo.GetPage(ctx, *it.PageID); err != nil {
				if errors.Is(err, ErrNotFound) {
					return shared.NewValidationError("page_id", "page not found")
				}
				return err
			}
		} else {
			if it.CustomPath == nil || !strings.HasPrefix(*it.CustomPath, "/") {
				return shared.NewValidationError("custom_path", "internal links need an absolute path starting with /")
			}
			if it.CustomLabel == nil || strings.TrimSpace(*it.CustomLabel) == "" {
				return shared.NewValidationError("custom_label", "custom links need a label")
			}
		}
	case LinkExternal:
		if it.URL == nil || (!strings.HasPrefix(*it.URL, "http://") && !strings.HasPrefix(*it.URL, "https://")) {
			return shared.NewValidationError("url", "external links need an http(s) URL")
		}
		if it.CustomLabel == nil || strings.TrimSpace(*it.CustomLabel) == "" {
			return shared.NewValidationError("custom_label", "external links need a label")
		}
	default:
		return shared.NewValidationError("link_type", "link_type must be internal or external")
	}

	if it.ParentID == nil {
		return nil
	}
	if selfID != 0 && *it.ParentID == selfID {
		return shared.NewValidationError("parent_id", "item cannot be its own parent")
	}
	parent, err := s.repo.GetItem(ctx, *it.ParentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return shared.NewValidationError("parent_id", "parent not found")
		}
		return err
	}
	if parent.MenuID != it.MenuID {
		return shared.NewValidationError("parent_id", "parent must belong to the same menu")
	}
	// Walk the parent chain: depth and cycle checks in one pass. The chain is
	// short (MaxDepth levels) so repeated lookups are fine.
	depth := 1
	cursor := parent
	visited := map[int64]struct{}{}
	if selfID != 0 {
		visited[selfID] = struct{}{}
	}
	for {
		if _, seen := visited[cursor.ID]; seen {
			return shared.NewValidationError("parent_id", "parent assignment would create a cycle")
		}
		visited[cursor.ID] = struct{}{}
		depth++
		if depth > MaxDepth {
			return shared.NewValidationError("parent_id", "menus support at most two levels")
		}
		if cursor.ParentID == nil {
			break
		}
		next, err := s.repo.GetItem(ctx, *cursor.ParentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				break
			}
			return err
		}
		cursor = next
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, entityID int64) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", entityID),
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
