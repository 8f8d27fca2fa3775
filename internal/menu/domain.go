// Package menu implements the administrator-editable menu builder. Unlike
// the static registry in package nav, these trees are mutated at runtime, so
// every write validates parent assignments against cycles and the two-level
// depth rule.
package menu

import (
	"time"

	"github.com/google/uuid"
)

// Link types for menu items.
const (
	LinkInternal = "internal"
	LinkExternal = "external"
)

// Page registry types.
const (
	PageTypeSystem     = "SYSTEM"
	PageTypeCMS        = "CMS"
	PageTypeCustomLink = "CUSTOM_LINK"
)

// MaxDepth is the deepest allowed nesting: a parent and one level of
// children.
const MaxDepth = 2

// Menu is a named container of items bound to a client location (sidebar,
// footer). Location is unique.
type Menu struct {
	ID        int64
	UUID      uuid.UUID
	Name      string
	Location  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	IsDeleted bool
	DeletedAt *time.Time
}

// Page is a registry entry describing a linkable destination with its
// default presentation and permission gate.
type Page struct {
	ID          int64
	UUID        uuid.UUID
	Key         string
	Title       string
	Path        string
	DefaultIcon string
	Permission  []string
	Type        string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	IsDeleted   bool
	DeletedAt   *time.Time
}

// Item is one node in an editable menu: either a reference to a registry
// page or a custom link, with optional per-item overrides. Items are
// addressed by identifier with parent pointers; the object graph is never
// mutated in place.
type Item struct {
	ID          int64
	UUID        uuid.UUID
	MenuID      int64
	ParentID    *int64
	PageID      *int64
	LinkType    string
	CustomLabel *string
	CustomPath  *string
	URL         *string
	Icon        *string
	Permission  []string
	SortOrder   int
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	IsDeleted   bool
	DeletedAt   *time.Time
}

// ReorderEntry assigns a new sort position to one item.
type ReorderEntry struct {
	ID        int64 `json:"id"`
	SortOrder int   `json:"sort_order"`
}
