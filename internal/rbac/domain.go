package rbac

import (
	"time"

	"github.com/google/uuid"
)

// Record carries the persistence fields shared by every RBAC entity: a
// stable identifier, a correlation UUID for cross-system references, audit
// timestamps and soft-delete state. Deleting a record is a state transition;
// default reads exclude deleted rows.
type Record struct {
	ID        int64
	UUID      uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	IsDeleted bool
	DeletedAt *time.Time
}

// Permission represents an atomic capability in the catalog. The code is
// globally unique and immutable once created; changing a code means
// delete + recreate so stale codes can never silently re-grant access.
type Permission struct {
	Record
	Code        string
	Module      string
	Action      string
	Description string
}

// Role is a named, reusable bundle of permission codes. Slug is unique under
// case-insensitive comparison.
type Role struct {
	Record
	Name        string
	Slug        string
	Description string
	Permissions []string
}

// UserRole links a user to a role. AssignedBy is a weak reference to the
// administrator who made the assignment.
type UserRole struct {
	ID           int64
	UserID       int64
	RoleID       int64
	AssignedByID *int64
	AssignedAt   time.Time
}

// PermissionSeed describes one catalog entry for idempotent seeding.
type PermissionSeed struct {
	Code        string
	Module      string
	Action      string
	Description string
}

// RoleSeed describes a default role and its granted codes for seeding.
type RoleSeed struct {
	Name        string
	Slug        string
	Description string
	Permissions []string
}
