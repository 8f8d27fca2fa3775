package users

import (
	"time"

	"github.com/google/uuid"
)

// User represents a principal account. Email is unique under case-insensitive
// comparison. LegacyRole is the pre-RBAC single role label, retained for
// backward compatibility but not authoritative; effective permissions come
// from the RBAC resolver.
type User struct {
	ID          int64
	UUID        uuid.UUID
	Email       string
	Name        string
	LegacyRole  string
	IsSuperuser bool
	IsActive    bool
	Profile     Profile
	CreatedAt   time.Time
	UpdatedAt   time.Time
	IsDeleted   bool
	DeletedAt   *time.Time
}

// Legacy role labels.
const (
	LegacyRoleAdmin    = "admin"
	LegacyRoleCustomer = "customer"
)

// Profile is the optional-field extension of a user record. Fields are
// defined but nullable, so clients always know the schema regardless of
// which fields a given account has filled in.
type Profile struct {
	Phone     *string
	AvatarURL *string
	Locale    *string
}

// ListFilters narrows and pages user listings.
type ListFilters struct {
	Search  string
	Page    int
	PerPage int
}
