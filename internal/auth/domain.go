// Package auth implements credential checks, session registration, and the
// middleware that resolves the session into the request principal. It is the
// only package that reads password hashes; everything downstream works with
// the principal from request context.
package auth

import "time"

// Credential is the authentication view of a user account.
type Credential struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	LegacyRole   string
	IsSuperuser  bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
