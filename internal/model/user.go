package model

import (
	"strings"
	"time"
)

// Role is the closed set of authorization roles. Anything outside the
// three constants is treated as unknown and rejected at parse time.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleManager  Role = "Manager"
	RoleEmployee Role = "Employee"
)

// ParseRole matches a raw string against the closed role set,
// ignoring case and surrounding whitespace.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin":
		return RoleAdmin, true
	case "manager":
		return RoleManager, true
	case "employee":
		return RoleEmployee, true
	}
	return "", false
}

// RoleOrDefault parses raw and falls back to Employee when the value is
// empty or not part of the closed set.
func RoleOrDefault(raw string) Role {
	if r, ok := ParseRole(raw); ok {
		return r
	}
	return RoleEmployee
}

// User mirrors the `users` table. Username and email are stored
// lowercased, so uniqueness checks are case-insensitive.
// RefreshTokenHash holds the SHA-256 digest of the single outstanding
// refresh token (the raw value is never persisted); both refresh fields
// are null while no session is active. A new login or refresh overwrites
// them, which invalidates the previous session.
type User struct {
	ID                    uint64
	Username              string
	Email                 string
	PasswordHash          string
	Role                  Role
	IsActive              bool
	RefreshTokenHash      *string
	RefreshTokenExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
