package domain

import (
	"strings"
	"time"
)

// Role tags an Identity as a teacher or a student.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// ParseRole parses a role name, defaulting an empty string to RoleTeacher.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return RoleTeacher, nil
	}
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// Identity is a persisted account. Teachers and students share the same capability
// set; Role says which table owns the row.
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (i Identity) IsTeacher() bool { return i.Role == RoleTeacher }
func (i Identity) IsStudent() bool { return i.Role == RoleStudent }

// NewIdentity carries what is needed to materialize an Identity after a verified signup.
type NewIdentity struct {
	Email        string
	Name         string
	PasswordHash string
	Role         Role
}

// NormalizeEmail lowercases and trims an email so it can be used as a subject key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
