package domain

import (
	"errors"
	"time"
)

// User is an account authenticated through the external identity provider.
type User struct {
	ID         string
	ProviderID string
	Login      string
	Role       Role
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Role decides what a user may do beyond submitting their own signals.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
)

// Validate validates the user for persistence. Returns an error describing the first validation failure.
// An empty role defaults to student.
func (u *User) Validate() error {
	if u.ProviderID == "" {
		return errors.New("provider id is required")
	}
	if u.Login == "" {
		return errors.New("login is required")
	}
	if u.Role == "" {
		u.Role = RoleStudent
	}
	if u.Role != RoleStudent && u.Role != RoleInstructor {
		return errors.New("role must be student or instructor")
	}
	return nil
}
