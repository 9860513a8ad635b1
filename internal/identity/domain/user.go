// Package domain defines the account entities behind authentication.
package domain

import (
	"errors"
	"time"
)

// User is an account within the platform.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      string // viewer, developer, admin, owner
	Status    UserStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// Active reports whether the account may authenticate.
func (u *User) Active() bool {
	return u.Status == UserStatusActive
}

// Validate validates the user for persistence. Returns an error describing
// the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("user: id is required")
	}
	if u.Email == "" {
		return errors.New("user: email is required")
	}
	if u.Role == "" {
		return errors.New("user: role is required")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}
