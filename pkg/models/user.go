// Package models defines the data types shared between the authentication
// core and the HTTP layer.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of account roles. Role is a property of the
// stored user record only; tokens never carry role authority.
type Role string

const (
	RoleUser         Role = "user"
	RoleAdmin        Role = "admin"
	RoleProfessional Role = "professional"
	RoleRecruiter    Role = "recruiter"
)

// ParseRole validates a role string against the closed set.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAdmin, RoleProfessional, RoleRecruiter:
		return Role(s), true
	}
	return "", false
}

// ProviderBinding links a user record to one external identity provider
// account. Subject is the provider-scoped subject ("provider|id").
type ProviderBinding struct {
	Provider string    `json:"provider"`
	Subject  string    `json:"subject"`
	Picture  string    `json:"picture,omitempty"`
	LinkedAt time.Time `json:"linked_at"`
}

// User is a marketplace account record.
//
// ExternalSubject holds the subject of the external credential that
// provisioned or linked this account, empty for purely local accounts.
// PasswordHash is empty for accounts provisioned from an external
// provider that never set a password.
type User struct {
	ID              uuid.UUID         `json:"id"`
	Email           string            `json:"email"`
	Name            string            `json:"name"`
	Role            Role              `json:"role"`
	PasswordHash    string            `json:"-"`
	ExternalSubject string            `json:"-"`
	Picture         string            `json:"picture,omitempty"`
	ProfileComplete bool              `json:"profile_complete"`
	Providers       []ProviderBinding `json:"providers,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// HasProvider reports whether the user is already linked to the given
// provider subject.
func (u *User) HasProvider(subject string) bool {
	for _, b := range u.Providers {
		if b.Subject == subject {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the record carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
