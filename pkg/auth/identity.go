// Package auth implements the hybrid authentication and authorization
// core of the TalentForge API.
//
// Two credential families are accepted on the same endpoints: RS256
// tokens minted by the external identity provider and verified against
// its published JWKS, and HS256 tokens minted locally with a shared
// secret. An unverified structural decode routes each token to exactly
// one verification path; classification itself never grants trust.
//
// Whatever the path, verification produces the same [Identity] shape, so
// handlers never branch on credential origin. The [Gate] middleware wires
// extraction, classification, verification, normalization, and role
// enforcement into an http.Handler chain.
package auth

import (
	"github.com/google/uuid"

	"github.com/talentforge/talentforge-api/pkg/models"
)

// AuthSource records which verification path authenticated a request.
type AuthSource string

const (
	SourceExternal AuthSource = "external"
	SourceLocal    AuthSource = "local"
)

// Identity is the normalized result of verifying any accepted credential.
//
// Subject is always populated: the provider subject ("google-oauth2|123")
// on the external path, and a synthesized "local|<id>" on the local path,
// so downstream code can key off Subject without caring about origin.
type Identity struct {
	ID      uuid.UUID
	Email   string
	Role    models.Role
	Source  AuthSource
	Subject string
}

// LocalSubject synthesizes the Subject value for a locally verified
// user ID.
func LocalSubject(id uuid.UUID) string {
	return "local|" + id.String()
}
