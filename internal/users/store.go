// Package users persists marketplace user records. It provides the
// Postgres-backed store used in production and an in-memory store with
// identical semantics for tests.
//
// Both stores satisfy auth.UserStore: lookups miss with a not-found
// code, and Create reports uniqueness collisions with a conflict code
// so the authentication layer can resolve provisioning races.
package users

import (
	"context"

	"github.com/google/uuid"

	"github.com/talentforge/talentforge-api/pkg/models"
)

// Store is the full persistence surface of the user collaborator. It is
// a superset of auth.UserStore; the extra methods serve the HTTP layer.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByExternalSubject(ctx context.Context, subject string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context) ([]models.User, error)
}
