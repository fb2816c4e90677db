package users

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperr "github.com/talentforge/talentforge-api/pkg/errors"
	"github.com/talentforge/talentforge-api/pkg/models"
)

// MemoryStore is an in-process Store with the same error semantics as
// the Postgres store. It backs unit tests and local development without
// a database.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[uuid.UUID]*models.User)}
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "users: user not found")
	}
	return cloneUser(user), nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			return cloneUser(user), nil
		}
	}
	return nil, apperr.New(apperr.CodeNotFound, "users: no user with that email")
}

func (s *MemoryStore) GetByExternalSubject(_ context.Context, subject string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if subject != "" {
		for _, user := range s.users {
			if user.ExternalSubject == subject {
				return cloneUser(user), nil
			}
		}
	}
	return nil, apperr.New(apperr.CodeNotFound, "users: no user with that external subject")
}

func (s *MemoryStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email ||
			(user.ExternalSubject != "" && existing.ExternalSubject == user.ExternalSubject) {
			return apperr.New(apperr.CodeConflict, "users: email or external subject already registered")
		}
	}
	if _, ok := s.users[user.ID]; ok {
		return apperr.New(apperr.CodeConflict, "users: duplicate user ID")
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return apperr.New(apperr.CodeNotFound, "users: user not found")
	}
	user.UpdatedAt = time.Now().UTC()
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, *cloneUser(user))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// cloneUser keeps callers from mutating stored state through shared
// slices.
func cloneUser(u *models.User) *models.User {
	c := *u
	c.Providers = append([]models.ProviderBinding(nil), u.Providers...)
	return &c
}
