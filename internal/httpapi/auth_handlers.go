package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talentforge/talentforge-api/internal/users"
	"github.com/talentforge/talentforge-api/pkg/auth"
	apperr "github.com/talentforge/talentforge-api/pkg/errors"
	"github.com/talentforge/talentforge-api/pkg/models"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string      `json:"token"`
	Role  models.Role `json:"role"`
}

// handleRegister creates a local account and hands back a token, so
// registration doubles as first login.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperr.Wrap(err, apperr.CodeValidationFailed, "request body is not valid JSON"))
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		s.writeError(w, apperr.New(apperr.CodeValidationFormat, "a valid email is required"))
		return
	}

	hash, err := users.HashPassword(req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        req.Email,
		Name:         strings.TrimSpace(req.Name),
		Role:         models.RoleUser,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(r.Context(), user); err != nil {
		if apperr.IsConflict(err) {
			s.writeError(w, apperr.New(apperr.CodeConflict, "an account with that email already exists"))
			return
		}
		s.writeError(w, err)
		return
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info().Str("user_id", user.ID.String()).Msg("registered local account")
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token, Role: user.Role})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin verifies local credentials and mints a token. Unknown
// email and wrong password are indistinguishable to the client.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperr.Wrap(err, apperr.CodeValidationFailed, "request body is not valid JSON"))
		return
	}

	badCredentials := apperr.New(apperr.CodeAuthenticationLocalFailed, "Invalid email or password")

	user, err := s.store.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if apperr.IsNotFound(err) {
			s.writeError(w, badCredentials)
			return
		}
		s.writeError(w, err)
		return
	}
	if err := users.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		s.writeError(w, badCredentials)
		return
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, Role: user.Role})
}

// handleExternalSync answers the post-login sync call the frontend makes
// after an external provider flow. The gate has already verified the
// token and provisioned or linked the record; this handler just returns
// the resulting account.
func (s *Server) handleExternalSync(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		s.writeError(w, apperr.New(apperr.CodeAuthenticationMissing, "No token provided"))
		return
	}
	if identity.Source != auth.SourceExternal {
		s.writeError(w, apperr.Validation("External login sync requires an external provider token"))
		return
	}

	user, err := s.store.GetByExternalSubject(r.Context(), identity.Subject)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
