package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/talentforge/talentforge-api/pkg/auth"
	apperr "github.com/talentforge/talentforge-api/pkg/errors"
	"github.com/talentforge/talentforge-api/pkg/models"
)

type meResponse struct {
	Identity identityView `json:"identity"`
	User     *models.User `json:"user,omitempty"`
}

type identityView struct {
	ID      string          `json:"id"`
	Email   string          `json:"email"`
	Role    models.Role     `json:"role"`
	Source  auth.AuthSource `json:"auth_source"`
	Subject string          `json:"subject"`
}

// handleMe returns the caller's identity, plus the full record when the
// best-effort load succeeded.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		s.writeError(w, apperr.New(apperr.CodeAuthenticationMissing, "No token provided"))
		return
	}

	resp := meResponse{Identity: identityView{
		ID:      identity.ID.String(),
		Email:   identity.Email,
		Role:    identity.Role,
		Source:  identity.Source,
		Subject: identity.Subject,
	}}
	if user, ok := auth.UserFrom(r.Context()); ok {
		resp.User = user
	}
	writeJSON(w, http.StatusOK, resp)
}

type completeProfileRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// handleCompleteProfile finalizes a provisioned account: the user picks
// a marketplace role and confirms their name. Admin cannot be
// self-assigned here.
func (s *Server) handleCompleteProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		s.writeError(w, apperr.New(apperr.CodeAuthenticationMissing, "No token provided"))
		return
	}

	var req completeProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperr.Wrap(err, apperr.CodeValidationFailed, "request body is not valid JSON"))
		return
	}

	// Profile completion mutates the record, so the load is mandatory.
	user, err := s.loadIdentityRecord(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if req.Role != "" {
		role, valid := models.ParseRole(req.Role)
		if !valid || role == models.RoleAdmin {
			s.writeError(w, apperr.Newf(apperr.CodeValidationFormat, "role %q is not selectable", req.Role))
			return
		}
		user.Role = role
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		user.Name = name
	}
	user.ProfileComplete = true

	if err := s.store.Update(r.Context(), user); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info().Str("user_id", identity.ID.String()).Msg("profile completed")
	writeJSON(w, http.StatusOK, user)
}

// loadIdentityRecord fetches the stored record behind the request's
// identity, keyed by external subject or primary key per auth source.
func (s *Server) loadIdentityRecord(r *http.Request) (*models.User, error) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		return nil, apperr.New(apperr.CodeAuthenticationMissing, "No token provided")
	}
	if user, ok := auth.UserFrom(r.Context()); ok {
		return user, nil
	}
	if identity.Source == auth.SourceExternal {
		return s.store.GetByExternalSubject(r.Context(), identity.Subject)
	}
	return s.store.GetByID(r.Context(), identity.ID)
}

// handleListUsers is the admin account listing.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": all,
		"count": len(all),
	})
}
