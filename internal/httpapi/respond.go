// Package httpapi wires the TalentForge REST surface: public auth
// endpoints, gated user endpoints, the admin surface, and operational
// endpoints (health, version, metrics).
package httpapi

import (
	"encoding/json"
	"net/http"

	apperr "github.com/talentforge/talentforge-api/pkg/errors"
)

// errorBody is the uniform failure shape of the API.
type errorBody struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError renders any error as the API failure shape, using the
// structured code's status mapping. Details are included only when the
// server runs with exposed details.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	body := errorBody{
		Error:   http.StatusText(status),
		Message: clientSafeMessage(err, status),
	}
	if s.exposeDetails {
		if appErr, ok := apperr.AsError(err); ok {
			body.Details = map[string]any{"code": appErr.Code.String()}
			for k, v := range appErr.Details {
				body.Details[k] = v
			}
		}
	}
	writeJSON(w, status, body)
}

// clientSafeMessage passes through messages for client-fault categories
// and hides server-fault internals.
func clientSafeMessage(err error, status int) string {
	if status >= http.StatusInternalServerError {
		return "Something went wrong"
	}
	if appErr, ok := apperr.AsError(err); ok {
		return appErr.Message
	}
	return http.StatusText(status)
}
