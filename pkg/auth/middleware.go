package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	apperr "github.com/talentforge/talentforge-api/pkg/errors"
	"github.com/talentforge/talentforge-api/pkg/models"
)

// TokenAuthenticator lets the gate be tested with a stub in place of the
// full Authenticator.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, tokenStr string) (*Identity, error)
}

// Observer receives one event per gate decision. Implemented by the
// metrics layer; a nil observer disables observation.
type Observer interface {
	AuthOutcome(source, outcome string)
}

// Gate is the authorization middleware chain. Ordering is fixed:
// extraction, classification, verification, and normalization always run
// before any role check, so a missing or bad credential is a 401 and
// only an authenticated-but-unprivileged request can see a 403.
type Gate struct {
	auth          TokenAuthenticator
	store         UserStore
	logger        zerolog.Logger
	observer      Observer
	exposeDetails bool
}

// GateOption customizes a Gate.
type GateOption func(*Gate)

// WithExposedDetails includes failure details in 401 bodies. Enable
// outside production only.
func WithExposedDetails() GateOption {
	return func(g *Gate) { g.exposeDetails = true }
}

// WithObserver registers a gate decision observer.
func WithObserver(o Observer) GateOption {
	return func(g *Gate) { g.observer = o }
}

// NewGate builds the middleware set around an authenticator and the
// user store used for record loading.
func NewGate(auth TokenAuthenticator, store UserStore, logger zerolog.Logger, opts ...GateOption) *Gate {
	g := &Gate{
		auth:   auth,
		store:  store,
		logger: logger.With().Str("component", "gate").Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate extracts a credential from the Authorization header or
// the "token" query parameter, verifies it, and attaches the normalized
// identity to the request context. Requests without a valid credential
// never reach the wrapped handler.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, ok := extractToken(r)
		if !ok {
			g.observe("none", "missing")
			g.writeAuthFailure(w, apperr.New(apperr.CodeAuthenticationMissing, "auth: no token provided"))
			return
		}

		identity, err := g.auth.Authenticate(r.Context(), tokenStr)
		if err != nil {
			// Infrastructure faults are not credential rejections. A store
			// outage during verification must surface as a 500, never as
			// a 401 blaming the caller's token.
			if apperr.IsServerError(err) {
				g.observe(sourceOf(err), "error")
				g.logger.Error().Err(err).Msg("authentication infrastructure failure")
				writeJSON(w, http.StatusInternalServerError, failureBody{
					Error:   "Internal Server Error",
					Message: "Unable to verify credentials",
				})
				return
			}
			g.observe(sourceOf(err), "rejected")
			g.writeAuthFailure(w, err)
			return
		}

		g.observe(string(identity.Source), "accepted")
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// LoadUser attaches the full user record for the authenticated identity.
// Best effort: a load failure is logged and the request proceeds with
// the identity alone, so read-mostly routes stay up through storage
// blips. Role-checking middleware does its own mandatory load.
func (g *Gate) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := IdentityFrom(r.Context()); ok {
			if user, err := g.loadRecord(r.Context(), identity); err != nil {
				g.logger.Warn().Err(err).Str("user_id", identity.ID.String()).Msg("best-effort user load failed")
			} else {
				r = r.WithContext(WithUser(r.Context(), user))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole enforces that the authenticated identity's stored record
// carries the given role. It must be layered inside Authenticate. The
// record is loaded fresh when not already in context; here a load
// failure is a 500, because the role decision cannot be made without it.
func (g *Gate) RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFrom(r.Context())
			if !ok {
				g.writeAuthFailure(w, apperr.New(apperr.CodeAuthenticationMissing, "auth: no token provided"))
				return
			}

			user, loaded := UserFrom(r.Context())
			if !loaded {
				var err error
				user, err = g.loadRecord(r.Context(), identity)
				if err != nil {
					g.logger.Error().Err(err).Str("user_id", identity.ID.String()).Msg("role check record load failed")
					writeJSON(w, http.StatusInternalServerError, failureBody{
						Error:   "Internal Server Error",
						Message: "Unable to verify privileges",
					})
					return
				}
				r = r.WithContext(WithUser(r.Context(), user))
			}

			if user.Role != role {
				g.observe(string(identity.Source), "forbidden")
				writeJSON(w, http.StatusForbidden, failureBody{
					Error:   "Forbidden",
					Message: forbiddenMessage(role),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is RequireRole for the admin role.
func (g *Gate) RequireAdmin(next http.Handler) http.Handler {
	return g.RequireRole(models.RoleAdmin)(next)
}

// loadRecord fetches the stored record behind an identity, keyed by
// external subject or primary key depending on the verification path.
func (g *Gate) loadRecord(ctx context.Context, identity *Identity) (*models.User, error) {
	if identity.Source == SourceExternal {
		return g.store.GetByExternalSubject(ctx, identity.Subject)
	}
	return g.store.GetByID(ctx, identity.ID)
}

func (g *Gate) observe(source, outcome string) {
	if g.observer != nil {
		g.observer.AuthOutcome(source, outcome)
	}
}

// extractToken pulls the credential from "Authorization: Bearer <t>",
// falling back to the "token" query parameter for websocket-style
// clients that cannot set headers.
func extractToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token != "" {
			return token, true
		}
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

// failureBody is the wire shape of every gate rejection.
type failureBody struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// writeAuthFailure renders a 401 with a deliberately coarse message.
// The four client-visible variants reveal only which path rejected the
// credential, never why.
func (g *Gate) writeAuthFailure(w http.ResponseWriter, err error) {
	body := failureBody{Error: "Unauthorized", Message: clientMessage(err)}
	if g.exposeDetails {
		if appErr, ok := apperr.AsError(err); ok {
			body.Details = failureDetails(appErr)
		}
	}
	writeJSON(w, http.StatusUnauthorized, body)
}

// clientMessage maps internal failure codes to the stable client-facing
// message set.
func clientMessage(err error) string {
	switch apperr.GetCode(err) {
	case apperr.CodeAuthenticationMissing:
		return "No token provided"
	case apperr.CodeAuthenticationMalformed:
		return "Invalid token format"
	case apperr.CodeAuthenticationLocalFailed, apperr.CodeAuthenticationSubjectGone:
		return "Invalid or expired local token"
	default:
		// Covers verification and key material failures alike; phrasing
		// follows the path that handled the token.
		if sourceOf(err) == string(ClassLocal) {
			return "Invalid or expired local token"
		}
		return "Invalid or expired external token"
	}
}

func failureDetails(appErr *apperr.Error) map[string]any {
	details := map[string]any{"code": appErr.Code.String()}
	for k, v := range appErr.Details {
		details[k] = v
	}
	if appErr.Cause != nil {
		details["reason"] = appErr.Cause.Error()
	}
	return details
}

// sourceOf recovers the verification path from a tagged failure for
// metrics labeling.
func sourceOf(err error) string {
	if appErr, ok := apperr.AsError(err); ok {
		if s, ok := appErr.Detail("auth_source").(string); ok {
			return s
		}
	}
	return "unknown"
}

func forbiddenMessage(role models.Role) string {
	if role == models.RoleAdmin {
		return "Access denied: administrator privileges required"
	}
	return "Access denied: " + string(role) + " privileges required"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
