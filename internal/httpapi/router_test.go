package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentforge/talentforge-api/internal/obs"
	"github.com/talentforge/talentforge-api/internal/users"
	"github.com/talentforge/talentforge-api/pkg/auth"
	"github.com/talentforge/talentforge-api/pkg/models"
)

const testLocalSecret = auth.Secret("httpapi-test-secret")

type testEnv struct {
	store   *users.MemoryStore
	issuer  *auth.TokenIssuer
	handler http.Handler
}

func newTestEnv(t *testing.T, opts ...ServerOption) *testEnv {
	t.Helper()

	store := users.NewMemoryStore()
	cfg := auth.Config{
		ProviderDomain: "provider.test.local",
		LocalSecret:    testLocalSecret,
		LocalTokenTTL:  time.Hour,
		ClockSkew:      time.Minute,
	}
	authenticator := auth.NewAuthenticator(cfg, store, zerolog.Nop())
	gate := auth.NewGate(authenticator, store, zerolog.Nop())
	issuer := auth.NewTokenIssuer(testLocalSecret, time.Hour)

	server := NewServer(store, gate, issuer, zerolog.Nop(), obs.New(), opts...)
	return &testEnv{store: store, issuer: issuer, handler: server.Router()}
}

func (e *testEnv) seed(t *testing.T, role models.Role) (*models.User, string) {
	t.Helper()
	hash, err := users.HashPassword("password123")
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		Name:         "Seeded User",
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	require.NoError(t, e.store.Create(context.Background(), user))

	token, err := e.issuer.Issue(user.ID)
	require.NoError(t, err)
	return user, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestRegister(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", registerRequest{
		Name: "New User", Email: "new@example.com", Password: "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeBody[tokenResponse](t, rec)
	assert.Equal(t, models.RoleUser, resp.Role)
	require.NotEmpty(t, resp.Token)

	// The issued token authenticates immediately.
	me := env.do(t, http.MethodGet, "/api/users/me", resp.Token, nil)
	assert.Equal(t, http.StatusOK, me.Code)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	t.Run("bad email", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/register", "", registerRequest{
			Email: "not-an-email", Password: "password123",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("short password", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/register", "", registerRequest{
			Email: "ok@example.com", Password: "short",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate email", func(t *testing.T) {
		first := env.do(t, http.MethodPost, "/api/auth/register", "", registerRequest{
			Email: "dup@example.com", Password: "password123",
		})
		require.Equal(t, http.StatusCreated, first.Code)

		second := env.do(t, http.MethodPost, "/api/auth/register", "", registerRequest{
			Email: "dup@example.com", Password: "password456",
		})
		assert.Equal(t, http.StatusConflict, second.Code)
	})
}

func TestLogin(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user, _ := env.seed(t, models.RoleProfessional)

	t.Run("ok", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{
			Email: user.Email, Password: "password123",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[tokenResponse](t, rec)
		assert.Equal(t, models.RoleProfessional, resp.Role)
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{
			Email: user.Email, Password: "nope-nope",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody[errorBody](t, rec)
		assert.Equal(t, "Invalid email or password", body.Message)
	})

	t.Run("unknown email is indistinguishable", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{
			Email: "ghost@example.com", Password: "password123",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody[errorBody](t, rec)
		assert.Equal(t, "Invalid email or password", body.Message)
	})
}

func TestMe(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user, token := env.seed(t, models.RoleUser)

	t.Run("no token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/users/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody[errorBody](t, rec)
		assert.Equal(t, "Unauthorized", body.Error)
		assert.Equal(t, "No token provided", body.Message)
	})

	t.Run("authenticated", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/users/me", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[meResponse](t, rec)
		assert.Equal(t, user.ID.String(), resp.Identity.ID)
		assert.Equal(t, auth.SourceLocal, resp.Identity.Source)
		assert.Equal(t, "local|"+user.ID.String(), resp.Identity.Subject)
		require.NotNil(t, resp.User, "best-effort load should attach the record")
		assert.Equal(t, user.Email, resp.User.Email)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/users/me", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody[errorBody](t, rec)
		assert.Equal(t, "Invalid token format", body.Message)
	})

	t.Run("deleted account", func(t *testing.T) {
		ghostToken, err := env.issuer.Issue(uuid.New())
		require.NoError(t, err)
		rec := env.do(t, http.MethodGet, "/api/users/me", ghostToken, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody[errorBody](t, rec)
		assert.Equal(t, "Invalid or expired local token", body.Message)
	})
}

func TestCompleteProfile(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user, token := env.seed(t, models.RoleUser)

	rec := env.do(t, http.MethodPost, "/api/users/profile/complete", token, completeProfileRequest{
		Name: "Polished Name", Role: "recruiter",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := env.store.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, updated.ProfileComplete)
	assert.Equal(t, models.RoleRecruiter, updated.Role)
	assert.Equal(t, "Polished Name", updated.Name)
}

func TestCompleteProfile_AdminNotSelectable(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user, token := env.seed(t, models.RoleUser)

	rec := env.do(t, http.MethodPost, "/api/users/profile/complete", token, completeProfileRequest{
		Role: "admin",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	unchanged, err := env.store.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, unchanged.Role)
}

func TestAdminListUsers(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	_, adminToken := env.seed(t, models.RoleAdmin)
	_, plainToken := env.seed(t, models.RoleUser)

	t.Run("admin allowed", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/admin/users", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[map[string]any](t, rec)
		assert.Equal(t, float64(2), resp["count"])
	})

	t.Run("plain user forbidden", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/admin/users", plainToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		body := decodeBody[errorBody](t, rec)
		assert.Equal(t, "Forbidden", body.Error)
		assert.Equal(t, "Access denied: administrator privileges required", body.Message)
	})

	t.Run("anonymous unauthorized", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/admin/users", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHealthAndVersion(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		env := newTestEnv(t, WithVersion("1.2.3"))
		rec := env.do(t, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, http.MethodGet, "/version", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[map[string]string](t, rec)
		assert.Equal(t, "1.2.3", resp["version"])
	})

	t.Run("degraded", func(t *testing.T) {
		env := newTestEnv(t, WithHealthChecker(func(ctx context.Context) error {
			return errors.New("database unreachable")
		}))
		rec := env.do(t, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	// Generate some traffic first.
	env.do(t, http.MethodGet, "/health", "", nil)

	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestExternalSync_RejectsLocalToken(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	_, token := env.seed(t, models.RoleUser)

	rec := env.do(t, http.MethodPost, "/api/auth/external", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, "External login sync requires an external provider token", body.Message)
}
