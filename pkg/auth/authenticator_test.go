package auth

import (
	"context"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/talentforge/talentforge-api/internal/users"
	apperr "github.com/talentforge/talentforge-api/pkg/errors"
	"github.com/talentforge/talentforge-api/pkg/models"
)

func newTestAuthenticator(t *testing.T, store UserStore, key *rsa.PrivateKey) *Authenticator {
	t.Helper()
	server := newJWKSServer(t, map[string]*rsa.PrivateKey{testKid: key})
	cfg := Config{
		ProviderDomain:        testDomain,
		Audience:              "talentforge-api",
		LocalSecret:           testSecret,
		LocalTokenTTL:         time.Hour,
		JWKSCacheTTL:          time.Minute,
		JWKSRequestsPerMinute: 60,
		ClockSkew:             30 * time.Second,
	}
	return NewAuthenticator(cfg, store, zerolog.Nop(), WithHTTPClient(routedClient{target: server.URL}))
}

func TestAuthenticator_LocalPath(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := users.NewMemoryStore()
	user := &models.User{
		ID:        uuid.New(),
		Email:     "local@example.com",
		Name:      "Local User",
		Role:      models.RoleProfessional,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Create(ctx, user))

	auth := newTestAuthenticator(t, store, testProviderKey(t))
	token, err := NewTokenIssuer(testSecret, time.Hour).Issue(user.ID)
	require.NoError(t, err)

	identity, err := auth.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.ID)
	assert.Equal(t, "local@example.com", identity.Email)
	assert.Equal(t, models.RoleProfessional, identity.Role)
	assert.Equal(t, SourceLocal, identity.Source)
	assert.Equal(t, "local|"+user.ID.String(), identity.Subject,
		"subject must be synthesized on the local path")
}

func TestAuthenticator_LocalSubjectGone(t *testing.T) {
	t.Parallel()

	auth := newTestAuthenticator(t, users.NewMemoryStore(), testProviderKey(t))
	token, err := NewTokenIssuer(testSecret, time.Hour).Issue(uuid.New())
	require.NoError(t, err)

	_, err = auth.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeAuthenticationSubjectGone),
		"valid signature with deleted account is its own failure, got %v", err)
	assert.True(t, apperr.IsAuthentication(err))
}

func TestAuthenticator_ExternalProvisionsOnFirstLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := users.NewMemoryStore()
	key := testProviderKey(t)
	auth := newTestAuthenticator(t, store, key)
	token := externalToken(t, key, testKid, nil)

	identity, err := auth.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, SourceExternal, identity.Source)
	assert.Equal(t, testSubject, identity.Subject)
	assert.Equal(t, "jane@example.com", identity.Email)
	assert.Equal(t, models.RoleUser, identity.Role, "provisioned accounts start as plain users")

	created, err := store.GetByExternalSubject(ctx, testSubject)
	require.NoError(t, err)
	assert.False(t, created.ProfileComplete)
	assert.Equal(t, "Jane Doe", created.Name)
	require.Len(t, created.Providers, 1)
	assert.Equal(t, "google", created.Providers[0].Provider, "google-oauth2 normalizes to google")
	assert.Equal(t, testSubject, created.Providers[0].Subject)

	// Second login with the same subject reuses the record.
	again, err := auth.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, again.ID)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "repeat logins must not duplicate accounts")
}

func TestAuthenticator_ExternalLinksByEmail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := users.NewMemoryStore()
	existing := &models.User{
		ID:        uuid.New(),
		Email:     "jane@example.com",
		Name:      "Jane Doe",
		Role:      models.RoleRecruiter,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Create(ctx, existing))

	key := testProviderKey(t)
	auth := newTestAuthenticator(t, store, key)

	identity, err := auth.Authenticate(ctx, externalToken(t, key, testKid, nil))
	require.NoError(t, err)
	assert.Equal(t, existing.ID, identity.ID, "email match links instead of duplicating")
	assert.Equal(t, models.RoleRecruiter, identity.Role, "stored role wins over any token content")

	linked, err := store.GetByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, testSubject, linked.ExternalSubject)
	assert.True(t, linked.HasProvider(testSubject))
}

func TestAuthenticator_ExternalEnrichesMissingFields(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := users.NewMemoryStore()
	existing := &models.User{
		ID:              uuid.New(),
		Email:           "jane@example.com",
		Role:            models.RoleUser,
		ExternalSubject: testSubject,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	require.NoError(t, store.Create(ctx, existing))

	key := testProviderKey(t)
	auth := newTestAuthenticator(t, store, key)

	_, err := auth.Authenticate(ctx, externalToken(t, key, testKid, nil))
	require.NoError(t, err)

	enriched, err := store.GetByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", enriched.Name, "empty name backfilled from claims")
	assert.Equal(t, "https://cdn.example.com/jane.png", enriched.Picture)
}

// raceStore simulates losing a provisioning race: the subject lookup
// misses, Create collides, and the re-read finds the winner's row.
type raceStore struct {
	*users.MemoryStore
	winner *models.User
	reads  int
}

func (s *raceStore) GetByExternalSubject(ctx context.Context, subject string) (*models.User, error) {
	s.reads++
	if s.reads == 1 {
		return nil, apperr.New(apperr.CodeNotFound, "users: no user with that external subject")
	}
	return s.winner, nil
}

func (s *raceStore) Create(ctx context.Context, user *models.User) error {
	return apperr.New(apperr.CodeConflict, "users: email or external subject already registered")
}

func TestAuthenticator_ProvisionRaceLoserReReads(t *testing.T) {
	t.Parallel()

	winner := &models.User{
		ID:              uuid.New(),
		Email:           "jane@example.com",
		Role:            models.RoleUser,
		ExternalSubject: testSubject,
	}
	store := &raceStore{MemoryStore: users.NewMemoryStore(), winner: winner}

	key := testProviderKey(t)
	auth := newTestAuthenticator(t, store, key)

	identity, err := auth.Authenticate(context.Background(), externalToken(t, key, testKid, nil))
	require.NoError(t, err, "conflict on create must resolve to the winner's row")
	assert.Equal(t, winner.ID, identity.ID)
}

// A token that classifies external on its face but fails verification
// must be rejected and must not touch storage: classification is
// routing, never trust.
func TestAuthenticator_ClassificationGrantsNoTrust(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := users.NewMemoryStore()
	key := testProviderKey(t)
	auth := newTestAuthenticator(t, store, key)

	rogue := testProviderKey(t)
	forged := externalToken(t, rogue, testKid, nil)

	_, err := auth.Authenticate(ctx, forged)
	require.Error(t, err)
	assert.True(t, apperr.IsAuthentication(err))

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "failed verification must not provision anything")
}

func TestProviderName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		subject string
		want    string
	}{
		{"google-oauth2|1234", "google"},
		{"github|99", "github"},
		{"auth0|abc", "auth0"},
		{"no-separator", "unknown"},
		{"|id-only", "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ProviderName(tt.subject), tt.subject)
	}
}

func TestAuthenticate_CreatesSpan(t *testing.T) {
	ctx := context.Background()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	store := users.NewMemoryStore()
	user := &models.User{
		ID:        uuid.New(),
		Email:     "span@example.com",
		Role:      models.RoleUser,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Create(ctx, user))

	auth := newTestAuthenticator(t, store, testProviderKey(t))
	token, err := NewTokenIssuer(testSecret, time.Hour).Issue(user.ID)
	require.NoError(t, err)

	_, err = auth.Authenticate(ctx, token)
	require.NoError(t, err)

	_ = tp.ForceFlush(context.Background())

	var found bool
	for _, s := range exporter.GetSpans() {
		if s.Name == "auth.Authenticate" {
			found = true
			break
		}
	}
	assert.True(t, found, "auth.Authenticate span should be recorded")
}
