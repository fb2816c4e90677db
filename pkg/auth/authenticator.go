package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperr "github.com/talentforge/talentforge-api/pkg/errors"
	"github.com/talentforge/talentforge-api/pkg/models"
)

// tracerName is the OpenTelemetry instrumentation scope for this package.
const tracerName = "github.com/talentforge/talentforge-api/pkg/auth"

// UserStore is the persistence surface the authenticator needs. Lookups
// return [apperr.CodeNotFound] when no record matches; Create returns
// [apperr.CodeConflict] on a uniqueness collision so provisioning races
// can be resolved by re-reading the winner's row.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByExternalSubject(ctx context.Context, subject string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

// Config carries the settings of the authentication core.
type Config struct {
	// ProviderDomain is the external identity provider's domain, e.g.
	// "talentforge.eu.auth0.com". Issuer and JWKS URL derive from it.
	ProviderDomain string `env:"PROVIDER_DOMAIN" yaml:"provider_domain"`

	// Audience is the API identifier registered with the provider.
	// Empty disables the audience check.
	Audience string `env:"AUDIENCE" yaml:"audience"`

	// LocalSecret signs and verifies locally minted HS256 tokens.
	LocalSecret Secret `env:"LOCAL_SECRET" required:"true" yaml:"local_secret"`

	LocalTokenTTL         time.Duration `env:"LOCAL_TOKEN_TTL" envDefault:"1h" yaml:"local_token_ttl"`
	JWKSCacheTTL          time.Duration `env:"JWKS_CACHE_TTL" envDefault:"10m" yaml:"jwks_cache_ttl"`
	JWKSRequestsPerMinute int           `env:"JWKS_REQUESTS_PER_MINUTE" envDefault:"5" yaml:"jwks_requests_per_minute"`
	ClockSkew             time.Duration `env:"CLOCK_SKEW" envDefault:"30s" yaml:"clock_skew"`
}

// Issuer returns the provider issuer URL the way provider tokens carry
// it, with a trailing slash.
func (c Config) Issuer() string {
	return "https://" + c.ProviderDomain + "/"
}

// JWKSURL returns the provider's JWKS endpoint.
func (c Config) JWKSURL() string {
	return "https://" + c.ProviderDomain + "/.well-known/jwks.json"
}

// Authenticator turns a raw bearer token into a normalized [Identity].
// It owns classification, both verification paths, and external-path
// auto-provisioning.
type Authenticator struct {
	classifier *Classifier
	external   *ExternalVerifier
	local      *LocalVerifier
	store      UserStore
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// Option customizes an Authenticator.
type Option func(*authOptions)

type authOptions struct {
	httpClient HTTPClient
}

// WithHTTPClient overrides the HTTP client used for JWKS fetches.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *authOptions) { o.httpClient = client }
}

// NewAuthenticator wires the classifier, verifiers, and store into one
// entry point.
func NewAuthenticator(cfg Config, store UserStore, logger zerolog.Logger, opts ...Option) *Authenticator {
	var o authOptions
	for _, opt := range opts {
		opt(&o)
	}

	resolver := NewKeyResolver(cfg.JWKSURL(), cfg.JWKSCacheTTL, cfg.JWKSRequestsPerMinute, o.httpClient)
	return &Authenticator{
		classifier: NewClassifier(cfg.ProviderDomain),
		external:   NewExternalVerifier(resolver, cfg.Issuer(), cfg.Audience, cfg.ClockSkew),
		local:      NewLocalVerifier(cfg.LocalSecret, cfg.ClockSkew),
		store:      store,
		logger:     logger.With().Str("component", "auth").Logger(),
		tracer:     otel.Tracer(tracerName),
	}
}

// Authenticate classifies and verifies tokenStr and returns the
// normalized identity. On the external path a verified token is also
// synchronized into storage (provision, link, or enrich). Every failure
// carries an authentication-category code; the caller decides how much
// of it to reveal.
func (a *Authenticator) Authenticate(ctx context.Context, tokenStr string) (*Identity, error) {
	ctx, span := a.tracer.Start(ctx, "auth.Authenticate")
	defer span.End()

	class, err := a.classifier.Classify(tokenStr)
	if err != nil {
		finishAuthSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.token_class", string(class)))

	var identity *Identity
	switch class {
	case ClassExternal:
		identity, err = a.authenticateExternal(ctx, tokenStr)
	default:
		identity, err = a.authenticateLocal(ctx, tokenStr)
	}
	if err != nil {
		a.logger.Debug().
			Str("token_class", string(class)).
			Str("code", apperr.GetCode(err).String()).
			Err(err).
			Msg("authentication failed")
		finishAuthSpan(span, err)
		return nil, markSource(err, class)
	}

	span.SetAttributes(
		attribute.String("auth.user_id", identity.ID.String()),
		attribute.String("auth.source", string(identity.Source)),
	)
	finishAuthSpan(span, nil)
	return identity, nil
}

func (a *Authenticator) authenticateExternal(ctx context.Context, tokenStr string) (*Identity, error) {
	claims, err := a.external.Verify(ctx, tokenStr)
	if err != nil {
		return nil, err
	}

	user, err := a.syncExternalUser(ctx, claims)
	if err != nil {
		return nil, err
	}

	return &Identity{
		ID:      user.ID,
		Email:   user.Email,
		Role:    user.Role,
		Source:  SourceExternal,
		Subject: claims.Subject,
	}, nil
}

func (a *Authenticator) authenticateLocal(ctx context.Context, tokenStr string) (*Identity, error) {
	userID, err := a.local.Verify(ctx, tokenStr)
	if err != nil {
		return nil, err
	}

	user, err := a.store.GetByID(ctx, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			// Valid signature, deleted account. Internally distinct from
			// a crypto failure; externally still a generic 401.
			return nil, apperr.Wrap(err, apperr.CodeAuthenticationSubjectGone, "auth: token subject no longer exists")
		}
		return nil, err
	}

	return &Identity{
		ID:      user.ID,
		Email:   user.Email,
		Role:    user.Role,
		Source:  SourceLocal,
		Subject: LocalSubject(user.ID),
	}, nil
}

// syncExternalUser maps a verified external identity onto a stored user
// record: match by provider subject, fall back to an email match that
// links the provider to an existing account, or provision a fresh
// record. Safe to run concurrently for the same person; the loser of a
// create race re-reads the winner's row.
func (a *Authenticator) syncExternalUser(ctx context.Context, claims *ExternalClaims) (*models.User, error) {
	ctx, span := a.tracer.Start(ctx, "auth.SyncExternalUser")
	defer span.End()

	user, err := a.store.GetByExternalSubject(ctx, claims.Subject)
	switch {
	case err == nil:
		return a.enrichUser(ctx, user, claims), nil
	case !apperr.IsNotFound(err):
		finishAuthSpan(span, err)
		return nil, err
	}

	if claims.Email != "" {
		user, err = a.store.GetByEmail(ctx, claims.Email)
		switch {
		case err == nil:
			// Existing local account logging in through the provider for
			// the first time: link rather than duplicate.
			return a.linkProvider(ctx, user, claims), nil
		case !apperr.IsNotFound(err):
			finishAuthSpan(span, err)
			return nil, err
		}
	}

	created, err := a.provisionUser(ctx, claims)
	if err != nil {
		finishAuthSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("auth.provisioned", true))
	return created, nil
}

func (a *Authenticator) provisionUser(ctx context.Context, claims *ExternalClaims) (*models.User, error) {
	now := time.Now().UTC()
	user := &models.User{
		ID:              uuid.New(),
		Email:           claims.Email,
		Name:            claims.Name,
		Role:            models.RoleUser,
		ExternalSubject: claims.Subject,
		Picture:         claims.Picture,
		ProfileComplete: false,
		Providers:       []models.ProviderBinding{newBinding(claims, now)},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := a.store.Create(ctx, user)
	if err == nil {
		a.logger.Info().
			Str("user_id", user.ID.String()).
			Str("subject", claims.Subject).
			Msg("provisioned user from external identity")
		return user, nil
	}
	if !apperr.IsConflict(err) {
		return nil, err
	}

	// Lost a provisioning race; the winner's row is authoritative.
	if existing, readErr := a.store.GetByExternalSubject(ctx, claims.Subject); readErr == nil {
		return existing, nil
	}
	if claims.Email != "" {
		if existing, readErr := a.store.GetByEmail(ctx, claims.Email); readErr == nil {
			return existing, nil
		}
	}
	return nil, err
}

// linkProvider attaches the external identity to an account found by
// email. The link write is best effort: a storage hiccup here must not
// fail a request that carries a fully verified credential.
func (a *Authenticator) linkProvider(ctx context.Context, user *models.User, claims *ExternalClaims) *models.User {
	if user.ExternalSubject == "" {
		user.ExternalSubject = claims.Subject
	}
	a.applyClaims(user, claims)
	if err := a.store.Update(ctx, user); err != nil {
		a.logger.Warn().Err(err).Str("user_id", user.ID.String()).Msg("linking provider to account failed")
	} else {
		a.logger.Info().
			Str("user_id", user.ID.String()).
			Str("subject", claims.Subject).
			Msg("linked external identity to existing account")
	}
	return user
}

// enrichUser backfills missing profile fields from fresh provider
// claims. Best effort, same rationale as linkProvider.
func (a *Authenticator) enrichUser(ctx context.Context, user *models.User, claims *ExternalClaims) *models.User {
	if !a.applyClaims(user, claims) {
		return user
	}
	if err := a.store.Update(ctx, user); err != nil {
		a.logger.Warn().Err(err).Str("user_id", user.ID.String()).Msg("enriching user from claims failed")
	}
	return user
}

// applyClaims fills empty fields and ensures a provider binding exists.
// Reports whether anything changed.
func (a *Authenticator) applyClaims(user *models.User, claims *ExternalClaims) bool {
	changed := false
	if user.Name == "" && claims.Name != "" {
		user.Name = claims.Name
		changed = true
	}
	if user.Picture == "" && claims.Picture != "" {
		user.Picture = claims.Picture
		changed = true
	}
	if !user.HasProvider(claims.Subject) {
		user.Providers = append(user.Providers, newBinding(claims, time.Now().UTC()))
		changed = true
	}
	return changed
}

func newBinding(claims *ExternalClaims, at time.Time) models.ProviderBinding {
	return models.ProviderBinding{
		Provider: ProviderName(claims.Subject),
		Subject:  claims.Subject,
		Picture:  claims.Picture,
		LinkedAt: at,
	}
}

// ProviderName derives a display provider name from a provider subject.
// "google-oauth2|1234" yields "google"; a subject without the expected
// shape yields "unknown".
func ProviderName(subject string) string {
	name, _, found := strings.Cut(subject, "|")
	if !found || name == "" {
		return "unknown"
	}
	return strings.TrimSuffix(name, "-oauth2")
}

// markSource tags an authentication error with the path that produced
// it so the gate can phrase the client message per path without parsing
// messages.
func markSource(err error, class TokenClass) error {
	if appErr, ok := apperr.AsError(err); ok {
		return appErr.WithDetail("auth_source", string(class))
	}
	return err
}

func finishAuthSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}
