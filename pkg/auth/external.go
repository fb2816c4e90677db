package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperr "github.com/talentforge/talentforge-api/pkg/errors"
)

// ExternalClaims is the subset of provider token claims the platform
// consumes. Subject is the provider-scoped subject ("google-oauth2|123").
type ExternalClaims struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// ExternalVerifier verifies RS256 tokens minted by the external identity
// provider. The accepted algorithm set is pinned to RS256 so a token
// claiming any other method, including an HMAC method keyed with the
// public key, fails before signature checking.
type ExternalVerifier struct {
	resolver *KeyResolver
	issuer   string
	audience string
	leeway   time.Duration
}

// NewExternalVerifier builds a verifier. issuer must be the provider's
// full issuer URL ("https://<domain>/"); audience is the API identifier
// registered with the provider.
func NewExternalVerifier(resolver *KeyResolver, issuer, audience string, leeway time.Duration) *ExternalVerifier {
	return &ExternalVerifier{
		resolver: resolver,
		issuer:   issuer,
		audience: audience,
		leeway:   leeway,
	}
}

// Verify checks signature, issuer, audience, and lifetime, and returns
// the provider claims. All failures carry authentication-category codes;
// key material problems keep [apperr.CodeAuthenticationKeyUnavailable]
// so the gate still answers 401 when the provider is unreachable.
func (v *ExternalVerifier) Verify(ctx context.Context, tokenStr string) (*ExternalClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{externalAlg}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, apperr.New(apperr.CodeAuthenticationFailed, "auth: token header has no key ID")
		}
		return v.resolver.Key(ctx, kid)
	}, opts...)
	if err != nil {
		return nil, classifyExternal(err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperr.New(apperr.CodeAuthenticationFailed, "auth: unexpected claims shape")
	}
	sub, _ := mc["sub"].(string)
	if sub == "" {
		return nil, apperr.New(apperr.CodeAuthenticationFailed, "auth: token has no subject")
	}

	claims := &ExternalClaims{Subject: sub}
	claims.Email, _ = mc["email"].(string)
	claims.Name, _ = mc["name"].(string)
	claims.Picture, _ = mc["picture"].(string)
	return claims, nil
}

// classifyExternal maps jwt library errors onto the external
// authentication code, preserving codes already assigned upstream
// (notably key-unavailable from the resolver).
func classifyExternal(err error) error {
	if appErr, ok := apperr.AsError(err); ok {
		return appErr
	}

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperr.Wrap(err, apperr.CodeAuthenticationFailed, "auth: external token has expired")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return apperr.Wrap(err, apperr.CodeAuthenticationMalformed, "auth: external token is malformed")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperr.Wrap(err, apperr.CodeAuthenticationFailed, "auth: external token signature is invalid")
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return apperr.Wrap(err, apperr.CodeAuthenticationFailed, "auth: external token issuer is invalid")
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return apperr.Wrap(err, apperr.CodeAuthenticationFailed, "auth: external token audience is invalid")
	default:
		return apperr.Wrap(err, apperr.CodeAuthenticationFailed, "auth: external token verification failed")
	}
}
