package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperr "github.com/talentforge/talentforge-api/pkg/errors"
)

// localUserIDClaim carries the user primary key in locally minted tokens.
const localUserIDClaim = "userId"

// LocalVerifier verifies HS256 tokens minted by this service. The
// accepted algorithm set is pinned to HS256; an RS256 token that slipped
// past classification fails here instead of being checked against the
// shared secret.
type LocalVerifier struct {
	secret Secret
	leeway time.Duration
}

// NewLocalVerifier builds a verifier around the shared signing secret.
func NewLocalVerifier(secret Secret, leeway time.Duration) *LocalVerifier {
	return &LocalVerifier{secret: secret, leeway: leeway}
}

// Verify checks signature and lifetime and returns the subject user ID.
// It does not consult storage; record existence is the authenticator's
// concern so that "cryptographically invalid" and "subject gone" stay
// distinct failures.
func (v *LocalVerifier) Verify(_ context.Context, tokenStr string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return []byte(v.secret.Value()), nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return uuid.Nil, classifyLocal(err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, apperr.New(apperr.CodeAuthenticationLocalFailed, "auth: unexpected claims shape")
	}
	raw, _ := mc[localUserIDClaim].(string)
	if raw == "" {
		return uuid.Nil, apperr.New(apperr.CodeAuthenticationLocalFailed, "auth: token has no user ID claim")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Wrap(err, apperr.CodeAuthenticationLocalFailed, "auth: user ID claim is not a valid identifier")
	}
	return id, nil
}

func classifyLocal(err error) error {
	if appErr, ok := apperr.AsError(err); ok {
		return appErr
	}

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperr.Wrap(err, apperr.CodeAuthenticationLocalFailed, "auth: local token has expired")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return apperr.Wrap(err, apperr.CodeAuthenticationMalformed, "auth: local token is malformed")
	default:
		return apperr.Wrap(err, apperr.CodeAuthenticationLocalFailed, "auth: local token verification failed")
	}
}
