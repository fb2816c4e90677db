package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperr "github.com/talentforge/talentforge-api/pkg/errors"
)

// DefaultLocalTokenTTL is the lifetime of locally minted tokens.
const DefaultLocalTokenTTL = time.Hour

// TokenIssuer mints the HS256 tokens handed out by local login and
// registration. Tokens carry the user primary key under the
// [localUserIDClaim] claim and nothing else; role is looked up from the
// record on every authenticated request.
type TokenIssuer struct {
	secret Secret
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer builds an issuer. A non-positive ttl falls back to
// [DefaultLocalTokenTTL].
func NewTokenIssuer(secret Secret, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultLocalTokenTTL
	}
	return &TokenIssuer{secret: secret, ttl: ttl, now: time.Now}
}

// Issue mints a signed token for the given user ID.
func (i *TokenIssuer) Issue(userID uuid.UUID) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		localUserIDClaim: userID.String(),
		"iat":            now.Unix(),
		"exp":            now.Add(i.ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(i.secret.Value()))
	if err != nil {
		return "", apperr.Wrap(err, apperr.CodeInternal, "auth: signing token")
	}
	return signed, nil
}
