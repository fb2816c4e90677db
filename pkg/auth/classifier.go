package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperr "github.com/talentforge/talentforge-api/pkg/errors"
)

// TokenClass names the verification path a credential is routed to.
type TokenClass string

const (
	ClassExternal TokenClass = "external"
	ClassLocal    TokenClass = "local"
)

// externalAlg is the only signing algorithm the external provider uses.
const externalAlg = "RS256"

// Classifier routes a compact JWT to a verification path from its
// unverified header and claims. A token is external when its header alg
// is RS256 and its issuer contains the provider domain; everything else
// is local. The decode is structural only and grants no trust: a token
// classified external still has to survive full RS256 verification.
type Classifier struct {
	providerDomain string
}

// NewClassifier builds a classifier for the given provider domain
// (e.g. "talentforge.eu.auth0.com").
func NewClassifier(providerDomain string) *Classifier {
	return &Classifier{providerDomain: providerDomain}
}

// Classify decodes the token without verifying it and picks a path.
// Undecodable input and alg "none" fail with [apperr.CodeAuthenticationMalformed],
// which the gate reports as a format error rather than a verification
// failure.
func (c *Classifier) Classify(tokenStr string) (TokenClass, error) {
	parser := jwt.NewParser()
	unverified, _, err := parser.ParseUnverified(tokenStr, jwt.MapClaims{})
	if err != nil || unverified == nil {
		return "", apperr.Wrap(err, apperr.CodeAuthenticationMalformed, "auth: token cannot be decoded")
	}

	alg, _ := unverified.Header["alg"].(string)
	if strings.EqualFold(alg, "none") {
		return "", apperr.New(apperr.CodeAuthenticationMalformed, "auth: algorithm 'none' is not permitted")
	}

	var issuer string
	if mc, ok := unverified.Claims.(jwt.MapClaims); ok {
		issuer, _ = mc["iss"].(string)
	}

	if alg == externalAlg && c.providerDomain != "" && strings.Contains(issuer, c.providerDomain) {
		return ClassExternal, nil
	}
	return ClassLocal, nil
}
