package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testDomain  = "test.talentforge.local"
	testIssuer  = "https://" + testDomain + "/"
	testKid     = "test-key-1"
	testSecret  = Secret("local-signing-secret-for-tests")
	testSubject = "google-oauth2|1234567890"
)

// testProviderKey generates the RSA key pair standing in for the
// external provider's signing key.
func testProviderKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

// jwksDocumentFor renders a JWKS response exposing the public halves of
// the given keys under their kids.
func jwksDocumentFor(t *testing.T, keys map[string]*rsa.PrivateKey) []byte {
	t.Helper()
	type jwk struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		Use string `json:"use"`
		N   string `json:"n"`
		E   string `json:"e"`
	}
	doc := struct {
		Keys []jwk `json:"keys"`
	}{}
	for kid, key := range keys {
		doc.Keys = append(doc.Keys, jwk{
			Kty: "RSA",
			Kid: kid,
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		})
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

// jwksServer serves a mutable JWKS document and counts fetches.
type jwksServer struct {
	*httptest.Server
	fetches atomic.Int64
	body    atomic.Value
}

func newJWKSServer(t *testing.T, keys map[string]*rsa.PrivateKey) *jwksServer {
	t.Helper()
	s := &jwksServer{}
	s.body.Store(jwksDocumentFor(t, keys))
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(s.body.Load().([]byte))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) rotate(t *testing.T, keys map[string]*rsa.PrivateKey) {
	t.Helper()
	s.body.Store(jwksDocumentFor(t, keys))
}

// routedClient rewrites every request to the test server, letting
// production code keep deriving the JWKS URL from the provider domain.
type routedClient struct {
	target string
}

func (c routedClient) Do(req *http.Request) (*http.Response, error) {
	u, err := url.Parse(c.target)
	if err != nil {
		return nil, err
	}
	clone := req.Clone(req.Context())
	clone.URL.Scheme = u.Scheme
	clone.URL.Host = u.Host
	clone.Host = u.Host
	return http.DefaultClient.Do(clone)
}

// externalToken mints an RS256 token the way the provider would.
// Overrides replace default claims; a nil value deletes the claim.
func externalToken(t *testing.T, key *rsa.PrivateKey, kid string, overrides map[string]any) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss":     testIssuer,
		"sub":     testSubject,
		"aud":     "talentforge-api",
		"email":   "jane@example.com",
		"name":    "Jane Doe",
		"picture": "https://cdn.example.com/jane.png",
		"iat":     time.Now().Add(-time.Minute).Unix(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range overrides {
		if v == nil {
			delete(claims, k)
		} else {
			claims[k] = v
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

// localToken mints an HS256 token with arbitrary claims.
func localToken(t *testing.T, secret Secret, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret.Value()))
	require.NoError(t, err)
	return signed
}
