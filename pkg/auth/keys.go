package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperr "github.com/talentforge/talentforge-api/pkg/errors"
)

// HTTPClient is the subset of *http.Client the key resolver needs,
// declared as an interface so tests can stub transport behavior.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Key resolver defaults. Five fetches per minute matches the provider
// SDK's recommended JWKS rate limit.
const (
	DefaultJWKSCacheTTL          = 10 * time.Minute
	DefaultJWKSRequestsPerMinute = 5
	DefaultHTTPTimeout           = 10 * time.Second

	// maxJWKSBody caps the JWKS response size.
	maxJWKSBody = 1 << 20
)

// KeyResolver fetches and caches the external provider's JWKS, handing
// out RSA public keys by key ID.
//
// Keys are cached for a TTL. A kid missing from a fresh cache triggers
// one refetch to pick up provider key rotation. Upstream fetches are
// rate limited; when the limiter is exhausted the resolver serves stale
// cached keys rather than hammering the provider, and only fails when it
// has nothing at all to serve.
//
// Every failure is an authentication-category error: a request bearing a
// token we cannot obtain keys for is unverifiable, not a server fault,
// so the gate answers 401 and never 500.
type KeyResolver struct {
	jwksURL string
	ttl     time.Duration
	client  HTTPClient
	limiter *rate.Limiter

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewKeyResolver builds a resolver for the provider's JWKS endpoint,
// conventionally "https://<domain>/.well-known/jwks.json". A nil client
// gets a default with [DefaultHTTPTimeout]. Zero ttl and requestsPerMinute
// fall back to package defaults.
func NewKeyResolver(jwksURL string, ttl time.Duration, requestsPerMinute int, client HTTPClient) *KeyResolver {
	if ttl <= 0 {
		ttl = DefaultJWKSCacheTTL
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultJWKSRequestsPerMinute
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &KeyResolver{
		jwksURL: jwksURL,
		ttl:     ttl,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute),
		keys:    make(map[string]*rsa.PublicKey),
	}
}

// Key returns the RSA public key for kid.
func (r *KeyResolver) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	r.mu.RLock()
	key, cached := r.keys[kid]
	fresh := !r.fetchedAt.IsZero() && time.Since(r.fetchedAt) < r.ttl
	r.mu.RUnlock()

	if cached && fresh {
		return key, nil
	}
	// Cache expired, or kid unknown (possible key rotation): refetch.

	if !r.limiter.Allow() {
		// Out of fetch budget. A stale key beats no key.
		if cached {
			return key, nil
		}
		return nil, apperr.New(apperr.CodeAuthenticationKeyUnavailable,
			"auth: key fetch rate limit exceeded and no cached key available")
	}

	keys, err := r.fetch(ctx)
	if err != nil {
		if cached {
			return key, nil
		}
		return nil, apperr.Wrap(err, apperr.CodeAuthenticationKeyUnavailable,
			"auth: unable to obtain provider key material")
	}

	r.mu.Lock()
	r.keys = keys
	r.fetchedAt = time.Now()
	r.mu.Unlock()

	key, ok := keys[kid]
	if !ok {
		return nil, apperr.Newf(apperr.CodeAuthenticationFailed,
			"auth: key %q not present in provider key set", kid)
	}
	return key, nil
}

// jwksDocument is the JSON shape of a JWKS endpoint response. Only RSA
// signature keys are retained; the provider signs with RS256.
type jwksDocument struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		Use string `json:"use"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (r *KeyResolver) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building JWKS request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: JWKS request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBody))
	if err != nil {
		return nil, fmt.Errorf("auth: reading JWKS response: %w", err)
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("auth: parsing JWKS JSON: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kid == "" || k.Kty != "RSA" {
			continue
		}
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		pub, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			// Skip malformed entries; one bad key must not poison the set.
			continue
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

// parseRSAPublicKey reconstructs an *rsa.PublicKey from base64url-encoded
// modulus and exponent.
func parseRSAPublicKey(nB64, eB64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, fmt.Errorf("auth: decoding RSA modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, fmt.Errorf("auth: decoding RSA exponent: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
