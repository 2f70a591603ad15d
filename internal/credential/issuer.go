// Package credential mints short-lived bearer tokens for the ledger API
// using the OAuth2 JWT-bearer grant.
package credential

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	// DefaultTokenURI is used when the service account omits token_uri.
	DefaultTokenURI = "https://oauth2.googleapis.com/token"

	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// assertionTTL is the lifetime of the signed assertion.
	assertionTTL = time.Hour

	// refreshMargin is how much validity a cached token must have left to be reused.
	refreshMargin = 60 * time.Second
)

// ServiceAccount is the service identity descriptor.
type ServiceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri,omitempty"`
}

// ParseServiceAccount decodes and checks a JSON service account descriptor.
func ParseServiceAccount(raw string) (*ServiceAccount, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &Error{Message: "GOOGLE_SERVICE_ACCOUNT_JSON is not set"}
	}

	var sa ServiceAccount
	if err := json.Unmarshal([]byte(raw), &sa); err != nil {
		return nil, &Error{Message: "invalid service account JSON", Err: err}
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, &Error{Message: "invalid service account JSON: client_email and private_key are required"}
	}
	if sa.TokenURI == "" {
		sa.TokenURI = DefaultTokenURI
	}
	return &sa, nil
}

// Issuer exchanges signed assertions for access tokens and caches them per scope.
type Issuer struct {
	descriptor string
	cache      *TokenCache
	httpClient *http.Client
	now        func() time.Time
	logger     *zap.Logger
}

// IssuerOption customises an Issuer.
type IssuerOption func(*Issuer)

// WithHTTPClient sets the client used for the token exchange.
func WithHTTPClient(c *http.Client) IssuerOption {
	return func(i *Issuer) { i.httpClient = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) IssuerOption {
	return func(i *Issuer) { i.logger = l.Named("credential") }
}

// NewIssuer creates an issuer for the given JSON service account descriptor.
// The descriptor is parsed when a token is first needed, so a missing one
// only fails the operations that need a token.
func NewIssuer(descriptor string, cache *TokenCache, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		descriptor: descriptor,
		cache:      cache,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.cache == nil {
		i.cache = NewTokenCache()
	}
	return i
}

// Cache returns the token cache owned by the issuer.
func (i *Issuer) Cache() *TokenCache {
	return i.cache
}

// AccessToken returns a bearer token for scope, reusing the cached one while
// it has more than a minute of validity left.
func (i *Issuer) AccessToken(ctx context.Context, scope string) (string, error) {
	now := i.now()
	if tok, ok := i.cache.Get(scope); ok && tok.ExpiresAt.Add(-refreshMargin).After(now) {
		return tok.Value, nil
	}

	sa, err := ParseServiceAccount(i.descriptor)
	if err != nil {
		return "", err
	}

	assertion, err := signAssertion(sa, scope, now)
	if err != nil {
		return "", err
	}

	tok, err := i.exchange(ctx, sa.TokenURI, assertion, now)
	if err != nil {
		return "", err
	}

	i.cache.Put(scope, tok)
	i.logger.Debug("access token issued",
		zap.String("scope", scope),
		zap.Time("expires_at", tok.ExpiresAt),
	)
	return tok.Value, nil
}

// signAssertion builds the RS256 JWT presented to the token endpoint.
func signAssertion(sa *ServiceAccount, scope string, now time.Time) (string, error) {
	key, err := parsePrivateKey(sa.PrivateKey)
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"iss":   sa.ClientEmail,
		"aud":   sa.TokenURI,
		"scope": scope,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", &Error{Message: "failed to sign assertion", Err: err}
	}
	return signed, nil
}

func parsePrivateKey(pemKey string) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, &Error{Message: "invalid service account private key", Err: err}
	}
	return key, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (i *Issuer) exchange(ctx context.Context, tokenURI, assertion string, now time.Time) (Token, error) {
	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, &Error{Message: "failed to build token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return Token{}, &Error{Message: "token request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return Token{}, &Error{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("token request failed: %d", resp.StatusCode),
			Body:       string(body),
		}
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Token{}, &Error{StatusCode: resp.StatusCode, Message: "invalid token response", Err: err}
	}
	if payload.AccessToken == "" {
		return Token{}, &Error{StatusCode: resp.StatusCode, Message: "token response has no access_token"}
	}

	return Token{
		Value:     payload.AccessToken,
		ExpiresAt: now.Add(time.Duration(payload.ExpiresIn) * time.Second),
	}, nil
}
