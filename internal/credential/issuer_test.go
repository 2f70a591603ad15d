package credential

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScope = "https://www.googleapis.com/auth/spreadsheets"

var testKey = generateTestKey()

func generateTestKey() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic("generating test RSA key: " + err.Error())
	}
	return key
}

func testKeyPEM(t *testing.T) string {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(testKey)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

func descriptor(t *testing.T, tokenURI string) string {
	t.Helper()
	data, err := json.Marshal(ServiceAccount{
		ClientEmail: "ledger@project.iam.gserviceaccount.com",
		PrivateKey:  testKeyPEM(t),
		TokenURI:    tokenURI,
	})
	require.NoError(t, err)
	return string(data)
}

// tokenServer is a fake OAuth token endpoint that validates the assertion.
type tokenServer struct {
	*httptest.Server
	calls     atomic.Int32
	status    int
	expiresIn int64
	lastClaim jwt.MapClaims
	mu        sync.Mutex
}

func newTokenServer(t *testing.T) *tokenServer {
	ts := &tokenServer{status: http.StatusOK, expiresIn: 3600}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ts.calls.Add(1)
		if ts.status != http.StatusOK {
			http.Error(w, "denied", ts.status)
			return
		}
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/x-www-form-urlencoded" {
			http.Error(w, "bad request shape", http.StatusBadRequest)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != jwtBearerGrant {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(r.PostForm.Get("assertion"), claims, func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected alg %v", tok.Header["alg"])
			}
			return &testKey.PublicKey, nil
		}, jwt.WithoutClaimsValidation())
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		ts.mu.Lock()
		ts.lastClaim = claims
		ts.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("token-%d", n),
			"expires_in":   ts.expiresIn,
			"token_type":   "Bearer",
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAccessToken_SignsAssertionAndCaches(t *testing.T) {
	ts := newTokenServer(t)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	issuer := NewIssuer(descriptor(t, ts.URL), NewTokenCache(), WithClock(clock.Now))

	tok, err := issuer.AccessToken(context.Background(), testScope)
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok)

	ts.mu.Lock()
	claims := ts.lastClaim
	ts.mu.Unlock()
	assert.Equal(t, "ledger@project.iam.gserviceaccount.com", claims["iss"])
	assert.Equal(t, ts.URL, claims["aud"])
	assert.Equal(t, testScope, claims["scope"])
	assert.Equal(t, float64(clock.Now().Unix()), claims["iat"])
	assert.Equal(t, float64(clock.Now().Add(time.Hour).Unix()), claims["exp"])

	clock.Advance(30 * time.Minute)
	tok, err = issuer.AccessToken(context.Background(), testScope)
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok, "cached token reused")
	assert.Equal(t, int32(1), ts.calls.Load())
}

func TestAccessToken_RefreshesInsideMargin(t *testing.T) {
	ts := newTokenServer(t)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	issuer := NewIssuer(descriptor(t, ts.URL), nil, WithClock(clock.Now))

	_, err := issuer.AccessToken(context.Background(), testScope)
	require.NoError(t, err)

	// 59m01s later only 59s of validity remain, below the 60s margin.
	clock.Advance(59*time.Minute + time.Second)
	tok, err := issuer.AccessToken(context.Background(), testScope)
	require.NoError(t, err)
	assert.Equal(t, "token-2", tok)
	assert.Equal(t, int32(2), ts.calls.Load())
}

func TestAccessToken_CachesPerScope(t *testing.T) {
	ts := newTokenServer(t)
	issuer := NewIssuer(descriptor(t, ts.URL), NewTokenCache())

	a, err := issuer.AccessToken(context.Background(), "scope-a")
	require.NoError(t, err)
	b, err := issuer.AccessToken(context.Background(), "scope-b")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, issuer.Cache().Scopes())
}

func TestAccessToken_NonSuccessStatus(t *testing.T) {
	ts := newTokenServer(t)
	ts.status = http.StatusForbidden
	issuer := NewIssuer(descriptor(t, ts.URL), nil)

	_, err := issuer.AccessToken(context.Background(), testScope)
	require.Error(t, err)

	var credErr *Error
	require.True(t, errors.As(err, &credErr))
	assert.Equal(t, http.StatusForbidden, credErr.StatusCode)
	assert.Contains(t, err.Error(), "403")
	assert.Equal(t, 0, issuer.Cache().Scopes())
}

func TestAccessToken_DescriptorErrors(t *testing.T) {
	tests := []struct {
		name       string
		descriptor string
		want       string
	}{
		{name: "missing", descriptor: "", want: "not set"},
		{name: "not_json", descriptor: "{oops", want: "invalid service account JSON"},
		{name: "no_key", descriptor: `{"client_email":"a@b"}`, want: "client_email and private_key"},
		{name: "bad_pem", descriptor: `{"client_email":"a@b","private_key":"nope"}`, want: "private key"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			issuer := NewIssuer(tc.descriptor, nil)
			_, err := issuer.AccessToken(context.Background(), testScope)
			require.Error(t, err)

			var credErr *Error
			require.True(t, errors.As(err, &credErr))
			assert.Zero(t, credErr.StatusCode)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParseServiceAccount_DefaultTokenURI(t *testing.T) {
	sa, err := ParseServiceAccount(`{"client_email":"a@b","private_key":"k"}`)
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenURI, sa.TokenURI)
}

func TestAccessToken_ConcurrentRefreshesStayValid(t *testing.T) {
	ts := newTokenServer(t)
	issuer := NewIssuer(descriptor(t, ts.URL), nil)

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	errs := make([]error, 8)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = issuer.AccessToken(context.Background(), testScope)
		}(i)
	}
	wg.Wait()

	for i := range tokens {
		require.NoError(t, errs[i])
		assert.NotEmpty(t, tokens[i])
	}
	cached, ok := issuer.Cache().Get(testScope)
	require.True(t, ok)
	assert.NotEmpty(t, cached.Value)
}

func TestTokenCache_KeepsLaterExpiry(t *testing.T) {
	c := NewTokenCache()
	base := time.Now()

	c.Put("s", Token{Value: "late", ExpiresAt: base.Add(time.Hour)})
	c.Put("s", Token{Value: "early", ExpiresAt: base.Add(time.Minute)})

	tok, ok := c.Get("s")
	require.True(t, ok)
	assert.Equal(t, "late", tok.Value)

	c.Reset()
	_, ok = c.Get("s")
	assert.False(t, ok)
}
