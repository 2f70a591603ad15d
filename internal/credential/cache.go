package credential

import (
	"sync"
	"time"
)

// Token is a bearer token and the instant it stops being valid.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenCache holds access tokens keyed by OAuth scope. Concurrent refreshes
// may race; Put keeps whichever token expires later.
type TokenCache struct {
	mu     sync.RWMutex
	tokens map[string]Token
}

// NewTokenCache creates an empty cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{tokens: make(map[string]Token)}
}

// Get returns the token cached for scope.
func (c *TokenCache) Get(scope string) (Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tok, ok := c.tokens[scope]
	return tok, ok
}

// Put stores tok unless a token with a later expiry is already cached.
func (c *TokenCache) Put(scope string, tok Token) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.tokens[scope]; ok && cur.ExpiresAt.After(tok.ExpiresAt) {
		return
	}
	c.tokens[scope] = tok
}

// Reset drops every cached token.
func (c *TokenCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tokens = make(map[string]Token)
}

// Scopes returns the number of scopes with a cached token.
func (c *TokenCache) Scopes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.tokens)
}
