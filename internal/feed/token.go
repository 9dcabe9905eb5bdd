package feed

import (
	"sync"
	"time"
)

// DefaultMargin is how long before expiry a cached token stops being served.
const DefaultMargin = 5 * time.Minute

// AccessToken is a bearer credential with its expiry instant.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenCache holds at most one access token. Safe for concurrent use.
type TokenCache struct {
	Margin time.Duration

	mu    sync.Mutex
	token AccessToken
}

// NewTokenCache creates a cache with the given refresh margin.
func NewTokenCache(margin time.Duration) *TokenCache {
	if margin <= 0 {
		margin = DefaultMargin
	}
	return &TokenCache{Margin: margin}
}

// Get returns the cached token if more than Margin remains before it expires.
func (c *TokenCache) Get(now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.Token == "" {
		return "", false
	}
	if !now.Add(c.margin()).Before(c.token.ExpiresAt) {
		return "", false
	}
	return c.token.Token, true
}

// Store caches token. A token that expires earlier than the cached one is
// ignored, so a slow concurrent refresh cannot replace a newer credential.
func (c *TokenCache) Store(token string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.Token != "" && expiresAt.Before(c.token.ExpiresAt) {
		return
	}
	c.token = AccessToken{Token: token, ExpiresAt: expiresAt}
}

// Invalidate drops the cached token if it still equals token.
func (c *TokenCache) Invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.Token == token {
		c.token = AccessToken{}
	}
}

func (c *TokenCache) margin() time.Duration {
	if c.Margin <= 0 {
		return DefaultMargin
	}
	return c.Margin
}
