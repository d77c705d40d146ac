package push

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenFunc fetches a fresh access token from the provider.
type TokenFunc func(ctx context.Context) (*oauth2.Token, error)

// TokenCache holds the push provider's access token and refreshes it once
// it is within margin of expiry. Safe for concurrent use.
type TokenCache struct {
	fetch  TokenFunc
	margin time.Duration
	now    func() time.Time

	mu    sync.Mutex
	token *oauth2.Token
}

func NewTokenCache(fetch TokenFunc, margin time.Duration) *TokenCache {
	return &TokenCache{fetch: fetch, margin: margin, now: time.Now}
}

// NewClientCredentialsCache builds a cache backed by the OAuth2 client
// credentials grant.
func NewClientCredentialsCache(tokenURL, clientID, clientSecret string, margin time.Duration) *TokenCache {
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return NewTokenCache(cc.Token, margin)
}

// Token returns the cached access token, fetching a new one when none is
// cached or the cached one expires within the refresh margin.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fresh() {
		return c.token.AccessToken, nil
	}

	tok, err := c.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching push token: %w", err)
	}
	c.token = tok
	return tok.AccessToken, nil
}

// Invalidate drops the cached token so the next call fetches a new one.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = nil
}

func (c *TokenCache) fresh() bool {
	if c.token == nil || c.token.AccessToken == "" {
		return false
	}
	// zero expiry means the token never expires
	if c.token.Expiry.IsZero() {
		return true
	}
	return c.now().Add(c.margin).Before(c.token.Expiry)
}
