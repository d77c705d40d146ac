package push

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestTokenCacheRefreshesWithinMargin(t *testing.T) {
	now := time.Now()
	var calls int
	cache := NewTokenCache(func(ctx context.Context) (*oauth2.Token, error) {
		calls++
		return &oauth2.Token{AccessToken: "tok", Expiry: now.Add(10 * time.Minute)}, nil
	}, 5*time.Minute)
	cache.now = func() time.Time { return now }

	tok, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)

	_, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// 6 minutes later the token is inside the refresh margin
	cache.now = func() time.Time { return now.Add(6 * time.Minute) }
	_, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestTokenCacheInvalidate(t *testing.T) {
	var calls int
	cache := NewTokenCache(func(ctx context.Context) (*oauth2.Token, error) {
		calls++
		return &oauth2.Token{AccessToken: "tok"}, nil
	}, time.Minute)

	_, _ = cache.Token(context.Background())
	_, _ = cache.Token(context.Background())
	cache.Invalidate()
	_, _ = cache.Token(context.Background())

	assert.Equal(t, 2, calls)
}

func TestTokenCacheFetchError(t *testing.T) {
	boom := errors.New("boom")
	cache := NewTokenCache(func(ctx context.Context) (*oauth2.Token, error) {
		return nil, boom
	}, time.Minute)

	_, err := cache.Token(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestClientCredentialsCache(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "id", r.Form.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	cache := NewClientCredentialsCache(srv.URL, "id", "secret", time.Minute)

	tok, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
