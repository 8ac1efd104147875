package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/toolwire/openapi-mcp/pkg/server"
)

func tokenServer(t *testing.T, hits *atomic.Int64, expiresIn int64, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}

		require.NoError(t, r.ParseForm())
		require.Equal(t, "client_credentials", r.FormValue("grant_type"))
		require.Equal(t, "my-client", r.FormValue("client_id"))
		require.Equal(t, "my-secret", r.FormValue("client_secret"))
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-abc","token_type":"Bearer","expires_in":` + strconv.FormatInt(expiresIn, 10) + `}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(tokenURL string) *OAuthConfig {
	return &OAuthConfig{
		ClientID:     "my-client",
		ClientSecret: "my-secret",
		TokenURL:     tokenURL,
	}
}

func TestTokenCached(t *testing.T) {
	var hits atomic.Int64
	srv := tokenServer(t, &hits, 3600, 0)

	tm := NewTokenManager(testConfig(srv.URL), srv.Client())

	tok, err := tm.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-abc", tok)

	tok, err = tm.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-abc", tok)

	// Second call served from cache.
	require.EqualValues(t, 1, hits.Load())
}

func TestTokenConcurrentSingleFetch(t *testing.T) {
	var hits atomic.Int64
	srv := tokenServer(t, &hits, 3600, 50*time.Millisecond)

	tm := NewTokenManager(testConfig(srv.URL), srv.Client())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := tm.Token(context.Background())
			require.NoError(t, err)
			require.Equal(t, "tok-abc", tok)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, hits.Load())
}

func TestTokenRefetchAfterExpiry(t *testing.T) {
	var hits atomic.Int64
	// expires_in of 1s minus the safety margin puts the token in the past
	// immediately, so the next call must refetch.
	srv := tokenServer(t, &hits, 1, 0)

	tm := NewTokenManager(testConfig(srv.URL), srv.Client())

	_, err := tm.Token(context.Background())
	require.NoError(t, err)
	_, err = tm.Token(context.Background())
	require.NoError(t, err)

	require.EqualValues(t, 2, hits.Load())
}

func TestTokenEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad client", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	tm := NewTokenManager(testConfig(srv.URL), srv.Client())

	_, err := tm.Token(context.Background())
	require.Error(t, err)
	require.True(t, server.IsType(err, server.ErrorTypeAuth))
	require.Contains(t, err.Error(), "token endpoint returned HTTP 401")
}

func TestTokenUnconfigured(t *testing.T) {
	tm := NewTokenManager(nil, nil)
	require.False(t, tm.Configured())

	tok, err := tm.Token(context.Background())
	require.NoError(t, err)
	require.Empty(t, tok)

	headers := http.Header{}
	require.NoError(t, tm.ApplyAuth(context.Background(), headers))
	require.Empty(t, headers.Get("Authorization"))
}

func TestApplyAuth(t *testing.T) {
	var hits atomic.Int64
	srv := tokenServer(t, &hits, 3600, 0)

	tm := NewTokenManager(testConfig(srv.URL), srv.Client())

	headers := http.Header{}
	require.NoError(t, tm.ApplyAuth(context.Background(), headers))
	require.Equal(t, "Bearer tok-abc", headers.Get("Authorization"))

	// An existing Authorization entry is left untouched.
	headers = http.Header{}
	headers.Set("Authorization", "Bearer caller-supplied")
	require.NoError(t, tm.ApplyAuth(context.Background(), headers))
	require.Equal(t, "Bearer caller-supplied", headers.Get("Authorization"))
	require.EqualValues(t, 1, hits.Load())
}

func TestInvalidateForcesRefetch(t *testing.T) {
	var hits atomic.Int64
	srv := tokenServer(t, &hits, 3600, 0)

	tm := NewTokenManager(testConfig(srv.URL), srv.Client())

	_, err := tm.Token(context.Background())
	require.NoError(t, err)
	tm.Invalidate()
	_, err = tm.Token(context.Background())
	require.NoError(t, err)

	require.EqualValues(t, 2, hits.Load())
}

func TestOAuthConfigFromEnv(t *testing.T) {
	env := map[string]string{
		"PETSTORE_CLIENT_ID":     "id",
		"PETSTORE_CLIENT_SECRET": "secret",
		"PETSTORE_TOKEN_URL":     "https://auth.example.com/token",
		"PETSTORE_SCOPE":         "read",
	}
	getenv := func(key string) string { return env[key] }

	cfg := OAuthConfigFromEnv(getenv, "PETSTORE")
	require.NotNil(t, cfg)
	require.Equal(t, "id", cfg.ClientID)
	require.Equal(t, "read", cfg.Scope)

	// Incomplete trio yields no config.
	require.Nil(t, OAuthConfigFromEnv(getenv, "MISSING"))
}

func TestStateManagerKeepsUnchangedManagers(t *testing.T) {
	sm := NewStateManager()
	cfg := testConfig("https://auth.example.com/token")

	sm.UpdateManagers(map[string]*OAuthConfig{"petstore": cfg}, nil)
	first, ok := sm.GetManager("petstore")
	require.True(t, ok)

	// Same config: same manager instance, cached token survives.
	sm.UpdateManagers(map[string]*OAuthConfig{"petstore": testConfig("https://auth.example.com/token")}, nil)
	second, ok := sm.GetManager("petstore")
	require.True(t, ok)
	require.Same(t, first, second)

	// Changed config: fresh manager, old endpoint dropped.
	changed := testConfig("https://other.example.com/token")
	sm.UpdateManagers(map[string]*OAuthConfig{"billing": changed}, nil)
	_, ok = sm.GetManager("petstore")
	require.False(t, ok)
	third, ok := sm.GetManager("billing")
	require.True(t, ok)
	require.NotSame(t, first, third)
}
