// Package auth manages outbound credentials for tool execution.
//
// The TokenManager implements the OAuth client-credentials grant with a
// cached bearer token: the token endpoint is hit only when no unexpired token
// is cached, concurrent refreshes collapse into a single request, and a
// safety margin treats tokens as expired slightly before their real expiry so
// in-flight requests never carry a token that dies mid-call.
//
// Running without OAuth configuration is a first-class mode: a nil config
// yields an empty token and a pass-through ApplyAuth.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/toolwire/openapi-mcp/pkg/server"
)

const (
	// expiryMargin is subtracted from the provider's expiry so a token is
	// refreshed before requests in flight can outlive it.
	expiryMargin = 30 * time.Second

	// defaultTokenTTL applies when the provider omits expires_in.
	defaultTokenTTL = time.Hour
)

// OAuthConfig holds client-credentials configuration, supplied once at
// startup. Scheme is the Authorization scheme prefix, "Bearer" by default.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scope        string
	Scheme       string
}

// Complete reports whether the config carries everything a token fetch needs.
func (c *OAuthConfig) Complete() bool {
	return c != nil && c.ClientID != "" && c.ClientSecret != "" && c.TokenURL != ""
}

// OAuthConfigFromEnv builds a config from <PREFIX>_CLIENT_ID,
// <PREFIX>_CLIENT_SECRET and <PREFIX>_TOKEN_URL style lookups, returning nil
// when the trio is incomplete.
func OAuthConfigFromEnv(getenv func(string) string, prefix string) *OAuthConfig {
	cfg := &OAuthConfig{
		ClientID:     getenv(prefix + "_CLIENT_ID"),
		ClientSecret: getenv(prefix + "_CLIENT_SECRET"),
		TokenURL:     getenv(prefix + "_TOKEN_URL"),
		Scope:        getenv(prefix + "_SCOPE"),
	}
	if !cfg.Complete() {
		return nil
	}
	return cfg
}

// tokenResponse is the token endpoint's JSON body.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenManager owns the mutable token state for one credential set. It is
// safe for concurrent use: reads of a valid cached token take a shared lock
// only, and at most one token fetch is in flight at a time.
type TokenManager struct {
	cfg    *OAuthConfig
	client *http.Client

	mu     sync.RWMutex
	token  string
	expiry time.Time

	group singleflight.Group
}

// NewTokenManager creates a token manager. cfg may be nil for the
// unauthenticated mode; client defaults to http.DefaultClient.
func NewTokenManager(cfg *OAuthConfig, client *http.Client) *TokenManager {
	if client == nil {
		client = http.DefaultClient
	}
	return &TokenManager{cfg: cfg, client: client}
}

// Configured reports whether OAuth credentials were supplied.
func (tm *TokenManager) Configured() bool {
	return tm.cfg.Complete()
}

// Token returns a valid access token, fetching or refreshing transparently.
// Without configuration it returns the empty string and no error. Concurrent
// callers needing a refresh share one token-endpoint request; if that request
// fails, the failure propagates to every waiter.
func (tm *TokenManager) Token(ctx context.Context) (string, error) {
	if !tm.Configured() {
		return "", nil
	}

	if token, ok := tm.cached(); ok {
		return token, nil
	}

	v, err, _ := tm.group.Do("token", func() (any, error) {
		// A waiter queued behind the fetch that just completed should reuse
		// its result instead of fetching again.
		if token, ok := tm.cached(); ok {
			return token, nil
		}
		return tm.fetch(ctx)
	})
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

// cached returns the current token when it is still inside its validity
// window.
func (tm *TokenManager) cached() (string, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	if tm.token == "" || time.Now().After(tm.expiry) {
		return "", false
	}
	return tm.token, true
}

// fetch performs the client-credentials grant and stores the result.
func (tm *TokenManager) fetch(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", tm.cfg.ClientID)
	form.Set("client_secret", tm.cfg.ClientSecret)
	if tm.cfg.Scope != "" {
		form.Set("scope", tm.cfg.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", server.Wrap(err, server.ErrorTypeAuth, "failed to build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tm.client.Do(req)
	if err != nil {
		return "", server.Wrap(err, server.ErrorTypeAuth, "token endpoint unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", server.Wrap(err, server.ErrorTypeAuth, "failed to read token response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", server.NewError(server.ErrorTypeAuth,
			fmt.Sprintf("token endpoint returned HTTP %d", resp.StatusCode),
			strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", server.Wrap(err, server.ErrorTypeAuth, "invalid token response")
	}
	if tr.AccessToken == "" {
		return "", server.NewError(server.ErrorTypeAuth, "token response missing access_token", "")
	}

	ttl := defaultTokenTTL
	if tr.ExpiresIn > 0 {
		ttl = time.Duration(tr.ExpiresIn) * time.Second
	}

	tm.mu.Lock()
	tm.token = tr.AccessToken
	tm.expiry = time.Now().Add(ttl - expiryMargin)
	tm.mu.Unlock()

	return tr.AccessToken, nil
}

// ApplyAuth adds the Authorization header to the given headers, fetching the
// token if needed. An existing Authorization entry is left untouched, and
// without configuration the call is a pass-through.
func (tm *TokenManager) ApplyAuth(ctx context.Context, headers http.Header) error {
	if !tm.Configured() || headers.Get("Authorization") != "" {
		return nil
	}

	token, err := tm.Token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}

	scheme := tm.cfg.Scheme
	if scheme == "" {
		scheme = "Bearer"
	}
	headers.Set("Authorization", scheme+" "+token)
	return nil
}

// Invalidate drops the cached token so the next caller fetches a fresh one.
func (tm *TokenManager) Invalidate() {
	tm.mu.Lock()
	tm.token = ""
	tm.expiry = time.Time{}
	tm.mu.Unlock()
}
