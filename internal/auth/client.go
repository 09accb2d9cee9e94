// Package auth obtains and caches bearer tokens for the authority API via the
// OAuth2 client-credentials grant.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invois/internal/clock"
	"github.com/smallbiznis/invois/internal/config"
	credentialdomain "github.com/smallbiznis/invois/internal/credential/domain"
	"github.com/smallbiznis/invois/internal/vault"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrInvalidClient means the authority rejected the credential itself.
	// Not retryable; the credential must be corrected.
	ErrInvalidClient = errors.New("invalid_client")
)

// refreshMargin is the remaining TTL below which a cached token is refreshed.
const refreshMargin = 60 * time.Second

// Token is a cached bearer token for one (tenant, environment).
type Token struct {
	AccessToken string
	TokenType   string
	Scope       string
	ExpiresAt   time.Time
}

// Valid reports whether the token still has more than the refresh margin left.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Add(refreshMargin).Before(t.ExpiresAt)
}

// Client caches one token per (tenant, environment). Concurrent refreshes for
// the same key collapse into a single outbound exchange.
type Client struct {
	httpClient  *http.Client
	credentials credentialdomain.Repository
	vault       *vault.Vault
	clock       clock.Clock
	cfg         config.AuthorityConfig
	log         *zap.Logger

	group singleflight.Group

	mu    sync.Mutex
	cache map[string]Token
}

// NewClient builds the auth client.
func NewClient(cfg config.Config, credentials credentialdomain.Repository, v *vault.Vault, clk clock.Clock, log *zap.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Authority.RequestTimeout},
		credentials: credentials,
		vault:       v,
		clock:       clk,
		cfg:         cfg.Authority,
		log:         log.Named("auth"),
		cache:       make(map[string]Token),
	}
}

// GetToken returns a valid bearer token for the tenant and environment,
// performing the client-credentials exchange only when the cached token is
// missing or inside the refresh margin.
func (c *Client) GetToken(ctx context.Context, tenantID snowflake.ID, env credentialdomain.Environment) (Token, error) {
	key := fmt.Sprintf("%s/%s", tenantID, env)

	c.mu.Lock()
	cached, ok := c.cache[key]
	c.mu.Unlock()
	if ok && cached.Valid(c.clock.Now()) {
		return cached, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Another caller may have refreshed while we waited on the flight.
		c.mu.Lock()
		cached, ok := c.cache[key]
		c.mu.Unlock()
		if ok && cached.Valid(c.clock.Now()) {
			return cached, nil
		}

		token, err := c.exchange(ctx, tenantID, env)
		if err != nil {
			return Token{}, err
		}

		c.mu.Lock()
		c.cache[key] = token
		c.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return Token{}, err
	}
	return result.(Token), nil
}

// Invalidate drops the cached token for one (tenant, environment).
func (c *Client) Invalidate(tenantID snowflake.ID, env credentialdomain.Environment) {
	key := fmt.Sprintf("%s/%s", tenantID, env)
	c.mu.Lock()
	delete(c.cache, key)
	c.mu.Unlock()
}

// BaseURL returns the authority base URL for the environment.
func (c *Client) BaseURL(env credentialdomain.Environment) string {
	if env == credentialdomain.EnvironmentProduction {
		return c.cfg.ProductionBaseURL
	}
	return c.cfg.SandboxBaseURL
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *Client) exchange(ctx context.Context, tenantID snowflake.ID, env credentialdomain.Environment) (Token, error) {
	credential, err := c.credentials.FindActive(ctx, tenantID, env)
	if err != nil {
		return Token{}, fmt.Errorf("load credential: %w", err)
	}

	secret, err := c.vault.Decrypt(credential.EncryptedClientSecret)
	if err != nil {
		return Token{}, fmt.Errorf("decrypt credential: %w", err)
	}

	form := url.Values{}
	form.Set("client_id", credential.ClientID)
	form.Set("client_secret", secret)
	form.Set("grant_type", "client_credentials")
	form.Set("scope", c.cfg.Scope)

	endpoint := c.BaseURL(env) + "/connect/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, fmt.Errorf("token exchange: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		var terr tokenErrorResponse
		_ = json.Unmarshal(body, &terr)
		c.log.Warn("credential rejected by identity endpoint",
			zap.String("tenant_id", tenantID.String()),
			zap.String("environment", string(env)),
			zap.String("error", terr.Error),
		)
		return Token{}, fmt.Errorf("%w: %s", ErrInvalidClient, terr.Error)
	default:
		return Token{}, fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Token{}, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return Token{}, errors.New("token response missing access_token")
	}

	return Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
		Scope:       tr.Scope,
		ExpiresAt:   c.clock.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}
