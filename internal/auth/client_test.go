package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invois/internal/clock"
	"github.com/smallbiznis/invois/internal/config"
	credentialdomain "github.com/smallbiznis/invois/internal/credential/domain"
	"github.com/smallbiznis/invois/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubCredentialRepo struct {
	credential credentialdomain.Credential
}

func (s *stubCredentialRepo) FindActive(ctx context.Context, tenantID snowflake.ID, env credentialdomain.Environment) (credentialdomain.Credential, error) {
	return s.credential, nil
}

func (s *stubCredentialRepo) Upsert(ctx context.Context, credential credentialdomain.Credential) (credentialdomain.Credential, error) {
	return credential, nil
}

func newTestClient(t *testing.T, serverURL string, clk clock.Clock) (*Client, snowflake.ID) {
	t.Helper()

	v, err := vault.New(config.Config{VaultPassphrase: "test", VaultSalt: "salt"})
	require.NoError(t, err)
	sealed, err := v.Encrypt("secret")
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	tenantID := node.Generate()

	repo := &stubCredentialRepo{credential: credentialdomain.Credential{
		ID:                    node.Generate(),
		TenantID:              tenantID,
		Environment:           credentialdomain.EnvironmentSandbox,
		ClientID:              "client-1",
		EncryptedClientSecret: sealed,
		TIN:                   "C1234567890",
		Active:                true,
	}}

	cfg := config.Load()
	cfg.Authority.SandboxBaseURL = serverURL

	return NewClient(cfg, repo, v, clk, zap.NewNop()), tenantID
}

func TestGetTokenSingleFlight(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "client-1", r.Form.Get("client_id"))
		assert.Equal(t, "secret", r.Form.Get("client_secret"))
		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600,"scope":"InvoicingAPI"}`))
	}))
	defer srv.Close()

	client, tenantID := newTestClient(t, srv.URL, clock.New())

	const n = 16
	var wg sync.WaitGroup
	tokens := make([]Token, n)
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tokens[i], errs[i] = client.GetToken(context.Background(), tenantID, credentialdomain.EnvironmentSandbox)
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), requests.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "tok-1", tokens[i].AccessToken)
	}
}

func TestGetTokenRefreshesInsideMargin(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600,"scope":"InvoicingAPI"}`))
	}))
	defer srv.Close()

	fake := clock.NewFakeClock(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	client, tenantID := newTestClient(t, srv.URL, fake)
	ctx := context.Background()

	_, err := client.GetToken(ctx, tenantID, credentialdomain.EnvironmentSandbox)
	require.NoError(t, err)
	assert.Equal(t, int64(1), requests.Load())

	// Well inside the TTL: cache hit.
	fake.Advance(30 * time.Minute)
	_, err = client.GetToken(ctx, tenantID, credentialdomain.EnvironmentSandbox)
	require.NoError(t, err)
	assert.Equal(t, int64(1), requests.Load())

	// 30s of TTL left, under the 60s margin: refresh.
	fake.Advance(29*time.Minute + 30*time.Second)
	_, err = client.GetToken(ctx, tenantID, credentialdomain.EnvironmentSandbox)
	require.NoError(t, err)
	assert.Equal(t, int64(2), requests.Load())
}

func TestGetTokenInvalidClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"client authentication failed"}`))
	}))
	defer srv.Close()

	client, tenantID := newTestClient(t, srv.URL, clock.New())

	_, err := client.GetToken(context.Background(), tenantID, credentialdomain.EnvironmentSandbox)
	assert.ErrorIs(t, err, ErrInvalidClient)
}

func TestTokenCachePerEnvironment(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600,"scope":"InvoicingAPI"}`))
	}))
	defer srv.Close()

	client, tenantID := newTestClient(t, srv.URL, clock.New())
	client.cfg.ProductionBaseURL = srv.URL
	ctx := context.Background()

	_, err := client.GetToken(ctx, tenantID, credentialdomain.EnvironmentSandbox)
	require.NoError(t, err)
	_, err = client.GetToken(ctx, tenantID, credentialdomain.EnvironmentProduction)
	require.NoError(t, err)

	// Separate cache entries, so two exchanges.
	assert.Equal(t, int64(2), requests.Load())
}
