package myinvois

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invois/internal/auth"
	"github.com/smallbiznis/invois/internal/clock"
	"github.com/smallbiznis/invois/internal/config"
	credentialdomain "github.com/smallbiznis/invois/internal/credential/domain"
	"github.com/smallbiznis/invois/internal/ratelimit"
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

// apiHits counts requests to API paths, excluding the token endpoint.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, snowflake.ID, *atomic.Int64) {
	t.Helper()

	var apiHits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/connect/token" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600,"scope":"InvoicingAPI"}`))
			return
		}
		apiHits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	v, err := vault.New(config.Config{VaultPassphrase: "test", VaultSalt: "salt"})
	require.NoError(t, err)
	sealed, err := v.Encrypt("secret")
	require.NoError(t, err)

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	tenantID := node.Generate()

	repo := &stubCredentialRepo{credential: credentialdomain.Credential{
		TenantID:              tenantID,
		Environment:           credentialdomain.EnvironmentSandbox,
		ClientID:              "client-1",
		EncryptedClientSecret: sealed,
		Active:                true,
	}}

	cfg := config.Load()
	cfg.Authority.SandboxBaseURL = srv.URL
	cfg.Authority.MaxRetries = 2
	cfg.Authority.RetryBaseBackoff = time.Millisecond
	cfg.Authority.RetryMaxBackoff = 5 * time.Millisecond

	authClient := auth.NewClient(cfg, repo, v, clock.New(), zap.NewNop())
	return NewClient(cfg, authClient, ratelimit.NewLocalBucket(), zap.NewNop()), tenantID, &apiHits
}

func TestSubmitRetriesOn503ThenFails(t *testing.T) {
	client, tenantID, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.SubmitDocuments(context.Background(), tenantID, credentialdomain.EnvironmentSandbox, []SubmitDocument{
		{Format: "JSON", Document: "e30=", DocumentHash: "abc", CodeNumber: "INV-1"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	// Initial attempt plus MaxRetries retries.
	assert.Equal(t, int64(3), hits.Load())
}

func TestSubmit400IsNeverRetried(t *testing.T) {
	client, tenantID, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BadArgument","message":"document hash mismatch"}}`))
	})

	_, err := client.SubmitDocuments(context.Background(), tenantID, credentialdomain.EnvironmentSandbox, []SubmitDocument{
		{Format: "JSON", Document: "e30=", DocumentHash: "abc", CodeNumber: "INV-1"},
	})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "BadArgument", apiErr.Code)
	assert.Equal(t, int64(1), hits.Load())
}

func TestSubmitPartialBatchResult(t *testing.T) {
	client, tenantID, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var req submitRequest
		require.NoError(t, json.Unmarshal(body, &req))
		require.Len(t, req.Documents, 3)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"submissionUid": "S1",
			"acceptedDocuments": [
				{"uuid": "U1", "invoiceCodeNumber": "INV-1"},
				{"uuid": "U2", "invoiceCodeNumber": "INV-2"}
			],
			"rejectedDocuments": [
				{"invoiceCodeNumber": "INV-3", "error": {"code": "CF321", "message": "duplicated document"}}
			]
		}`))
	})

	docs := []SubmitDocument{
		{Format: "JSON", Document: "e30=", DocumentHash: "h1", CodeNumber: "INV-1"},
		{Format: "JSON", Document: "e30=", DocumentHash: "h2", CodeNumber: "INV-2"},
		{Format: "JSON", Document: "e30=", DocumentHash: "h3", CodeNumber: "INV-3"},
	}
	result, err := client.SubmitDocuments(context.Background(), tenantID, credentialdomain.EnvironmentSandbox, docs)
	require.NoError(t, err)

	assert.Equal(t, "S1", result.SubmissionUID)
	require.Len(t, result.AcceptedDocuments, 2)
	require.Len(t, result.RejectedDocuments, 1)
	assert.Equal(t, "U1", result.AcceptedDocuments[0].UUID)
	assert.Equal(t, "INV-3", result.RejectedDocuments[0].InvoiceCodeNumber)
	assert.Equal(t, "CF321", result.RejectedDocuments[0].Error.Code)
}

func TestSearchRejectsMissingDateRangeLocally(t *testing.T) {
	client, tenantID, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should be issued")
	})

	_, err := client.Search(context.Background(), tenantID, credentialdomain.EnvironmentSandbox, SearchFilter{})
	assert.ErrorIs(t, err, ErrInvalidSearchFilter)
	assert.Equal(t, int64(0), hits.Load())
}

func TestSearchRejectsOversizedDateRangeLocally(t *testing.T) {
	client, tenantID, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should be issued")
	})

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(32 * 24 * time.Hour)
	_, err := client.Search(context.Background(), tenantID, credentialdomain.EnvironmentSandbox, SearchFilter{
		SubmissionDateFrom: &from,
		SubmissionDateTo:   &to,
	})
	assert.ErrorIs(t, err, ErrInvalidSearchFilter)
	assert.Equal(t, int64(0), hits.Load())
}

func TestSearchSendsDateRange(t *testing.T) {
	client, tenantID, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1.0/documents/search", r.URL.Path)
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("submissionDateFrom"))
		assert.Equal(t, "2024-01-31", r.URL.Query().Get("submissionDateTo"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":[{"uuid":"U1","submissionUid":"S1","status":"Valid"}],"metadata":{"totalPages":1,"totalCount":1}}`))
	})

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	result, err := client.Search(context.Background(), tenantID, credentialdomain.EnvironmentSandbox, SearchFilter{
		SubmissionDateFrom: &from,
		SubmissionDateTo:   &to,
	})
	require.NoError(t, err)
	require.Len(t, result.Result, 1)
	assert.Equal(t, "U1", result.Result[0].UUID)
}

func TestCancelSendsReason(t *testing.T) {
	client, tenantID, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/documents/U1/cancel"))

		body, _ := io.ReadAll(r.Body)
		var req map[string]string
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "cancelled", req["status"])
		assert.Equal(t, "wrong buyer", req["reason"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"uuid":"U1","status":"Cancelled"}`))
	})

	result, err := client.Cancel(context.Background(), tenantID, credentialdomain.EnvironmentSandbox, "U1", "wrong buyer")
	require.NoError(t, err)
	assert.Equal(t, "Cancelled", result.Status)
}

func TestGetSubmissionPagination(t *testing.T) {
	client, tenantID, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1.0/documentsubmissions/S1", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("pageNo"))
		assert.Equal(t, "50", r.URL.Query().Get("pageSize"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"submissionUid":"S1","documentCount":1,"overallStatus":"valid","documentSummary":[{"uuid":"U1","internalId":"INV-1","status":"Valid"}]}`))
	})

	status, err := client.GetSubmission(context.Background(), tenantID, credentialdomain.EnvironmentSandbox, "S1", 2, 50)
	require.NoError(t, err)
	assert.Equal(t, OverallStatusValid, status.OverallStatus)
	require.Len(t, status.DocumentSummary, 1)
	assert.Equal(t, "U1", status.DocumentSummary[0].UUID)
}
