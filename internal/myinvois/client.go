// Package myinvois is a thin, rate-limit-aware client for the tax authority's
// e-invoice API.
package myinvois

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invois/internal/auth"
	"github.com/smallbiznis/invois/internal/config"
	credentialdomain "github.com/smallbiznis/invois/internal/credential/domain"
	"github.com/smallbiznis/invois/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the authority client.
var Module = fx.Module("myinvois",
	fx.Provide(NewClient),
)

// maxSearchSpan is the widest date range the authority accepts on search.
const maxSearchSpan = 31 * 24 * time.Hour

// documentFormat is the wire format this profile submits.
const documentFormat = "JSON"

// opLimit is a client-side token bucket matching the authority's published
// per-minute ceiling for one operation.
type opLimit struct {
	rate  float64
	burst int
}

func perMinute(n int) opLimit {
	return opLimit{rate: float64(n) / 60.0, burst: n}
}

var opLimits = map[string]opLimit{
	"submit":               perMinute(100),
	"get_submission":       perMinute(300),
	"get_document":         perMinute(60),
	"get_document_details": perMinute(125),
	"search":               perMinute(12),
	"cancel":               perMinute(12),
}

// Client wraps the six authority endpoints. Every call attaches a bearer
// token, takes a token from the operation's bucket, and retries transient
// failures with exponential backoff.
type Client struct {
	httpClient *http.Client
	auth       *auth.Client
	limiter    ratelimit.Limiter
	cfg        config.AuthorityConfig
	retry      RetryStrategy
	log        *zap.Logger
}

// NewClient builds the authority client.
func NewClient(cfg config.Config, authClient *auth.Client, limiter ratelimit.Limiter, log *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Authority.RequestTimeout},
		auth:       authClient,
		limiter:    limiter,
		cfg:        cfg.Authority,
		retry: RetryStrategy{
			MaxAttempts: cfg.Authority.MaxRetries,
			BaseBackoff: cfg.Authority.RetryBaseBackoff,
			MaxBackoff:  cfg.Authority.RetryMaxBackoff,
		},
		log: log.Named("myinvois"),
	}
}

// SubmitDocuments posts a batch. The returned result partitions documents
// into accepted and rejected, keyed by caller-supplied code numbers.
func (c *Client) SubmitDocuments(ctx context.Context, tenantID snowflake.ID, env credentialdomain.Environment, docs []SubmitDocument) (*SubmitResult, error) {
	var out SubmitResult
	err := c.do(ctx, tenantID, env, "submit", http.MethodPost, "/documentsubmissions", nil, submitRequest{Documents: docs}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSubmission fetches the coarse status of a submission batch.
func (c *Client) GetSubmission(ctx context.Context, tenantID snowflake.ID, env credentialdomain.Environment, submissionUID string, pageNo, pageSize int) (*SubmissionStatus, error) {
	query := url.Values{}
	if pageNo > 0 {
		query.Set("pageNo", strconv.Itoa(pageNo))
	}
	if pageSize > 0 {
		query.Set("pageSize", strconv.Itoa(pageSize))
	}

	var out SubmissionStatus
	err := c.do(ctx, tenantID, env, "get_submission", http.MethodGet, "/documentsubmissions/"+url.PathEscape(submissionUID), query, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDocument fetches the raw stored document plus metadata.
func (c *Client) GetDocument(ctx context.Context, tenantID snowflake.ID, env credentialdomain.Environment, uuid string) (*RawDocument, error) {
	var out RawDocument
	err := c.do(ctx, tenantID, env, "get_document", http.MethodGet, "/documents/"+url.PathEscape(uuid)+"/raw", nil, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDocumentDetails fetches the authoritative validation result for one
// document.
func (c *Client) GetDocumentDetails(ctx context.Context, tenantID snowflake.ID, env credentialdomain.Environment, uuid string) (*DocumentDetails, error) {
	var out DocumentDetails
	err := c.do(ctx, tenantID, env, "get_document_details", http.MethodGet, "/documents/"+url.PathEscape(uuid)+"/details", nil, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Search queries documents. The date-range filter is validated locally;
// violations are rejected without a network call.
func (c *Client) Search(ctx context.Context, tenantID snowflake.ID, env credentialdomain.Environment, filter SearchFilter) (*SearchResult, error) {
	query, err := filter.query()
	if err != nil {
		return nil, err
	}

	var out SearchResult
	err = c.do(ctx, tenantID, env, "search", http.MethodGet, "/documents/search", query, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel cancels a validated document within its cancellation window.
func (c *Client) Cancel(ctx context.Context, tenantID snowflake.ID, env credentialdomain.Environment, uuid, reason string) (*CancelResult, error) {
	body := map[string]string{"status": "cancelled", "reason": reason}

	var out CancelResult
	err := c.do(ctx, tenantID, env, "cancel", http.MethodPut, "/documents/"+url.PathEscape(uuid)+"/cancel", nil, body, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (f SearchFilter) query() (url.Values, error) {
	const dateFormat = "2006-01-02"

	var from, to *time.Time
	query := url.Values{}
	switch {
	case f.SubmissionDateFrom != nil && f.SubmissionDateTo != nil:
		from, to = f.SubmissionDateFrom, f.SubmissionDateTo
		query.Set("submissionDateFrom", from.Format(dateFormat))
		query.Set("submissionDateTo", to.Format(dateFormat))
	case f.IssueDateFrom != nil && f.IssueDateTo != nil:
		from, to = f.IssueDateFrom, f.IssueDateTo
		query.Set("issueDateFrom", from.Format(dateFormat))
		query.Set("issueDateTo", to.Format(dateFormat))
	default:
		return nil, fmt.Errorf("%w: a complete submission-date or issue-date range is required", ErrInvalidSearchFilter)
	}

	if to.Before(*from) {
		return nil, fmt.Errorf("%w: date range end precedes start", ErrInvalidSearchFilter)
	}
	if to.Sub(*from) > maxSearchSpan {
		return nil, fmt.Errorf("%w: date range exceeds 31 days", ErrInvalidSearchFilter)
	}

	if f.DocumentType != "" {
		query.Set("documentType", f.DocumentType)
	}
	if f.Status != "" {
		query.Set("status", f.Status)
	}
	if f.PageNo > 0 {
		query.Set("pageNo", strconv.Itoa(f.PageNo))
	}
	if f.PageSize > 0 {
		query.Set("pageSize", strconv.Itoa(f.PageSize))
	}
	return query, nil
}

func (c *Client) do(ctx context.Context, tenantID snowflake.ID, env credentialdomain.Environment, op, method, path string, query url.Values, body, out any) error {
	limit, ok := opLimits[op]
	if !ok {
		return fmt.Errorf("unknown operation %q", op)
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	endpoint := c.auth.BaseURL(env) + "/api/" + c.cfg.APIVersion + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retry.Backoff(attempt)
			c.log.Debug("retrying authority call",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := ratelimit.Wait(ctx, c.limiter, "authority:"+op, limit.rate, limit.burst); err != nil {
			return err
		}

		retryable, err := c.attempt(ctx, tenantID, env, method, endpoint, payload, out)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%w: %s after %d attempts: %s", ErrRetriesExhausted, op, c.retry.MaxAttempts+1, lastErr)
}

// attempt performs one outbound request. The bool reports whether the error
// is transient.
func (c *Client) attempt(ctx context.Context, tenantID snowflake.ID, env credentialdomain.Environment, method, endpoint string, payload []byte, out any) (bool, error) {
	token, err := c.auth.GetToken(ctx, tenantID, env)
	if err != nil {
		// Credential rejection is terminal; transport trouble is not.
		if errors.Is(err, auth.ErrInvalidClient) {
			return false, err
		}
		return true, err
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil || len(respBody) == 0 {
			return false, nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return false, fmt.Errorf("decode authority response: %w", err)
		}
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	default:
		var parsed apiErrorBody
		_ = json.Unmarshal(respBody, &parsed)
		return false, &APIError{
			StatusCode: resp.StatusCode,
			Code:       parsed.Error.Code,
			Message:    parsed.Error.Message,
		}
	}
}
