package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/invois/internal/credential/domain"
	"github.com/smallbiznis/invois/internal/document"
	submissiondomain "github.com/smallbiznis/invois/internal/submission/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) (submissiondomain.Repository, *snowflake.Node) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&submissiondomain.SubmissionRecord{},
		&submissiondomain.SubmissionLine{},
		&submissiondomain.AttemptLog{},
	))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	return New(conn), node
}

func newRecord(node *snowflake.Node, tenantID snowflake.ID, status submissiondomain.Status) submissiondomain.SubmissionRecord {
	id := node.Generate()
	return submissiondomain.SubmissionRecord{
		ID:              id,
		TenantID:        tenantID,
		SourceInvoiceID: node.Generate(),
		Environment:     domain.EnvironmentSandbox,
		DocumentType:    document.TypeInvoice,
		Status:          status,
		CodeNumber:      "INV-" + id.String(),
	}
}

func TestUpdateStatusCompareAndSwap(t *testing.T) {
	repo, node := newTestRepo(t)
	tenantID := node.Generate()

	record := newRecord(node, tenantID, submissiondomain.StatusPending)
	require.NoError(t, repo.Create(t.Context(), &record))

	err := repo.UpdateStatus(t.Context(), record.ID, submissiondomain.StatusPending, map[string]any{
		"status": submissiondomain.StatusSubmitted,
	})
	require.NoError(t, err)

	// A second writer still holding the old status loses the race.
	err = repo.UpdateStatus(t.Context(), record.ID, submissiondomain.StatusPending, map[string]any{
		"status": submissiondomain.StatusError,
	})
	assert.ErrorIs(t, err, submissiondomain.ErrConcurrentUpdate)

	got, err := repo.Get(t.Context(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, submissiondomain.StatusSubmitted, got.Status)
}

func TestGetNotFound(t *testing.T) {
	repo, node := newTestRepo(t)

	_, err := repo.Get(t.Context(), node.Generate())
	assert.ErrorIs(t, err, submissiondomain.ErrNotFound)
}

func TestSearchCursorPagination(t *testing.T) {
	repo, node := newTestRepo(t)
	tenantID := node.Generate()

	for i := 0; i < 5; i++ {
		record := newRecord(node, tenantID, submissiondomain.StatusValid)
		require.NoError(t, repo.Create(t.Context(), &record))
	}
	// Another tenant's records never leak into the page.
	other := newRecord(node, node.Generate(), submissiondomain.StatusValid)
	require.NoError(t, repo.Create(t.Context(), &other))

	first, err := repo.Search(t.Context(), submissiondomain.SearchRequest{
		TenantID: tenantID,
		PageSize: 2,
	})
	require.NoError(t, err)
	assert.Len(t, first.Records, 2)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)

	second, err := repo.Search(t.Context(), submissiondomain.SearchRequest{
		TenantID:  tenantID,
		PageSize:  2,
		PageToken: first.NextPageToken,
	})
	require.NoError(t, err)
	assert.Len(t, second.Records, 2)
	assert.True(t, second.HasMore)
	assert.Greater(t, int64(second.Records[0].ID), int64(first.Records[1].ID))

	third, err := repo.Search(t.Context(), submissiondomain.SearchRequest{
		TenantID:  tenantID,
		PageSize:  2,
		PageToken: second.NextPageToken,
	})
	require.NoError(t, err)
	assert.Len(t, third.Records, 1)
	assert.False(t, third.HasMore)
	assert.Empty(t, third.NextPageToken)

	for _, r := range append(append(first.Records, second.Records...), third.Records...) {
		assert.Equal(t, tenantID, r.TenantID)
	}
}

func TestSearchFiltersByStatus(t *testing.T) {
	repo, node := newTestRepo(t)
	tenantID := node.Generate()

	valid := newRecord(node, tenantID, submissiondomain.StatusValid)
	require.NoError(t, repo.Create(t.Context(), &valid))
	rejected := newRecord(node, tenantID, submissiondomain.StatusRejected)
	require.NoError(t, repo.Create(t.Context(), &rejected))

	resp, err := repo.Search(t.Context(), submissiondomain.SearchRequest{
		TenantID: tenantID,
		Status:   submissiondomain.StatusRejected,
	})
	require.NoError(t, err)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, rejected.ID, resp.Records[0].ID)
}

func TestHasActiveForInvoice(t *testing.T) {
	repo, node := newTestRepo(t)
	tenantID := node.Generate()

	// A DRAFT that never built successfully does not block the invoice.
	draft := newRecord(node, tenantID, submissiondomain.StatusDraft)
	require.NoError(t, repo.Create(t.Context(), &draft))
	active, err := repo.HasActiveForInvoice(t.Context(), tenantID, draft.SourceInvoiceID)
	require.NoError(t, err)
	assert.False(t, active)

	record := newRecord(node, tenantID, submissiondomain.StatusSubmitted)
	require.NoError(t, repo.Create(t.Context(), &record))

	active, err = repo.HasActiveForInvoice(t.Context(), tenantID, record.SourceInvoiceID)
	require.NoError(t, err)
	assert.True(t, active)

	// Terminal states free the invoice for a fresh submission.
	require.NoError(t, repo.UpdateStatus(t.Context(), record.ID, submissiondomain.StatusSubmitted, map[string]any{
		"status": submissiondomain.StatusInvalid,
	}))
	active, err = repo.HasActiveForInvoice(t.Context(), tenantID, record.SourceInvoiceID)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestAttemptsOrderedOldestFirst(t *testing.T) {
	repo, node := newTestRepo(t)
	tenantID := node.Generate()

	record := newRecord(node, tenantID, submissiondomain.StatusPending)
	require.NoError(t, repo.Create(t.Context(), &record))

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	actions := []string{
		submissiondomain.AttemptActionBuild,
		submissiondomain.AttemptActionSubmit,
		submissiondomain.AttemptActionPoll,
	}
	for i, action := range actions {
		require.NoError(t, repo.AppendAttempt(t.Context(), submissiondomain.AttemptLog{
			ID:        node.Generate(),
			RecordID:  record.ID,
			Action:    action,
			Status:    submissiondomain.StatusPending,
			Error:     fmt.Sprintf("step %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	attempts, err := repo.Attempts(t.Context(), record.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	for i, action := range actions {
		assert.Equal(t, action, attempts[i].Action)
	}
}
