package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	credentialdomain "github.com/smallbiznis/invois/internal/credential/domain"
	"github.com/smallbiznis/invois/internal/document"
	submissiondomain "github.com/smallbiznis/invois/internal/submission/domain"
)

type createSubmissionRequest struct {
	InvoiceID        string `json:"invoice_id"`
	Environment      string `json:"environment"`
	DocumentType     string `json:"document_type"`
	OriginalRecordID string `json:"original_record_id,omitempty"`
}

func (s *Server) CreateSubmission(c *gin.Context) {
	tenant, err := tenantID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoiceID, err := snowflake.ParseString(strings.TrimSpace(req.InvoiceID))
	if err != nil || invoiceID == 0 {
		AbortWithError(c, newValidationError("invoice_id", "invalid_id", "invalid invoice id"))
		return
	}
	originalID, err := parseOptionalSnowflakeID(req.OriginalRecordID)
	if err != nil {
		AbortWithError(c, newValidationError("original_record_id", "invalid_id", "invalid record id"))
		return
	}

	record, err := s.submissionSvc.CreateSubmission(c.Request.Context(), submissiondomain.CreateSubmissionRequest{
		TenantID:         tenant,
		InvoiceID:        invoiceID,
		Environment:      credentialdomain.Environment(strings.TrimSpace(req.Environment)),
		DocumentType:     document.Type(strings.TrimSpace(req.DocumentType)),
		OriginalRecordID: originalID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": record})
}

func (s *Server) Submit(c *gin.Context) {
	recordID, err := pathRecordID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	record, err := s.submissionSvc.Submit(c.Request.Context(), recordID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

type submitBatchRequest struct {
	Environment string   `json:"environment"`
	RecordIDs   []string `json:"record_ids"`
}

func (s *Server) SubmitBatch(c *gin.Context) {
	tenant, err := tenantID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req submitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.RecordIDs) == 0 {
		AbortWithError(c, newValidationError("record_ids", "missing_record_ids", "record_ids is required"))
		return
	}

	recordIDs := make([]snowflake.ID, 0, len(req.RecordIDs))
	for _, raw := range req.RecordIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || id == 0 {
			AbortWithError(c, newValidationError("record_ids", "invalid_id", "invalid record id"))
			return
		}
		recordIDs = append(recordIDs, id)
	}

	records, err := s.submissionSvc.SubmitBatch(
		c.Request.Context(),
		tenant,
		credentialdomain.Environment(strings.TrimSpace(req.Environment)),
		recordIDs,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (s *Server) GetSubmission(c *gin.Context) {
	recordID, err := pathRecordID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	record, attempts, err := s.submissionSvc.GetStatus(c.Request.Context(), recordID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record, "attempts": attempts})
}

type cancelSubmissionRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CancelSubmission(c *gin.Context) {
	recordID, err := pathRecordID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req cancelSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		AbortWithError(c, newValidationError("reason", "missing_reason", "reason is required"))
		return
	}

	record, err := s.submissionSvc.Cancel(c.Request.Context(), recordID, strings.TrimSpace(req.Reason))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) SearchSubmissions(c *gin.Context) {
	tenant, err := tenantID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query struct {
		Status    string `form:"status"`
		From      string `form:"from"`
		To        string `form:"to"`
		PageToken string `form:"page_token"`
		PageSize  int    `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	from, err := parseOptionalTime(query.From, false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_time", "invalid time"))
		return
	}
	to, err := parseOptionalTime(query.To, true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_time", "invalid time"))
		return
	}

	resp, err := s.submissionSvc.Search(c.Request.Context(), submissiondomain.SearchRequest{
		TenantID:  tenant,
		Status:    submissiondomain.Status(strings.ToUpper(strings.TrimSpace(query.Status))),
		From:      from,
		To:        to,
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SearchAuthorityDocuments(c *gin.Context) {
	tenant, err := tenantID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query struct {
		Environment        string `form:"environment"`
		SubmissionDateFrom string `form:"submission_date_from"`
		SubmissionDateTo   string `form:"submission_date_to"`
		IssueDateFrom      string `form:"issue_date_from"`
		IssueDateTo        string `form:"issue_date_to"`
		PageNo             int    `form:"page_no"`
		PageSize           int    `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := submissiondomain.AuthoritySearchRequest{
		TenantID:    tenant,
		Environment: credentialdomain.Environment(strings.TrimSpace(query.Environment)),
		PageNo:      query.PageNo,
		PageSize:    query.PageSize,
	}
	if req.SubmissionDateFrom, err = parseOptionalTime(query.SubmissionDateFrom, false); err != nil {
		AbortWithError(c, newValidationError("submission_date_from", "invalid_time", "invalid time"))
		return
	}
	if req.SubmissionDateTo, err = parseOptionalTime(query.SubmissionDateTo, true); err != nil {
		AbortWithError(c, newValidationError("submission_date_to", "invalid_time", "invalid time"))
		return
	}
	if req.IssueDateFrom, err = parseOptionalTime(query.IssueDateFrom, false); err != nil {
		AbortWithError(c, newValidationError("issue_date_from", "invalid_time", "invalid time"))
		return
	}
	if req.IssueDateTo, err = parseOptionalTime(query.IssueDateTo, true); err != nil {
		AbortWithError(c, newValidationError("issue_date_to", "invalid_time", "invalid time"))
		return
	}

	docs, err := s.submissionSvc.SearchAuthority(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": docs})
}

func (s *Server) GetAuthorityDocument(c *gin.Context) {
	recordID, err := pathRecordID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	view, err := s.submissionSvc.GetAuthorityDocument(c.Request.Context(), recordID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func pathRecordID(c *gin.Context) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, newValidationError("id", "invalid_id", "invalid id")
	}
	return id, nil
}
