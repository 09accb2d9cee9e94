package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	credentialdomain "github.com/smallbiznis/invois/internal/credential/domain"
)

type storeCredentialRequest struct {
	Environment  string `json:"environment"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TIN          string `json:"tin"`
	BRN          string `json:"brn"`
}

func (s *Server) StoreCredential(c *gin.Context) {
	tenant, err := tenantID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req storeCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.ClientID) == "" || strings.TrimSpace(req.ClientSecret) == "" {
		AbortWithError(c, newValidationError("client_id", "missing_client", "client_id and client_secret are required"))
		return
	}

	cred, err := s.credentialSvc.Store(c.Request.Context(), credentialdomain.StoreRequest{
		TenantID:     tenant,
		Environment:  credentialdomain.Environment(strings.TrimSpace(req.Environment)),
		ClientID:     strings.TrimSpace(req.ClientID),
		ClientSecret: req.ClientSecret,
		TIN:          strings.TrimSpace(req.TIN),
		BRN:          strings.TrimSpace(req.BRN),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// The secret never leaves the service, encrypted or not.
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"id":          cred.ID.String(),
		"tenant_id":   cred.TenantID.String(),
		"environment": cred.Environment,
		"client_id":   cred.ClientID,
		"tin":         cred.TIN,
		"brn":         cred.BRN,
		"active":      cred.Active,
	}})
}
