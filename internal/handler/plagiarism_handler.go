package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inkwell-press/editorial-api/internal/dto"
	"github.com/inkwell-press/editorial-api/internal/models"
	appErrors "github.com/inkwell-press/editorial-api/pkg/errors"
	"github.com/inkwell-press/editorial-api/pkg/response"
)

type plagiarismService interface {
	RecordScan(ctx context.Context, submissionID string, req dto.RecordScanRequest, actor *models.JWTClaims) (*models.Submission, error)
	Verify(ctx context.Context, submissionID string, req dto.VerifyScanRequest, actor *models.JWTClaims) (*models.Submission, error)
	History(ctx context.Context, submissionID string) ([]models.ScanRecord, error)
}

// PlagiarismHandler exposes similarity-gate endpoints.
type PlagiarismHandler struct {
	service plagiarismService
}

// NewPlagiarismHandler constructs the handler.
func NewPlagiarismHandler(service plagiarismService) *PlagiarismHandler {
	return &PlagiarismHandler{service: service}
}

// RecordScan godoc
// @Summary Record a similarity scan result
// @Tags Plagiarism
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.RecordScanRequest true "Score and matches"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/scans [post]
func (h *PlagiarismHandler) RecordScan(c *gin.Context) {
	var req dto.RecordScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid scan payload"))
		return
	}
	submission, err := h.service.RecordScan(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Verify godoc
// @Summary Verify an escalated similarity result
// @Tags Plagiarism
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.VerifyScanRequest true "Verification note"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/scans/verify [post]
func (h *PlagiarismHandler) Verify(c *gin.Context) {
	var req dto.VerifyScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid verification payload"))
		return
	}
	submission, err := h.service.Verify(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// History godoc
// @Summary List the scan history for a submission
// @Tags Plagiarism
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/scans [get]
func (h *PlagiarismHandler) History(c *gin.Context) {
	scans, err := h.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scans, nil)
}
