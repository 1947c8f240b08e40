package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/inkwell-press/editorial-api/internal/dto"
	"github.com/inkwell-press/editorial-api/internal/models"
	"github.com/inkwell-press/editorial-api/internal/service"
	"github.com/inkwell-press/editorial-api/pkg/response"
)

type exportService interface {
	SubmissionsReport(ctx context.Context, query dto.SubmissionQuery, format service.ExportFormat, actor *models.JWTClaims) (*service.ExportResult, error)
}

// ReportHandler serves downloadable submission reports.
type ReportHandler struct {
	service exportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(service exportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// Export godoc
// @Summary Export the submission queue as CSV or PDF
// @Tags Reports
// @Produce octet-stream
// @Param format query string true "csv or pdf"
// @Param status query string false "Comma separated statuses"
// @Param category query string false "Category"
// @Success 200 {file} binary
// @Router /reports/submissions [get]
func (h *ReportHandler) Export(c *gin.Context) {
	format := service.ExportFormat(strings.ToLower(strings.TrimSpace(c.Query("format"))))
	query := parseSubmissionQuery(c)

	result, err := h.service.SubmissionsReport(c.Request.Context(), query, format, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(200, result.ContentType, result.Data)
}
