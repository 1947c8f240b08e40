package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/inkwell-press/editorial-api/internal/dto"
	"github.com/inkwell-press/editorial-api/internal/models"
	appErrors "github.com/inkwell-press/editorial-api/pkg/errors"
	"github.com/inkwell-press/editorial-api/pkg/response"
)

type assignmentService interface {
	AssignReviewer(ctx context.Context, submissionID string, req dto.AssignReviewerRequest, actor *models.JWTClaims) (*models.Submission, error)
	AssignEditor(ctx context.Context, submissionID string, req dto.AssignEditorRequest, actor *models.JWTClaims) (*models.Submission, error)
	UnassignReviewer(ctx context.Context, submissionID string, expectedVersion int64, actor *models.JWTClaims) (*models.Submission, error)
	UnassignEditor(ctx context.Context, submissionID string, expectedVersion int64, actor *models.JWTClaims) (*models.Submission, error)
}

// AssignmentHandler exposes reviewer and editor assignment endpoints.
type AssignmentHandler struct {
	service assignmentService
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service assignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: service}
}

// AssignReviewer godoc
// @Summary Assign a reviewer
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.AssignReviewerRequest true "Reviewer and expected version"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/reviewer [put]
func (h *AssignmentHandler) AssignReviewer(c *gin.Context) {
	var req dto.AssignReviewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid assignment payload"))
		return
	}
	submission, err := h.service.AssignReviewer(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// UnassignReviewer godoc
// @Summary Remove the current reviewer
// @Tags Assignments
// @Produce json
// @Param id path string true "Submission ID"
// @Param expectedVersion query int true "Version the caller last read"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/reviewer [delete]
func (h *AssignmentHandler) UnassignReviewer(c *gin.Context) {
	expectedVersion, ok := expectedVersionQuery(c)
	if !ok {
		return
	}
	submission, err := h.service.UnassignReviewer(c.Request.Context(), c.Param("id"), expectedVersion, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// AssignEditor godoc
// @Summary Assign an editor
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.AssignEditorRequest true "Editor and expected version"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/editor [put]
func (h *AssignmentHandler) AssignEditor(c *gin.Context) {
	var req dto.AssignEditorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid assignment payload"))
		return
	}
	submission, err := h.service.AssignEditor(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// UnassignEditor godoc
// @Summary Remove the current editor
// @Tags Assignments
// @Produce json
// @Param id path string true "Submission ID"
// @Param expectedVersion query int true "Version the caller last read"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/editor [delete]
func (h *AssignmentHandler) UnassignEditor(c *gin.Context) {
	expectedVersion, ok := expectedVersionQuery(c)
	if !ok {
		return
	}
	submission, err := h.service.UnassignEditor(c.Request.Context(), c.Param("id"), expectedVersion, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

func expectedVersionQuery(c *gin.Context) (int64, bool) {
	raw := c.Query("expectedVersion")
	if raw == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "expectedVersion query parameter is required"))
		return 0, false
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || version < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "expectedVersion must be a non-negative integer"))
		return 0, false
	}
	return version, true
}
