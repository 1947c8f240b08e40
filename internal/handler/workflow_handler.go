package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/inkwell-press/editorial-api/internal/dto"
	"github.com/inkwell-press/editorial-api/internal/models"
	appErrors "github.com/inkwell-press/editorial-api/pkg/errors"
	"github.com/inkwell-press/editorial-api/pkg/response"
)

type workflowService interface {
	ApplyTransition(ctx context.Context, submissionID string, req dto.TransitionRequest, actor *models.JWTClaims) (*dto.SubmissionTransitioned, error)
}

// WorkflowHandler exposes the single transition endpoint. Which edges an
// actor may use is decided by the state machine, not by routing.
type WorkflowHandler struct {
	service workflowService
}

// NewWorkflowHandler constructs the handler.
func NewWorkflowHandler(service workflowService) *WorkflowHandler {
	return &WorkflowHandler{service: service}
}

// Transition godoc
// @Summary Move a submission to a new status
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.TransitionRequest true "Target status and expected version"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/transitions [post]
func (h *WorkflowHandler) Transition(c *gin.Context) {
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid transition payload"))
		return
	}
	req.TargetStatus = models.SubmissionStatus(strings.ToUpper(strings.TrimSpace(string(req.TargetStatus))))
	if req.TargetStatus == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "targetStatus is required"))
		return
	}

	result, err := h.service.ApplyTransition(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
