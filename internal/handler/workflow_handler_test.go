package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-press/editorial-api/internal/dto"
	"github.com/inkwell-press/editorial-api/internal/middleware"
	"github.com/inkwell-press/editorial-api/internal/models"
	appErrors "github.com/inkwell-press/editorial-api/pkg/errors"
)

type workflowServiceMock struct {
	result *dto.SubmissionTransitioned
	err    error

	gotID  string
	gotReq dto.TransitionRequest
}

func (m *workflowServiceMock) ApplyTransition(_ context.Context, submissionID string, req dto.TransitionRequest, _ *models.JWTClaims) (*dto.SubmissionTransitioned, error) {
	m.gotID = submissionID
	m.gotReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func newTransitionContext(t *testing.T, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, "/submissions/sub-1/transitions", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "author-1", Role: models.RoleAuthor})
	return c, w
}

func TestWorkflowHandlerTransition(t *testing.T) {
	mock := &workflowServiceMock{result: &dto.SubmissionTransitioned{
		Submission: &models.Submission{ID: "sub-1", Status: models.StatusSubmitted, Version: 4},
	}}
	handler := NewWorkflowHandler(mock)

	c, w := newTransitionContext(t, dto.TransitionRequest{
		TargetStatus:    "submitted",
		ExpectedVersion: 3,
	})
	handler.Transition(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "sub-1", mock.gotID)
	// Target status is normalised before it reaches the service.
	require.Equal(t, models.StatusSubmitted, mock.gotReq.TargetStatus)
}

func TestWorkflowHandlerTransitionInvalidBody(t *testing.T) {
	handler := NewWorkflowHandler(&workflowServiceMock{})
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/submissions/sub-1/transitions", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Transition(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorkflowHandlerTransitionMissingTarget(t *testing.T) {
	handler := NewWorkflowHandler(&workflowServiceMock{})
	c, w := newTransitionContext(t, map[string]interface{}{"expectedVersion": 3})
	handler.Transition(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorkflowHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  *appErrors.Error
		code int
	}{
		{"invalid transition", appErrors.ErrInvalidTransition, http.StatusConflict},
		{"guard rejected", appErrors.ErrGuardRejected, http.StatusUnprocessableEntity},
		{"version conflict", appErrors.ErrVersionConflict, http.StatusConflict},
		{"not found", appErrors.ErrNotFound, http.StatusNotFound},
		{"downstream", appErrors.ErrDownstream, http.StatusBadGateway},
		{"transient store", appErrors.ErrTransientStore, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewWorkflowHandler(&workflowServiceMock{err: tc.err})
			c, w := newTransitionContext(t, dto.TransitionRequest{
				TargetStatus:    models.StatusSubmitted,
				ExpectedVersion: 3,
			})
			handler.Transition(c)
			require.Equal(t, tc.code, w.Code)

			var envelope struct {
				Error *appErrors.Error `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
			require.Equal(t, tc.err.Code, envelope.Error.Code)
		})
	}
}
