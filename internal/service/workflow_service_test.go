package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inkwell-press/editorial-api/internal/dto"
	"github.com/inkwell-press/editorial-api/internal/models"
	"github.com/inkwell-press/editorial-api/internal/repository"
	appErrors "github.com/inkwell-press/editorial-api/pkg/errors"
)

type submissionStoreStub struct {
	submissions   map[string]*models.Submission
	events        []models.WorkflowEvent
	scans         []models.ScanRecord
	notifications []models.Notification
	updateCalls   int
	failUpdate    error
}

func newSubmissionStoreStub() *submissionStoreStub {
	return &submissionStoreStub{submissions: make(map[string]*models.Submission)}
}

func (s *submissionStoreStub) Create(_ context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = fmt.Sprintf("sub-%d", len(s.submissions)+1)
	}
	if submission.Status == "" {
		submission.Status = models.StatusDraft
	}
	if submission.Priority == "" {
		submission.Priority = models.PriorityNormal
	}
	copied := *submission
	s.submissions[submission.ID] = &copied
	return nil
}

func (s *submissionStoreStub) GetByID(_ context.Context, id string) (*models.Submission, error) {
	sub, ok := s.submissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *sub
	return &copied, nil
}

func (s *submissionStoreStub) List(_ context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	result := make([]models.Submission, 0, len(s.submissions))
	for _, sub := range s.submissions {
		if filter.AuthorID != "" && sub.AuthorID != filter.AuthorID {
			continue
		}
		if filter.ReviewerID != "" && (sub.AssignedReviewerID == nil || *sub.AssignedReviewerID != filter.ReviewerID) {
			continue
		}
		if filter.EditorID != "" && (sub.AssignedEditorID == nil || *sub.AssignedEditorID != filter.EditorID) {
			continue
		}
		result = append(result, *sub)
	}
	return result, nil
}

func (s *submissionStoreStub) Update(_ context.Context, params repository.UpdateSubmissionParams) (*models.Submission, error) {
	s.updateCalls++
	if s.failUpdate != nil {
		return nil, s.failUpdate
	}
	sub, ok := s.submissions[params.ID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if sub.Version != params.ExpectedVersion {
		return nil, repository.ErrStaleVersion
	}

	if params.SetStatus != nil {
		sub.Status = *params.SetStatus
	}
	if params.ClearReviewer {
		sub.AssignedReviewerID = nil
		sub.ReviewDeadline = nil
	} else if params.SetReviewerID != nil {
		sub.AssignedReviewerID = params.SetReviewerID
	}
	if params.ClearEditor {
		sub.AssignedEditorID = nil
	} else if params.SetEditorID != nil {
		sub.AssignedEditorID = params.SetEditorID
	}
	if params.SetReviewDeadline != nil {
		sub.ReviewDeadline = params.SetReviewDeadline
	}
	if params.SetSimilarityScore != nil {
		sub.SimilarityScore = params.SetSimilarityScore
	}
	if params.SetGateDecision != nil {
		sub.GateDecision = params.SetGateDecision
	}
	if params.SetCMVerified != nil {
		sub.CMVerified = *params.SetCMVerified
	}
	if params.SetCertificateID != nil {
		sub.CertificateID = params.SetCertificateID
	}
	sub.Version++

	event := *params.Event
	event.SubmissionID = sub.ID
	s.events = append(s.events, event)
	if params.Scan != nil {
		scan := *params.Scan
		scan.SubmissionID = sub.ID
		s.scans = append(s.scans, scan)
	}
	s.notifications = append(s.notifications, params.Notifications...)

	copied := *sub
	return &copied, nil
}

type metricsStub struct {
	transitions     int
	guardRejections int
	conflicts       int
}

func (m *metricsStub) ObserveTransition(models.SubmissionStatus, models.SubmissionStatus) {
	m.transitions++
}
func (m *metricsStub) IncGuardRejection(models.SubmissionStatus, models.SubmissionStatus) {
	m.guardRejections++
}
func (m *metricsStub) IncVersionConflict() { m.conflicts++ }

func okIssuer() CertificateIssuer {
	return CertificateIssuerFunc(func(context.Context, string, string) (string, error) {
		return "cert-001", nil
	})
}

func claims(userID string, role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: role}
}

func reviewerDirectory() *userDirectoryStub {
	return newUserDirectoryStub(reviewerUser("reviewer-1"))
}

func seedSubmission(store *submissionStoreStub, status models.SubmissionStatus) *models.Submission {
	sub := &models.Submission{
		ID:       "sub-1",
		Title:    "The Quiet Reef",
		Body:     "Full manuscript text.",
		Category: "column",
		AuthorID: "author-1",
		Status:   status,
		Priority: models.PriorityNormal,
		Version:  3,
	}
	store.submissions[sub.ID] = sub
	return sub
}

func TestWorkflowTransitionClosure(t *testing.T) {
	allowed := map[string]bool{
		"DRAFT>SUBMITTED":                true,
		"SUBMITTED>UNDER_REVIEW":         true,
		"UNDER_REVIEW>CHANGES_REQUESTED": true,
		"UNDER_REVIEW>APPROVED":          true,
		"UNDER_REVIEW>REJECTED":          true,
		"CHANGES_REQUESTED>SUBMITTED":    true,
		"APPROVED>PUBLISHED":             true,
		"APPROVED>REJECTED":              true,
	}

	for _, from := range models.AllStatuses {
		for _, to := range models.AllStatuses {
			edge := string(from) + ">" + string(to)
			store := newSubmissionStoreStub()
			sub := seedSubmission(store, from)
			if from == models.StatusUnderReview {
				reviewer := "reviewer-1"
				sub.AssignedReviewerID = &reviewer
			}
			svc := NewWorkflowService(store, reviewerDirectory(), okIssuer(), nil)

			_, err := svc.ApplyTransition(context.Background(), sub.ID, dto.TransitionRequest{
				TargetStatus:    to,
				Note:            "closure check",
				ExpectedVersion: sub.Version,
				ReviewerID:      "reviewer-1",
			}, claims("cm-1", models.RoleContentManager))

			if allowed[edge] && from != models.StatusDraft && from != models.StatusChangesRequested {
				if to == models.StatusApproved {
					// Gate guard fires without a recorded scan.
					require.True(t, appErrors.HasCode(err, appErrors.ErrGuardRejected), edge)
				} else {
					require.NoError(t, err, edge)
				}
			} else if !allowed[edge] {
				require.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition), edge)
			}
		}
	}
}

func TestWorkflowTerminalStatesHaveNoExits(t *testing.T) {
	for _, terminal := range []models.SubmissionStatus{models.StatusPublished, models.StatusRejected} {
		for _, to := range models.AllStatuses {
			store := newSubmissionStoreStub()
			sub := seedSubmission(store, terminal)
			svc := NewWorkflowService(store, reviewerDirectory(), okIssuer(), nil)

			_, err := svc.ApplyTransition(context.Background(), sub.ID, dto.TransitionRequest{
				TargetStatus:    to,
				ExpectedVersion: sub.Version,
			}, claims("admin-1", models.RoleAdmin))
			require.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition),
				"%s should be terminal (attempted %s)", terminal, to)
		}
	}
}

func TestWorkflowSubmitDraft(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusDraft)
	metrics := &metricsStub{}
	svc := NewWorkflowService(store, reviewerDirectory(), okIssuer(), nil, WithWorkflowMetrics(metrics))

	result, err := svc.ApplyTransition(context.Background(), sub.ID, dto.TransitionRequest{
		TargetStatus:    models.StatusSubmitted,
		ExpectedVersion: 3,
	}, claims("author-1", models.RoleAuthor))
	require.NoError(t, err)
	require.Equal(t, models.StatusSubmitted, result.Submission.Status)
	require.Equal(t, int64(4), result.Submission.Version)
	require.Len(t, store.events, 1)
	require.Equal(t, models.EventKindTransition, store.events[0].Kind)
	require.Equal(t, models.StatusDraft, store.events[0].FromStatus)
	require.Equal(t, models.StatusSubmitted, store.events[0].ToStatus)
	require.Equal(t, 1, metrics.transitions)
}

func TestWorkflowSubmitRequiresManuscript(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusDraft)
	sub.Body = "   "
	metrics := &metricsStub{}
	svc := NewWorkflowService(store, reviewerDirectory(), okIssuer(), nil, WithWorkflowMetrics(metrics))

	_, err := svc.ApplyTransition(context.Background(), sub.ID, dto.TransitionRequest{
		TargetStatus:    models.StatusSubmitted,
		ExpectedVersion: 3,
	}, claims("author-1", models.RoleAuthor))
	require.True(t, appErrors.HasCode(err, appErrors.ErrGuardRejected))
	require.Equal(t, 1, metrics.guardRejections)
	require.Zero(t, store.updateCalls)
}

func TestWorkflowOnlyOwningAuthorSubmits(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusDraft)
	svc := NewWorkflowService(store, reviewerDirectory(), okIssuer(), nil)

	_, err := svc.ApplyTransition(context.Background(), sub.ID, dto.TransitionRequest{
		TargetStatus:    models.StatusSubmitted,
		ExpectedVersion: 3,
	}, claims("author-2", models.RoleAuthor))
	require.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}

func TestWorkflowAuthorCannotApprove(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusUnderReview)
	svc := NewWorkflowService(store, reviewerDirectory(), okIssuer(), nil)

	_, err := svc.ApplyTransition(context.Background(), sub.ID, dto.TransitionRequest{
		TargetStatus:    models.StatusApproved,
		ExpectedVersion: 3,
	}, claims("author-1", models.RoleAuthor))
	require.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}

func TestWorkflowVersionConflictOnStaleRead(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusDraft)
	metrics := &metricsStub{}
	svc := NewWorkflowService(store, reviewerDirectory(), okIssuer(), nil, WithWorkflowMetrics(metrics))

	_, err := svc.ApplyTransition(context.Background(), sub.ID, dto.TransitionRequest{
		TargetStatus:    models.StatusSubmitted,
		ExpectedVersion: 2,
	}, claims("author-1", models.RoleAuthor))
	require.True(t, appErrors.HasCode(err, appErrors.ErrVersionConflict))
	require.Equal(t, 1, metrics.conflicts)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.True(t, appErr.Retryable)
}

func TestWorkflowVersionConflictAtCommit(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusDraft)
	store.failUpdate = repository.ErrStaleVersion
	metrics := &metricsStub{}
	svc := NewWorkflowService(store, reviewerDirectory(), okIssuer(), nil, WithWorkflowMetrics(metrics))

	_, err := svc.ApplyTransition(context.Background(), sub.ID, dto.TransitionRequest{
		TargetStatus:    models.StatusSubmitted,
		ExpectedVersion: 3,
	}, claims("author-1", models.RoleAuthor))
	require.True(t, appErrors.HasCode(err, appErrors.ErrVersionConflict))
	require.Equal(t, 1, metrics.conflicts)
}

func TestWorkflowUnknownSubmission(t *testing.T) {
	store := newSubmissionStoreStub()
	svc := NewWorkflowService(store, reviewerDirectory(), okIssuer(), nil)

	_, err := svc.ApplyTransition(context.Background(), "missing", dto.TransitionRequest{
		TargetStatus:    models.StatusSubmitted,
		ExpectedVersion: 0,
	}, claims("author-1", models.RoleAuthor))
	require.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestWorkflowReviewStartRequiresReviewer(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusSubmitted)
	svc := NewWorkflowService(store, reviewerDirectory(), okIssuer(), nil)

	_, err := svc.ApplyTransition(context.Background(), sub.ID, dto.TransitionRequest{
		TargetStatus:    models.StatusUnderReview,
		ExpectedVersion: 3,
	}, claims("cm-1", models.RoleContentManager))
	require.True(t, appErrors.HasCode(err, appErrors.ErrGuardRejected))

	// Supplying the reviewer in the same request assigns atomically.
	result, err := svc.ApplyTransition(context.Background(), sub.ID, dto.TransitionRequest{
		TargetStatus:    models.StatusUnderReview,
		ExpectedVersion: 3,
		ReviewerID:      "reviewer-1",
	}, claims("cm-1", models.RoleContentManager))
	require.NoError(t, err)
	require.NotNil(t, result.Submission.AssignedReviewerID)
	require.Equal(t, "reviewer-1", *result.Submission.AssignedReviewerID)
}

func TestWorkflowReviewStartValidatesInlineReviewer(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusSubmitted)
	users := newUserDirectoryStub(reviewerUser("reviewer-1"), editorUser("editor-1"))
	svc := NewWorkflowService(store, users, okIssuer(), nil)
	ctx := context.Background()
	cm := claims("cm-1", models.RoleContentManager)

	_, err := svc.ApplyTransition(ctx, sub.ID, dto.TransitionRequest{
		TargetStatus:    models.StatusUnderReview,
		ExpectedVersion: 3,
		ReviewerID:      "reviewer-9",
	}, cm)
	require.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
	require.Zero(t, store.updateCalls)

	_, err = svc.ApplyTransition(ctx, sub.ID, dto.TransitionRequest{
		TargetStatus:    models.StatusUnderReview,
		ExpectedVersion: 3,
		ReviewerID:      "editor-1",
	}, cm)
	require.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
	require.Zero(t, store.updateCalls)
	require.Equal(t, models.StatusSubmitted, store.submissions[sub.ID].Status)
}

func TestWorkflowRejectionEdges(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusApproved)
	svc := NewWorkflowService(store, reviewerDirectory(), okIssuer(), nil)
	ctx := context.Background()

	result, err := svc.ApplyTransition(ctx, sub.ID, dto.TransitionRequest{
		TargetStatus:    models.StatusRejected,
		Note:            "withdrawn before publication at the author's request",
		ExpectedVersion: 3,
	}, claims("cm-1", models.RoleContentManager))
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, result.Submission.Status)

	store = newSubmissionStoreStub()
	sub = seedSubmission(store, models.StatusChangesRequested)
	svc = NewWorkflowService(store, reviewerDirectory(), okIssuer(), nil)

	_, err = svc.ApplyTransition(ctx, sub.ID, dto.TransitionRequest{
		TargetStatus:    models.StatusRejected,
		Note:            "abandoned",
		ExpectedVersion: 3,
	}, claims("cm-1", models.RoleContentManager))
	require.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition))
	require.Equal(t, models.StatusChangesRequested, store.submissions[sub.ID].Status)
}

func TestWorkflowChangesRequestedNotifiesAuthor(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusUnderReview)
	reviewer := "reviewer-1"
	sub.AssignedReviewerID = &reviewer
	svc := NewWorkflowService(store, reviewerDirectory(), okIssuer(), nil)

	_, err := svc.ApplyTransition(context.Background(), sub.ID, dto.TransitionRequest{
		TargetStatus:    models.StatusChangesRequested,
		Note:            "please tighten section 2",
		ExpectedVersion: 3,
	}, claims("reviewer-1", models.RoleReviewer))
	require.NoError(t, err)
	require.Len(t, store.notifications, 1)
	require.Equal(t, "author-1", store.notifications[0].ReceiverID)
	require.Contains(t, store.notifications[0].Message, "please tighten section 2")
}

func TestWorkflowChangesRequestedRequiresNote(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusUnderReview)
	reviewer := "reviewer-1"
	sub.AssignedReviewerID = &reviewer
	svc := NewWorkflowService(store, reviewerDirectory(), okIssuer(), nil)

	_, err := svc.ApplyTransition(context.Background(), sub.ID, dto.TransitionRequest{
		TargetStatus:    models.StatusChangesRequested,
		ExpectedVersion: 3,
	}, claims("reviewer-1", models.RoleReviewer))
	require.True(t, appErrors.HasCode(err, appErrors.ErrGuardRejected))
}

func TestWorkflowApprovalGate(t *testing.T) {
	needsValidation := models.DecisionNeedsValidation
	mustRevise := models.DecisionMustRevise
	clear := models.DecisionClear

	cases := []struct {
		name     string
		decision *models.GateDecision
		verified bool
		wantErr  bool
	}{
		{name: "no scan recorded", decision: nil, wantErr: true},
		{name: "clear", decision: &clear, wantErr: false},
		{name: "needs validation unverified", decision: &needsValidation, wantErr: true},
		{name: "needs validation verified", decision: &needsValidation, verified: true, wantErr: false},
		{name: "must revise", decision: &mustRevise, wantErr: true},
		{name: "must revise verified", decision: &mustRevise, verified: true, wantErr: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newSubmissionStoreStub()
			sub := seedSubmission(store, models.StatusUnderReview)
			sub.GateDecision = tc.decision
			sub.CMVerified = tc.verified
			svc := NewWorkflowService(store, reviewerDirectory(), okIssuer(), nil)

			_, err := svc.ApplyTransition(context.Background(), sub.ID, dto.TransitionRequest{
				TargetStatus:    models.StatusApproved,
				ExpectedVersion: 3,
			}, claims("cm-1", models.RoleContentManager))
			if tc.wantErr {
				require.True(t, appErrors.HasCode(err, appErrors.ErrGuardRejected))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestWorkflowPublishIssuesCertificate(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusApproved)
	svc := NewWorkflowService(store, reviewerDirectory(), okIssuer(), nil)

	result, err := svc.ApplyTransition(context.Background(), sub.ID, dto.TransitionRequest{
		TargetStatus:    models.StatusPublished,
		ExpectedVersion: 3,
	}, claims("cm-1", models.RoleContentManager))
	require.NoError(t, err)
	require.Equal(t, models.StatusPublished, result.Submission.Status)
	require.Equal(t, "cert-001", result.CertificateID)
	require.NotNil(t, result.Submission.CertificateID)
	require.Equal(t, "cert-001", *result.Submission.CertificateID)
	require.Len(t, store.notifications, 1)
	require.Contains(t, store.notifications[0].Message, "cert-001")
}

func TestWorkflowPublishFailsClosedOnIssuerError(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusApproved)
	issuer := CertificateIssuerFunc(func(context.Context, string, string) (string, error) {
		return "", errors.New("issuer unreachable")
	})
	svc := NewWorkflowService(store, reviewerDirectory(), issuer, nil)

	_, err := svc.ApplyTransition(context.Background(), sub.ID, dto.TransitionRequest{
		TargetStatus:    models.StatusPublished,
		ExpectedVersion: 3,
	}, claims("cm-1", models.RoleContentManager))
	require.True(t, appErrors.HasCode(err, appErrors.ErrDownstream))
	require.Zero(t, store.updateCalls)
	require.Equal(t, models.StatusApproved, store.submissions[sub.ID].Status)
	require.Equal(t, int64(3), store.submissions[sub.ID].Version)
}

func TestWorkflowFullEditorialRound(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusDraft)
	svc := NewWorkflowService(store, reviewerDirectory(), okIssuer(), nil)
	ctx := context.Background()

	author := claims("author-1", models.RoleAuthor)
	cm := claims("cm-1", models.RoleContentManager)
	reviewer := claims("reviewer-1", models.RoleReviewer)

	step := func(actor *models.JWTClaims, target models.SubmissionStatus, note string) *models.Submission {
		current := store.submissions[sub.ID]
		result, err := svc.ApplyTransition(ctx, sub.ID, dto.TransitionRequest{
			TargetStatus:    target,
			Note:            note,
			ExpectedVersion: current.Version,
			ReviewerID:      "reviewer-1",
		}, actor)
		require.NoError(t, err, "to %s", target)
		return result.Submission
	}

	step(author, models.StatusSubmitted, "")
	step(cm, models.StatusUnderReview, "")
	step(reviewer, models.StatusChangesRequested, "needs citations")
	step(author, models.StatusSubmitted, "")
	step(cm, models.StatusUnderReview, "")

	clear := models.DecisionClear
	store.submissions[sub.ID].GateDecision = &clear

	step(cm, models.StatusApproved, "")
	final := step(cm, models.StatusPublished, "")

	require.Equal(t, models.StatusPublished, final.Status)
	require.Equal(t, int64(10), final.Version)
	require.Len(t, store.events, 7)
	for _, event := range store.events {
		require.Equal(t, models.EventKindTransition, event.Kind)
	}
}
