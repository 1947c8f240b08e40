package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inkwell-press/editorial-api/internal/dto"
	"github.com/inkwell-press/editorial-api/internal/models"
	appErrors "github.com/inkwell-press/editorial-api/pkg/errors"
)

type userDirectoryStub struct {
	users map[string]*models.User
}

func newUserDirectoryStub(users ...*models.User) *userDirectoryStub {
	stub := &userDirectoryStub{users: make(map[string]*models.User)}
	for _, user := range users {
		stub.users[user.ID] = user
	}
	return stub
}

func (s *userDirectoryStub) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func reviewerUser(id string) *models.User {
	return &models.User{ID: id, Email: id + "@inkwell.press", FullName: "Reviewer", Role: models.RoleReviewer, Active: true}
}

func editorUser(id string) *models.User {
	return &models.User{ID: id, Email: id + "@inkwell.press", FullName: "Editor", Role: models.RoleEditor, Active: true}
}

func TestAssignReviewer(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusSubmitted)
	users := newUserDirectoryStub(reviewerUser("reviewer-1"))
	svc := NewAssignmentService(store, users, nil)

	deadline := time.Now().Add(72 * time.Hour)
	updated, err := svc.AssignReviewer(context.Background(), sub.ID, dto.AssignReviewerRequest{
		ReviewerID:      "reviewer-1",
		Deadline:        &deadline,
		ExpectedVersion: 3,
	}, claims("cm-1", models.RoleContentManager))
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedReviewerID)
	require.Equal(t, "reviewer-1", *updated.AssignedReviewerID)
	require.Equal(t, int64(4), updated.Version)

	require.Len(t, store.events, 1)
	require.Equal(t, models.EventKindAssignment, store.events[0].Kind)
	require.Equal(t, store.events[0].FromStatus, store.events[0].ToStatus)

	require.Len(t, store.notifications, 1)
	require.Equal(t, "reviewer-1", store.notifications[0].ReceiverID)
	require.Equal(t, models.NotificationTypeAssignment, store.notifications[0].Type)
}

func TestAssignReviewerRejectsDraft(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusDraft)
	users := newUserDirectoryStub(reviewerUser("reviewer-1"))
	svc := NewAssignmentService(store, users, nil)

	_, err := svc.AssignReviewer(context.Background(), sub.ID, dto.AssignReviewerRequest{
		ReviewerID:      "reviewer-1",
		ExpectedVersion: 3,
	}, claims("cm-1", models.RoleContentManager))
	require.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState))
}

func TestAssignReviewerDuringChangesRequested(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusChangesRequested)
	users := newUserDirectoryStub(reviewerUser("reviewer-1"))
	svc := NewAssignmentService(store, users, nil)

	updated, err := svc.AssignReviewer(context.Background(), sub.ID, dto.AssignReviewerRequest{
		ReviewerID:      "reviewer-1",
		ExpectedVersion: 3,
	}, claims("cm-1", models.RoleContentManager))
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedReviewerID)
	require.Equal(t, "reviewer-1", *updated.AssignedReviewerID)
	require.Equal(t, models.StatusChangesRequested, updated.Status)
}

func TestAssignReviewerRejectsWrongRoleTarget(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusSubmitted)
	users := newUserDirectoryStub(editorUser("editor-1"))
	svc := NewAssignmentService(store, users, nil)

	_, err := svc.AssignReviewer(context.Background(), sub.ID, dto.AssignReviewerRequest{
		ReviewerID:      "editor-1",
		ExpectedVersion: 3,
	}, claims("cm-1", models.RoleContentManager))
	require.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestAssignReviewerForbiddenForAuthors(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusSubmitted)
	users := newUserDirectoryStub(reviewerUser("reviewer-1"))
	svc := NewAssignmentService(store, users, nil)

	_, err := svc.AssignReviewer(context.Background(), sub.ID, dto.AssignReviewerRequest{
		ReviewerID:      "reviewer-1",
		ExpectedVersion: 3,
	}, claims("author-1", models.RoleAuthor))
	require.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}

func TestReassignReviewerNotifiesBoth(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusUnderReview)
	previous := "reviewer-1"
	sub.AssignedReviewerID = &previous
	users := newUserDirectoryStub(reviewerUser("reviewer-1"), reviewerUser("reviewer-2"))
	svc := NewAssignmentService(store, users, nil)

	_, err := svc.AssignReviewer(context.Background(), sub.ID, dto.AssignReviewerRequest{
		ReviewerID:      "reviewer-2",
		ExpectedVersion: 3,
	}, claims("cm-1", models.RoleContentManager))
	require.NoError(t, err)
	require.Len(t, store.notifications, 2)
	receivers := []string{store.notifications[0].ReceiverID, store.notifications[1].ReceiverID}
	require.Contains(t, receivers, "reviewer-1")
	require.Contains(t, receivers, "reviewer-2")
}

func TestUnassignReviewerMidReviewDemotes(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusUnderReview)
	reviewer := "reviewer-1"
	sub.AssignedReviewerID = &reviewer
	users := newUserDirectoryStub(reviewerUser("reviewer-1"))
	metrics := &metricsStub{}
	svc := NewAssignmentService(store, users, nil, WithAssignmentMetrics(metrics))

	updated, err := svc.UnassignReviewer(context.Background(), sub.ID, 3, claims("cm-1", models.RoleContentManager))
	require.NoError(t, err)
	require.Equal(t, models.StatusSubmitted, updated.Status)
	require.Nil(t, updated.AssignedReviewerID)
	require.Equal(t, int64(4), updated.Version)

	// One compensating event covers both the unassignment and the demotion.
	require.Len(t, store.events, 1)
	require.Equal(t, models.EventKindCompensation, store.events[0].Kind)
	require.Equal(t, models.StatusUnderReview, store.events[0].FromStatus)
	require.Equal(t, models.StatusSubmitted, store.events[0].ToStatus)
	require.Equal(t, 1, metrics.transitions)
}

func TestUnassignReviewerOutsideReviewKeepsStatus(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusSubmitted)
	reviewer := "reviewer-1"
	sub.AssignedReviewerID = &reviewer
	users := newUserDirectoryStub(reviewerUser("reviewer-1"))
	svc := NewAssignmentService(store, users, nil)

	updated, err := svc.UnassignReviewer(context.Background(), sub.ID, 3, claims("cm-1", models.RoleContentManager))
	require.NoError(t, err)
	require.Equal(t, models.StatusSubmitted, updated.Status)
	require.Len(t, store.events, 1)
	require.Equal(t, models.EventKindUnassignment, store.events[0].Kind)
}

func TestUnassignReviewerWithoutAssignment(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusSubmitted)
	users := newUserDirectoryStub()
	svc := NewAssignmentService(store, users, nil)

	_, err := svc.UnassignReviewer(context.Background(), sub.ID, 3, claims("cm-1", models.RoleContentManager))
	require.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState))
}

func TestAssignEditor(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusUnderReview)
	users := newUserDirectoryStub(editorUser("editor-1"))
	svc := NewAssignmentService(store, users, nil)

	updated, err := svc.AssignEditor(context.Background(), sub.ID, dto.AssignEditorRequest{
		EditorID:        "editor-1",
		ExpectedVersion: 3,
	}, claims("cm-1", models.RoleContentManager))
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedEditorID)
	require.Equal(t, "editor-1", *updated.AssignedEditorID)
}

func TestAssignEditorRejectsDecidedStatuses(t *testing.T) {
	for _, status := range []models.SubmissionStatus{
		models.StatusDraft, models.StatusApproved, models.StatusRejected, models.StatusPublished,
	} {
		store := newSubmissionStoreStub()
		sub := seedSubmission(store, status)
		users := newUserDirectoryStub(editorUser("editor-1"))
		svc := NewAssignmentService(store, users, nil)

		_, err := svc.AssignEditor(context.Background(), sub.ID, dto.AssignEditorRequest{
			EditorID:        "editor-1",
			ExpectedVersion: 3,
		}, claims("cm-1", models.RoleContentManager))
		require.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState), "status %s", status)
	}
}

func TestAssignmentVersionConflict(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusSubmitted)
	users := newUserDirectoryStub(reviewerUser("reviewer-1"))
	metrics := &metricsStub{}
	svc := NewAssignmentService(store, users, nil, WithAssignmentMetrics(metrics))

	_, err := svc.AssignReviewer(context.Background(), sub.ID, dto.AssignReviewerRequest{
		ReviewerID:      "reviewer-1",
		ExpectedVersion: 7,
	}, claims("cm-1", models.RoleContentManager))
	require.True(t, appErrors.HasCode(err, appErrors.ErrVersionConflict))
	require.Equal(t, 1, metrics.conflicts)
}
