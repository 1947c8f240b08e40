package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/inkwell-press/editorial-api/internal/dto"
	"github.com/inkwell-press/editorial-api/internal/models"
	"github.com/inkwell-press/editorial-api/internal/repository"
	appErrors "github.com/inkwell-press/editorial-api/pkg/errors"
)

type userDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AssignmentService manages reviewer and editor assignments. Assignments are
// not transitions, but they share the same version-guarded write path so an
// assignment can never race a status change.
type AssignmentService struct {
	repo    submissionStore
	users   userDirectory
	metrics workflowMetrics
	cache   submissionCacheInvalidator
	logger  *zap.Logger
}

// AssignmentServiceOption configures the service.
type AssignmentServiceOption func(*AssignmentService)

// WithAssignmentMetrics wires transition counters.
func WithAssignmentMetrics(m workflowMetrics) AssignmentServiceOption {
	return func(s *AssignmentService) { s.metrics = m }
}

// WithAssignmentCache wires read-cache invalidation.
func WithAssignmentCache(c submissionCacheInvalidator) AssignmentServiceOption {
	return func(s *AssignmentService) { s.cache = c }
}

// NewAssignmentService constructs the service.
func NewAssignmentService(repo submissionStore, users userDirectory, logger *zap.Logger, opts ...AssignmentServiceOption) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AssignmentService{repo: repo, users: users, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

var assignmentRoles = []models.UserRole{models.RoleContentManager, models.RoleAdmin}

// assignableStatus is the window in which reviewer and editor assignments are
// valid: the submission is in play but no final decision has been taken.
func assignableStatus(status models.SubmissionStatus) bool {
	switch status {
	case models.StatusSubmitted, models.StatusUnderReview, models.StatusChangesRequested:
		return true
	}
	return false
}

func actorMayAssign(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	for _, role := range assignmentRoles {
		if actor.Role == role {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden,
		fmt.Sprintf("role %s may not manage assignments", actor.Role))
}

// AssignReviewer attaches a reviewer while the submission sits in SUBMITTED,
// UNDER_REVIEW, or CHANGES_REQUESTED. Reassignment during review is allowed;
// the outgoing reviewer is notified together with the incoming one.
func (s *AssignmentService) AssignReviewer(ctx context.Context, submissionID string, req dto.AssignReviewerRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if err := actorMayAssign(actor); err != nil {
		return nil, err
	}

	sub, err := s.repo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, mapStoreError(err, "load submission")
	}
	if req.ExpectedVersion != sub.Version {
		s.incConflict()
		return nil, appErrors.ErrVersionConflict
	}
	if !assignableStatus(sub.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("cannot assign a reviewer while the submission is %s", sub.Status))
	}

	reviewer, err := resolveAssignee(ctx, s.users, req.ReviewerID, models.RoleReviewer)
	if err != nil {
		return nil, err
	}

	submissionRef := sub.ID
	notifications := []models.Notification{{
		ReceiverID:   reviewer.ID,
		SubmissionID: &submissionRef,
		Type:         models.NotificationTypeAssignment,
		Message:      fmt.Sprintf("You were assigned to review %q", sub.Title),
	}}
	if sub.AssignedReviewerID != nil && *sub.AssignedReviewerID != reviewer.ID {
		notifications = append(notifications, models.Notification{
			ReceiverID:   *sub.AssignedReviewerID,
			SubmissionID: &submissionRef,
			Type:         models.NotificationTypeAssignment,
			Message:      fmt.Sprintf("You were unassigned from %q", sub.Title),
		})
	}

	params := repository.UpdateSubmissionParams{
		ID:                sub.ID,
		ExpectedVersion:   sub.Version,
		SetReviewerID:     &reviewer.ID,
		SetReviewDeadline: req.Deadline,
		Event: &models.WorkflowEvent{
			ActorID:    actor.UserID,
			ActorRole:  actor.Role,
			Kind:       models.EventKindAssignment,
			FromStatus: sub.Status,
			ToStatus:   sub.Status,
			Note:       fmt.Sprintf("reviewer %s assigned", reviewer.ID),
		},
		Notifications: notifications,
	}

	updated, err := s.update(ctx, params)
	if err != nil {
		return nil, err
	}
	s.logger.Info("reviewer assigned",
		zap.String("submission_id", sub.ID), zap.String("reviewer_id", reviewer.ID))
	return updated, nil
}

// AssignEditor attaches an editor within the same status window as reviewer
// assignment.
func (s *AssignmentService) AssignEditor(ctx context.Context, submissionID string, req dto.AssignEditorRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if err := actorMayAssign(actor); err != nil {
		return nil, err
	}

	sub, err := s.repo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, mapStoreError(err, "load submission")
	}
	if req.ExpectedVersion != sub.Version {
		s.incConflict()
		return nil, appErrors.ErrVersionConflict
	}
	if !assignableStatus(sub.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("cannot assign an editor while the submission is %s", sub.Status))
	}

	editor, err := resolveAssignee(ctx, s.users, req.EditorID, models.RoleEditor)
	if err != nil {
		return nil, err
	}

	submissionRef := sub.ID
	params := repository.UpdateSubmissionParams{
		ID:              sub.ID,
		ExpectedVersion: sub.Version,
		SetEditorID:     &editor.ID,
		Event: &models.WorkflowEvent{
			ActorID:    actor.UserID,
			ActorRole:  actor.Role,
			Kind:       models.EventKindAssignment,
			FromStatus: sub.Status,
			ToStatus:   sub.Status,
			Note:       fmt.Sprintf("editor %s assigned", editor.ID),
		},
		Notifications: []models.Notification{{
			ReceiverID:   editor.ID,
			SubmissionID: &submissionRef,
			Type:         models.NotificationTypeAssignment,
			Message:      fmt.Sprintf("You were assigned as editor on %q", sub.Title),
		}},
	}

	updated, err := s.update(ctx, params)
	if err != nil {
		return nil, err
	}
	s.logger.Info("editor assigned",
		zap.String("submission_id", sub.ID), zap.String("editor_id", editor.ID))
	return updated, nil
}

// UnassignReviewer removes the current reviewer. When the submission is mid
// review this demotes it back to SUBMITTED as a single compensating step:
// one event, one version bump, status and assignment changed together.
func (s *AssignmentService) UnassignReviewer(ctx context.Context, submissionID string, expectedVersion int64, actor *models.JWTClaims) (*models.Submission, error) {
	if err := actorMayAssign(actor); err != nil {
		return nil, err
	}

	sub, err := s.repo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, mapStoreError(err, "load submission")
	}
	if expectedVersion != sub.Version {
		s.incConflict()
		return nil, appErrors.ErrVersionConflict
	}
	if sub.AssignedReviewerID == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "no reviewer is assigned")
	}

	removedID := *sub.AssignedReviewerID
	submissionRef := sub.ID
	params := repository.UpdateSubmissionParams{
		ID:              sub.ID,
		ExpectedVersion: sub.Version,
		ClearReviewer:   true,
		Event: &models.WorkflowEvent{
			ActorID:    actor.UserID,
			ActorRole:  actor.Role,
			Kind:       models.EventKindUnassignment,
			FromStatus: sub.Status,
			ToStatus:   sub.Status,
			Note:       fmt.Sprintf("reviewer %s unassigned", removedID),
		},
		Notifications: []models.Notification{{
			ReceiverID:   removedID,
			SubmissionID: &submissionRef,
			Type:         models.NotificationTypeAssignment,
			Message:      fmt.Sprintf("You were unassigned from %q", sub.Title),
		}},
	}

	if sub.Status == models.StatusUnderReview {
		demoted := models.StatusSubmitted
		params.SetStatus = &demoted
		params.Event.Kind = models.EventKindCompensation
		params.Event.ToStatus = demoted
		params.Event.Note = fmt.Sprintf("reviewer %s unassigned during review, returned to submitted queue", removedID)
	}

	updated, err := s.update(ctx, params)
	if err != nil {
		return nil, err
	}
	if params.SetStatus != nil && s.metrics != nil {
		s.metrics.ObserveTransition(sub.Status, *params.SetStatus)
	}
	s.logger.Info("reviewer unassigned",
		zap.String("submission_id", sub.ID),
		zap.String("reviewer_id", removedID),
		zap.Bool("demoted", params.SetStatus != nil))
	return updated, nil
}

// UnassignEditor removes the current editor without touching status.
func (s *AssignmentService) UnassignEditor(ctx context.Context, submissionID string, expectedVersion int64, actor *models.JWTClaims) (*models.Submission, error) {
	if err := actorMayAssign(actor); err != nil {
		return nil, err
	}

	sub, err := s.repo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, mapStoreError(err, "load submission")
	}
	if expectedVersion != sub.Version {
		s.incConflict()
		return nil, appErrors.ErrVersionConflict
	}
	if sub.AssignedEditorID == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "no editor is assigned")
	}

	removedID := *sub.AssignedEditorID
	params := repository.UpdateSubmissionParams{
		ID:              sub.ID,
		ExpectedVersion: sub.Version,
		ClearEditor:     true,
		Event: &models.WorkflowEvent{
			ActorID:    actor.UserID,
			ActorRole:  actor.Role,
			Kind:       models.EventKindUnassignment,
			FromStatus: sub.Status,
			ToStatus:   sub.Status,
			Note:       fmt.Sprintf("editor %s unassigned", removedID),
		},
	}

	updated, err := s.update(ctx, params)
	if err != nil {
		return nil, err
	}
	s.logger.Info("editor unassigned",
		zap.String("submission_id", sub.ID), zap.String("editor_id", removedID))
	return updated, nil
}

// resolveAssignee checks that an assignment target exists, is active, and
// holds the wanted role. The workflow engine shares it when a reviewer is set
// inline on the review-start transition.
func resolveAssignee(ctx context.Context, users userDirectory, id string, want models.UserRole) (*models.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignee id is required")
	}
	user, err := users.FindByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "resolve assignee")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignee account is inactive")
	}
	if user.Role != want && user.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("user %s does not hold the %s role", id, want))
	}
	return user, nil
}

func (s *AssignmentService) update(ctx context.Context, params repository.UpdateSubmissionParams) (*models.Submission, error) {
	updated, err := s.repo.Update(ctx, params)
	if err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			s.incConflict()
		}
		return nil, mapStoreError(err, "update assignment")
	}
	if s.cache != nil {
		s.cache.InvalidateSubmission(ctx, params.ID)
	}
	return updated, nil
}

func (s *AssignmentService) incConflict() {
	if s.metrics != nil {
		s.metrics.IncVersionConflict()
	}
}
