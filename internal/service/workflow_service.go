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

type submissionStore interface {
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	Update(ctx context.Context, params repository.UpdateSubmissionParams) (*models.Submission, error)
}

type workflowMetrics interface {
	ObserveTransition(from, to models.SubmissionStatus)
	IncGuardRejection(from, to models.SubmissionStatus)
	IncVersionConflict()
}

type submissionCacheInvalidator interface {
	InvalidateSubmission(ctx context.Context, id string)
}

// transitionRule describes one allowed edge of the state machine: who may
// trigger it and what precondition must hold beyond the edge itself.
type transitionRule struct {
	roles      []models.UserRole
	authorOnly bool
	guard      func(sub *models.Submission, req dto.TransitionRequest) error
}

func (r transitionRule) allows(actor *models.JWTClaims, sub *models.Submission) bool {
	if r.authorOnly {
		return actor.UserID == sub.AuthorID
	}
	for _, role := range r.roles {
		if actor.Role == role {
			return true
		}
	}
	return false
}

func guardManuscriptComplete(sub *models.Submission, _ dto.TransitionRequest) error {
	if strings.TrimSpace(sub.Title) == "" || strings.TrimSpace(sub.Body) == "" {
		return appErrors.Clone(appErrors.ErrGuardRejected, "submission requires a non-empty title and body")
	}
	return nil
}

func guardReviewerAvailable(sub *models.Submission, req dto.TransitionRequest) error {
	if sub.AssignedReviewerID == nil && strings.TrimSpace(req.ReviewerID) == "" {
		return appErrors.Clone(appErrors.ErrGuardRejected, "a reviewer must be assigned before the review starts")
	}
	return nil
}

func guardNoteRequired(_ *models.Submission, req dto.TransitionRequest) error {
	if strings.TrimSpace(req.Note) == "" {
		return appErrors.Clone(appErrors.ErrGuardRejected, "a note explaining the decision is required")
	}
	return nil
}

func guardPlagiarismClear(sub *models.Submission, _ dto.TransitionRequest) error {
	if sub.GateDecision == nil {
		return appErrors.Clone(appErrors.ErrGuardRejected, "a plagiarism scan must be recorded before approval")
	}
	if *sub.GateDecision == models.DecisionClear || sub.CMVerified {
		return nil
	}
	if *sub.GateDecision == models.DecisionMustRevise {
		return appErrors.Clone(appErrors.ErrGuardRejected, "similarity score exceeds the revision threshold")
	}
	return appErrors.Clone(appErrors.ErrGuardRejected, "similarity result awaits content manager verification")
}

// transitions is the complete edge set of the workflow. Any (from, to) pair
// absent from this table is an invalid transition regardless of actor.
var transitions = map[models.SubmissionStatus]map[models.SubmissionStatus]transitionRule{
	models.StatusDraft: {
		models.StatusSubmitted: {authorOnly: true, guard: guardManuscriptComplete},
	},
	models.StatusSubmitted: {
		models.StatusUnderReview: {
			roles: []models.UserRole{models.RoleContentManager, models.RoleAdmin},
			guard: guardReviewerAvailable,
		},
	},
	models.StatusUnderReview: {
		models.StatusChangesRequested: {
			roles: []models.UserRole{models.RoleReviewer, models.RoleEditor, models.RoleContentManager},
			guard: guardNoteRequired,
		},
		models.StatusApproved: {
			roles: []models.UserRole{models.RoleContentManager, models.RoleAdmin},
			guard: guardPlagiarismClear,
		},
		models.StatusRejected: {
			roles: []models.UserRole{models.RoleContentManager, models.RoleAdmin},
			guard: guardNoteRequired,
		},
	},
	models.StatusChangesRequested: {
		models.StatusSubmitted: {authorOnly: true, guard: guardManuscriptComplete},
	},
	models.StatusApproved: {
		models.StatusPublished: {
			roles: []models.UserRole{models.RoleContentManager, models.RoleAdmin},
		},
		models.StatusRejected: {
			roles: []models.UserRole{models.RoleContentManager, models.RoleAdmin},
			guard: guardNoteRequired,
		},
	},
}

// WorkflowService owns the submission state machine. Every status change goes
// through ApplyTransition, which resolves the rule, runs the guard, and commits
// the status, audit event, and notifications in one version-guarded write.
type WorkflowService struct {
	repo    submissionStore
	users   userDirectory
	issuer  CertificateIssuer
	metrics workflowMetrics
	cache   submissionCacheInvalidator
	logger  *zap.Logger
}

// WorkflowServiceOption configures the service.
type WorkflowServiceOption func(*WorkflowService)

// WithWorkflowMetrics wires transition counters.
func WithWorkflowMetrics(m workflowMetrics) WorkflowServiceOption {
	return func(s *WorkflowService) { s.metrics = m }
}

// WithWorkflowCache wires read-cache invalidation.
func WithWorkflowCache(c submissionCacheInvalidator) WorkflowServiceOption {
	return func(s *WorkflowService) { s.cache = c }
}

// NewWorkflowService constructs the service.
func NewWorkflowService(repo submissionStore, users userDirectory, issuer CertificateIssuer, logger *zap.Logger, opts ...WorkflowServiceOption) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &WorkflowService{repo: repo, users: users, issuer: issuer, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// ApplyTransition moves a submission to req.TargetStatus on behalf of actor.
// Checks run in a fixed order: existence, version, edge validity, actor role,
// guard. The first failure wins so callers see a deterministic error kind.
func (s *WorkflowService) ApplyTransition(ctx context.Context, submissionID string, req dto.TransitionRequest, actor *models.JWTClaims) (*dto.SubmissionTransitioned, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	sub, err := s.repo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, mapStoreError(err, "load submission")
	}

	if req.ExpectedVersion != sub.Version {
		s.incVersionConflict()
		return nil, appErrors.ErrVersionConflict
	}

	rule, ok := transitions[sub.Status][req.TargetStatus]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot move from %s to %s", sub.Status, req.TargetStatus))
	}
	if !rule.allows(actor, sub) {
		return nil, appErrors.Clone(appErrors.ErrForbidden,
			fmt.Sprintf("role %s may not move a submission from %s to %s", actor.Role, sub.Status, req.TargetStatus))
	}
	if rule.guard != nil {
		if err := rule.guard(sub, req); err != nil {
			if s.metrics != nil {
				s.metrics.IncGuardRejection(sub.Status, req.TargetStatus)
			}
			return nil, err
		}
	}

	target := req.TargetStatus
	params := repository.UpdateSubmissionParams{
		ID:              sub.ID,
		ExpectedVersion: sub.Version,
		SetStatus:       &target,
		Event: &models.WorkflowEvent{
			ActorID:    actor.UserID,
			ActorRole:  actor.Role,
			Kind:       models.EventKindTransition,
			FromStatus: sub.Status,
			ToStatus:   target,
			Note:       strings.TrimSpace(req.Note),
		},
	}

	if target == models.StatusUnderReview && sub.AssignedReviewerID == nil {
		reviewer, err := resolveAssignee(ctx, s.users, req.ReviewerID, models.RoleReviewer)
		if err != nil {
			return nil, err
		}
		params.SetReviewerID = &reviewer.ID
		sub.AssignedReviewerID = &reviewer.ID
	}

	certificateID := ""
	if target == models.StatusPublished {
		certificateID, err = s.issuer.Issue(ctx, sub.ID, sub.AuthorID)
		if err != nil {
			s.logger.Error("certificate issuance failed",
				zap.String("submission_id", sub.ID), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrDownstream.Code, appErrors.ErrDownstream.Status,
				"certificate issuer unavailable, submission left unpublished")
		}
		params.SetCertificateID = &certificateID
	}

	params.Notifications = s.transitionNotifications(sub, target, req, certificateID)

	updated, err := s.repo.Update(ctx, params)
	if err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			s.incVersionConflict()
		}
		return nil, mapStoreError(err, "apply transition")
	}

	if s.metrics != nil {
		s.metrics.ObserveTransition(sub.Status, target)
	}
	if s.cache != nil {
		s.cache.InvalidateSubmission(ctx, sub.ID)
	}
	s.logger.Info("submission transitioned",
		zap.String("submission_id", sub.ID),
		zap.String("from", string(sub.Status)),
		zap.String("to", string(target)),
		zap.String("actor_id", actor.UserID))

	return &dto.SubmissionTransitioned{Submission: updated, CertificateID: certificateID}, nil
}

// transitionNotifications builds the feed entries committed alongside the
// transition. Receivers are the people whose next action the edge unblocks.
func (s *WorkflowService) transitionNotifications(sub *models.Submission, target models.SubmissionStatus, req dto.TransitionRequest, certificateID string) []models.Notification {
	submissionID := sub.ID
	note := strings.TrimSpace(req.Note)

	system := func(receiverID, message string) models.Notification {
		return models.Notification{
			ReceiverID:   receiverID,
			SubmissionID: &submissionID,
			Type:         models.NotificationTypeSystem,
			Message:      message,
		}
	}

	switch target {
	case models.StatusSubmitted:
		if sub.Status == models.StatusChangesRequested && sub.AssignedReviewerID != nil {
			return []models.Notification{
				system(*sub.AssignedReviewerID, fmt.Sprintf("Submission %q was resubmitted after revision", sub.Title)),
			}
		}
	case models.StatusUnderReview:
		if sub.AssignedReviewerID != nil {
			return []models.Notification{
				system(*sub.AssignedReviewerID, fmt.Sprintf("Submission %q is ready for your review", sub.Title)),
			}
		}
	case models.StatusChangesRequested:
		return []models.Notification{
			system(sub.AuthorID, fmt.Sprintf("Changes requested on %q: %s", sub.Title, note)),
		}
	case models.StatusApproved:
		return []models.Notification{
			system(sub.AuthorID, fmt.Sprintf("Submission %q was approved", sub.Title)),
		}
	case models.StatusRejected:
		return []models.Notification{
			system(sub.AuthorID, fmt.Sprintf("Submission %q was rejected: %s", sub.Title, note)),
		}
	case models.StatusPublished:
		return []models.Notification{
			system(sub.AuthorID, fmt.Sprintf("Submission %q was published, certificate %s", sub.Title, certificateID)),
		}
	}
	return nil
}

func (s *WorkflowService) incVersionConflict() {
	if s.metrics != nil {
		s.metrics.IncVersionConflict()
	}
}
