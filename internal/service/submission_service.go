package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/inkwell-press/editorial-api/internal/dto"
	"github.com/inkwell-press/editorial-api/internal/models"
	appErrors "github.com/inkwell-press/editorial-api/pkg/errors"
)

type submissionCatalog interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
}

type eventReader interface {
	ListBySubmission(ctx context.Context, submissionID string) ([]models.WorkflowEvent, error)
	CountEdge(ctx context.Context, submissionID string, from, to models.SubmissionStatus) (int, error)
}

// SubmissionService handles drafting and the read side: single fetches,
// role-scoped listings, and timeline reconstruction. All status changes live
// in WorkflowService.
type SubmissionService struct {
	repo      submissionCatalog
	events    eventReader
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubmissionService constructs the service.
func NewSubmissionService(repo submissionCatalog, events eventReader, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &SubmissionService{
		repo:      repo,
		events:    events,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validator.New(),
		logger:    logger,
	}
}

// CreateDraft opens a new draft owned by the calling author.
func (s *SubmissionService) CreateDraft(ctx context.Context, req dto.CreateSubmissionRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAuthor && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only authors create submissions")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	if strings.TrimSpace(req.Category) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "category is required")
	}

	submission := &models.Submission{
		Title:    strings.TrimSpace(req.Title),
		Body:     req.Body,
		Category: strings.ToLower(strings.TrimSpace(req.Category)),
		AuthorID: actor.UserID,
		Status:   models.StatusDraft,
		Priority: req.Priority,
	}
	if path := strings.TrimSpace(req.AttachmentPath); path != "" {
		submission.AttachmentPath = &path
	}

	if err := s.repo.Create(ctx, submission); err != nil {
		return nil, mapStoreError(err, "create submission")
	}
	s.logger.Info("draft created",
		zap.String("submission_id", submission.ID), zap.String("author_id", actor.UserID))
	return submission, nil
}

// Get fetches a single submission with role-based visibility: authors see
// their own work, reviewers and editors see what they are assigned to, content
// managers and admins see everything.
func (s *SubmissionService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	var submission models.Submission
	hit, _ := s.cache.Get(ctx, SubmissionKey(id), &submission)
	if !hit {
		loaded, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, mapStoreError(err, "load submission")
		}
		submission = *loaded
		_ = s.cache.Set(ctx, SubmissionKey(id), submission, s.cacheTTL)
	}

	if !actorMaySee(actor, &submission) {
		// Hide existence from actors outside the submission's circle.
		return nil, appErrors.ErrNotFound
	}
	return &submission, nil
}

// List returns submissions visible to the actor, scoped by role and filtered
// by the query.
func (s *SubmissionService) List(ctx context.Context, query dto.SubmissionQuery, actor *models.JWTClaims) ([]models.Submission, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	filter := models.SubmissionFilter{
		Status:   query.Status,
		Category: strings.ToLower(strings.TrimSpace(query.Category)),
		Priority: query.Priority,
		Search:   strings.TrimSpace(query.Search),
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	}
	switch actor.Role {
	case models.RoleAuthor:
		filter.AuthorID = actor.UserID
	case models.RoleReviewer:
		filter.ReviewerID = actor.UserID
	case models.RoleEditor:
		filter.EditorID = actor.UserID
	}

	submissions, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, mapStoreError(err, "list submissions")
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: len(submissions)}
	return submissions, pagination, nil
}

// Timeline returns the ordered audit trail together with the derived
// resubmission count (completed CHANGES_REQUESTED to SUBMITTED edges).
func (s *SubmissionService) Timeline(ctx context.Context, id string, actor *models.JWTClaims) (*dto.TimelineResponse, error) {
	submission, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	events, err := s.events.ListBySubmission(ctx, submission.ID)
	if err != nil {
		return nil, mapStoreError(err, "list events")
	}
	revisions, err := s.events.CountEdge(ctx, submission.ID, models.StatusChangesRequested, models.StatusSubmitted)
	if err != nil {
		return nil, mapStoreError(err, "count revisions")
	}

	return &dto.TimelineResponse{
		SubmissionID: submission.ID,
		Events:       events,
		Revisions:    revisions,
	}, nil
}

func actorMaySee(actor *models.JWTClaims, sub *models.Submission) bool {
	switch actor.Role {
	case models.RoleContentManager, models.RoleAdmin:
		return true
	case models.RoleAuthor:
		return sub.AuthorID == actor.UserID
	case models.RoleReviewer:
		return sub.AssignedReviewerID != nil && *sub.AssignedReviewerID == actor.UserID
	case models.RoleEditor:
		return sub.AssignedEditorID != nil && *sub.AssignedEditorID == actor.UserID
	}
	return false
}
