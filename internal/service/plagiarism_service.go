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
	"github.com/inkwell-press/editorial-api/pkg/config"
	appErrors "github.com/inkwell-press/editorial-api/pkg/errors"
)

type scanReader interface {
	ListBySubmission(ctx context.Context, submissionID string) ([]models.ScanRecord, error)
}

// PlagiarismService records similarity scans and derives the gate decision
// that the approval guard consults. The decision always reflects the latest
// scan; recording a new scan discards any earlier manual verification.
type PlagiarismService struct {
	repo    submissionStore
	scans   scanReader
	cfg     config.PlagiarismConfig
	metrics workflowMetrics
	cache   submissionCacheInvalidator
	logger  *zap.Logger
}

// PlagiarismServiceOption configures the service.
type PlagiarismServiceOption func(*PlagiarismService)

// WithPlagiarismMetrics wires workflow counters.
func WithPlagiarismMetrics(m workflowMetrics) PlagiarismServiceOption {
	return func(s *PlagiarismService) { s.metrics = m }
}

// WithPlagiarismCache wires read-cache invalidation.
func WithPlagiarismCache(c submissionCacheInvalidator) PlagiarismServiceOption {
	return func(s *PlagiarismService) { s.cache = c }
}

// NewPlagiarismService constructs the service.
func NewPlagiarismService(repo submissionStore, scans scanReader, cfg config.PlagiarismConfig, logger *zap.Logger, opts ...PlagiarismServiceOption) *PlagiarismService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &PlagiarismService{repo: repo, scans: scans, cfg: cfg, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Decide maps a similarity score to a gate decision using the category's
// auto threshold when one is configured. A score equal to a threshold does
// not exceed it.
func (s *PlagiarismService) Decide(category string, score float64) models.GateDecision {
	auto := s.cfg.AutoThreshold
	if override, ok := s.cfg.CategoryOverrides[strings.ToLower(strings.TrimSpace(category))]; ok {
		auto = override
	}
	switch {
	case score <= auto:
		return models.DecisionClear
	case score <= s.cfg.EscalationThreshold:
		return models.DecisionNeedsValidation
	default:
		return models.DecisionMustRevise
	}
}

// RecordScan appends a scan result and updates the submission's derived gate
// state in one transaction. Allowed while the submission is under editorial
// control (SUBMITTED or UNDER_REVIEW).
func (s *PlagiarismService) RecordScan(ctx context.Context, submissionID string, req dto.RecordScanRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleContentManager && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden,
			fmt.Sprintf("role %s may not record plagiarism scans", actor.Role))
	}
	if req.Score < 0 || req.Score > 100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score must be between 0 and 100")
	}

	sub, err := s.repo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, mapStoreError(err, "load submission")
	}
	if req.ExpectedVersion != sub.Version {
		s.incConflict()
		return nil, appErrors.ErrVersionConflict
	}
	if sub.Status != models.StatusSubmitted && sub.Status != models.StatusUnderReview {
		return nil, appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("cannot record a scan while the submission is %s", sub.Status))
	}

	decision := s.Decide(sub.Category, req.Score)
	score := req.Score
	verified := false
	matches := []byte(req.SourceMatches)
	if len(matches) == 0 {
		matches = []byte("[]")
	}

	params := repository.UpdateSubmissionParams{
		ID:                 sub.ID,
		ExpectedVersion:    sub.Version,
		SetSimilarityScore: &score,
		SetGateDecision:    &decision,
		SetCMVerified:      &verified,
		Event: &models.WorkflowEvent{
			ActorID:    actor.UserID,
			ActorRole:  actor.Role,
			Kind:       models.EventKindScan,
			FromStatus: sub.Status,
			ToStatus:   sub.Status,
			Note:       fmt.Sprintf("similarity %.1f%%, gate decision %s", req.Score, decision),
		},
		Scan: &models.ScanRecord{
			Score:         req.Score,
			SourceMatches: matches,
			Decision:      decision,
			RecordedBy:    actor.UserID,
		},
	}
	if decision == models.DecisionMustRevise {
		submissionRef := sub.ID
		params.Notifications = []models.Notification{{
			ReceiverID:   sub.AuthorID,
			SubmissionID: &submissionRef,
			Type:         models.NotificationTypeSystem,
			Message:      fmt.Sprintf("Similarity check on %q requires revision (%.1f%%)", sub.Title, req.Score),
		}}
	}

	updated, err := s.repo.Update(ctx, params)
	if err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			s.incConflict()
		}
		return nil, mapStoreError(err, "record scan")
	}
	if s.cache != nil {
		s.cache.InvalidateSubmission(ctx, sub.ID)
	}
	s.logger.Info("plagiarism scan recorded",
		zap.String("submission_id", sub.ID),
		zap.Float64("score", req.Score),
		zap.String("decision", string(decision)))
	return updated, nil
}

// Verify lets a content manager accept a NEEDS_VALIDATION result, unblocking
// approval without changing the recorded score.
func (s *PlagiarismService) Verify(ctx context.Context, submissionID string, req dto.VerifyScanRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleContentManager && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden,
			fmt.Sprintf("role %s may not verify plagiarism results", actor.Role))
	}

	sub, err := s.repo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, mapStoreError(err, "load submission")
	}
	if req.ExpectedVersion != sub.Version {
		s.incConflict()
		return nil, appErrors.ErrVersionConflict
	}
	if sub.GateDecision == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "no scan has been recorded")
	}
	if *sub.GateDecision != models.DecisionNeedsValidation {
		return nil, appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("gate decision %s does not await verification", *sub.GateDecision))
	}
	if sub.CMVerified {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "scan result is already verified")
	}

	verified := true
	params := repository.UpdateSubmissionParams{
		ID:              sub.ID,
		ExpectedVersion: sub.Version,
		SetCMVerified:   &verified,
		Event: &models.WorkflowEvent{
			ActorID:    actor.UserID,
			ActorRole:  actor.Role,
			Kind:       models.EventKindVerification,
			FromStatus: sub.Status,
			ToStatus:   sub.Status,
			Note:       strings.TrimSpace(req.Note),
		},
	}

	updated, err := s.repo.Update(ctx, params)
	if err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			s.incConflict()
		}
		return nil, mapStoreError(err, "verify scan")
	}
	if s.cache != nil {
		s.cache.InvalidateSubmission(ctx, sub.ID)
	}
	s.logger.Info("similarity result verified",
		zap.String("submission_id", sub.ID), zap.String("actor_id", actor.UserID))
	return updated, nil
}

// History returns the scan trail, newest first.
func (s *PlagiarismService) History(ctx context.Context, submissionID string) ([]models.ScanRecord, error) {
	if _, err := s.repo.GetByID(ctx, submissionID); err != nil {
		return nil, mapStoreError(err, "load submission")
	}
	scans, err := s.scans.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, mapStoreError(err, "list scans")
	}
	return scans, nil
}

func (s *PlagiarismService) incConflict() {
	if s.metrics != nil {
		s.metrics.IncVersionConflict()
	}
}
