package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inkwell-press/editorial-api/internal/dto"
	"github.com/inkwell-press/editorial-api/internal/models"
	"github.com/inkwell-press/editorial-api/pkg/config"
	appErrors "github.com/inkwell-press/editorial-api/pkg/errors"
)

type scanReaderStub struct {
	scans []models.ScanRecord
}

func (s *scanReaderStub) ListBySubmission(context.Context, string) ([]models.ScanRecord, error) {
	return s.scans, nil
}

func gateConfig() config.PlagiarismConfig {
	return config.PlagiarismConfig{
		AutoThreshold:       15,
		EscalationThreshold: 40,
		CategoryOverrides:   map[string]float64{"thesis": 10},
	}
}

func newPlagiarismService(store *submissionStoreStub) *PlagiarismService {
	return NewPlagiarismService(store, &scanReaderStub{}, gateConfig(), nil)
}

func TestGateDecisionThresholds(t *testing.T) {
	svc := newPlagiarismService(newSubmissionStoreStub())

	cases := []struct {
		category string
		score    float64
		want     models.GateDecision
	}{
		{"column", 0, models.DecisionClear},
		{"column", 14.9, models.DecisionClear},
		{"column", 15, models.DecisionClear},
		{"column", 15.1, models.DecisionNeedsValidation},
		{"column", 40, models.DecisionNeedsValidation},
		{"column", 40.1, models.DecisionMustRevise},
		{"column", 100, models.DecisionMustRevise},
		{"thesis", 10, models.DecisionClear},
		{"thesis", 12, models.DecisionNeedsValidation},
		{"Thesis", 12, models.DecisionNeedsValidation},
		{"thesis", 41, models.DecisionMustRevise},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, svc.Decide(tc.category, tc.score),
			"category=%s score=%v", tc.category, tc.score)
	}
}

func TestRecordScanPersistsDecision(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusUnderReview)
	svc := newPlagiarismService(store)

	updated, err := svc.RecordScan(context.Background(), sub.ID, dto.RecordScanRequest{
		Score:           22.5,
		SourceMatches:   json.RawMessage(`[{"url":"https://example.com","overlap":0.2}]`),
		ExpectedVersion: 3,
	}, claims("cm-1", models.RoleContentManager))
	require.NoError(t, err)
	require.NotNil(t, updated.SimilarityScore)
	require.Equal(t, 22.5, *updated.SimilarityScore)
	require.NotNil(t, updated.GateDecision)
	require.Equal(t, models.DecisionNeedsValidation, *updated.GateDecision)
	require.Equal(t, int64(4), updated.Version)

	require.Len(t, store.scans, 1)
	require.Equal(t, models.DecisionNeedsValidation, store.scans[0].Decision)
	require.Equal(t, "cm-1", store.scans[0].RecordedBy)
	require.Len(t, store.events, 1)
	require.Equal(t, models.EventKindScan, store.events[0].Kind)
}

func TestRecordScanResetsVerification(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusUnderReview)
	decision := models.DecisionNeedsValidation
	sub.GateDecision = &decision
	sub.CMVerified = true
	svc := newPlagiarismService(store)

	updated, err := svc.RecordScan(context.Background(), sub.ID, dto.RecordScanRequest{
		Score:           18,
		ExpectedVersion: 3,
	}, claims("cm-1", models.RoleContentManager))
	require.NoError(t, err)
	require.False(t, updated.CMVerified)
}

func TestRecordScanMustReviseNotifiesAuthor(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusUnderReview)
	svc := newPlagiarismService(store)

	_, err := svc.RecordScan(context.Background(), sub.ID, dto.RecordScanRequest{
		Score:           65,
		ExpectedVersion: 3,
	}, claims("cm-1", models.RoleContentManager))
	require.NoError(t, err)
	require.Len(t, store.notifications, 1)
	require.Equal(t, "author-1", store.notifications[0].ReceiverID)
}

func TestRecordScanRejectsDraftAndTerminal(t *testing.T) {
	for _, status := range []models.SubmissionStatus{models.StatusDraft, models.StatusApproved, models.StatusPublished, models.StatusRejected} {
		store := newSubmissionStoreStub()
		sub := seedSubmission(store, status)
		svc := newPlagiarismService(store)

		_, err := svc.RecordScan(context.Background(), sub.ID, dto.RecordScanRequest{
			Score:           10,
			ExpectedVersion: 3,
		}, claims("cm-1", models.RoleContentManager))
		require.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState), string(status))
	}
}

func TestRecordScanForbiddenForReviewers(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusUnderReview)
	svc := newPlagiarismService(store)

	_, err := svc.RecordScan(context.Background(), sub.ID, dto.RecordScanRequest{
		Score:           10,
		ExpectedVersion: 3,
	}, claims("reviewer-1", models.RoleReviewer))
	require.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}

func TestRecordScanValidatesScoreRange(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusUnderReview)
	svc := newPlagiarismService(store)

	for _, score := range []float64{-1, 100.5} {
		_, err := svc.RecordScan(context.Background(), sub.ID, dto.RecordScanRequest{
			Score:           score,
			ExpectedVersion: 3,
		}, claims("cm-1", models.RoleContentManager))
		require.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
	}
}

func TestVerifyEscalatedScan(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusUnderReview)
	decision := models.DecisionNeedsValidation
	sub.GateDecision = &decision
	svc := newPlagiarismService(store)

	updated, err := svc.Verify(context.Background(), sub.ID, dto.VerifyScanRequest{
		Note:            "quotes are attributed",
		ExpectedVersion: 3,
	}, claims("cm-1", models.RoleContentManager))
	require.NoError(t, err)
	require.True(t, updated.CMVerified)
	require.Len(t, store.events, 1)
	require.Equal(t, models.EventKindVerification, store.events[0].Kind)
	require.Equal(t, "quotes are attributed", store.events[0].Note)
}

func TestVerifyRequiresEscalatedDecision(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusUnderReview)
	clear := models.DecisionClear
	sub.GateDecision = &clear
	svc := newPlagiarismService(store)

	_, err := svc.Verify(context.Background(), sub.ID, dto.VerifyScanRequest{ExpectedVersion: 3},
		claims("cm-1", models.RoleContentManager))
	require.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState))
}

func TestVerifyWithoutScan(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusUnderReview)
	svc := newPlagiarismService(store)

	_, err := svc.Verify(context.Background(), sub.ID, dto.VerifyScanRequest{ExpectedVersion: 3},
		claims("cm-1", models.RoleContentManager))
	require.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState))
}

func TestVerifyVersionConflict(t *testing.T) {
	store := newSubmissionStoreStub()
	sub := seedSubmission(store, models.StatusUnderReview)
	decision := models.DecisionNeedsValidation
	sub.GateDecision = &decision
	svc := newPlagiarismService(store)

	_, err := svc.Verify(context.Background(), sub.ID, dto.VerifyScanRequest{ExpectedVersion: 9},
		claims("cm-1", models.RoleContentManager))
	require.True(t, appErrors.HasCode(err, appErrors.ErrVersionConflict))
}
