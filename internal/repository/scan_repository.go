package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/inkwell-press/editorial-api/internal/models"
)

// ScanRepository reads the append-only plagiarism scan history. Scan inserts
// ride the submission transaction in SubmissionRepository.Update.
type ScanRepository struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewScanRepository constructs the repository.
func NewScanRepository(db *sqlx.DB, timeout time.Duration) *ScanRepository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ScanRepository{db: db, timeout: timeout}
}

// ListBySubmission returns scan history, most recent first.
func (r *ScanRepository) ListBySubmission(ctx context.Context, submissionID string) ([]models.ScanRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `SELECT id, submission_id, score, source_matches, decision, recorded_by, created_at
	FROM scan_records WHERE submission_id = $1 ORDER BY created_at DESC, id DESC`
	var scans []models.ScanRecord
	if err := r.db.SelectContext(ctx, &scans, query, submissionID); err != nil {
		return nil, fmt.Errorf("list scan records: %w", err)
	}
	return scans, nil
}
