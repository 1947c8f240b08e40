package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/inkwell-press/editorial-api/internal/models"
)

// EventRepository reads the append-only audit trail. Writes happen inside the
// submission transaction (see SubmissionRepository.Update), never here.
type EventRepository struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB, timeout time.Duration) *EventRepository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &EventRepository{db: db, timeout: timeout}
}

// ListBySubmission returns the full event history ordered ascending, oldest
// first, for timeline reconstruction.
func (r *EventRepository) ListBySubmission(ctx context.Context, submissionID string) ([]models.WorkflowEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `SELECT id, submission_id, actor_id, actor_role, kind, from_status, to_status, note, created_at
	FROM workflow_events WHERE submission_id = $1 ORDER BY created_at ASC, id ASC`
	var events []models.WorkflowEvent
	if err := r.db.SelectContext(ctx, &events, query, submissionID); err != nil {
		return nil, fmt.Errorf("list workflow events: %w", err)
	}
	return events, nil
}

// CountEdge counts prior occurrences of a specific transition edge. Used to
// derive the resubmission counter without storing it.
func (r *EventRepository) CountEdge(ctx context.Context, submissionID string, from, to models.SubmissionStatus) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `SELECT COUNT(*) FROM workflow_events
	WHERE submission_id = $1 AND kind = $2 AND from_status = $3 AND to_status = $4`
	var count int
	if err := r.db.GetContext(ctx, &count, query, submissionID, models.EventKindTransition, from, to); err != nil {
		return 0, fmt.Errorf("count workflow edge: %w", err)
	}
	return count, nil
}
