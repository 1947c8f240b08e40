package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/inkwell-press/editorial-api/internal/models"
)

// ErrStaleVersion signals that the optimistic version check failed: the row
// exists but was mutated since the caller read it.
var ErrStaleVersion = errors.New("submission version is stale")

const submissionColumns = `id, title, body, category, author_id, status, assigned_reviewer_id, assigned_editor_id,
       review_deadline, priority, similarity_score, gate_decision, cm_verified, attachment_path, certificate_id,
       version, created_at, updated_at`

// SubmissionRepository persists the submission aggregate. Every method runs
// under a bounded timeout so no workflow operation can block indefinitely on
// the store.
type SubmissionRepository struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB, timeout time.Duration) *SubmissionRepository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SubmissionRepository{db: db, timeout: timeout}
}

// Create inserts a new draft row.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.Status == "" {
		submission.Status = models.StatusDraft
	}
	if submission.Priority == "" {
		submission.Priority = models.PriorityNormal
	}
	now := time.Now().UTC()
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = now
	}
	submission.UpdatedAt = now

	const query = `INSERT INTO submissions
	(id, title, body, category, author_id, status, assigned_reviewer_id, assigned_editor_id, review_deadline,
	 priority, similarity_score, gate_decision, cm_verified, attachment_path, certificate_id, version, created_at, updated_at)
	VALUES (:id, :title, :body, :category, :author_id, :status, :assigned_reviewer_id, :assigned_editor_id, :review_deadline,
	 :priority, :similarity_score, :gate_decision, :cm_verified, :attachment_path, :certificate_id, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// GetByID fetches a submission by identifier.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE id = $1`, submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// List returns submissions matching the filter (newest first).
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	builder := strings.Builder{}
	args := make([]interface{}, 0, 8)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM submissions`, submissionColumns))

	conditions := make([]string, 0, 6)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.AuthorID != "" {
		args = append(args, filter.AuthorID)
		conditions = append(conditions, fmt.Sprintf("author_id = $%d", len(args)))
	}
	if filter.ReviewerID != "" {
		args = append(args, filter.ReviewerID)
		conditions = append(conditions, fmt.Sprintf("assigned_reviewer_id = $%d", len(args)))
	}
	if filter.EditorID != "" {
		args = append(args, filter.EditorID)
		conditions = append(conditions, fmt.Sprintf("assigned_editor_id = $%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// UpdateSubmissionParams groups one atomic workflow mutation: the field
// changes, the version precondition, the mandatory audit event, and any
// side-effect rows. Either everything commits or nothing does.
type UpdateSubmissionParams struct {
	ID              string
	ExpectedVersion int64

	SetStatus          *models.SubmissionStatus
	SetReviewerID      *string
	ClearReviewer      bool
	SetEditorID        *string
	ClearEditor        bool
	SetReviewDeadline  *time.Time
	SetSimilarityScore *float64
	SetGateDecision    *models.GateDecision
	SetCMVerified      *bool
	SetCertificateID   *string

	Event         *models.WorkflowEvent
	Scan          *models.ScanRecord
	Notifications []models.Notification
}

// Update applies one workflow mutation as a single transaction guarded by the
// version check. Zero rows touched by the guarded UPDATE means a concurrent
// writer won the race; the caller receives ErrStaleVersion and nothing is
// committed.
func (r *SubmissionRepository) Update(ctx context.Context, params UpdateSubmissionParams) (result *models.Submission, err error) {
	if params.Event == nil {
		return nil, fmt.Errorf("update submission: audit event is required")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin submission transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	setParts := []string{"version = version + 1"}
	args := make([]interface{}, 0, 10)

	addSet := func(column string, value interface{}) {
		args = append(args, value)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.SetStatus != nil {
		addSet("status", *params.SetStatus)
	}
	if params.ClearReviewer {
		setParts = append(setParts, "assigned_reviewer_id = NULL", "review_deadline = NULL")
	} else if params.SetReviewerID != nil {
		addSet("assigned_reviewer_id", *params.SetReviewerID)
	}
	if params.ClearEditor {
		setParts = append(setParts, "assigned_editor_id = NULL")
	} else if params.SetEditorID != nil {
		addSet("assigned_editor_id", *params.SetEditorID)
	}
	if params.SetReviewDeadline != nil {
		addSet("review_deadline", *params.SetReviewDeadline)
	}
	if params.SetSimilarityScore != nil {
		addSet("similarity_score", *params.SetSimilarityScore)
	}
	if params.SetGateDecision != nil {
		addSet("gate_decision", *params.SetGateDecision)
	}
	if params.SetCMVerified != nil {
		addSet("cm_verified", *params.SetCMVerified)
	}
	if params.SetCertificateID != nil {
		addSet("certificate_id", *params.SetCertificateID)
	}
	addSet("updated_at", now)

	args = append(args, params.ID)
	idArg := len(args)
	args = append(args, params.ExpectedVersion)
	versionArg := len(args)

	query := fmt.Sprintf(`UPDATE submissions SET %s WHERE id = $%d AND version = $%d RETURNING %s`,
		strings.Join(setParts, ", "), idArg, versionArg, submissionColumns)

	var updated models.Submission
	if err = tx.QueryRowxContext(ctx, query, args...).StructScan(&updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrStaleVersion
		} else {
			err = fmt.Errorf("update submission: %w", err)
		}
		return nil, err
	}

	if err = insertEvent(ctx, tx, params.ID, params.Event, now); err != nil {
		return nil, err
	}
	if params.Scan != nil {
		if err = insertScan(ctx, tx, params.ID, params.Scan, now); err != nil {
			return nil, err
		}
	}
	for i := range params.Notifications {
		if err = insertNotification(ctx, tx, &params.Notifications[i], now); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit submission update: %w", err)
	}
	return &updated, nil
}

func insertEvent(ctx context.Context, tx *sqlx.Tx, submissionID string, event *models.WorkflowEvent, now time.Time) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.SubmissionID = submissionID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	const query = `INSERT INTO workflow_events (id, submission_id, actor_id, actor_role, kind, from_status, to_status, note, created_at)
	VALUES (:id, :submission_id, :actor_id, :actor_role, :kind, :from_status, :to_status, :note, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("append workflow event: %w", err)
	}
	return nil
}

func insertScan(ctx context.Context, tx *sqlx.Tx, submissionID string, scan *models.ScanRecord, now time.Time) error {
	if scan.ID == "" {
		scan.ID = uuid.NewString()
	}
	scan.SubmissionID = submissionID
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = now
	}
	const query = `INSERT INTO scan_records (id, submission_id, score, source_matches, decision, recorded_by, created_at)
	VALUES (:id, :submission_id, :score, :source_matches, :decision, :recorded_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, scan); err != nil {
		return fmt.Errorf("append scan record: %w", err)
	}
	return nil
}

func insertNotification(ctx context.Context, tx *sqlx.Tx, notification *models.Notification, now time.Time) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = now
	}
	const query = `INSERT INTO notifications (id, sender_id, receiver_id, submission_id, type, message, is_read, dispatched, created_at)
	VALUES (:id, :sender_id, :receiver_id, :submission_id, :type, :message, :is_read, :dispatched, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}
