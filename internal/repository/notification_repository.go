package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/inkwell-press/editorial-api/internal/models"
)

const notificationColumns = `id, sender_id, receiver_id, submission_id, type, message, is_read, dispatched, created_at`

// NotificationRepository persists the cross-role notification feed.
type NotificationRepository struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB, timeout time.Duration) *NotificationRepository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NotificationRepository{db: db, timeout: timeout}
}

// Create inserts a standalone notification (direct messages). Workflow
// side-effect notifications are inserted inside the submission transaction.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, sender_id, receiver_id, submission_id, type, message, is_read, dispatched, created_at)
	VALUES (:id, :sender_id, :receiver_id, :submission_id, :type, :message, :is_read, :dispatched, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// List returns the receiver's feed ordered newest first.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	builder := strings.Builder{}
	args := []interface{}{filter.ReceiverID}
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM notifications WHERE receiver_id = $1`, notificationColumns))
	if filter.UnreadOnly {
		builder.WriteString(" AND is_read = FALSE")
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

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead flips is_read for a notification owned by the receiver. Returns
// sql.ErrNoRows when the row does not exist or belongs to someone else.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, receiverID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND receiver_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, receiverID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check notification update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountUnread returns the receiver's unread total for badge counters.
func (r *NotificationRepository) CountUnread(ctx context.Context, receiverID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `SELECT COUNT(*) FROM notifications WHERE receiver_id = $1 AND is_read = FALSE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, receiverID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// ListUndispatched returns rows the delivery worker has not yet drained.
func (r *NotificationRepository) ListUndispatched(ctx context.Context, limit int) ([]models.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE dispatched = FALSE ORDER BY created_at ASC LIMIT %d`,
		notificationColumns, limit)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query); err != nil {
		return nil, fmt.Errorf("list undispatched notifications: %w", err)
	}
	return notifications, nil
}

// MarkDispatched records successful delivery.
func (r *NotificationRepository) MarkDispatched(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `UPDATE notifications SET dispatched = TRUE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark notification dispatched: %w", err)
	}
	return nil
}
