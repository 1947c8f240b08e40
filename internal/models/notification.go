package models

import "time"

// NotificationType classifies feed entries.
type NotificationType string

const (
	NotificationTypeAssignment NotificationType = "ASSIGNMENT"
	NotificationTypeMessage    NotificationType = "MESSAGE"
	NotificationTypeSystem     NotificationType = "SYSTEM"
)

// Notification is a feed/queue row. SenderID is nil for system-generated
// entries. Rows are never deleted; the receiver may only mark them read, and
// the delivery worker flips Dispatched once the email went out.
type Notification struct {
	ID           string           `db:"id" json:"id"`
	SenderID     *string          `db:"sender_id" json:"sender_id,omitempty"`
	ReceiverID   string           `db:"receiver_id" json:"receiver_id"`
	SubmissionID *string          `db:"submission_id" json:"submission_id,omitempty"`
	Type         NotificationType `db:"type" json:"type"`
	Message      string           `db:"message" json:"message"`
	IsRead       bool             `db:"is_read" json:"is_read"`
	Dispatched   bool             `db:"dispatched" json:"-"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter constrains feed queries.
type NotificationFilter struct {
	ReceiverID string
	UnreadOnly bool
	Limit      int
	Offset     int
}
