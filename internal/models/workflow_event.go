package models

import "time"

// EventKind distinguishes how a workflow event came to be. Compensating
// demotions (reviewer unassigned mid-review) are labeled separately from
// manual transitions so timelines stay honest.
type EventKind string

const (
	EventKindTransition   EventKind = "TRANSITION"
	EventKindCompensation EventKind = "COMPENSATION"
	EventKindAssignment   EventKind = "ASSIGNMENT"
	EventKindUnassignment EventKind = "UNASSIGNMENT"
	EventKindScan         EventKind = "SCAN"
	EventKindVerification EventKind = "VERIFICATION"
)

// WorkflowEvent is an immutable audit entry. Events are only ever written in
// the same transaction as the submission mutation they describe; for
// non-transition events FromStatus equals ToStatus.
type WorkflowEvent struct {
	ID           string           `db:"id" json:"id"`
	SubmissionID string           `db:"submission_id" json:"submission_id"`
	ActorID      string           `db:"actor_id" json:"actor_id"`
	ActorRole    UserRole         `db:"actor_role" json:"actor_role"`
	Kind         EventKind        `db:"kind" json:"kind"`
	FromStatus   SubmissionStatus `db:"from_status" json:"from_status"`
	ToStatus     SubmissionStatus `db:"to_status" json:"to_status"`
	Note         string           `db:"note" json:"note"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}
