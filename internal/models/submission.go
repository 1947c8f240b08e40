package models

import "time"

// SubmissionStatus is the closed set of workflow states. Transitions between
// them are validated by the workflow service; nothing else writes status.
type SubmissionStatus string

const (
	StatusDraft            SubmissionStatus = "DRAFT"
	StatusSubmitted        SubmissionStatus = "SUBMITTED"
	StatusUnderReview      SubmissionStatus = "UNDER_REVIEW"
	StatusChangesRequested SubmissionStatus = "CHANGES_REQUESTED"
	StatusApproved         SubmissionStatus = "APPROVED"
	StatusRejected         SubmissionStatus = "REJECTED"
	StatusPublished        SubmissionStatus = "PUBLISHED"
)

// AllStatuses enumerates every workflow state, used for closure checks.
var AllStatuses = []SubmissionStatus{
	StatusDraft,
	StatusSubmitted,
	StatusUnderReview,
	StatusChangesRequested,
	StatusApproved,
	StatusRejected,
	StatusPublished,
}

// Terminal reports whether no outgoing transition exists for the status.
func (s SubmissionStatus) Terminal() bool {
	return s == StatusPublished || s == StatusRejected
}

// SubmissionPriority orders the editorial queue. Informational only: priority
// never drives an automatic transition.
type SubmissionPriority string

const (
	PriorityLow    SubmissionPriority = "LOW"
	PriorityNormal SubmissionPriority = "NORMAL"
	PriorityHigh   SubmissionPriority = "HIGH"
	PriorityUrgent SubmissionPriority = "URGENT"
)

// Submission is the aggregate root of the editorial workflow. Version is
// bumped on every mutation and checked on write (stale writers lose).
type Submission struct {
	ID                 string             `db:"id" json:"id"`
	Title              string             `db:"title" json:"title"`
	Body               string             `db:"body" json:"body"`
	Category           string             `db:"category" json:"category"`
	AuthorID           string             `db:"author_id" json:"author_id"`
	Status             SubmissionStatus   `db:"status" json:"status"`
	AssignedReviewerID *string            `db:"assigned_reviewer_id" json:"assigned_reviewer_id,omitempty"`
	AssignedEditorID   *string            `db:"assigned_editor_id" json:"assigned_editor_id,omitempty"`
	ReviewDeadline     *time.Time         `db:"review_deadline" json:"review_deadline,omitempty"`
	Priority           SubmissionPriority `db:"priority" json:"priority"`
	SimilarityScore    *float64           `db:"similarity_score" json:"similarity_score,omitempty"`
	GateDecision       *GateDecision      `db:"gate_decision" json:"gate_decision,omitempty"`
	CMVerified         bool               `db:"cm_verified" json:"cm_verified"`
	AttachmentPath     *string            `db:"attachment_path" json:"attachment_path,omitempty"`
	CertificateID      *string            `db:"certificate_id" json:"certificate_id,omitempty"`
	Version            int64              `db:"version" json:"version"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// SubmissionFilter constrains listing queries.
type SubmissionFilter struct {
	Status     []SubmissionStatus
	Category   string
	AuthorID   string
	ReviewerID string
	EditorID   string
	Priority   SubmissionPriority
	Search     string
	Limit      int
	Offset     int
}
