package dto

import (
	"time"

	"github.com/inkwell-press/editorial-api/internal/models"
)

// CreateSubmissionRequest creates a new draft owned by the calling author.
type CreateSubmissionRequest struct {
	Title          string                    `json:"title" validate:"required"`
	Body           string                    `json:"body"`
	Category       string                    `json:"category" validate:"required"`
	Priority       models.SubmissionPriority `json:"priority"`
	AttachmentPath string                    `json:"attachmentPath"`
}

// SubmissionQuery mirrors the supported listing filters.
type SubmissionQuery struct {
	Status   []models.SubmissionStatus
	Category string
	Priority models.SubmissionPriority
	Search   string
	Page     int
	PageSize int
}

// TimelineResponse pairs the ordered event history with the derived
// resubmission count.
type TimelineResponse struct {
	SubmissionID string                 `json:"submission_id"`
	Events       []models.WorkflowEvent `json:"events"`
	Revisions    int                    `json:"revisions"`
}

// SubmissionTransitioned is the snapshot returned by a successful transition.
type SubmissionTransitioned struct {
	Submission    *models.Submission `json:"submission"`
	CertificateID string             `json:"certificate_id,omitempty"`
}

// AssignReviewerRequest attaches a reviewer with an optional deadline.
type AssignReviewerRequest struct {
	ReviewerID      string     `json:"reviewerId" validate:"required"`
	Deadline        *time.Time `json:"deadline"`
	ExpectedVersion int64      `json:"expectedVersion" validate:"gte=0"`
}

// AssignEditorRequest attaches an editor.
type AssignEditorRequest struct {
	EditorID        string `json:"editorId" validate:"required"`
	ExpectedVersion int64  `json:"expectedVersion" validate:"gte=0"`
}
