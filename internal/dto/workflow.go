package dto

import "github.com/inkwell-press/editorial-api/internal/models"

// TransitionRequest asks the state machine to move a submission to
// TargetStatus. ExpectedVersion is the version the caller last read; a
// mismatch is rejected rather than silently overwritten. ReviewerID may be
// supplied on the move to UNDER_REVIEW to set the assignment atomically in
// the same transaction.
type TransitionRequest struct {
	TargetStatus    models.SubmissionStatus `json:"targetStatus" validate:"required"`
	Note            string                  `json:"note"`
	ExpectedVersion int64                   `json:"expectedVersion" validate:"gte=0"`
	ReviewerID      string                  `json:"reviewerId"`
}
