package dto

// SendMessageRequest posts a direct message into another role's feed.
type SendMessageRequest struct {
	ReceiverID   string `json:"receiverId" validate:"required"`
	SubmissionID string `json:"submissionId"`
	Message      string `json:"message" validate:"required"`
}
