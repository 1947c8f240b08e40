package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/inkwell-press/editorial-api/internal/dto"
	"github.com/inkwell-press/editorial-api/internal/models"
	appErrors "github.com/inkwell-press/editorial-api/pkg/errors"
)

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, receiverID string) error
	CountUnread(ctx context.Context, receiverID string) (int, error)
}

// NotificationService serves the per-user feed and direct messages. Workflow
// side-effect notifications never pass through here; they are written inside
// the submission transaction.
type NotificationService struct {
	repo      notificationStore
	users     userDirectory
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(repo notificationStore, users userDirectory, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, users: users, validator: validator.New(), logger: logger}
}

// List returns the actor's feed, newest first.
func (s *NotificationService) List(ctx context.Context, actor *models.JWTClaims, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	notifications, err := s.repo.List(ctx, models.NotificationFilter{
		ReceiverID: actor.UserID,
		UnreadOnly: unreadOnly,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, mapStoreError(err, "list notifications")
	}
	return notifications, nil
}

// MarkRead flips a single feed entry. Only the receiver may do this.
func (s *NotificationService) MarkRead(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.repo.MarkRead(ctx, id, actor.UserID); err != nil {
		return mapStoreError(err, "mark notification read")
	}
	return nil
}

// CountUnread returns the actor's unread badge count.
func (s *NotificationService) CountUnread(ctx context.Context, actor *models.JWTClaims) (int, error) {
	if actor == nil {
		return 0, appErrors.ErrUnauthorized
	}
	count, err := s.repo.CountUnread(ctx, actor.UserID)
	if err != nil {
		return 0, mapStoreError(err, "count unread notifications")
	}
	return count, nil
}

// SendMessage posts a direct message into another user's feed.
func (s *NotificationService) SendMessage(ctx context.Context, req dto.SendMessageRequest, actor *models.JWTClaims) (*models.Notification, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message is required")
	}
	if req.ReceiverID == actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot message yourself")
	}

	receiver, err := s.users.FindByID(ctx, req.ReceiverID)
	if err != nil {
		return nil, mapStoreError(err, "resolve receiver")
	}
	if !receiver.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "receiver account is inactive")
	}

	senderID := actor.UserID
	notification := &models.Notification{
		SenderID:   &senderID,
		ReceiverID: receiver.ID,
		Type:       models.NotificationTypeMessage,
		Message:    message,
	}
	if submissionID := strings.TrimSpace(req.SubmissionID); submissionID != "" {
		notification.SubmissionID = &submissionID
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, mapStoreError(err, "create notification")
	}
	s.logger.Info("direct message sent",
		zap.String("sender_id", senderID), zap.String("receiver_id", receiver.ID))
	return notification, nil
}
