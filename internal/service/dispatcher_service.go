package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-press/editorial-api/internal/models"
	"github.com/inkwell-press/editorial-api/pkg/jobs"
)

type notificationOutbox interface {
	ListUndispatched(ctx context.Context, limit int) ([]models.Notification, error)
	MarkDispatched(ctx context.Context, id string) error
}

type mailSender interface {
	Send(to, subject, body string) error
}

// DispatcherConfig tunes the delivery worker.
type DispatcherConfig struct {
	PollInterval time.Duration
	Workers      int
	BatchSize    int
}

// DispatcherService drains undelivered notifications and emails them to their
// receivers. Delivery is best-effort and fully decoupled from the workflow
// write path: a dead SMTP server never blocks a transition, rows simply stay
// undispatched until the next poll.
type DispatcherService struct {
	outbox       notificationOutbox
	users        userDirectory
	mailer       mailSender
	queue        *jobs.Queue
	pollInterval time.Duration
	batchSize    int
	logger       *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewDispatcherService constructs the dispatcher.
func NewDispatcherService(outbox notificationOutbox, users userDirectory, mailer mailSender, cfg DispatcherConfig, logger *zap.Logger) *DispatcherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	s := &DispatcherService{
		outbox:       outbox,
		users:        users,
		mailer:       mailer,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		logger:       logger,
		inflight:     make(map[string]struct{}),
	}
	s.queue = jobs.NewQueue("notification-dispatch", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BatchSize * 2,
		Logger:     logger,
	})
	return s
}

// Start launches the queue workers and the polling loop.
func (s *DispatcherService) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.queue.Start(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.poll(ctx)
			}
		}
	}()
	s.logger.Info("notification dispatcher started",
		zap.Duration("poll_interval", s.pollInterval), zap.Int("batch_size", s.batchSize))
}

// Stop halts polling and waits for in-flight deliveries.
func (s *DispatcherService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.queue.Stop()
}

func (s *DispatcherService) poll(ctx context.Context) {
	notifications, err := s.outbox.ListUndispatched(ctx, s.batchSize)
	if err != nil {
		s.logger.Warn("dispatcher poll failed", zap.Error(err))
		return
	}
	for _, notification := range notifications {
		if !s.claim(notification.ID) {
			continue
		}
		err := s.queue.Enqueue(jobs.Job{
			ID:      notification.ID,
			Type:    "notification-email",
			Payload: notification,
		})
		if err != nil {
			s.release(notification.ID)
			s.logger.Warn("dispatcher enqueue failed",
				zap.String("notification_id", notification.ID), zap.Error(err))
		}
	}
}

func (s *DispatcherService) deliver(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		s.release(job.ID)
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	receiver, err := s.users.FindByID(ctx, notification.ReceiverID)
	if err != nil {
		s.release(job.ID)
		return fmt.Errorf("resolve receiver %s: %w", notification.ReceiverID, err)
	}

	subject := "Editorial update"
	switch notification.Type {
	case models.NotificationTypeAssignment:
		subject = "New editorial assignment"
	case models.NotificationTypeMessage:
		subject = "New message"
	}
	if err := s.mailer.Send(receiver.Email, subject, notification.Message); err != nil {
		s.release(job.ID)
		return fmt.Errorf("send notification mail: %w", err)
	}

	if err := s.outbox.MarkDispatched(ctx, notification.ID); err != nil {
		// The mail went out; worst case the row is re-sent next poll.
		s.logger.Warn("mark dispatched failed",
			zap.String("notification_id", notification.ID), zap.Error(err))
	}
	s.release(job.ID)
	s.logger.Debug("notification delivered",
		zap.String("notification_id", notification.ID), zap.String("receiver_id", receiver.ID))
	return nil
}

func (s *DispatcherService) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflight[id]; ok {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *DispatcherService) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}
