package notification

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/notification"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/sse"
	"github.com/google/uuid"
)

const eventNotification = "notification"

// Config holds notification service configuration
type Config struct {
	BatchSize     int           // default: 100
	FlushInterval time.Duration // default: 5 seconds
	WorkerCount   int           // default: 2
	QueueSize     int           // default: 1000
}

type service struct {
	repo   notification.Repository
	hub    *sse.Hub[notification.SSEEvent]
	config Config

	queue   chan notification.CreateNotificationRequest
	wg      sync.WaitGroup
	stopCh  chan struct{}
	stopped atomic.Bool
}

// NewNotificationService creates a new notification service with background workers
func NewNotificationService(repo notification.Repository, hub *sse.Hub[notification.SSEEvent], cfg Config) notification.Service {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 2
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 1000
	}

	s := &service{
		repo:   repo,
		hub:    hub,
		config: cfg,
		queue:  make(chan notification.CreateNotificationRequest, cfg.QueueSize),
		stopCh: make(chan struct{}),
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	slog.Info("Notification service started",
		"workers", cfg.WorkerCount,
		"batch_size", cfg.BatchSize,
		"flush_interval", cfg.FlushInterval,
	)

	return s
}

func newNotification(req notification.CreateNotificationRequest) *notification.Notification {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &notification.Notification{
		ID:          id.String(),
		RecipientID: req.RecipientID,
		SenderID:    req.SenderID,
		Type:        req.Type,
		Title:       req.Title,
		Message:     req.Message,
		Data:        req.Data,
		CreatedAt:   time.Now().UTC(),
	}
}

// worker drains the queue in batches, flushing on size, on tick and on stop.
func (s *service) worker(id int) {
	defer s.wg.Done()

	batch := make([]notification.CreateNotificationRequest, 0, s.config.BatchSize)
	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		notifications := make([]*notification.Notification, len(batch))
		for i, req := range batch {
			notifications[i] = newNotification(req)
		}

		if err := s.repo.CreateBatch(ctx, notifications); err != nil {
			slog.Error("Failed to batch insert notifications", "worker", id, "count", len(notifications), "error", err)
		} else {
			slog.Debug("Inserted notifications", "worker", id, "count", len(notifications))
			for _, n := range notifications {
				s.publish(n)
			}
		}

		batch = batch[:0]
	}

	for {
		select {
		case req := <-s.queue:
			batch = append(batch, req)
			if len(batch) >= s.config.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.stopCh:
			// Drain what was queued before stop.
			for {
				select {
				case req := <-s.queue:
					batch = append(batch, req)
					if len(batch) >= s.config.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// QueueNotification queues a notification for async processing. When the
// queue is full or the workers have stopped it is inserted directly.
func (s *service) QueueNotification(ctx context.Context, req notification.CreateNotificationRequest) error {
	if req.RecipientID == "" {
		return nil
	}
	if s.stopped.Load() {
		return s.directInsert(ctx, req)
	}

	select {
	case s.queue <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return s.directInsert(ctx, req)
	}
}

func (s *service) directInsert(ctx context.Context, req notification.CreateNotificationRequest) error {
	n := newNotification(req)
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	s.publish(n)
	return nil
}

func (s *service) publish(n *notification.Notification) {
	s.hub.Publish(n.RecipientID, notification.SSEEvent{
		Event: eventNotification,
		Data:  toResponse(n),
	})
}

func toResponse(n *notification.Notification) notification.NotificationResponse {
	return notification.NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

// GetNotifications retrieves paginated notifications for a user
func (s *service) GetNotifications(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) (*notification.NotificationListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	notifications, total, err := s.repo.GetByUserID(ctx, userID, page, pageSize, unreadOnly)
	if err != nil {
		return nil, err
	}

	unreadCount, err := s.repo.GetUnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	responses := make([]notification.NotificationResponse, len(notifications))
	for i, n := range notifications {
		responses[i] = toResponse(n)
	}

	return &notification.NotificationListResponse{
		Notifications: responses,
		Total:         total,
		UnreadCount:   unreadCount,
		Page:          page,
		PageSize:      pageSize,
	}, nil
}

func (s *service) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.GetUnreadCount(ctx, userID)
}

func (s *service) MarkAsRead(ctx context.Context, userID string, req notification.MarkAsReadRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return s.repo.MarkAsRead(ctx, req.NotificationIDs, userID)
}

// Subscribe creates an SSE subscription for a user. The channel closes when
// ctx is done or the returned cleanup is called.
func (s *service) Subscribe(ctx context.Context, userID string) (<-chan notification.SSEEvent, func()) {
	ch, cleanup := s.hub.Subscribe(userID)

	go func() {
		<-ctx.Done()
		cleanup()
	}()

	return ch, cleanup
}

// Stop flushes queued notifications and waits for the workers to exit.
func (s *service) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	close(s.stopCh)
	s.wg.Wait()
	slog.Info("Notification service stopped")
}
