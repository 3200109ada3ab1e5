package notification

import (
	"context"
)

// Sender is the fire-and-forget side used by the attendance workflows. A
// failed delivery never rolls back workflow state.
type Sender interface {
	QueueNotification(ctx context.Context, req CreateNotificationRequest) error
}

// Service defines the notification service interface
type Service interface {
	Sender

	GetNotifications(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) (*NotificationListResponse, error)
	GetUnreadCount(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, userID string, req MarkAsReadRequest) error

	// SSE subscription
	Subscribe(ctx context.Context, userID string) (<-chan SSEEvent, func())

	// Lifecycle
	Stop()
}
