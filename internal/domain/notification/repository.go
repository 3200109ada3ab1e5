package notification

import (
	"context"
)

// Repository defines the notification repository interface
type Repository interface {
	Create(ctx context.Context, notification *Notification) error
	CreateBatch(ctx context.Context, notifications []*Notification) error
	GetByUserID(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) ([]*Notification, int, error)
	GetUnreadCount(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, ids []string, userID string) error
}
