package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/notification"
)

type NotificationRepository struct {
	mu            sync.RWMutex
	notifications []*notification.Notification
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

var _ notification.Repository = (*NotificationRepository)(nil)

func (n *NotificationRepository) Create(ctx context.Context, notif *notification.Notification) error {
	return n.CreateBatch(ctx, []*notification.Notification{notif})
}

func (n *NotificationRepository) CreateBatch(ctx context.Context, notifications []*notification.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, notif := range notifications {
		if notif.ID == "" {
			notif.ID = newID()
		}
		if notif.CreatedAt.IsZero() {
			notif.CreatedAt = time.Now().UTC()
		}
		c := *notif
		n.notifications = append(n.notifications, &c)
	}
	return nil
}

func (n *NotificationRepository) GetByUserID(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) ([]*notification.Notification, int, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	matched := make([]*notification.Notification, 0)
	for _, notif := range n.notifications {
		if notif.RecipientID != userID || (unreadOnly && notif.IsRead) {
			continue
		}
		c := *notif
		matched = append(matched, &c)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, page, pageSize), len(matched), nil
}

func (n *NotificationRepository) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	count := 0
	for _, notif := range n.notifications {
		if notif.RecipientID == userID && !notif.IsRead {
			count++
		}
	}
	return count, nil
}

func (n *NotificationRepository) MarkAsRead(ctx context.Context, ids []string, userID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	want := toSet(ids)
	now := time.Now().UTC()
	for _, notif := range n.notifications {
		if notif.RecipientID == userID && want[notif.ID] && !notif.IsRead {
			notif.IsRead = true
			notif.ReadAt = &now
		}
	}
	return nil
}
