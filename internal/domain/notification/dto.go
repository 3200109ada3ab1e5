package notification

import (
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/validator"
)

// CreateNotificationRequest represents a request to create a notification
type CreateNotificationRequest struct {
	RecipientID string
	SenderID    *string
	Type        NotificationType
	Title       string
	Message     string
	Data        map[string]interface{}
}

// MarkAsReadRequest represents a request to mark notifications as read
type MarkAsReadRequest struct {
	NotificationIDs []string `json:"notification_ids"`
}

func (r *MarkAsReadRequest) Validate() error {
	var errs validator.ValidationErrors
	if len(r.NotificationIDs) == 0 {
		errs.Add("notification_ids", "notification_ids must not be empty")
	}
	return errs.Err()
}

// NotificationResponse represents a notification in API responses
type NotificationResponse struct {
	ID        string                 `json:"id"`
	Type      NotificationType       `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	IsRead    bool                   `json:"is_read"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// NotificationListResponse represents a paginated list of notifications
type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Total         int                    `json:"total"`
	UnreadCount   int                    `json:"unread_count"`
	Page          int                    `json:"page"`
	PageSize      int                    `json:"page_size"`
}

// SSEEvent represents a Server-Sent Event
type SSEEvent struct {
	Event string               `json:"event"`
	Data  NotificationResponse `json:"data"`
}

type UnreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}

// SSETokenResponse carries the short-lived token the browser passes to the
// stream endpoint as a query parameter.
type SSETokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}
