package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/notification"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type notificationRepository struct {
	db *database.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *database.DB) notification.Repository {
	return &notificationRepository{db: db}
}

const notificationColumnCount = 9

func notificationArgs(n *notification.Notification) ([]interface{}, error) {
	if n.ID == "" {
		n.ID = newID()
	}
	var dataJSON []byte
	if n.Data != nil {
		b, err := json.Marshal(n.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal notification data: %w", err)
		}
		dataJSON = b
	}
	return []interface{}{
		n.ID,
		n.RecipientID,
		n.SenderID,
		string(n.Type),
		n.Title,
		n.Message,
		dataJSON,
		n.IsRead,
		n.CreatedAt,
	}, nil
}

// Create creates a new notification
func (r *notificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	return r.CreateBatch(ctx, []*notification.Notification{n})
}

// CreateBatch inserts all notifications with a single multi-row INSERT
func (r *notificationRepository) CreateBatch(ctx context.Context, notifications []*notification.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	q := GetQuerier(ctx, r.db)

	valueStrings := make([]string, 0, len(notifications))
	valueArgs := make([]interface{}, 0, len(notifications)*notificationColumnCount)

	for i, n := range notifications {
		args, err := notificationArgs(n)
		if err != nil {
			return err
		}

		placeholders := make([]string, notificationColumnCount)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", i*notificationColumnCount+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ", ")+")")
		valueArgs = append(valueArgs, args...)
	}

	query := fmt.Sprintf(`
		INSERT INTO notifications (id, recipient_id, sender_id, type, title, message, data, is_read, created_at)
		VALUES %s
	`, strings.Join(valueStrings, ", "))

	if _, err := q.Exec(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("failed to batch create notifications: %w", err)
	}

	return nil
}

func scanNotification(row pgx.Row) (*notification.Notification, error) {
	var (
		n         notification.Notification
		dataJSON  []byte
		notifType string
	)
	if err := row.Scan(
		&n.ID,
		&n.RecipientID,
		&n.SenderID,
		&notifType,
		&n.Title,
		&n.Message,
		&dataJSON,
		&n.IsRead,
		&n.ReadAt,
		&n.CreatedAt,
	); err != nil {
		return nil, err
	}

	n.Type = notification.NotificationType(notifType)
	if dataJSON != nil {
		if err := json.Unmarshal(dataJSON, &n.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification data: %w", err)
		}
	}
	return &n, nil
}

// GetByUserID retrieves notifications for a user with pagination
func (r *notificationRepository) GetByUserID(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) ([]*notification.Notification, int, error) {
	q := GetQuerier(ctx, r.db)

	var c conditions
	c.add("recipient_id = $%d", userID)
	if unreadOnly {
		c.raw("is_read = false")
	}

	var total int
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM notifications "+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	query, args := paged(`
		SELECT id, recipient_id, sender_id, type, title, message, data, is_read, read_at, created_at
		FROM notifications `+c.where()+`
		ORDER BY created_at DESC`, c, page, pageSize)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*notification.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, total, nil
}

// GetUnreadCount returns the count of unread notifications for a user
func (r *notificationRepository) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = false`
	var count int
	if err := q.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return count, nil
}

// MarkAsRead marks specific notifications as read
func (r *notificationRepository) MarkAsRead(ctx context.Context, ids []string, userID string) error {
	if len(ids) == 0 {
		return nil
	}

	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE notifications
		SET is_read = true, read_at = $1
		WHERE recipient_id = $2 AND id = ANY($3) AND is_read = false
	`

	if _, err := q.Exec(ctx, query, time.Now().UTC(), userID, ids); err != nil {
		return fmt.Errorf("failed to mark notifications as read: %w", err)
	}

	return nil
}
