package notification

import (
	"time"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	TypeMissedPunch         NotificationType = "attendance_missed_punch"
	TypeCorrectionSubmitted NotificationType = "correction_submitted"
	TypeCorrectionDecided   NotificationType = "correction_decided"
	TypeCorrectionEscalated NotificationType = "correction_escalated"
	TypeExceptionSubmitted  NotificationType = "time_exception_submitted"
	TypeExceptionDecided    NotificationType = "time_exception_decided"
	TypeExceptionEscalated  NotificationType = "time_exception_escalated"
	TypePayrollSyncFailed   NotificationType = "payroll_sync_failed"
)

// Notification represents a notification entity
type Notification struct {
	ID          string
	RecipientID string
	SenderID    *string
	Type        NotificationType
	Title       string
	Message     string
	Data        map[string]interface{}
	IsRead      bool
	ReadAt      *time.Time
	CreatedAt   time.Time
}
