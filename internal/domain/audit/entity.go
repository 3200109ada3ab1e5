package audit

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type EntityType string

const (
	EntityAttendanceRecord EntityType = "attendance_record"
	EntityCorrection       EntityType = "correction_request"
	EntityTimeException    EntityType = "time_exception"
	EntityShiftAssignment  EntityType = "shift_assignment"
	EntityPayrollSync      EntityType = "payroll_sync"
)

// Event is one immutable entry of the append-only audit log.
type Event struct {
	ID            string
	EntityType    EntityType
	EntityID      string
	Action        string
	ActorID       string
	ActorRole     string
	OccurredAt    time.Time
	BeforeMinutes *int
	AfterMinutes  *int
	Payload       map[string]interface{}
}

// NewEvent stamps a new entry with a lexically sortable id.
func NewEvent(entityType EntityType, entityID, action, actorID, actorRole string, at time.Time) Event {
	return Event{
		ID:         ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    actorID,
		ActorRole:  actorRole,
		OccurredAt: at.UTC(),
	}
}

func (e Event) WithMinutes(before, after int) Event {
	e.BeforeMinutes = &before
	e.AfterMinutes = &after
	return e
}

func (e Event) WithPayload(payload map[string]interface{}) Event {
	e.Payload = payload
	return e
}

type Filter struct {
	EntityType *EntityType
	EntityID   *string
	Start      *time.Time
	End        *time.Time
	Limit      int
}
