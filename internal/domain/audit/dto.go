package audit

import "time"

type EventResponse struct {
	ID            string                 `json:"id"`
	EntityType    EntityType             `json:"entity_type"`
	EntityID      string                 `json:"entity_id"`
	Action        string                 `json:"action"`
	ActorID       string                 `json:"actor_id"`
	ActorRole     string                 `json:"actor_role"`
	OccurredAt    time.Time              `json:"occurred_at"`
	BeforeMinutes *int                   `json:"before_minutes,omitempty"`
	AfterMinutes  *int                   `json:"after_minutes,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
}

func NewEventResponses(events []Event) []EventResponse {
	out := make([]EventResponse, len(events))
	for i, e := range events {
		out[i] = EventResponse{
			ID:            e.ID,
			EntityType:    e.EntityType,
			EntityID:      e.EntityID,
			Action:        e.Action,
			ActorID:       e.ActorID,
			ActorRole:     e.ActorRole,
			OccurredAt:    e.OccurredAt,
			BeforeMinutes: e.BeforeMinutes,
			AfterMinutes:  e.AfterMinutes,
			Payload:       e.Payload,
		}
	}
	return out
}
