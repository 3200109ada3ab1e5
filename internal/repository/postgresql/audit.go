package postgresql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
)

type auditRepository struct {
	db *database.DB
}

func NewAuditRepository(db *database.DB) audit.Repository {
	return &auditRepository{db: db}
}

// Append inserts one event. The table has no UPDATE or DELETE path.
func (a *auditRepository) Append(ctx context.Context, event audit.Event) error {
	q := GetQuerier(ctx, a.db)

	var payload []byte
	if event.Payload != nil {
		b, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal audit payload: %w", err)
		}
		payload = b
	}

	query := `
		INSERT INTO audit_events (
			id, entity_type, entity_id, action, actor_id, actor_role,
			occurred_at, before_minutes, after_minutes, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := q.Exec(ctx, query,
		event.ID, string(event.EntityType), event.EntityID, event.Action, event.ActorID, event.ActorRole,
		event.OccurredAt, event.BeforeMinutes, event.AfterMinutes, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

func (a *auditRepository) List(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	q := GetQuerier(ctx, a.db)

	var c conditions
	if filter.EntityType != nil {
		c.add("entity_type = $%d", string(*filter.EntityType))
	}
	if filter.EntityID != nil {
		c.add("entity_id = $%d", *filter.EntityID)
	}
	if filter.Start != nil {
		c.add("occurred_at >= $%d", *filter.Start)
	}
	if filter.End != nil {
		c.add("occurred_at <= $%d", *filter.End)
	}

	query := `
		SELECT id, entity_type, entity_id, action, actor_id, actor_role,
			occurred_at, before_minutes, after_minutes, payload
		FROM audit_events ` + c.where() + ` ORDER BY id`
	args := c.args
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	events := make([]audit.Event, 0)
	for rows.Next() {
		var (
			e          audit.Event
			entityType string
			payload    []byte
		)
		if err := rows.Scan(
			&e.ID, &entityType, &e.EntityID, &e.Action, &e.ActorID, &e.ActorRole,
			&e.OccurredAt, &e.BeforeMinutes, &e.AfterMinutes, &payload,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.EntityType = audit.EntityType(entityType)
		if payload != nil {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit payload: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}
