package audit

import "context"

// Repository is append-only: there is no update or delete.
type Repository interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context, filter Filter) ([]Event, error)
}
