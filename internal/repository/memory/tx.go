// Package memory holds process-local implementations of every repository.
// They back the unit tests and DB_DRIVER=memory.
package memory

import (
	"context"

	"github.com/google/uuid"
)

// TxManager runs fn directly; each repository guards its own state.
type TxManager struct{}

func (TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func ptrEq(p *string, v string) bool {
	return p == nil || *p == v
}
