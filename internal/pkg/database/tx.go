package database

import "context"

// TxManager runs fn inside a unit of work. Repositories called with the ctx
// passed to fn take part in the same transaction; nested calls join the
// outer one.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
