package postgresql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type txKey struct{}

// WithTransaction executes fn inside a database transaction
func WithTransaction(ctx context.Context, db *database.DB, fn func(tx pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Error("Rollback failed during panic recovery", "error", rbErr)
			}
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback error: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetQuerier returns either transaction or pool
// Used in repositories to support both transactional and non-transactional operations
func GetQuerier(ctx context.Context, db *database.DB) database.Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return db.Pool
}

// TxManager implements database.TxManager on top of WithTransaction.
type TxManager struct {
	db *database.DB
}

func NewTxManager(db *database.DB) *TxManager {
	return &TxManager{db: db}
}

var _ database.TxManager = (*TxManager)(nil)

func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	return WithTransaction(ctx, m.db, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conditions accumulates a WHERE clause and its positional arguments.
type conditions struct {
	clauses []string
	args    []interface{}
}

// add appends a clause whose single placeholder is written as %d.
func (c *conditions) add(clause string, arg interface{}) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, fmt.Sprintf(clause, len(c.args)))
}

func (c *conditions) raw(clause string) {
	c.clauses = append(c.clauses, clause)
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(c.clauses, " AND ")
}

// next is the index of the next positional argument.
func (c *conditions) next() int {
	return len(c.args) + 1
}

// paged appends LIMIT/OFFSET when limit is positive.
func paged(query string, c conditions, page, limit int) (string, []interface{}) {
	args := c.args
	if limit <= 0 {
		return query, args
	}
	if page < 1 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)
	return fmt.Sprintf("%s LIMIT $%d OFFSET $%d", query, len(args)-1, len(args)), args
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
