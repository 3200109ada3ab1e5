package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/stretchr/testify/require"
)

// TestDatabaseSetup wraps a connection to the integration database
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL and applies the schema. The
// test is skipped when the variable is unset.
func NewTestDatabase(t *testing.T) *TestDatabaseSetup {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.NewPostgreSQLDB(ctx, dsn)
	require.NoError(t, err, "failed to connect to test database")

	setup := &TestDatabaseSetup{DB: db}
	require.NoError(t, setup.migrate(ctx))
	require.NoError(t, setup.TruncateAllTables(ctx))
	t.Cleanup(setup.Close)
	return setup
}

func migrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "db", "migrations")
}

func (t *TestDatabaseSetup) migrate(ctx context.Context) error {
	var exists bool
	if err := t.DB.QueryRow(ctx, `SELECT to_regclass('public.attendance_records') IS NOT NULL`).Scan(&exists); err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if exists {
		return nil
	}

	sql, err := os.ReadFile(filepath.Join(migrationsDir(), "000001_time_engine.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration: %w", err)
	}
	if _, err := t.DB.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("failed to apply migration: %w", err)
	}
	return nil
}

// TruncateAllTables removes every row written by the engine
func (t *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tx, err := t.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tables := []string{
		"notifications",
		"audit_events",
		"integration_sync_logs",
		"time_exceptions",
		"correction_requests",
		"attendance_open_records",
		"attendance_records",
		"shift_assignments",
		"scheduling_rules",
		"shift_types",
		"overtime_rules",
		"permission_rules",
		"employees",
	}

	for _, table := range tables {
		_, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

// Close closes the pool
func (t *TestDatabaseSetup) Close() {
	t.DB.Close()
}
