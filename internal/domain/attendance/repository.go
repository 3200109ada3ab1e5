package attendance

import (
	"context"
	"time"
)

type RecordFilter struct {
	IDs         []string
	EmployeeID  *string
	EmployeeIDs []string
	StartDate   *time.Time
	EndDate     *time.Time
	MissedOnly  bool
	Finalised   *bool
	Page        int
	Limit       int
}

// RecordReader is the read-only view shared by every component.
type RecordReader interface {
	GetByID(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, filter RecordFilter) ([]Record, error)
}

// RecordWriter is held only by the punch recorder.
type RecordWriter interface {
	RecordReader
	Create(ctx context.Context, record *Record) error
	Update(ctx context.Context, record *Record) error
	// LockEmployee serialises punch writes of one employee for the rest of
	// the surrounding transaction.
	LockEmployee(ctx context.Context, employeeID string) error
	GetOpenRecordID(ctx context.Context, employeeID string) (string, error)
	SetOpenRecordID(ctx context.Context, employeeID, recordID string) error
}

// RecordFinaliser is held only by the payroll sync aggregator. MarkFinalised
// reports false when the record was already finalised.
type RecordFinaliser interface {
	RecordReader
	MarkFinalised(ctx context.Context, id string, at time.Time) (bool, error)
}

type RecordRepository interface {
	RecordWriter
	MarkFinalised(ctx context.Context, id string, at time.Time) (bool, error)
}
