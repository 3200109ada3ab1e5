package attendance

import (
	"context"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
)

// Recorder is the only writer of punches.
type Recorder interface {
	RecordPunch(ctx context.Context, req PunchRequest) (PunchResult, error)
	ManualPunch(ctx context.Context, actor approval.Actor, req ManualPunchRequest) (PunchResult, error)
	RoundWorkMinutes(ctx context.Context, actor approval.Actor, recordID string, req RoundRequest) (*Record, error)
	GetRecord(ctx context.Context, id string) (*Record, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
	AuditTrail(ctx context.Context, recordID string) ([]audit.Event, error)

	CorrectionApplier
	MissedPunchFlagger
}

// CorrectionApplier overwrites the disputed punches of a record once a
// correction request is approved.
type CorrectionApplier interface {
	ApplyCorrection(ctx context.Context, actor approval.Actor, recordID string, clockIn, clockOut *time.Time) (*Record, error)
}

// MissedPunchFlagger persists the missed-punch flag; it reports whether the
// record is incomplete.
type MissedPunchFlagger interface {
	FlagMissedPunch(ctx context.Context, recordID string) (*Record, bool, error)
}

type ShiftValidator interface {
	ValidatePunch(ctx context.Context, employeeID string, at time.Time, punchType PunchType) (ShiftCheck, error)
}

type MissedPunchDetector interface {
	DetectMissedPunches(ctx context.Context, day time.Time) (DetectionResult, error)
}
