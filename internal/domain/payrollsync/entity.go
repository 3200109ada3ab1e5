package payrollsync

import (
	"time"

	"github.com/shopspring/decimal"
)

type SourceType string

const (
	SourceAttendance    SourceType = "attendance"
	SourceTimeException SourceType = "time_exception"
)

type TargetSystem string

const (
	TargetPayroll TargetSystem = "payroll"
	TargetLeaves  TargetSystem = "leaves"
)

type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSuccess SyncStatus = "success"
	SyncFailed  SyncStatus = "failed"
)

// IsActive reports whether a log still expects another attempt. At most one
// active log exists per (source record, target system).
func (s SyncStatus) IsActive() bool {
	return s == SyncPending || s == SyncFailed
}

// SyncLog records the attempts to hand one source record to one target.
type SyncLog struct {
	ID               string
	SourceType       SourceType
	SourceRecordID   string
	TargetSystem     TargetSystem
	Status           SyncStatus
	LastErrorMessage *string
	RetryCount       int
	LastAttemptAt    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Severity string

const (
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

type IssueCode string

const (
	IssueMissedPunch      IssueCode = "MISSED_PUNCH"
	IssueZeroMinutes      IssueCode = "ZERO_WORK_MINUTES"
	IssuePendingException IssueCode = "PENDING_EXCEPTION"
	IssueEscalatedPending IssueCode = "ESCALATED_EXCEPTION"
	IssueOpenCorrection   IssueCode = "OPEN_CORRECTION"
)

type Issue struct {
	Severity   Severity  `json:"severity"`
	Code       IssueCode `json:"code"`
	Message    string    `json:"message"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	EmployeeID string    `json:"employee_id"`
}

type ValidationResult struct {
	IsValid      bool      `json:"is_valid"`
	ErrorCount   int       `json:"error_count"`
	WarningCount int       `json:"warning_count"`
	Issues       []Issue   `json:"issues"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
}

func (v *ValidationResult) add(issue Issue) {
	v.Issues = append(v.Issues, issue)
	if issue.Severity == SeverityError {
		v.ErrorCount++
	} else {
		v.WarningCount++
	}
}

// AddError records an ERROR-severity issue.
func (v *ValidationResult) AddError(issue Issue) {
	issue.Severity = SeverityError
	v.add(issue)
}

// AddWarning records a WARNING-severity issue.
func (v *ValidationResult) AddWarning(issue Issue) {
	issue.Severity = SeverityWarning
	v.add(issue)
}

// EmployeeSummary is the payroll-ready aggregate of one employee.
type EmployeeSummary struct {
	EmployeeID              string          `json:"employee_id"`
	RecordCount             int             `json:"record_count"`
	TotalWorkMinutes        int             `json:"total_work_minutes"`
	TotalWorkHours          decimal.Decimal `json:"total_work_hours"`
	MissedPunchCount        int             `json:"missed_punch_count"`
	ApprovedOvertimeMinutes int             `json:"approved_overtime_minutes"`
	WeightedOvertimeHours   decimal.Decimal `json:"weighted_overtime_hours"`
	LatenessCount           int             `json:"lateness_count"`
	LateMinutes             int             `json:"late_minutes"`
}
