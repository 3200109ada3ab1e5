package payrollsync

import (
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeexception"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

type RangeRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (r *RangeRequest) Validate() error {
	var errs validator.ValidationErrors

	start, okStart := validator.IsValidDate(r.StartDate)
	if !okStart {
		errs.Add("start_date", "start_date must be YYYY-MM-DD")
	}
	end, okEnd := validator.IsValidDate(r.EndDate)
	if !okEnd {
		errs.Add("end_date", "end_date must be YYYY-MM-DD")
	}
	if okStart && okEnd && end.Before(start) {
		errs.Add("end_date", "end_date must not be before start_date")
	}

	return errs.Err()
}

type EmployeeRangeRequest struct {
	EmployeeID string
	StartDate  *string
	EndDate    *string
}

type PendingFilter struct {
	EmployeeID   *string
	DepartmentID *string
	StartDate    *string
	EndDate      *string
}

type FinalizeRequest struct {
	RecordIDs []string `json:"record_ids"`
	Override  bool     `json:"override"`
}

func (r *FinalizeRequest) Validate() error {
	var errs validator.ValidationErrors

	if len(r.RecordIDs) == 0 {
		errs.Add("record_ids", "record_ids must not be empty")
	}
	for _, id := range r.RecordIDs {
		if validator.IsEmpty(id) {
			errs.Add("record_ids", "record_ids must not contain empty values")
			break
		}
	}

	return errs.Err()
}

type AttendanceSyncData struct {
	Records []attendance.RecordResponse `json:"records"`
	Summary EmployeeSummary             `json:"summary"`
}

type OvertimeSummary struct {
	EmployeeID            string          `json:"employee_id"`
	RequestCount          int             `json:"request_count"`
	ApprovedMinutes       int             `json:"approved_minutes"`
	ApprovedHours         decimal.Decimal `json:"approved_hours"`
	WeightedOvertimeHours decimal.Decimal `json:"weighted_overtime_hours"`
}

type OvertimeSyncData struct {
	Records []timeexception.Response `json:"records"`
	Summary OvertimeSummary          `json:"summary"`
}

type PendingSummary struct {
	RecordCount      int             `json:"record_count"`
	EmployeeCount    int             `json:"employee_count"`
	TotalWorkMinutes int             `json:"total_work_minutes"`
	TotalWorkHours   decimal.Decimal `json:"total_work_hours"`
}

type PendingSyncData struct {
	Records []attendance.RecordResponse `json:"records"`
	Summary PendingSummary              `json:"summary"`
}

type FailedRecord struct {
	RecordID string `json:"record_id"`
	Error    string `json:"error"`
}

type FinalizeResult struct {
	RecordsFinalized int            `json:"records_finalized"`
	RecordIDs        []string       `json:"record_ids"`
	Failed           []FailedRecord `json:"failed,omitempty"`
}

type RetryResult struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type ExportResult struct {
	Path      string    `json:"path"`
	URL       string    `json:"url"`
	Employees int       `json:"employees"`
	Generated time.Time `json:"generated_at"`
}

type SyncLogResponse struct {
	ID               string       `json:"id"`
	SourceType       SourceType   `json:"source_type"`
	SourceRecordID   string       `json:"source_record_id"`
	TargetSystem     TargetSystem `json:"target_system"`
	Status           SyncStatus   `json:"status"`
	LastErrorMessage *string      `json:"last_error_message,omitempty"`
	RetryCount       int          `json:"retry_count"`
	LastAttemptAt    *time.Time   `json:"last_attempt_at,omitempty"`
}

func NewSyncLogResponses(logs []SyncLog) []SyncLogResponse {
	out := make([]SyncLogResponse, len(logs))
	for i, l := range logs {
		out[i] = SyncLogResponse{
			ID:               l.ID,
			SourceType:       l.SourceType,
			SourceRecordID:   l.SourceRecordID,
			TargetSystem:     l.TargetSystem,
			Status:           l.Status,
			LastErrorMessage: l.LastErrorMessage,
			RetryCount:       l.RetryCount,
			LastAttemptAt:    l.LastAttemptAt,
		}
	}
	return out
}
