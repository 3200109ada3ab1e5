package payrollsync

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/payrollsync"
	"github.com/xuri/excelize/v2"
)

const (
	snapshotSheet       = "Summary"
	snapshotContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	snapshotURLExpiry   = 24 * time.Hour
)

var snapshotHeader = []interface{}{
	"Employee ID",
	"Records",
	"Work Minutes",
	"Work Hours",
	"Missed Punches",
	"Late Days",
	"Late Minutes",
	"Overtime Minutes",
	"Weighted Overtime Hours",
}

// ExportSnapshot implements payrollsync.Service. It writes the per-employee
// summaries of the range as an XLSX file to storage.
func (s *PayrollSyncServiceImpl) ExportSnapshot(ctx context.Context, actor approval.Actor, req payrollsync.RangeRequest) (payrollsync.ExportResult, error) {
	if !actor.IsHR() && !actor.IsSystem() {
		return payrollsync.ExportResult{}, approval.ErrForbiddenActor
	}
	if err := req.Validate(); err != nil {
		return payrollsync.ExportResult{}, err
	}
	rng, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return payrollsync.ExportResult{}, err
	}

	summaries, err := s.aggregate(ctx, rng)
	if err != nil {
		return payrollsync.ExportResult{}, err
	}

	f, err := buildSnapshot(summaries)
	if err != nil {
		return payrollsync.ExportResult{}, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return payrollsync.ExportResult{}, fmt.Errorf("failed to render snapshot: %w", err)
	}

	now := s.now().UTC()
	key := fmt.Sprintf("payroll-snapshots/%s/%s.xlsx", periodKey(rng), now.Format("20060102T150405Z"))
	path, err := s.files.Upload(ctx, buf, key, snapshotContentType)
	if err != nil {
		return payrollsync.ExportResult{}, fmt.Errorf("failed to upload snapshot: %w", err)
	}
	url, err := s.files.GetURL(ctx, path, snapshotURLExpiry)
	if err != nil {
		return payrollsync.ExportResult{}, fmt.Errorf("failed to get snapshot url: %w", err)
	}

	s.appendAudit(ctx, actor, periodKey(rng), ActionExported, map[string]interface{}{
		"path":      path,
		"employees": len(summaries),
	}, now)

	return payrollsync.ExportResult{
		Path:      path,
		URL:       url,
		Employees: len(summaries),
		Generated: now,
	}, nil
}

func buildSnapshot(summaries []payrollsync.EmployeeSummary) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", snapshotSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name snapshot sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(snapshotSheet, "A1", &snapshotHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write snapshot header: %w", err)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(snapshotHeader), 1)
	if err := f.SetCellStyle(snapshotSheet, "A1", lastHeader, headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to style snapshot header: %w", err)
	}

	for i, sum := range summaries {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			sum.EmployeeID,
			sum.RecordCount,
			sum.TotalWorkMinutes,
			sum.TotalWorkHours.InexactFloat64(),
			sum.MissedPunchCount,
			sum.LatenessCount,
			sum.LateMinutes,
			sum.ApprovedOvertimeMinutes,
			sum.WeightedOvertimeHours.InexactFloat64(),
		}
		if err := f.SetSheetRow(snapshotSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write snapshot row for %s: %w", sum.EmployeeID, err)
		}
	}
	return f, nil
}
