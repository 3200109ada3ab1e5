package correction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/config"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/correction"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/employee"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/notification"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/daterange"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/validator"
)

const (
	ActionCreated        = "created"
	ActionManagerDecided = "manager_decided"
	ActionHRDecided      = "hr_decided"
	ActionCancelled      = "cancelled"
	ActionEscalated      = "escalated"
)

type CorrectionServiceImpl struct {
	repo      correction.Repository
	records   attendance.RecordReader
	applier   attendance.CorrectionApplier
	directory employee.Directory
	notifier  notification.Sender
	auditLog  audit.Repository
	tx        database.TxManager
	policy    config.TimePolicy
	now       func() time.Time
}

func NewCorrectionService(
	repo correction.Repository,
	records attendance.RecordReader,
	applier attendance.CorrectionApplier,
	directory employee.Directory,
	notifier notification.Sender,
	auditLog audit.Repository,
	tx database.TxManager,
	policy config.TimePolicy,
) *CorrectionServiceImpl {
	return &CorrectionServiceImpl{
		repo:      repo,
		records:   records,
		applier:   applier,
		directory: directory,
		notifier:  notifier,
		auditLog:  auditLog,
		tx:        tx,
		policy:    policy,
		now:       time.Now,
	}
}

var _ correction.Service = (*CorrectionServiceImpl)(nil)

func (s *CorrectionServiceImpl) WithClock(now func() time.Time) *CorrectionServiceImpl {
	s.now = now
	return s
}

// Create implements correction.Service.
func (s *CorrectionServiceImpl) Create(ctx context.Context, actor approval.Actor, req correction.CreateCorrectionRequest) (*correction.Request, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if actor.EmployeeID == "" {
		return nil, approval.ErrForbiddenActor
	}

	rec, err := s.records.GetByID(ctx, req.AttendanceRecordID)
	if err != nil {
		return nil, err
	}
	if rec.EmployeeID != actor.EmployeeID {
		return nil, approval.ErrForbiddenActor
	}
	if rec.FinalisedForPayroll {
		return nil, attendance.ErrRecordFinalised
	}

	emp, err := s.directory.ResolveEmployee(ctx, actor.EmployeeID)
	if err != nil {
		return nil, err
	}

	status := approval.StatusPendingManager
	if emp.ManagerID == nil {
		status = approval.StatusPendingHR
	}

	now := s.now().UTC()
	cr := &correction.Request{
		EmployeeID:         emp.ID,
		AttendanceRecordID: rec.ID,
		WorkDate:           rec.WorkDate,
		OriginalClockIn:    rec.FirstIn(),
		OriginalClockOut:   rec.LastOut(),
		RequestedClockIn:   utcPtr(req.RequestedClockIn),
		RequestedClockOut:  utcPtr(req.RequestedClockOut),
		Reason:             req.Reason,
		Status:             status,
		ManagerID:          emp.ManagerID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Create(ctx, cr); err != nil {
		return nil, fmt.Errorf("failed to create correction request: %w", err)
	}

	s.appendAudit(ctx, actor, cr.ID, ActionCreated, map[string]interface{}{
		"attendance_record_id": rec.ID,
		"status":               string(status),
	}, now)

	sender := emp.NotificationTarget()
	message := fmt.Sprintf("%s asked to correct attendance on %s", emp.FullName, cr.WorkDate.Format(daterange.Layout))
	if cr.ManagerID != nil {
		s.notifyEmployee(ctx, *cr.ManagerID, &sender, notification.TypeCorrectionSubmitted, "Attendance Correction Submitted", message, cr)
	} else {
		s.notifyHR(ctx, &sender, message, cr)
	}
	return cr, nil
}

func (s *CorrectionServiceImpl) ManagerDecide(ctx context.Context, actor approval.Actor, id string, req correction.DecisionRequest) (*correction.Request, error) {
	return s.decide(ctx, actor, id, req, approval.StatusPendingManager)
}

// HRDecide implements correction.Service. Approval overwrites the punches of
// the referenced record in the same unit of work as the status change.
func (s *CorrectionServiceImpl) HRDecide(ctx context.Context, actor approval.Actor, id string, req correction.DecisionRequest) (*correction.Request, error) {
	return s.decide(ctx, actor, id, req, approval.StatusPendingHR)
}

func (s *CorrectionServiceImpl) decide(ctx context.Context, actor approval.Actor, id string, req correction.DecisionRequest, step approval.Status) (*correction.Request, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cr.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: request is already %s", approval.ErrInvalidStateTransition, cr.Status)
	}
	if cr.Status != step {
		return nil, fmt.Errorf("%w: request is %s, not %s", approval.ErrInvalidStateTransition, cr.Status, step)
	}

	next, err := approval.NextStatus(cr.Status, req.Decision)
	if err != nil {
		return nil, err
	}
	if err := approval.Authorize(actor, cr.Subject(), next); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expected := cr.Status
	cr.Status = next
	cr.UpdatedAt = now
	action := ActionManagerDecided
	if step == approval.StatusPendingManager {
		cr.ManagerNote = req.Note
		cr.ManagerDecidedAt = &now
	} else {
		action = ActionHRDecided
		cr.HRNote = req.Note
		cr.HRDecidedAt = &now
		if actor.EmployeeID != "" {
			reviewer := actor.EmployeeID
			cr.HRReviewerID = &reviewer
		}
	}
	if next == approval.StatusRejected {
		cr.RejectionReason = req.Note
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if next == approval.StatusApproved {
			if _, err := s.applier.ApplyCorrection(ctx, actor, cr.AttendanceRecordID, cr.RequestedClockIn, cr.RequestedClockOut); err != nil {
				return fmt.Errorf("failed to apply correction: %w", err)
			}
		}
		return s.repo.UpdateStatus(ctx, cr, expected)
	})
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, actor, cr.ID, action, map[string]interface{}{
		"from":     string(expected),
		"to":       string(next),
		"decision": string(req.Decision),
	}, now)

	sender := actor.ID()
	s.notifyEmployee(ctx, cr.EmployeeID, &sender, notification.TypeCorrectionDecided, "Attendance Correction Updated",
		fmt.Sprintf("Your correction for %s is now %s", cr.WorkDate.Format(daterange.Layout), cr.Status), cr)
	if next == approval.StatusPendingHR {
		s.notifyHR(ctx, &sender, fmt.Sprintf("A correction for %s was approved by the manager", cr.WorkDate.Format(daterange.Layout)), cr)
	}
	return cr, nil
}

func (s *CorrectionServiceImpl) Cancel(ctx context.Context, actor approval.Actor, id string) (*correction.Request, error) {
	cr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := approval.Authorize(actor, cr.Subject(), approval.StatusCancelled); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expected := cr.Status
	cr.Status = approval.StatusCancelled
	cr.CancelledAt = &now
	cr.UpdatedAt = now
	if err := s.repo.UpdateStatus(ctx, cr, expected); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, actor, cr.ID, ActionCancelled, map[string]interface{}{"from": string(expected)}, now)
	return cr, nil
}

func (s *CorrectionServiceImpl) Get(ctx context.Context, actor approval.Actor, id string) (*correction.Request, error) {
	cr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsHR() || actor.IsSystem() {
		return cr, nil
	}
	if actor.EmployeeID != "" && (actor.EmployeeID == cr.EmployeeID || (cr.ManagerID != nil && *cr.ManagerID == actor.EmployeeID)) {
		return cr, nil
	}
	return nil, approval.ErrForbiddenActor
}

func (s *CorrectionServiceImpl) List(ctx context.Context, actor approval.Actor, req correction.ListRequest) ([]correction.Request, error) {
	filter := correction.Filter{
		EmployeeID: req.EmployeeID,
		Escalated:  req.Escalated,
	}
	if req.Status != nil {
		filter.Statuses = []approval.Status{*req.Status}
	}
	if req.StartDate != nil || req.EndDate != nil {
		var start, end string
		if req.StartDate != nil {
			start = *req.StartDate
		}
		if req.EndDate != nil {
			end = *req.EndDate
		}
		rng, err := daterange.Parse(start, end)
		if err != nil {
			return nil, validator.ValidationErrors{{Field: "start_date", Message: err.Error()}}
		}
		filter.WorkDateStart, filter.WorkDateEnd = &rng.Start, &rng.End
	}

	self := actor.EmployeeID
	switch {
	case actor.IsHR() || actor.IsSystem():
	case actor.Role == approval.RoleManager:
		if filter.EmployeeID == nil || *filter.EmployeeID != self {
			filter.ManagerID = &self
		}
	default:
		filter.EmployeeID = &self
	}

	return s.repo.List(ctx, filter)
}

// EscalateOverdue flags requests pending longer than the escalation policy
// and hands them to an HR reviewer. Status is never changed.
func (s *CorrectionServiceImpl) EscalateOverdue(ctx context.Context) (approval.Escalation, error) {
	now := s.now().UTC()
	result := approval.Escalation{RanAt: now}

	cutoff := now.Add(-s.policy.CorrectionEscalationAfter)
	notEscalated := false
	pending, err := s.repo.List(ctx, correction.Filter{
		Statuses:      approval.PendingStatuses(),
		Escalated:     &notEscalated,
		CreatedBefore: &cutoff,
	})
	if err != nil {
		return result, fmt.Errorf("failed to list overdue corrections: %w", err)
	}
	result.Scanned = len(pending)

	reviewer, err := employee.EscalationReviewer(ctx, s.directory, s.policy.DefaultHRReviewerID)
	if err != nil {
		slog.Error("Failed to resolve escalation reviewer", "error", err)
	}
	var reviewerID *string
	if reviewer != nil {
		reviewerID = &reviewer.ID
	}

	for i := range pending {
		cr := &pending[i]
		ok, err := s.repo.MarkEscalated(ctx, cr.ID, reviewerID, now)
		if err != nil {
			result.Failed++
			slog.Error("Failed to escalate correction", "correction_id", cr.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		result.Escalated++

		s.appendAudit(ctx, approval.SystemActor, cr.ID, ActionEscalated, map[string]interface{}{"status": string(cr.Status)}, now)
		if reviewer != nil {
			s.notifyEmployee(ctx, reviewer.ID, nil, notification.TypeCorrectionEscalated, "Attendance Correction Escalated",
				fmt.Sprintf("A correction for %s has been waiting more than %s", cr.WorkDate.Format(daterange.Layout), s.policy.CorrectionEscalationAfter), cr)
		}
	}
	return result, nil
}

func (s *CorrectionServiceImpl) notifyEmployee(ctx context.Context, employeeID string, sender *string, typ notification.NotificationType, title, message string, cr *correction.Request) {
	emp, err := s.directory.ResolveEmployee(ctx, employeeID)
	if err != nil {
		slog.Error("Failed to resolve notification recipient", "employee_id", employeeID, "error", err)
		return
	}
	s.send(ctx, notification.CreateNotificationRequest{
		RecipientID: emp.NotificationTarget(),
		SenderID:    sender,
		Type:        typ,
		Title:       title,
		Message:     message,
		Data:        payload(cr),
	})
}

func (s *CorrectionServiceImpl) notifyHR(ctx context.Context, sender *string, message string, cr *correction.Request) {
	reviewers, err := s.directory.ListHRReviewers(ctx)
	if err != nil {
		slog.Error("Failed to list HR reviewers", "error", err)
		return
	}
	for _, r := range reviewers {
		s.send(ctx, notification.CreateNotificationRequest{
			RecipientID: r.NotificationTarget(),
			SenderID:    sender,
			Type:        notification.TypeCorrectionSubmitted,
			Title:       "Attendance Correction Awaiting HR Review",
			Message:     message,
			Data:        payload(cr),
		})
	}
}

func (s *CorrectionServiceImpl) send(ctx context.Context, req notification.CreateNotificationRequest) {
	if err := s.notifier.QueueNotification(ctx, req); err != nil {
		slog.Warn("Failed to queue notification", "type", req.Type, "recipient_id", req.RecipientID, "error", err)
	}
}

func payload(cr *correction.Request) map[string]interface{} {
	return map[string]interface{}{
		"correction_id":        cr.ID,
		"attendance_record_id": cr.AttendanceRecordID,
		"employee_id":          cr.EmployeeID,
		"status":               string(cr.Status),
	}
}

func (s *CorrectionServiceImpl) appendAudit(ctx context.Context, actor approval.Actor, id, action string, payload map[string]interface{}, at time.Time) {
	event := audit.NewEvent(audit.EntityCorrection, id, action, actor.ID(), string(actor.Role), at).WithPayload(payload)
	if err := s.auditLog.Append(ctx, event); err != nil {
		slog.Error("Failed to append correction audit entry", "correction_id", id, "error", err)
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
