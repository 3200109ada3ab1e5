package timeexception

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/config"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/employee"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/notification"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeexception"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/daterange"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/validator"
)

const (
	ActionCreated        = "created"
	ActionPreApproved    = "pre_approved"
	ActionManagerDecided = "manager_decided"
	ActionHRDecided      = "hr_decided"
	ActionCancelled      = "cancelled"
	ActionResolved       = "resolved"
	ActionEscalated      = "escalated"
	ActionForcedEscalate = "force_escalated"
)

type TimeExceptionServiceImpl struct {
	repo      timeexception.Repository
	records   attendance.RecordReader
	registry  timeconfig.Reader
	directory employee.Directory
	notifier  notification.Sender
	auditLog  audit.Repository
	policy    config.TimePolicy
	location  *time.Location
	now       func() time.Time
}

func NewTimeExceptionService(
	repo timeexception.Repository,
	records attendance.RecordReader,
	registry timeconfig.Reader,
	directory employee.Directory,
	notifier notification.Sender,
	auditLog audit.Repository,
	policy config.TimePolicy,
) *TimeExceptionServiceImpl {
	return &TimeExceptionServiceImpl{
		repo:      repo,
		records:   records,
		registry:  registry,
		directory: directory,
		notifier:  notifier,
		auditLog:  auditLog,
		policy:    policy,
		location:  policy.Location(),
		now:       time.Now,
	}
}

var _ timeexception.Service = (*TimeExceptionServiceImpl)(nil)

func (s *TimeExceptionServiceImpl) WithClock(now func() time.Time) *TimeExceptionServiceImpl {
	s.now = now
	return s
}

// Create implements timeexception.Service. Employees without a manager
// start directly at the HR step.
func (s *TimeExceptionServiceImpl) Create(ctx context.Context, actor approval.Actor, req timeexception.CreateTimeExceptionRequest) (*timeexception.Exception, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if actor.EmployeeID == "" {
		return nil, approval.ErrForbiddenActor
	}

	emp, err := s.directory.ResolveEmployee(ctx, actor.EmployeeID)
	if err != nil {
		return nil, err
	}

	workDate := daterange.WorkDate(req.StartDateTime, s.location)
	if req.AttendanceRecordID != nil {
		rec, err := s.records.GetByID(ctx, *req.AttendanceRecordID)
		if err != nil {
			return nil, err
		}
		if rec.EmployeeID != emp.ID {
			return nil, approval.ErrForbiddenActor
		}
		workDate = rec.WorkDate
	}

	switch req.ExceptionType {
	case timeexception.TypeOvertime:
		if req.OvertimeRuleID != nil {
			rule, err := s.registry.GetOvertimeRule(ctx, *req.OvertimeRuleID)
			if err != nil {
				return nil, err
			}
			if !rule.IsActive {
				return nil, timeconfig.ErrOvertimeRuleNotFound
			}
		}
	case timeexception.TypePermission:
		rule, err := s.registry.GetPermissionRule(ctx, *req.PermissionRuleID)
		if err != nil {
			return nil, err
		}
		if !rule.IsActive {
			return nil, timeconfig.ErrPermissionRuleNotFound
		}
		if minutes := int(req.EndDateTime.Sub(req.StartDateTime) / time.Minute); minutes > rule.MaxDurationMinutes {
			return nil, fmt.Errorf("%w: %d > %d minutes", timeexception.ErrPermissionDurationExceeded, minutes, rule.MaxDurationMinutes)
		}
	}

	now := s.now().UTC()
	exc := &timeexception.Exception{
		EmployeeID:         emp.ID,
		ExceptionType:      req.ExceptionType,
		AttendanceRecordID: req.AttendanceRecordID,
		OvertimeRuleID:     req.OvertimeRuleID,
		PermissionRuleID:   req.PermissionRuleID,
		WorkDate:           workDate,
		StartDateTime:      req.StartDateTime.UTC(),
		EndDateTime:        req.EndDateTime.UTC(),
		Reason:             req.Reason,
		Status:             initialStatus(emp.ManagerID),
		ManagerID:          emp.ManagerID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Create(ctx, exc); err != nil {
		return nil, fmt.Errorf("failed to create time exception: %w", err)
	}

	s.appendAudit(ctx, actor, exc.ID, ActionCreated, map[string]interface{}{
		"exception_type": string(exc.ExceptionType),
		"status":         string(exc.Status),
	}, now)
	s.notifyReviewers(ctx, emp, exc)
	return exc, nil
}

func initialStatus(managerID *string) approval.Status {
	if managerID == nil {
		return approval.StatusPendingHR
	}
	return approval.StatusPendingManager
}

// RaiseMissedPunch implements timeexception.MissedPunchRaiser.
func (s *TimeExceptionServiceImpl) RaiseMissedPunch(ctx context.Context, record attendance.Record, missing attendance.MissingPunch, managerID *string) (*timeexception.Exception, bool, error) {
	existing, err := s.repo.FindByRecordAndType(ctx, record.ID, timeexception.TypeMissedPunch)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up missed punch exception: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	start := record.WorkDate
	if first := record.FirstIn(); first != nil {
		start = *first
	}
	end := start
	if last := record.LastOut(); last != nil {
		end = *last
	}

	now := s.now().UTC()
	recordID := record.ID
	exc := &timeexception.Exception{
		EmployeeID:         record.EmployeeID,
		ExceptionType:      timeexception.TypeMissedPunch,
		AttendanceRecordID: &recordID,
		WorkDate:           record.WorkDate,
		StartDateTime:      start,
		EndDateTime:        end,
		Reason:             fmt.Sprintf("Missing %s punch on %s", missing, record.WorkDate.Format(daterange.Layout)),
		MissingPunch:       &missing,
		Status:             initialStatus(managerID),
		ManagerID:          managerID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Create(ctx, exc); err != nil {
		return nil, false, fmt.Errorf("failed to create missed punch exception: %w", err)
	}

	s.appendAudit(ctx, approval.SystemActor, exc.ID, ActionCreated, map[string]interface{}{
		"exception_type":       string(exc.ExceptionType),
		"attendance_record_id": record.ID,
		"missing_punch":        string(missing),
	}, now)
	return exc, true, nil
}

// PreApprove implements timeexception.Service. The marker only counts when
// it is set no later than the start of the overtime.
func (s *TimeExceptionServiceImpl) PreApprove(ctx context.Context, actor approval.Actor, id string) (*timeexception.Exception, error) {
	exc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exc.ExceptionType != timeexception.TypeOvertime || !exc.Status.IsPending() {
		return nil, timeexception.ErrPreApprovalNotApplicable
	}
	if !actor.IsHR() && !isManagerOf(actor, exc) {
		return nil, approval.ErrForbiddenActor
	}
	if exc.PreApprovedAt != nil {
		return exc, nil
	}

	now := s.now().UTC()
	if err := s.repo.SetPreApproval(ctx, exc.ID, actor.ID(), now); err != nil {
		return nil, fmt.Errorf("failed to set pre-approval: %w", err)
	}
	approver := actor.ID()
	exc.PreApprovedAt = &now
	exc.PreApprovedBy = &approver

	s.appendAudit(ctx, actor, exc.ID, ActionPreApproved, map[string]interface{}{
		"in_time": exc.PreApprovedInTime(),
	}, now)
	return exc, nil
}

func (s *TimeExceptionServiceImpl) ManagerDecide(ctx context.Context, actor approval.Actor, id string, req timeexception.DecisionRequest) (*timeexception.Exception, error) {
	return s.decide(ctx, actor, id, req, approval.StatusPendingManager)
}

func (s *TimeExceptionServiceImpl) HRDecide(ctx context.Context, actor approval.Actor, id string, req timeexception.DecisionRequest) (*timeexception.Exception, error) {
	return s.decide(ctx, actor, id, req, approval.StatusPendingHR)
}

func (s *TimeExceptionServiceImpl) decide(ctx context.Context, actor approval.Actor, id string, req timeexception.DecisionRequest, step approval.Status) (*timeexception.Exception, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	exc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exc.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: request is already %s", approval.ErrInvalidStateTransition, exc.Status)
	}
	if exc.Status != step {
		return nil, fmt.Errorf("%w: request is %s, not %s", approval.ErrInvalidStateTransition, exc.Status, step)
	}

	next, err := approval.NextStatus(exc.Status, req.Decision)
	if err != nil {
		return nil, err
	}
	if err := approval.Authorize(actor, exc.Subject(), next); err != nil {
		return nil, err
	}

	if req.Decision == approval.DecisionApprove {
		if err := s.checkApprovable(ctx, exc); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	expected := exc.Status
	exc.Status = next
	exc.UpdatedAt = now
	action := ActionManagerDecided
	if step == approval.StatusPendingManager {
		exc.ManagerNote = req.Note
		exc.ManagerDecidedAt = &now
	} else {
		action = ActionHRDecided
		exc.HRNote = req.Note
		exc.HRDecidedAt = &now
		if actor.EmployeeID != "" {
			reviewer := actor.EmployeeID
			exc.HRReviewerID = &reviewer
		}
	}
	if next == approval.StatusRejected {
		exc.RejectionReason = req.Note
	}

	if err := s.repo.UpdateStatus(ctx, exc, expected); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, actor, exc.ID, action, map[string]interface{}{
		"from":     string(expected),
		"to":       string(next),
		"decision": string(req.Decision),
	}, now)
	s.notifyDecision(ctx, actor, exc)
	return exc, nil
}

// checkApprovable enforces rule constraints at approval time.
func (s *TimeExceptionServiceImpl) checkApprovable(ctx context.Context, exc *timeexception.Exception) error {
	switch exc.ExceptionType {
	case timeexception.TypeOvertime:
		if exc.OvertimeRuleID == nil {
			return nil
		}
		rule, err := s.registry.GetOvertimeRule(ctx, *exc.OvertimeRuleID)
		if err != nil {
			return err
		}
		if rule.RequiresPreApproval && !exc.PreApprovedInTime() {
			return timeexception.ErrPreApprovalRequired
		}
	case timeexception.TypePermission:
		if exc.PermissionRuleID == nil {
			return nil
		}
		rule, err := s.registry.GetPermissionRule(ctx, *exc.PermissionRuleID)
		if err != nil {
			return err
		}
		if exc.DurationMinutes() > rule.MaxDurationMinutes {
			return timeexception.ErrPermissionDurationExceeded
		}
	}
	return nil
}

func (s *TimeExceptionServiceImpl) Cancel(ctx context.Context, actor approval.Actor, id string) (*timeexception.Exception, error) {
	exc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.withdraw(ctx, actor, exc, ActionCancelled, nil); err != nil {
		return nil, err
	}
	return exc, nil
}

// ResolveMissedPunch implements timeexception.MissedPunchResolver.
func (s *TimeExceptionServiceImpl) ResolveMissedPunch(ctx context.Context, recordID string) (int, error) {
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return 0, err
	}
	if rec.HasMissedPunch {
		return 0, nil
	}

	pending, err := s.repo.List(ctx, timeexception.Filter{
		AttendanceRecordID: &recordID,
		Types:              []timeexception.Type{timeexception.TypeMissedPunch},
		Statuses:           []approval.Status{approval.StatusPendingManager, approval.StatusPendingHR},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list missed punch exceptions: %w", err)
	}

	resolved := 0
	for i := range pending {
		exc := &pending[i]
		err := s.withdraw(ctx, approval.SystemActor, exc, ActionResolved, map[string]interface{}{
			"attendance_record_id": recordID,
		})
		if errors.Is(err, approval.ErrConcurrentUpdate) {
			continue
		}
		if err != nil {
			return resolved, fmt.Errorf("failed to resolve time exception %s: %w", exc.ID, err)
		}
		resolved++
	}
	return resolved, nil
}

// withdraw moves a pending exception to cancelled on behalf of actor.
func (s *TimeExceptionServiceImpl) withdraw(ctx context.Context, actor approval.Actor, exc *timeexception.Exception, action string, payload map[string]interface{}) error {
	if err := approval.Authorize(actor, exc.Subject(), approval.StatusCancelled); err != nil {
		return err
	}

	now := s.now().UTC()
	expected := exc.Status
	exc.Status = approval.StatusCancelled
	exc.CancelledAt = &now
	exc.UpdatedAt = now
	if err := s.repo.UpdateStatus(ctx, exc, expected); err != nil {
		return err
	}

	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["from"] = string(expected)
	s.appendAudit(ctx, actor, exc.ID, action, payload, now)
	return nil
}

func (s *TimeExceptionServiceImpl) Get(ctx context.Context, actor approval.Actor, id string) (*timeexception.Exception, error) {
	exc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, exc) {
		return nil, approval.ErrForbiddenActor
	}
	return exc, nil
}

// List scopes employees to their own requests and managers to their reports
// unless they ask for their own.
func (s *TimeExceptionServiceImpl) List(ctx context.Context, actor approval.Actor, req timeexception.ListRequest) ([]timeexception.Exception, error) {
	filter := timeexception.Filter{
		EmployeeID: req.EmployeeID,
		Escalated:  req.Escalated,
	}
	if req.ExceptionType != nil {
		filter.Types = []timeexception.Type{*req.ExceptionType}
	}
	if req.Status != nil {
		filter.Statuses = []approval.Status{*req.Status}
	}
	if req.StartDate != nil || req.EndDate != nil {
		rng, err := daterange.Parse(deref(req.StartDate), deref(req.EndDate))
		if err != nil {
			return nil, validator.ValidationErrors{{Field: "start_date", Message: err.Error()}}
		}
		filter.WorkDateStart, filter.WorkDateEnd = &rng.Start, &rng.End
	}

	switch {
	case actor.IsHR() || actor.IsSystem():
	case actor.Role == approval.RoleManager:
		if filter.EmployeeID == nil || *filter.EmployeeID != actor.EmployeeID {
			self := actor.EmployeeID
			filter.ManagerID = &self
		}
	default:
		self := actor.EmployeeID
		filter.EmployeeID = &self
	}

	return s.repo.List(ctx, filter)
}

// EscalateOverdue implements timeexception.Service.
func (s *TimeExceptionServiceImpl) EscalateOverdue(ctx context.Context) (approval.Escalation, error) {
	now := s.now().UTC()
	cutoff := now.Add(-s.policy.ExceptionEscalationAfter)
	notEscalated := false

	pending, err := s.repo.List(ctx, timeexception.Filter{
		Statuses:      approval.PendingStatuses(),
		Escalated:     &notEscalated,
		CreatedBefore: &cutoff,
	})
	if err != nil {
		return approval.Escalation{RanAt: now}, fmt.Errorf("failed to list overdue time exceptions: %w", err)
	}
	return s.escalateAll(ctx, pending, false, now), nil
}

// ForceEscalateUnresolved implements timeexception.CutoffEscalator.
func (s *TimeExceptionServiceImpl) ForceEscalateUnresolved(ctx context.Context, start, end time.Time) (approval.Escalation, error) {
	now := s.now().UTC()
	notEscalated := false

	pending, err := s.repo.List(ctx, timeexception.Filter{
		Statuses:      approval.PendingStatuses(),
		Escalated:     &notEscalated,
		WorkDateStart: &start,
		WorkDateEnd:   &end,
	})
	if err != nil {
		return approval.Escalation{RanAt: now}, fmt.Errorf("failed to list unresolved time exceptions: %w", err)
	}
	return s.escalateAll(ctx, pending, true, now), nil
}

func (s *TimeExceptionServiceImpl) escalateAll(ctx context.Context, pending []timeexception.Exception, forced bool, now time.Time) approval.Escalation {
	result := approval.Escalation{Scanned: len(pending), RanAt: now}

	reviewer, err := employee.EscalationReviewer(ctx, s.directory, s.policy.DefaultHRReviewerID)
	if err != nil {
		slog.Error("Failed to resolve escalation reviewer", "error", err)
	}
	var reviewerID *string
	if reviewer != nil {
		reviewerID = &reviewer.ID
	}

	action := ActionEscalated
	if forced {
		action = ActionForcedEscalate
	}

	for _, exc := range pending {
		ok, err := s.repo.MarkEscalated(ctx, exc.ID, reviewerID, forced, now)
		if err != nil {
			result.Failed++
			slog.Error("Failed to escalate time exception", "time_exception_id", exc.ID, "error", err)
			continue
		}
		if !ok {
			// Decided or escalated since it was listed.
			continue
		}
		result.Escalated++

		s.appendAudit(ctx, approval.SystemActor, exc.ID, action, map[string]interface{}{
			"status":      string(exc.Status),
			"hr_reviewer": deref(reviewerID),
		}, now)
		if reviewer != nil {
			s.send(ctx, notification.CreateNotificationRequest{
				RecipientID: reviewer.NotificationTarget(),
				Type:        notification.TypeExceptionEscalated,
				Title:       "Time Exception Escalated",
				Message:     fmt.Sprintf("A %s request from %s is waiting for review", exc.ExceptionType, exc.WorkDate.Format(daterange.Layout)),
				Data:        map[string]interface{}{"time_exception_id": exc.ID, "employee_id": exc.EmployeeID, "forced": forced},
			})
		}
	}
	return result
}

func (s *TimeExceptionServiceImpl) notifyReviewers(ctx context.Context, emp employee.Employee, exc *timeexception.Exception) {
	data := map[string]interface{}{
		"time_exception_id": exc.ID,
		"employee_id":       emp.ID,
		"exception_type":    string(exc.ExceptionType),
	}
	sender := emp.NotificationTarget()
	message := fmt.Sprintf("%s submitted a %s request for %s", emp.FullName, exc.ExceptionType, exc.WorkDate.Format(daterange.Layout))

	if exc.ManagerID != nil {
		manager, err := s.directory.ResolveEmployee(ctx, *exc.ManagerID)
		if err != nil {
			slog.Error("Failed to resolve manager for notification", "manager_id", *exc.ManagerID, "error", err)
			return
		}
		s.send(ctx, notification.CreateNotificationRequest{
			RecipientID: manager.NotificationTarget(),
			SenderID:    &sender,
			Type:        notification.TypeExceptionSubmitted,
			Title:       "Time Exception Submitted",
			Message:     message,
			Data:        data,
		})
		return
	}
	s.notifyHR(ctx, &sender, message, data)
}

func (s *TimeExceptionServiceImpl) notifyHR(ctx context.Context, sender *string, message string, data map[string]interface{}) {
	reviewers, err := s.directory.ListHRReviewers(ctx)
	if err != nil {
		slog.Error("Failed to list HR reviewers for notification", "error", err)
		return
	}
	for _, r := range reviewers {
		s.send(ctx, notification.CreateNotificationRequest{
			RecipientID: r.NotificationTarget(),
			SenderID:    sender,
			Type:        notification.TypeExceptionSubmitted,
			Title:       "Time Exception Awaiting HR Review",
			Message:     message,
			Data:        data,
		})
	}
}

func (s *TimeExceptionServiceImpl) notifyDecision(ctx context.Context, actor approval.Actor, exc *timeexception.Exception) {
	emp, err := s.directory.ResolveEmployee(ctx, exc.EmployeeID)
	if err != nil {
		slog.Error("Failed to resolve requester for notification", "employee_id", exc.EmployeeID, "error", err)
		return
	}

	sender := actor.ID()
	data := map[string]interface{}{
		"time_exception_id": exc.ID,
		"status":            string(exc.Status),
	}
	s.send(ctx, notification.CreateNotificationRequest{
		RecipientID: emp.NotificationTarget(),
		SenderID:    &sender,
		Type:        notification.TypeExceptionDecided,
		Title:       "Time Exception Updated",
		Message:     fmt.Sprintf("Your %s request for %s is now %s", exc.ExceptionType, exc.WorkDate.Format(daterange.Layout), exc.Status),
		Data:        data,
	})

	if exc.Status == approval.StatusPendingHR {
		s.notifyHR(ctx, &sender, fmt.Sprintf("%s's %s request was approved by their manager", emp.FullName, exc.ExceptionType), data)
	}
}

// send is fire-and-forget; delivery problems never roll back a decision.
func (s *TimeExceptionServiceImpl) send(ctx context.Context, req notification.CreateNotificationRequest) {
	if err := s.notifier.QueueNotification(ctx, req); err != nil {
		slog.Warn("Failed to queue notification", "type", req.Type, "recipient_id", req.RecipientID, "error", err)
	}
}

func (s *TimeExceptionServiceImpl) appendAudit(ctx context.Context, actor approval.Actor, id, action string, payload map[string]interface{}, at time.Time) {
	event := audit.NewEvent(audit.EntityTimeException, id, action, actor.ID(), string(actor.Role), at).WithPayload(payload)
	if err := s.auditLog.Append(ctx, event); err != nil {
		slog.Error("Failed to append time exception audit entry", "time_exception_id", id, "error", err)
	}
}

func isManagerOf(actor approval.Actor, exc *timeexception.Exception) bool {
	return exc.ManagerID != nil && actor.EmployeeID != "" && *exc.ManagerID == actor.EmployeeID
}

func canView(actor approval.Actor, exc *timeexception.Exception) bool {
	if actor.IsHR() || actor.IsSystem() {
		return true
	}
	return actor.EmployeeID != "" && (actor.EmployeeID == exc.EmployeeID || isManagerOf(actor, exc))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
