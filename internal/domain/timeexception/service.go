package timeexception

import (
	"context"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
)

type Service interface {
	Create(ctx context.Context, actor approval.Actor, req CreateTimeExceptionRequest) (*Exception, error)
	PreApprove(ctx context.Context, actor approval.Actor, id string) (*Exception, error)
	ManagerDecide(ctx context.Context, actor approval.Actor, id string, req DecisionRequest) (*Exception, error)
	HRDecide(ctx context.Context, actor approval.Actor, id string, req DecisionRequest) (*Exception, error)
	Cancel(ctx context.Context, actor approval.Actor, id string) (*Exception, error)
	Get(ctx context.Context, actor approval.Actor, id string) (*Exception, error)
	List(ctx context.Context, actor approval.Actor, req ListRequest) ([]Exception, error)
	EscalateOverdue(ctx context.Context) (approval.Escalation, error)

	MissedPunchRaiser
	MissedPunchResolver
	CutoffEscalator
}

// MissedPunchRaiser is used by the missed-punch detector. It returns the
// existing exception for the record when one was already raised.
type MissedPunchRaiser interface {
	RaiseMissedPunch(ctx context.Context, record attendance.Record, missing attendance.MissingPunch, managerID *string) (*Exception, bool, error)
}

// MissedPunchResolver withdraws the pending missed_punch exceptions of a
// record once its punches are complete again. It returns how many it closed.
type MissedPunchResolver interface {
	ResolveMissedPunch(ctx context.Context, recordID string) (int, error)
}

// CutoffEscalator forces escalation of every unresolved exception whose
// work date falls in [start, end], regardless of age.
type CutoffEscalator interface {
	ForceEscalateUnresolved(ctx context.Context, start, end time.Time) (approval.Escalation, error)
}
