package correction

import (
	"context"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
)

type Service interface {
	Create(ctx context.Context, actor approval.Actor, req CreateCorrectionRequest) (*Request, error)
	ManagerDecide(ctx context.Context, actor approval.Actor, id string, req DecisionRequest) (*Request, error)
	HRDecide(ctx context.Context, actor approval.Actor, id string, req DecisionRequest) (*Request, error)
	Cancel(ctx context.Context, actor approval.Actor, id string) (*Request, error)
	Get(ctx context.Context, actor approval.Actor, id string) (*Request, error)
	List(ctx context.Context, actor approval.Actor, req ListRequest) ([]Request, error)
	EscalateOverdue(ctx context.Context) (approval.Escalation, error)
}
