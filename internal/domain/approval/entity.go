package approval

import (
	"context"
	"time"
)

// Status is the workflow state shared by correction and time exception requests.
type Status string

const (
	StatusPendingManager Status = "pending_manager"
	StatusPendingHR      Status = "pending_hr"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusCancelled      Status = "cancelled"
)

func (s Status) IsPending() bool {
	return s == StatusPendingManager || s == StatusPendingHR
}

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

func (s Status) IsValid() bool {
	return s.IsPending() || s.IsTerminal()
}

// PendingStatuses lists the non-terminal states.
func PendingStatuses() []Status {
	return []Status{StatusPendingManager, StatusPendingHR}
}

type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleHR       Role = "hr"
	RoleOwner    Role = "owner"
	RoleSystem   Role = "system"
)

// Actor is the authenticated party attempting an operation.
type Actor struct {
	UserID     string
	EmployeeID string
	Role       Role
}

// SystemActor is used by scheduled jobs.
var SystemActor = Actor{UserID: "system", Role: RoleSystem}

func (a Actor) IsHR() bool {
	return a.Role == RoleHR || a.Role == RoleOwner
}

func (a Actor) IsSystem() bool {
	return a.Role == RoleSystem
}

// ID returns the identifier recorded in audit entries.
func (a Actor) ID() string {
	if a.EmployeeID != "" {
		return a.EmployeeID
	}
	return a.UserID
}

// Subject is the part of a request the capability check looks at.
// SystemRaised requests are withdrawn by the system, never the requester.
type Subject struct {
	RequesterID  string
	ManagerID    *string
	Status       Status
	Escalated    bool
	SystemRaised bool
}

// Decision is a reviewer's verdict on a pending step.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// Escalation summarises one sweep over pending requests.
type Escalation struct {
	Scanned   int       `json:"scanned"`
	Escalated int       `json:"escalated"`
	Failed    int       `json:"failed"`
	RanAt     time.Time `json:"ran_at"`
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
