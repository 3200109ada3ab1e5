package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestAuthorize(t *testing.T) {
	employee := Actor{EmployeeID: "emp-1", Role: RoleEmployee}
	manager := Actor{EmployeeID: "mgr-1", Role: RoleManager}
	otherManager := Actor{EmployeeID: "mgr-2", Role: RoleManager}
	hr := Actor{EmployeeID: "hr-1", Role: RoleHR}
	owner := Actor{EmployeeID: "own-1", Role: RoleOwner}

	pendingManager := Subject{RequesterID: "emp-1", ManagerID: strPtr("mgr-1"), Status: StatusPendingManager}
	pendingHR := Subject{RequesterID: "emp-1", ManagerID: strPtr("mgr-1"), Status: StatusPendingHR}
	systemRaised := Subject{RequesterID: "emp-1", ManagerID: strPtr("mgr-1"), Status: StatusPendingManager, SystemRaised: true}

	tests := []struct {
		name    string
		actor   Actor
		subject Subject
		target  Status
		wantErr error
	}{
		{"manager forwards to hr", manager, pendingManager, StatusPendingHR, nil},
		{"manager rejects", manager, pendingManager, StatusRejected, nil},
		{"other manager forbidden", otherManager, pendingManager, StatusPendingHR, ErrForbiddenActor},
		{"hr cannot skip manager", hr, pendingManager, StatusPendingHR, ErrForbiddenActor},
		{"hr acts for manager once escalated", hr, Subject{RequesterID: "emp-1", ManagerID: strPtr("mgr-1"), Status: StatusPendingManager, Escalated: true}, StatusPendingHR, nil},
		{"employee cannot approve own", employee, pendingHR, StatusApproved, ErrForbiddenActor},
		{"hr approves", hr, pendingHR, StatusApproved, nil},
		{"owner counts as hr", owner, pendingHR, StatusRejected, nil},
		{"manager cannot approve hr step", manager, pendingHR, StatusApproved, ErrForbiddenActor},
		{"requester cancels", employee, pendingHR, StatusCancelled, nil},
		{"manager cannot cancel", manager, pendingManager, StatusCancelled, ErrForbiddenActor},
		{"requester cannot cancel system raised", employee, systemRaised, StatusCancelled, ErrForbiddenActor},
		{"system withdraws system raised", SystemActor, systemRaised, StatusCancelled, nil},
		{"system cannot cancel employee request", SystemActor, pendingManager, StatusCancelled, ErrForbiddenActor},
		{"manager still decides system raised", manager, systemRaised, StatusPendingHR, nil},
		{"skip step is invalid", hr, pendingManager, StatusApproved, ErrInvalidStateTransition},
		{"terminal cancel", employee, Subject{RequesterID: "emp-1", Status: StatusRejected}, StatusCancelled, ErrInvalidStateTransition},
		{"terminal reopen", hr, Subject{RequesterID: "emp-1", Status: StatusApproved}, StatusPendingHR, ErrInvalidStateTransition},
		{"terminal checked before actor", otherManager, Subject{RequesterID: "emp-1", Status: StatusCancelled}, StatusRejected, ErrInvalidStateTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, tt.subject, tt.target)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTerminalStatesHaveNoEdges(t *testing.T) {
	all := []Status{StatusPendingManager, StatusPendingHR, StatusApproved, StatusRejected, StatusCancelled}
	for _, from := range []Status{StatusApproved, StatusRejected, StatusCancelled} {
		for _, to := range all {
			assert.False(t, Reachable(from, to), "%s -> %s", from, to)
		}
	}
}

func TestNextStatus(t *testing.T) {
	next, err := NextStatus(StatusPendingManager, DecisionApprove)
	assert.NoError(t, err)
	assert.Equal(t, StatusPendingHR, next)

	next, err = NextStatus(StatusPendingHR, DecisionApprove)
	assert.NoError(t, err)
	assert.Equal(t, StatusApproved, next)

	next, err = NextStatus(StatusPendingHR, DecisionReject)
	assert.NoError(t, err)
	assert.Equal(t, StatusRejected, next)

	_, err = NextStatus(StatusApproved, DecisionApprove)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	_, err = NextStatus(StatusPendingHR, Decision("maybe"))
	assert.ErrorIs(t, err, ErrInvalidDecision)
}
