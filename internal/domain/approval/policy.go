package approval

import "fmt"

var transitions = map[Status][]Status{
	StatusPendingManager: {StatusPendingHR, StatusRejected, StatusCancelled},
	StatusPendingHR:      {StatusApproved, StatusRejected, StatusCancelled},
}

// Reachable reports whether the workflow graph has an edge from -> to.
func Reachable(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanTransition is the single capability rule for both request workflows.
//
//   - pending_manager -> pending_hr | rejected: the assigned manager, or HR once
//     the request has been escalated past the manager.
//   - pending_hr -> approved | rejected: any HR reviewer.
//   - pending -> cancelled: the requester only, or the system for requests
//     it raised itself.
func CanTransition(actor Actor, subject Subject, target Status) bool {
	if !Reachable(subject.Status, target) {
		return false
	}

	if target == StatusCancelled {
		if subject.SystemRaised {
			return actor.IsSystem()
		}
		return actor.EmployeeID != "" && actor.EmployeeID == subject.RequesterID
	}

	switch subject.Status {
	case StatusPendingManager:
		if subject.ManagerID != nil && actor.EmployeeID != "" && actor.EmployeeID == *subject.ManagerID {
			return true
		}
		return subject.Escalated && actor.IsHR()
	case StatusPendingHR:
		return actor.IsHR()
	}
	return false
}

// Authorize checks the state graph first and the actor second, so that
// terminal requests always report ErrInvalidStateTransition.
func Authorize(actor Actor, subject Subject, target Status) error {
	if subject.Status.IsTerminal() || !Reachable(subject.Status, target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, subject.Status, target)
	}
	if !CanTransition(actor, subject, target) {
		return ErrForbiddenActor
	}
	return nil
}

// NextStatus maps a reviewer decision on the current step to the target state.
func NextStatus(current Status, decision Decision) (Status, error) {
	if !decision.IsValid() {
		return "", ErrInvalidDecision
	}
	if decision == DecisionReject {
		return StatusRejected, nil
	}
	switch current {
	case StatusPendingManager:
		return StatusPendingHR, nil
	case StatusPendingHR:
		return StatusApproved, nil
	}
	return "", fmt.Errorf("%w: no approval step from %s", ErrInvalidStateTransition, current)
}
