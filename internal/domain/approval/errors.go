package approval

import "errors"

var (
	ErrForbiddenActor         = errors.New("actor is not allowed to perform this transition")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrConcurrentUpdate       = errors.New("request was modified by another reviewer")
	ErrInvalidDecision        = errors.New("decision must be approve or reject")
)
