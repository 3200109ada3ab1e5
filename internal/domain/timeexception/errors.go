package timeexception

import "errors"

var (
	ErrExceptionNotFound          = errors.New("time exception request not found")
	ErrPreApprovalRequired        = errors.New("overtime rule requires pre-approval before the work is performed")
	ErrPermissionDurationExceeded = errors.New("permission exceeds the rule's maximum duration")
	ErrPreApprovalNotApplicable   = errors.New("only pending overtime requests can be pre-approved")
)
