package payrollsync

import (
	"errors"
	"fmt"
)

var (
	ErrSyncValidationFailed = errors.New("payroll sync validation failed")
	ErrSyncLogNotFound      = errors.New("sync log not found")
	ErrNoRecordIDs          = errors.New("no record ids given")
)

// ValidationFailedError carries the issues that blocked a finalize call.
type ValidationFailedError struct {
	Result ValidationResult
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("%s: %d error(s), %d warning(s)", ErrSyncValidationFailed, e.Result.ErrorCount, e.Result.WarningCount)
}

func (e *ValidationFailedError) Unwrap() error {
	return ErrSyncValidationFailed
}
