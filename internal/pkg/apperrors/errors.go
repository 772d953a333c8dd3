package apperrors

import "errors"

// Error kinds. Every error returned from the service layer wraps exactly one of these.
var (
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrResourceNotFound      = errors.New("resource not found")
	ErrFailedPrecondition    = errors.New("failed precondition")
	ErrResourceAlreadyExists = errors.New("resource already exists")
	ErrValidationFailed      = errors.New("validation failed")
)

// Student errors
var (
	ErrStudentNotFound = coded(ErrResourceNotFound, CodeStudentNotFound, "student not found", "")
	ErrAccountFrozen   = coded(ErrPermissionDenied, CodeAccountFrozen, "student account is frozen", "Your account is frozen. You cannot apply to jobs until it is unfrozen.")
)

// Job errors
var (
	ErrJobNotFound    = coded(ErrResourceNotFound, CodeJobNotFound, "job not found", "")
	ErrJobClosed      = coded(ErrFailedPrecondition, CodeJobClosed, "job is not accepting applications", "This job is closed.")
	ErrDeadlinePassed = coded(ErrFailedPrecondition, CodeDeadlinePassed, "application deadline has passed", "The application deadline for this job has passed.")
)

// Application errors
var (
	ErrApplicationNotFound = coded(ErrResourceNotFound, CodeApplicationNotFound, "application not found", "")
	ErrAlreadyApplied      = coded(ErrResourceAlreadyExists, CodeAlreadyApplied, "application already exists", "You have already applied to this job.")
	ErrWithdrawNotAllowed  = coded(ErrFailedPrecondition, CodeWithdrawClosed, "application can no longer be withdrawn", "")
	ErrOfferNotSelected    = coded(ErrFailedPrecondition, CodeOfferNotSelected, "offer decision requires a selected application", "")
	ErrOfferAlreadyDecided = coded(ErrFailedPrecondition, CodeOfferDecided, "offer decision already recorded", "")
	ErrConcurrentUpdate    = coded(ErrFailedPrecondition, CodeConcurrentUpdate, "application was modified concurrently", "The application changed while you were editing it. Reload and try again.")
)

func coded(kind error, code, message, statusMsg string) *CustomError {
	return &CustomError{Err: kind, Code: code, Message: message, StatusMsg: statusMsg}
}

// Machine readable codes attached to CustomError.
const (
	CodeStudentNotFound     = "STUDENT_NOT_FOUND"
	CodeJobNotFound         = "JOB_NOT_FOUND"
	CodeApplicationNotFound = "APPLICATION_NOT_FOUND"
	CodeAccountFrozen       = "ACCOUNT_FROZEN"
	CodeJobClosed           = "JOB_CLOSED"
	CodeDeadlinePassed      = "DEADLINE_PASSED"
	CodeNotEligible         = "NOT_ELIGIBLE"
	CodeAlreadyApplied      = "ALREADY_APPLIED"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeOfferNotSelected    = "OFFER_NOT_SELECTED"
	CodeWithdrawClosed      = "WITHDRAW_WINDOW_CLOSED"
	CodeOfferDecided        = "OFFER_ALREADY_DECIDED"
	CodeConcurrentUpdate    = "CONCURRENT_UPDATE"
)

// NewForbiddenError creates a new custom error for permission denied with a message
func NewForbiddenError(message string) error {
	return &CustomError{
		Err:     ErrPermissionDenied,
		Message: message,
	}
}

// NewBadRequestError creates a new custom error for invalid arguments with a message
func NewBadRequestError(message string) error {
	return &CustomError{
		Err:     ErrValidationFailed,
		Message: message,
	}
}

// NewPreconditionError creates a failed precondition error with a code
func NewPreconditionError(code, message string) *CustomError {
	return &CustomError{
		Err:     ErrFailedPrecondition,
		Message: message,
		Code:    code,
	}
}

// NewUnauthenticatedError creates a new custom error for a missing caller identity
func NewUnauthenticatedError(message string) error {
	return &CustomError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err       error
	Message   string
	StatusMsg string
	Code      string
	Details   map[string]interface{}
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewCustomError creates a CustomError with underlying error
func NewCustomError(err error, message string) *CustomError {
	return &CustomError{
		Err:     err,
		Message: message,
	}
}

// WithDetails adds context details to the error.
// It returns a copy so package level errors are never mutated.
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	c := *e
	c.Details = details
	return &c
}

// As extracts the CustomError from an error chain, if any.
func As(err error) (*CustomError, bool) {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
