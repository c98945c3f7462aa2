package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound      = errors.New("resource not found")
	ErrForbidden     = errors.New("forbidden")
	ErrBadRequest    = errors.New("bad request")
	ErrConflict      = errors.New("resource conflict")
	ErrInternal      = errors.New("internal server error")
	ErrValidation    = errors.New("validation error")
	ErrInsufficient  = errors.New("insufficient quantity")
	ErrLocked        = errors.New("operation locked")
	ErrBadTransition = errors.New("invalid status transition")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// Inventory domain errors

// InsufficientStock signals a ledger adjustment that would drive an
// on-hand quantity negative. The enclosing transaction must be rolled back.
func InsufficientStock(articleID string, details map[string]string) *AppError {
	return &AppError{
		Err:        ErrInsufficient,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("stock for article %s cannot go negative", articleID),
		StatusCode: http.StatusConflict,
		Details:    details,
	}
}

// InsufficientAvailability signals a reservation request exceeding the
// available-to-promise quantity for a (lot, zone) combination.
func InsufficientAvailability(articleID string, details map[string]string) *AppError {
	return &AppError{
		Err:        ErrInsufficient,
		Code:       "INSUFFICIENT_AVAILABILITY",
		Message:    fmt.Sprintf("requested quantity for article %s exceeds availability", articleID),
		StatusCode: http.StatusConflict,
		Details:    details,
	}
}

// DuplicateCombination signals two allocation lines sharing the same
// (lot, zone) pair.
func DuplicateCombination(lotID, zoneID string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "DUPLICATE_COMBINATION",
		Message:    "allocation lines must use distinct (lot, zone) combinations",
		StatusCode: http.StatusBadRequest,
		Details:    map[string]string{"lot_id": lotID, "zone_id": zoneID},
	}
}

// QuantityMismatch signals allocation lines that do not sum to the
// requested quantity.
func QuantityMismatch(requested, allocated string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "QUANTITY_MISMATCH",
		Message:    "allocated quantities must sum to the requested quantity",
		StatusCode: http.StatusBadRequest,
		Details:    map[string]string{"requested": requested, "allocated": allocated},
	}
}

// InvalidTransition signals an illegal operation status change.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Err:        ErrBadTransition,
		Code:       "INVALID_TRANSITION",
		Message:    fmt.Sprintf("cannot transition operation from %s to %s", from, to),
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"from": from, "to": to},
	}
}

// OperationLocked signals a write against a terminal (completed or
// cancelled) operation by a caller without elevated privilege.
func OperationLocked(operationID string) *AppError {
	return &AppError{
		Err:        ErrLocked,
		Code:       "OPERATION_LOCKED",
		Message:    fmt.Sprintf("operation %s is terminal and cannot be modified", operationID),
		StatusCode: http.StatusConflict,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
