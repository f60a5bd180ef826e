package bank

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the account manager and its stores.
var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrReserveNotFound      = errors.New("reserve not found")
	ErrNotUniqueID          = errors.New("reserve id already used")
	ErrAlreadyHandled       = errors.New("reserve already handled")
	ErrReserveDenied        = errors.New("reserve denied")
	ErrInvalidReserveID     = errors.New("invalid reserve id")
	ErrInvalidReserveType   = errors.New("invalid reserve type")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidManagerConfig = errors.New("invalid manager config")
)

// DenyReason is the externally visible admission denial code. The numeric
// codes are stable and matched by remote services.
type DenyReason string

const (
	DenyEmptyReserve   DenyReason = "EMPTY_RESERVE"
	DenyNotEnoughMoney DenyReason = "NOT_ENOUGH_MONEY"
)

// Code returns the stable numeric code for cross-service matching.
func (reason DenyReason) Code() int {
	switch reason {
	case DenyEmptyReserve:
		return 1000
	case DenyNotEnoughMoney:
		return 1001
	default:
		return 0
	}
}

// String returns the reason name.
func (reason DenyReason) String() string {
	return string(reason)
}

// DeniedReserveError reports an admission denial. It matches ErrReserveDenied
// through errors.Is and keeps the structured reason for the caller.
type DeniedReserveError struct {
	Reason    DenyReason
	ReserveID string
	AccountID int64
}

// Error returns the formatted denial message.
func (deniedError *DeniedReserveError) Error() string {
	return fmt.Sprintf("reserve %s denied for account %d: %d [%s]",
		deniedError.ReserveID, deniedError.AccountID, deniedError.Reason.Code(), deniedError.Reason)
}

// Unwrap lets errors.Is(err, ErrReserveDenied) match.
func (deniedError *DeniedReserveError) Unwrap() error {
	return ErrReserveDenied
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
