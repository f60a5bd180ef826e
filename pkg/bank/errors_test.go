package bank

import (
	"errors"
	"strings"
	"testing"
)

func TestDenyReasonCodes(test *testing.T) {
	test.Parallel()
	if DenyEmptyReserve.Code() != 1000 {
		test.Fatalf("EMPTY_RESERVE code = %d", DenyEmptyReserve.Code())
	}
	if DenyNotEnoughMoney.Code() != 1001 {
		test.Fatalf("NOT_ENOUGH_MONEY code = %d", DenyNotEnoughMoney.Code())
	}
}

func TestDeniedReserveErrorMatchesSentinel(test *testing.T) {
	test.Parallel()
	var err error = &DeniedReserveError{Reason: DenyNotEnoughMoney, ReserveID: "r-1", AccountID: 3}
	if !errors.Is(err, ErrReserveDenied) {
		test.Fatalf("expected match on ErrReserveDenied")
	}
	if !strings.Contains(err.Error(), "1001") {
		test.Fatalf("expected numeric code in message, got %q", err.Error())
	}
}

func TestWrapErrorPreservesChain(test *testing.T) {
	test.Parallel()
	wrapped := WrapError("manager", "reserve", "not_unique", ErrNotUniqueID)
	if !errors.Is(wrapped, ErrNotUniqueID) {
		test.Fatalf("expected wrapped error to match sentinel")
	}
	var operationError OperationError
	if !errors.As(wrapped, &operationError) {
		test.Fatalf("expected OperationError")
	}
	if operationError.Operation() != "manager" || operationError.Subject() != "reserve" || operationError.Code() != "not_unique" {
		test.Fatalf("unexpected segments: %v", operationError)
	}
}

func TestWrapErrorNil(test *testing.T) {
	test.Parallel()
	if WrapError("manager", "reserve", "noop", nil) != nil {
		test.Fatalf("expected nil for nil error")
	}
}
