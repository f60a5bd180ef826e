package pgstore

import (
	"errors"
	"testing"

	"github.com/NikPlatonov/bank-account-api/pkg/bank"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(test *testing.T) {
	test.Parallel()
	if !isUniqueViolation(&pgconn.PgError{Code: pgUniqueViolationCode}) {
		test.Fatalf("expected 23505 to classify as unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: pgSerializationFailureCode}) {
		test.Fatalf("40001 is not a unique violation")
	}
	if isUniqueViolation(errors.New("plain")) {
		test.Fatalf("plain errors are not unique violations")
	}
	if isUniqueViolation(nil) {
		test.Fatalf("nil is not a unique violation")
	}
}

func TestIsSerializationFailureSeesWrappedErrors(test *testing.T) {
	test.Parallel()
	wrapped := wrapStoreError(errorSubjectTx, errorCodeCommit, &pgconn.PgError{Code: pgSerializationFailureCode})
	if !isSerializationFailure(wrapped) {
		test.Fatalf("expected wrapped 40001 to stay retryable")
	}
	if isSerializationFailure(wrapped) && isSerializationFailure(errors.New("plain")) {
		test.Fatalf("plain errors must not retry")
	}
}

func TestWrapStoreErrorChain(test *testing.T) {
	test.Parallel()
	wrapped := wrapStoreError(errorSubjectReserve, errorCodeSave, bank.ErrNotUniqueID)
	if !errors.Is(wrapped, bank.ErrNotUniqueID) {
		test.Fatalf("expected sentinel to survive wrapping")
	}
	var operationError bank.OperationError
	if !errors.As(wrapped, &operationError) {
		test.Fatalf("expected OperationError")
	}
	if operationError.Operation() != errorOperationStore || operationError.Subject() != errorSubjectReserve {
		test.Fatalf("unexpected segments: %v", operationError)
	}
}
