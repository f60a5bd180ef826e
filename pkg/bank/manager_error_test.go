package bank

import (
	"context"
	"errors"
	"testing"
)

const errorMismatchMessage = "expected %v, got %v"

var errStoreFailure = errors.New("store error")

func TestReserveReturnsStoreErrors(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name      string
		configure func(store *stubStore)
		wantErr   error
	}{
		{
			name: "account exists error",
			configure: func(store *stubStore) {
				store.existsActiveError = errStoreFailure
			},
			wantErr: errStoreFailure,
		},
		{
			name: "reserve exists error",
			configure: func(store *stubStore) {
				store.reserveExistsError = errStoreFailure
			},
			wantErr: errStoreFailure,
		},
		{
			name: "save error",
			configure: func(store *stubStore) {
				store.saveReserveError = errStoreFailure
			},
			wantErr: errStoreFailure,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newStubStore(test)
			account := seedAccount(test, store, "100.00")
			testCase.configure(store)
			manager := mustManager(test, store)

			_, err := manager.ReserveDeposit(context.Background(), "r-err", account.ID, mustDecimal(test, "10"))
			if !errors.Is(err, testCase.wantErr) {
				test.Fatalf(errorMismatchMessage, testCase.wantErr, err)
			}
		})
	}
}

func TestCommitReturnsStoreErrors(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name      string
		configure func(store *stubStore)
		wantErr   error
	}{
		{
			name: "account lookup error",
			configure: func(store *stubStore) {
				store.getActiveError = errStoreFailure
			},
			wantErr: errStoreFailure,
		},
		{
			name: "delete error",
			configure: func(store *stubStore) {
				store.deleteReserveError = errStoreFailure
			},
			wantErr: errStoreFailure,
		},
		{
			name: "incr error",
			configure: func(store *stubStore) {
				store.incrError = errStoreFailure
			},
			wantErr: errStoreFailure,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newStubStore(test)
			account := seedAccount(test, store, "100.00")
			manager := mustManager(test, store)
			reserve, err := manager.ReserveDeposit(context.Background(), "r-err", account.ID, mustDecimal(test, "10"))
			if err != nil {
				test.Fatalf("reserve: %v", err)
			}
			testCase.configure(store)

			if _, err := manager.Commit(context.Background(), reserve); !errors.Is(err, testCase.wantErr) {
				test.Fatalf(errorMismatchMessage, testCase.wantErr, err)
			}
		})
	}
}

func TestRollbackReturnsDeleteError(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	account := seedAccount(test, store, "100.00")
	manager := mustManager(test, store)
	reserve, err := manager.ReserveDeposit(context.Background(), "r-err", account.ID, mustDecimal(test, "10"))
	if err != nil {
		test.Fatalf("reserve: %v", err)
	}
	store.deleteReserveError = errStoreFailure

	if err := manager.Rollback(context.Background(), reserve); !errors.Is(err, errStoreFailure) {
		test.Fatalf(errorMismatchMessage, errStoreFailure, err)
	}
}

func TestNewManagerValidatesDependencies(test *testing.T) {
	test.Parallel()
	if _, err := NewManager(nil, nil); !errors.Is(err, ErrInvalidManagerConfig) {
		test.Fatalf("expected ErrInvalidManagerConfig, got %v", err)
	}
	store := newStubStore(test)
	if _, err := NewManager(store, nil); !errors.Is(err, ErrInvalidManagerConfig) {
		test.Fatalf("expected ErrInvalidManagerConfig for nil clock, got %v", err)
	}
}
