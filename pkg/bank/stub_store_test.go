package bank

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// stubStore is an in-memory Store with error injection. Its admission path
// mirrors the real stores: uniqueness, account existence, then the
// withdrawal funds check, all under one mutex.
type stubStore struct {
	mu            sync.Mutex
	nextAccountID int64
	accounts      map[int64]Account
	reserves      map[string]Reserve

	createAccountError error
	incrError          error
	decrError          error
	closeError         error
	getActiveError     error
	existsActiveError  error
	saveReserveError   error
	deleteReserveError error
	getReserveError    error
	reserveExistsError error
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{
		accounts: make(map[int64]Account),
		reserves: make(map[string]Reserve),
	}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, store)
}

func (store *stubStore) CreateAccount(_ context.Context, account Account) (Account, error) {
	if store.createAccountError != nil {
		return Account{}, store.createAccountError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	store.nextAccountID++
	account.ID = store.nextAccountID
	store.accounts[account.ID] = account
	return account, nil
}

func (store *stubStore) IncrAccount(_ context.Context, id int64, amount decimal.Decimal, updatedAt time.Time) (Account, error) {
	if store.incrError != nil {
		return Account{}, store.incrError
	}
	return store.applyToAmount(id, amount, updatedAt)
}

func (store *stubStore) DecrAccount(_ context.Context, id int64, amount decimal.Decimal, updatedAt time.Time) (Account, error) {
	if store.decrError != nil {
		return Account{}, store.decrError
	}
	return store.applyToAmount(id, amount.Neg(), updatedAt)
}

func (store *stubStore) applyToAmount(id int64, delta decimal.Decimal, updatedAt time.Time) (Account, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.accounts[id]
	if !ok || !account.Active {
		return Account{}, ErrAccountNotFound
	}
	account.Amount = account.Amount.Add(delta)
	account.UpdatedAt = updatedAt
	store.accounts[id] = account
	return account, nil
}

func (store *stubStore) CloseAccount(_ context.Context, id int64, updatedAt time.Time) error {
	if store.closeError != nil {
		return store.closeError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.accounts[id]
	if !ok || !account.Active {
		return ErrAccountNotFound
	}
	account.Active = false
	account.UpdatedAt = updatedAt
	store.accounts[id] = account
	return nil
}

func (store *stubStore) GetActiveAccount(_ context.Context, id int64) (Account, error) {
	if store.getActiveError != nil {
		return Account{}, store.getActiveError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.accounts[id]
	if !ok || !account.Active {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (store *stubStore) ActiveAccountExists(_ context.Context, id int64) (bool, error) {
	if store.existsActiveError != nil {
		return false, store.existsActiveError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.accounts[id]
	return ok && account.Active, nil
}

func (store *stubStore) SaveReserveIfAllowed(_ context.Context, reserve Reserve) error {
	if store.saveReserveError != nil {
		return store.saveReserveError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, exists := store.reserves[reserve.ID]; exists {
		return ErrNotUniqueID
	}
	account, ok := store.accounts[reserve.AccountID]
	if !ok || !account.Active {
		return ErrAccountNotFound
	}
	if reserve.Type == ReserveWithdraw {
		reserved := decimal.Zero
		for _, other := range store.reserves {
			if other.AccountID == reserve.AccountID && other.Type == ReserveWithdraw {
				reserved = reserved.Add(other.Amount)
			}
		}
		if account.Amount.Sub(reserved).Sub(reserve.Amount).IsNegative() {
			return &DeniedReserveError{
				Reason:    DenyNotEnoughMoney,
				ReserveID: reserve.ID,
				AccountID: reserve.AccountID,
			}
		}
	}
	store.reserves[reserve.ID] = reserve
	return nil
}

func (store *stubStore) DeleteReserve(_ context.Context, id string) (bool, error) {
	if store.deleteReserveError != nil {
		return false, store.deleteReserveError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, exists := store.reserves[id]; !exists {
		return false, nil
	}
	delete(store.reserves, id)
	return true, nil
}

func (store *stubStore) GetReserve(_ context.Context, id string) (Reserve, error) {
	if store.getReserveError != nil {
		return Reserve{}, store.getReserveError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	reserve, exists := store.reserves[id]
	if !exists {
		return Reserve{}, ErrReserveNotFound
	}
	return reserve, nil
}

func (store *stubStore) ReserveExists(_ context.Context, id string) (bool, error) {
	if store.reserveExistsError != nil {
		return false, store.reserveExistsError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	_, exists := store.reserves[id]
	return exists, nil
}

func mustManager(test *testing.T, store Store, options ...ManagerOption) *Manager {
	test.Helper()
	manager, err := NewManager(store, func() time.Time { return time.Unix(1700000000, 0).UTC() }, options...)
	if err != nil {
		test.Fatalf("manager init: %v", err)
	}
	return manager
}

func mustDecimal(test *testing.T, value string) decimal.Decimal {
	test.Helper()
	amount, err := decimal.NewFromString(value)
	if err != nil {
		test.Fatalf("decimal %q: %v", value, err)
	}
	return amount
}

func seedAccount(test *testing.T, store *stubStore, balance string) Account {
	test.Helper()
	account, err := store.CreateAccount(context.Background(), Account{
		Amount: mustDecimal(test, balance),
		Active: true,
	})
	if err != nil {
		test.Fatalf("seed account: %v", err)
	}
	return account
}
