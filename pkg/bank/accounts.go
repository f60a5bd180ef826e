package bank

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountService is the thin balance lifecycle over an AccountStore.
type AccountService struct {
	store AccountStore
	nowFn func() time.Time
}

// NewAccountService wires an AccountService.
func NewAccountService(store AccountStore, now func() time.Time) (*AccountService, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: account store dependency is nil", ErrInvalidManagerConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidManagerConfig)
	}
	return &AccountService{store: store, nowFn: now}, nil
}

// Create opens a new active account with a zero balance.
func (service *AccountService) Create(ctx context.Context) (Account, error) {
	now := service.nowFn()
	return service.store.CreateAccount(ctx, Account{
		Amount:    decimal.Zero,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Incr adds amount to the balance and refreshes updated-at.
func (service *AccountService) Incr(ctx context.Context, id int64, amount decimal.Decimal) (Account, error) {
	return service.store.IncrAccount(ctx, id, amount, service.nowFn())
}

// Decr subtracts amount from the balance and refreshes updated-at.
func (service *AccountService) Decr(ctx context.Context, id int64, amount decimal.Decimal) (Account, error) {
	return service.store.DecrAccount(ctx, id, amount, service.nowFn())
}

// Close marks the account inactive. Closing a missing or already closed
// account fails with ErrAccountNotFound.
func (service *AccountService) Close(ctx context.Context, id int64) error {
	return service.store.CloseAccount(ctx, id, service.nowFn())
}

// GetActive returns an active account by id.
func (service *AccountService) GetActive(ctx context.Context, id int64) (Account, error) {
	return service.store.GetActiveAccount(ctx, id)
}

// ExistsActive reports whether an active account with the id exists.
func (service *AccountService) ExistsActive(ctx context.Context, id int64) (bool, error) {
	return service.store.ActiveAccountExists(ctx, id)
}
