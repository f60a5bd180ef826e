package bank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Manager coordinates the two-phase reserve -> commit/rollback protocol over
// the account and reserve stores. Every mutating operation is one atomic
// unit of work; concurrent admission safety comes from the store's
// serializable insert path, not from in-process locks.
type Manager struct {
	store    Store
	accounts *AccountService
	reserves *ReserveService
	nowFn    func() time.Time
	logger   OperationLogger
	notifier Notifier
}

// NewManager wires a Manager.
func NewManager(store Store, now func() time.Time, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidManagerConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidManagerConfig)
	}
	accounts, err := NewAccountService(store, now)
	if err != nil {
		return nil, err
	}
	reserves, err := NewReserveService(store)
	if err != nil {
		return nil, err
	}
	manager := &Manager{
		store:    store,
		accounts: accounts,
		reserves: reserves,
		nowFn:    now,
	}
	for _, option := range options {
		if option != nil {
			option(manager)
		}
	}
	return manager, nil
}

// Accounts exposes the account lifecycle service backed by the same store.
func (manager *Manager) Accounts() *AccountService {
	return manager.accounts
}

// Reserve places a reservation against an account. A zero amount is denied
// before any account check. The pre-checks here give early answers; the
// store re-validates uniqueness, account existence, and admission atomically
// with the insert.
func (manager *Manager) Reserve(ctx context.Context, option ReserveOption) (Reserve, error) {
	reserve, operationError := manager.tryReserve(ctx, option)
	manager.logOperation(ctx, OperationLog{
		Operation: operationReserve,
		ReserveID: option.ID,
		AccountID: option.AccountID,
		Type:      option.Type,
		Amount:    option.Amount,
		Error:     operationError,
	})
	manager.notifyReserve(ctx, option, reserve, operationError)
	return reserve, operationError
}

func (manager *Manager) tryReserve(ctx context.Context, option ReserveOption) (Reserve, error) {
	if option.Amount.IsZero() {
		return Reserve{}, &DeniedReserveError{
			Reason:    DenyEmptyReserve,
			ReserveID: option.ID,
			AccountID: option.AccountID,
		}
	}
	activeExists, err := manager.accounts.ExistsActive(ctx, option.AccountID)
	if err != nil {
		return Reserve{}, err
	}
	if !activeExists {
		return Reserve{}, WrapError(errorOperationManager, errorSubjectAccount, errorCodeNotFound, ErrAccountNotFound)
	}
	reserveExists, err := manager.reserves.Exists(ctx, option.ID)
	if err != nil {
		return Reserve{}, err
	}
	if reserveExists {
		return Reserve{}, WrapError(errorOperationManager, errorSubjectReserve, errorCodeNotUnique, ErrNotUniqueID)
	}
	reserve := Reserve{
		ID:        option.ID,
		AccountID: option.AccountID,
		Amount:    option.Amount,
		Type:      option.Type,
		CreatedAt: manager.nowFn(),
	}
	if err := manager.reserves.SaveIfAllowed(ctx, reserve); err != nil {
		return Reserve{}, err
	}
	return reserve, nil
}

// ReserveDeposit places a DEPOSIT reservation.
func (manager *Manager) ReserveDeposit(ctx context.Context, id string, accountID int64, amount decimal.Decimal) (Reserve, error) {
	option, err := NewReserveOption(id, accountID, ReserveDeposit, amount)
	if err != nil {
		return Reserve{}, err
	}
	return manager.Reserve(ctx, option)
}

// ReserveWithdraw places a WITHDRAW reservation.
func (manager *Manager) ReserveWithdraw(ctx context.Context, id string, accountID int64, amount decimal.Decimal) (Reserve, error) {
	option, err := NewReserveOption(id, accountID, ReserveWithdraw, amount)
	if err != nil {
		return Reserve{}, err
	}
	return manager.Reserve(ctx, option)
}

// Commit resolves a reservation by applying its amount to the balance and
// deleting the row, all in one unit of work. A reservation that was already
// resolved fails with ErrAlreadyHandled and leaves the balance untouched.
func (manager *Manager) Commit(ctx context.Context, reserve Reserve) (Account, error) {
	var account Account
	operationError := manager.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		if _, err := txStore.GetActiveAccount(ctx, reserve.AccountID); err != nil {
			return err
		}
		removed, err := txStore.DeleteReserve(ctx, reserve.ID)
		if err != nil {
			return err
		}
		if !removed {
			return WrapError(errorOperationManager, errorSubjectReserve, errorCodeHandled, ErrAlreadyHandled)
		}
		updatedAt := manager.nowFn()
		switch reserve.Type {
		case ReserveDeposit:
			account, err = txStore.IncrAccount(ctx, reserve.AccountID, reserve.Amount, updatedAt)
		case ReserveWithdraw:
			account, err = txStore.DecrAccount(ctx, reserve.AccountID, reserve.Amount, updatedAt)
		default:
			err = fmt.Errorf("%w: %q", ErrInvalidReserveType, reserve.Type)
		}
		return err
	})
	manager.logOperation(ctx, OperationLog{
		Operation: operationCommit,
		ReserveID: reserve.ID,
		AccountID: reserve.AccountID,
		Type:      reserve.Type,
		Amount:    reserve.Amount,
		Error:     operationError,
	})
	return account, operationError
}

// Rollback resolves a reservation by discarding it without a balance change.
func (manager *Manager) Rollback(ctx context.Context, reserve Reserve) error {
	operationError := manager.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		removed, err := txStore.DeleteReserve(ctx, reserve.ID)
		if err != nil {
			return err
		}
		if !removed {
			return WrapError(errorOperationManager, errorSubjectReserve, errorCodeHandled, ErrAlreadyHandled)
		}
		return nil
	})
	manager.logOperation(ctx, OperationLog{
		Operation: operationRollback,
		ReserveID: reserve.ID,
		AccountID: reserve.AccountID,
		Type:      reserve.Type,
		Amount:    reserve.Amount,
		Error:     operationError,
	})
	return operationError
}

// GetActiveAccount returns an active account by id.
func (manager *Manager) GetActiveAccount(ctx context.Context, id int64) (Account, error) {
	return manager.accounts.GetActive(ctx, id)
}

// GetReserve returns a reservation by id.
func (manager *Manager) GetReserve(ctx context.Context, id string) (Reserve, error) {
	return manager.reserves.Get(ctx, id)
}

func (manager *Manager) logOperation(ctx context.Context, entry OperationLog) {
	if manager.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	manager.logger.LogOperation(ctx, entry)
}

func (manager *Manager) notifyReserve(ctx context.Context, option ReserveOption, reserve Reserve, operationError error) {
	if manager.notifier == nil {
		return
	}
	if operationError == nil {
		manager.notifier.ReserveCreated(ctx, reserve)
		return
	}
	var deniedError *DeniedReserveError
	if errors.As(operationError, &deniedError) {
		manager.notifier.ReserveDenied(ctx, DeniedReserveEvent{Option: option, Reason: deniedError.Reason})
	}
}
