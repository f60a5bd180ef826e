package gormstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/NikPlatonov/bank-account-api/pkg/bank"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgUniqueViolationCode      = "23505"
	pgSerializationFailureCode = "40001"
	sqliteConstraintCode       = 19
	sqliteBusyCode             = 5
	sqliteLockedCode           = 6
	dialectPostgres            = "postgres"

	errorOperationStore = "store"
	errorSubjectAccount = "account"
	errorSubjectReserve = "reserve"
	errorCodeCreate     = "create"
	errorCodeApply      = "apply_amount"
	errorCodeClose      = "close"
	errorCodeGet        = "get"
	errorCodeExists     = "exists"
	errorCodeSave       = "save"
	errorCodeDelete     = "delete"
	errorCodeSumReserve = "sum_reserved"
)

// Store implements bank.Store using GORM (SQLite for tests and local runs,
// Postgres in production).
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the schema. Intended for SQLite; Postgres deployments
// manage the schema outside the process.
func (store *Store) Migrate() error {
	return store.db.AutoMigrate(&Account{}, &Reserve{})
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore bank.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) CreateAccount(ctx context.Context, account bank.Account) (bank.Account, error) {
	model := Account{
		Amount:    account.Amount,
		Active:    account.Active,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return bank.Account{}, wrapStoreError(errorSubjectAccount, errorCodeCreate, err)
	}
	return mapAccount(model), nil
}

func (store *Store) IncrAccount(ctx context.Context, id int64, amount decimal.Decimal, updatedAt time.Time) (bank.Account, error) {
	return store.applyToAmount(ctx, id, amount, updatedAt)
}

func (store *Store) DecrAccount(ctx context.Context, id int64, amount decimal.Decimal, updatedAt time.Time) (bank.Account, error) {
	return store.applyToAmount(ctx, id, amount.Neg(), updatedAt)
}

func (store *Store) applyToAmount(ctx context.Context, id int64, delta decimal.Decimal, updatedAt time.Time) (bank.Account, error) {
	var updated Account
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		var model Account
		if err := store.lockingQuery(transaction).
			Where("id = ? AND active = ?", id, true).
			Take(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return wrapStoreError(errorSubjectAccount, errorCodeApply, bank.ErrAccountNotFound)
			}
			return wrapStoreError(errorSubjectAccount, errorCodeApply, err)
		}
		model.Amount = model.Amount.Add(delta)
		model.UpdatedAt = updatedAt
		result := transaction.Model(&Account{}).
			Where("id = ? AND active = ?", id, true).
			Updates(map[string]interface{}{"amount": model.Amount, "updated_at": model.UpdatedAt})
		if result.Error != nil {
			return wrapStoreError(errorSubjectAccount, errorCodeApply, result.Error)
		}
		if result.RowsAffected == 0 {
			return wrapStoreError(errorSubjectAccount, errorCodeApply, bank.ErrAccountNotFound)
		}
		updated = model
		return nil
	})
	if err != nil {
		return bank.Account{}, err
	}
	return mapAccount(updated), nil
}

func (store *Store) CloseAccount(ctx context.Context, id int64, updatedAt time.Time) error {
	result := store.db.WithContext(ctx).Model(&Account{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]interface{}{"active": false, "updated_at": updatedAt})
	if result.Error != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeClose, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeClose, bank.ErrAccountNotFound)
	}
	return nil
}

func (store *Store) GetActiveAccount(ctx context.Context, id int64) (bank.Account, error) {
	var model Account
	err := store.db.WithContext(ctx).
		Where("id = ? AND active = ?", id, true).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return bank.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, bank.ErrAccountNotFound)
		}
		return bank.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}
	return mapAccount(model), nil
}

func (store *Store) ActiveAccountExists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).Model(&Account{}).
		Where("id = ? AND active = ?", id, true).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectAccount, errorCodeExists, err)
	}
	return count > 0, nil
}

// SaveReserveIfAllowed re-validates id uniqueness, account existence, and the
// withdrawal-admission invariant atomically with the insert, under the
// strongest isolation the engine offers. Aborted serializable interleavings
// are retried from scratch.
func (store *Store) SaveReserveIfAllowed(ctx context.Context, reserve bank.Reserve) error {
	return bank.RetryOnConflict(ctx, isSerializationFailure, func(ctx context.Context) error {
		return store.serializableTx(ctx, func(transaction *gorm.DB) error {
			var count int64
			if err := transaction.Model(&Reserve{}).Where("id = ?", reserve.ID).Count(&count).Error; err != nil {
				return wrapStoreError(errorSubjectReserve, errorCodeExists, err)
			}
			if count > 0 {
				return wrapStoreError(errorSubjectReserve, errorCodeSave, bank.ErrNotUniqueID)
			}

			var account Account
			if err := transaction.Where("id = ? AND active = ?", reserve.AccountID, true).Take(&account).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return wrapStoreError(errorSubjectAccount, errorCodeGet, bank.ErrAccountNotFound)
				}
				return wrapStoreError(errorSubjectAccount, errorCodeGet, err)
			}

			if reserve.Type == bank.ReserveWithdraw {
				reserved, err := sumWithdrawReserves(transaction, reserve.AccountID)
				if err != nil {
					return err
				}
				if account.Amount.Sub(reserved).Sub(reserve.Amount).IsNegative() {
					return &bank.DeniedReserveError{
						Reason:    bank.DenyNotEnoughMoney,
						ReserveID: reserve.ID,
						AccountID: reserve.AccountID,
					}
				}
			}

			model := Reserve{
				ID:        reserve.ID,
				AccountID: reserve.AccountID,
				Amount:    reserve.Amount,
				Type:      reserve.Type.String(),
				CreatedAt: reserve.CreatedAt,
			}
			err := transaction.Create(&model).Error
			if isUniqueViolation(err) {
				return wrapStoreError(errorSubjectReserve, errorCodeSave, bank.ErrNotUniqueID)
			}
			if err != nil {
				return wrapStoreError(errorSubjectReserve, errorCodeSave, err)
			}
			return nil
		})
	})
}

// serializableTx runs fn under SERIALIZABLE on Postgres. SQLite transactions
// are serializable already and its driver rejects explicit isolation options.
func (store *Store) serializableTx(ctx context.Context, fn func(transaction *gorm.DB) error) error {
	if store.db.Dialector.Name() == dialectPostgres {
		return store.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}
	return store.db.WithContext(ctx).Transaction(fn)
}

func (store *Store) DeleteReserve(ctx context.Context, id string) (bool, error) {
	result := store.db.WithContext(ctx).Where("id = ?", id).Delete(&Reserve{})
	if result.Error != nil {
		return false, wrapStoreError(errorSubjectReserve, errorCodeDelete, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (store *Store) GetReserve(ctx context.Context, id string) (bank.Reserve, error) {
	var model Reserve
	err := store.db.WithContext(ctx).Where("id = ?", id).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return bank.Reserve{}, wrapStoreError(errorSubjectReserve, errorCodeGet, bank.ErrReserveNotFound)
		}
		return bank.Reserve{}, wrapStoreError(errorSubjectReserve, errorCodeGet, err)
	}
	return mapReserve(model)
}

func (store *Store) ReserveExists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).Model(&Reserve{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectReserve, errorCodeExists, err)
	}
	return count > 0, nil
}

// lockingQuery adds FOR UPDATE on engines that support row locks. SQLite
// serializes writers on its own.
func (store *Store) lockingQuery(transaction *gorm.DB) *gorm.DB {
	if store.db.Dialector.Name() == dialectPostgres {
		return transaction.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return transaction
}

func sumWithdrawReserves(transaction *gorm.DB, accountID int64) (decimal.Decimal, error) {
	var rows []Reserve
	err := transaction.
		Where("account_id = ? AND type = ?", accountID, bank.ReserveWithdraw.String()).
		Find(&rows).Error
	if err != nil {
		return decimal.Zero, wrapStoreError(errorSubjectReserve, errorCodeSumReserve, err)
	}
	reserved := decimal.Zero
	for _, row := range rows {
		reserved = reserved.Add(row.Amount)
	}
	return reserved, nil
}

func mapAccount(model Account) bank.Account {
	return bank.Account{
		ID:        model.ID,
		Amount:    model.Amount,
		Active:    model.Active,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func mapReserve(model Reserve) (bank.Reserve, error) {
	reserveType, err := bank.ParseReserveType(model.Type)
	if err != nil {
		return bank.Reserve{}, wrapStoreError(errorSubjectReserve, errorCodeGet, err)
	}
	return bank.Reserve{
		ID:        model.ID,
		AccountID: model.AccountID,
		Amount:    model.Amount,
		Type:      reserveType,
		CreatedAt: model.CreatedAt,
	}, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return bank.WrapError(errorOperationStore, subject, code, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}

func isSerializationFailure(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailureCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code() & 0xFF
		return code == sqliteBusyCode || code == sqliteLockedCode
	}
	return false
}
