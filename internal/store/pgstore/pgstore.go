package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/NikPlatonov/bank-account-api/pkg/bank"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	pgUniqueViolationCode      = "23505"
	pgSerializationFailureCode = "40001"

	errorOperationStore = "store"
	errorSubjectAccount = "account"
	errorSubjectReserve = "reserve"
	errorSubjectTx      = "transaction"
	errorCodeBegin      = "begin"
	errorCodeCommit     = "commit"
	errorCodeCreate     = "create"
	errorCodeApply      = "apply_amount"
	errorCodeClose      = "close"
	errorCodeGet        = "get"
	errorCodeExists     = "exists"
	errorCodeSave       = "save"
	errorCodeDelete     = "delete"
	errorCodeSumReserve = "sum_reserved"
	errorCodeInvalid    = "invalid"

	sqlInsertAccount = `
		insert into accounts(amount, active, created_at, updated_at)
		values($1::numeric, $2, $3, $4)
		returning id
	`

	sqlApplyAmount = `
		update accounts
		set amount = amount + $2::numeric, updated_at = $3
		where id = $1 and active = true
		returning id, amount::text, active, created_at, updated_at
	`

	sqlCloseAccount = `
		update accounts
		set active = false, updated_at = $2
		where id = $1 and active = true
	`

	sqlSelectActiveAccount = `
		select id, amount::text, active, created_at, updated_at
		from accounts
		where id = $1 and active = true
	`

	sqlActiveAccountExists = `
		select exists(select 1 from accounts where id = $1 and active = true)
	`

	sqlInsertReserve = `
		insert into reserves(id, account_id, amount, type, created_at)
		values($1, $2, $3::numeric, $4, $5)
	`

	sqlSelectReserve = `
		select id, account_id, amount::text, type, created_at
		from reserves
		where id = $1
	`

	sqlReserveExists = `
		select exists(select 1 from reserves where id = $1)
	`

	sqlDeleteReserve = `
		delete from reserves where id = $1
	`

	sqlSumWithdrawReserves = `
		select coalesce(sum(amount), 0)::text
		from reserves
		where account_id = $1 and type = 'WITHDRAW'
	`
)

// Schema creates the tables the store expects. Deployments that manage
// migrations elsewhere can skip EnsureSchema.
const Schema = `
create table if not exists accounts (
	id bigint generated always as identity primary key,
	amount numeric(32,10) not null default 0,
	active boolean not null default true,
	created_at timestamptz not null,
	updated_at timestamptz not null
);

create table if not exists reserves (
	id text primary key,
	account_id bigint not null references accounts(id),
	amount numeric(32,10) not null,
	type text not null,
	created_at timestamptz not null
);

create index if not exists idx_reserves_account_type on reserves(account_id, type);
`

// querier covers the query surface shared by pgxpool.Pool and pgx.Tx so the
// statement helpers run unchanged inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements bank.Store using a pgx connection pool (autocommit).
type Store struct {
	pool *pgxpool.Pool
}

// TxStore implements bank.Store for an active transaction.
type TxStore struct {
	tx pgx.Tx
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the accounts and reserves tables if missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return wrapStoreError(errorSubjectTx, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore bank.Store) error) error {
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTx, errorCodeBegin, err)
	}
	transactionStore := &TxStore{tx: tx}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTx, errorCodeCommit, err)
	}
	return nil
}

func (store *Store) CreateAccount(ctx context.Context, account bank.Account) (bank.Account, error) {
	return createAccount(ctx, store.pool, account)
}

func (store *Store) IncrAccount(ctx context.Context, id int64, amount decimal.Decimal, updatedAt time.Time) (bank.Account, error) {
	return applyToAmount(ctx, store.pool, id, amount, updatedAt)
}

func (store *Store) DecrAccount(ctx context.Context, id int64, amount decimal.Decimal, updatedAt time.Time) (bank.Account, error) {
	return applyToAmount(ctx, store.pool, id, amount.Neg(), updatedAt)
}

func (store *Store) CloseAccount(ctx context.Context, id int64, updatedAt time.Time) error {
	return closeAccount(ctx, store.pool, id, updatedAt)
}

func (store *Store) GetActiveAccount(ctx context.Context, id int64) (bank.Account, error) {
	return getActiveAccount(ctx, store.pool, id)
}

func (store *Store) ActiveAccountExists(ctx context.Context, id int64) (bool, error) {
	return activeAccountExists(ctx, store.pool, id)
}

// SaveReserveIfAllowed re-validates id uniqueness, account existence, and the
// withdrawal-admission invariant atomically with the insert under SERIALIZABLE
// isolation. Transactions aborted by serialization conflicts (SQLSTATE 40001)
// are retried from scratch.
func (store *Store) SaveReserveIfAllowed(ctx context.Context, reserve bank.Reserve) error {
	return bank.RetryOnConflict(ctx, isSerializationFailure, func(ctx context.Context) error {
		tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return wrapStoreError(errorSubjectTx, errorCodeBegin, err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := saveReserveIfAllowed(ctx, tx, reserve); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return wrapStoreError(errorSubjectTx, errorCodeCommit, err)
		}
		return nil
	})
}

func (store *Store) DeleteReserve(ctx context.Context, id string) (bool, error) {
	return deleteReserve(ctx, store.pool, id)
}

func (store *Store) GetReserve(ctx context.Context, id string) (bank.Reserve, error) {
	return getReserve(ctx, store.pool, id)
}

func (store *Store) ReserveExists(ctx context.Context, id string) (bool, error) {
	return reserveExists(ctx, store.pool, id)
}

func (store *TxStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore bank.Store) error) error {
	return fn(ctx, store)
}

func (store *TxStore) CreateAccount(ctx context.Context, account bank.Account) (bank.Account, error) {
	return createAccount(ctx, store.tx, account)
}

func (store *TxStore) IncrAccount(ctx context.Context, id int64, amount decimal.Decimal, updatedAt time.Time) (bank.Account, error) {
	return applyToAmount(ctx, store.tx, id, amount, updatedAt)
}

func (store *TxStore) DecrAccount(ctx context.Context, id int64, amount decimal.Decimal, updatedAt time.Time) (bank.Account, error) {
	return applyToAmount(ctx, store.tx, id, amount.Neg(), updatedAt)
}

func (store *TxStore) CloseAccount(ctx context.Context, id int64, updatedAt time.Time) error {
	return closeAccount(ctx, store.tx, id, updatedAt)
}

func (store *TxStore) GetActiveAccount(ctx context.Context, id int64) (bank.Account, error) {
	return getActiveAccount(ctx, store.tx, id)
}

func (store *TxStore) ActiveAccountExists(ctx context.Context, id int64) (bool, error) {
	return activeAccountExists(ctx, store.tx, id)
}

// SaveReserveIfAllowed runs the admission steps inside the enclosing
// transaction. Isolation level and conflict retry belong to the transaction
// owner here; admission with full serializable-retry guarantees goes through
// the top-level Store method.
func (store *TxStore) SaveReserveIfAllowed(ctx context.Context, reserve bank.Reserve) error {
	return saveReserveIfAllowed(ctx, store.tx, reserve)
}

func (store *TxStore) DeleteReserve(ctx context.Context, id string) (bool, error) {
	return deleteReserve(ctx, store.tx, id)
}

func (store *TxStore) GetReserve(ctx context.Context, id string) (bank.Reserve, error) {
	return getReserve(ctx, store.tx, id)
}

func (store *TxStore) ReserveExists(ctx context.Context, id string) (bool, error) {
	return reserveExists(ctx, store.tx, id)
}

func createAccount(ctx context.Context, q querier, account bank.Account) (bank.Account, error) {
	var id int64
	err := q.QueryRow(ctx, sqlInsertAccount,
		account.Amount.String(),
		account.Active,
		account.CreatedAt,
		account.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return bank.Account{}, wrapStoreError(errorSubjectAccount, errorCodeCreate, err)
	}
	account.ID = id
	return account, nil
}

func applyToAmount(ctx context.Context, q querier, id int64, delta decimal.Decimal, updatedAt time.Time) (bank.Account, error) {
	account, err := scanAccount(q.QueryRow(ctx, sqlApplyAmount, id, delta.String(), updatedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bank.Account{}, wrapStoreError(errorSubjectAccount, errorCodeApply, bank.ErrAccountNotFound)
		}
		return bank.Account{}, wrapStoreError(errorSubjectAccount, errorCodeApply, err)
	}
	return account, nil
}

func closeAccount(ctx context.Context, q querier, id int64, updatedAt time.Time) error {
	tag, err := q.Exec(ctx, sqlCloseAccount, id, updatedAt)
	if err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeClose, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeClose, bank.ErrAccountNotFound)
	}
	return nil
}

func getActiveAccount(ctx context.Context, q querier, id int64) (bank.Account, error) {
	account, err := scanAccount(q.QueryRow(ctx, sqlSelectActiveAccount, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bank.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, bank.ErrAccountNotFound)
		}
		return bank.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}
	return account, nil
}

func activeAccountExists(ctx context.Context, q querier, id int64) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, sqlActiveAccountExists, id).Scan(&exists); err != nil {
		return false, wrapStoreError(errorSubjectAccount, errorCodeExists, err)
	}
	return exists, nil
}

func saveReserveIfAllowed(ctx context.Context, q querier, reserve bank.Reserve) error {
	exists, err := reserveExists(ctx, q, reserve.ID)
	if err != nil {
		return err
	}
	if exists {
		return wrapStoreError(errorSubjectReserve, errorCodeSave, bank.ErrNotUniqueID)
	}

	account, err := getActiveAccount(ctx, q, reserve.AccountID)
	if err != nil {
		return err
	}

	if reserve.Type == bank.ReserveWithdraw {
		reserved, err := sumWithdrawReserves(ctx, q, reserve.AccountID)
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

	_, err = q.Exec(ctx, sqlInsertReserve,
		reserve.ID,
		reserve.AccountID,
		reserve.Amount.String(),
		reserve.Type.String(),
		reserve.CreatedAt,
	)
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectReserve, errorCodeSave, bank.ErrNotUniqueID)
	}
	if err != nil {
		return wrapStoreError(errorSubjectReserve, errorCodeSave, err)
	}
	return nil
}

func deleteReserve(ctx context.Context, q querier, id string) (bool, error) {
	tag, err := q.Exec(ctx, sqlDeleteReserve, id)
	if err != nil {
		return false, wrapStoreError(errorSubjectReserve, errorCodeDelete, err)
	}
	return tag.RowsAffected() == 1, nil
}

func getReserve(ctx context.Context, q querier, id string) (bank.Reserve, error) {
	var (
		reserveID   string
		accountID   int64
		amountValue string
		typeValue   string
		createdAt   time.Time
	)
	err := q.QueryRow(ctx, sqlSelectReserve, id).Scan(&reserveID, &accountID, &amountValue, &typeValue, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bank.Reserve{}, wrapStoreError(errorSubjectReserve, errorCodeGet, bank.ErrReserveNotFound)
		}
		return bank.Reserve{}, wrapStoreError(errorSubjectReserve, errorCodeGet, err)
	}
	amount, err := decimal.NewFromString(amountValue)
	if err != nil {
		return bank.Reserve{}, wrapStoreError(errorSubjectReserve, errorCodeInvalid, err)
	}
	reserveType, err := bank.ParseReserveType(typeValue)
	if err != nil {
		return bank.Reserve{}, wrapStoreError(errorSubjectReserve, errorCodeInvalid, err)
	}
	return bank.Reserve{
		ID:        reserveID,
		AccountID: accountID,
		Amount:    amount,
		Type:      reserveType,
		CreatedAt: createdAt,
	}, nil
}

func reserveExists(ctx context.Context, q querier, id string) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, sqlReserveExists, id).Scan(&exists); err != nil {
		return false, wrapStoreError(errorSubjectReserve, errorCodeExists, err)
	}
	return exists, nil
}

func sumWithdrawReserves(ctx context.Context, q querier, accountID int64) (decimal.Decimal, error) {
	var sumValue string
	if err := q.QueryRow(ctx, sqlSumWithdrawReserves, accountID).Scan(&sumValue); err != nil {
		return decimal.Zero, wrapStoreError(errorSubjectReserve, errorCodeSumReserve, err)
	}
	sum, err := decimal.NewFromString(sumValue)
	if err != nil {
		return decimal.Zero, wrapStoreError(errorSubjectReserve, errorCodeInvalid, err)
	}
	return sum, nil
}

func scanAccount(row pgx.Row) (bank.Account, error) {
	var (
		id          int64
		amountValue string
		active      bool
		createdAt   time.Time
		updatedAt   time.Time
	)
	if err := row.Scan(&id, &amountValue, &active, &createdAt, &updatedAt); err != nil {
		return bank.Account{}, err
	}
	amount, err := decimal.NewFromString(amountValue)
	if err != nil {
		return bank.Account{}, err
	}
	return bank.Account{
		ID:        id,
		Amount:    amount,
		Active:    active,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return bank.WrapError(errorOperationStore, subject, code, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	return false
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailureCode
	}
	return false
}
