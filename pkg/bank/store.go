package bank

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AccountStore persists account rows. Incr, Decr, and Close verify
// existence and the active flag atomically with the mutation.
type AccountStore interface {
	CreateAccount(ctx context.Context, account Account) (Account, error)
	IncrAccount(ctx context.Context, id int64, amount decimal.Decimal, updatedAt time.Time) (Account, error)
	DecrAccount(ctx context.Context, id int64, amount decimal.Decimal, updatedAt time.Time) (Account, error)
	CloseAccount(ctx context.Context, id int64, updatedAt time.Time) error
	GetActiveAccount(ctx context.Context, id int64) (Account, error)
	ActiveAccountExists(ctx context.Context, id int64) (bool, error)
}

// ReserveStore persists reservation rows and owns the withdrawal-admission
// invariant: SaveReserveIfAllowed re-validates id uniqueness, account
// existence, and sufficient funds atomically with the insert, retrying
// internally on serialization conflicts.
type ReserveStore interface {
	SaveReserveIfAllowed(ctx context.Context, reserve Reserve) error
	DeleteReserve(ctx context.Context, id string) (bool, error)
	GetReserve(ctx context.Context, id string) (Reserve, error)
	ReserveExists(ctx context.Context, id string) (bool, error)
}

// Store is the persistence contract used by the Manager. WithTx runs fn in
// one atomic unit of work; the Store handed to fn is scoped to it.
type Store interface {
	AccountStore
	ReserveStore
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
}
