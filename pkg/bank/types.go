package bank

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReserveType distinguishes the direction of a reservation.
type ReserveType string

const (
	ReserveDeposit  ReserveType = "DEPOSIT"
	ReserveWithdraw ReserveType = "WITHDRAW"
)

// ParseReserveType validates a raw reserve type value.
func ParseReserveType(raw string) (ReserveType, error) {
	switch ReserveType(strings.ToUpper(strings.TrimSpace(raw))) {
	case ReserveDeposit:
		return ReserveDeposit, nil
	case ReserveWithdraw:
		return ReserveWithdraw, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidReserveType, raw)
	}
}

// String returns the wire name of the type.
func (reserveType ReserveType) String() string {
	return string(reserveType)
}

// Account is the durable balance record. The balance only changes through
// committed reservations; it never goes negative for withdrawals admitted
// against it.
type Account struct {
	ID        int64
	Amount    decimal.Decimal
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reserve is an unresolved claim against an account. Its id is supplied by
// the caller, which makes retries of the create call idempotent. The record
// is deleted exactly once, by commit or by rollback.
type Reserve struct {
	ID        string
	AccountID int64
	Amount    decimal.Decimal
	Type      ReserveType
	CreatedAt time.Time
}

// ReserveOption carries a validated reservation request.
type ReserveOption struct {
	ID        string
	AccountID int64
	Type      ReserveType
	Amount    decimal.Decimal
}

// NewReserveOption validates the request fields. A zero amount passes
// construction: it is denied later with a structured deny reason so the
// caller can tell validation from admission.
func NewReserveOption(id string, accountID int64, reserveType ReserveType, amount decimal.Decimal) (ReserveOption, error) {
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return ReserveOption{}, fmt.Errorf("%w: empty value", ErrInvalidReserveID)
	}
	if _, err := ParseReserveType(string(reserveType)); err != nil {
		return ReserveOption{}, err
	}
	if amount.IsNegative() {
		return ReserveOption{}, fmt.Errorf("%w: must not be negative", ErrInvalidAmount)
	}
	return ReserveOption{
		ID:        trimmedID,
		AccountID: accountID,
		Type:      reserveType,
		Amount:    amount,
	}, nil
}
