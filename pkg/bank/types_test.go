package bank

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewReserveOptionValidation(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name        string
		id          string
		reserveType ReserveType
		amount      string
		wantErr     error
	}{
		{name: "valid deposit", id: "r-1", reserveType: ReserveDeposit, amount: "10.50"},
		{name: "valid withdraw", id: "r-2", reserveType: ReserveWithdraw, amount: "0.01"},
		{name: "zero amount passes construction", id: "r-3", reserveType: ReserveDeposit, amount: "0"},
		{name: "empty id", id: "   ", reserveType: ReserveDeposit, amount: "10", wantErr: ErrInvalidReserveID},
		{name: "unknown type", id: "r-4", reserveType: ReserveType("TRANSFER"), amount: "10", wantErr: ErrInvalidReserveType},
		{name: "negative amount", id: "r-5", reserveType: ReserveWithdraw, amount: "-1", wantErr: ErrInvalidAmount},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			amount, err := decimal.NewFromString(testCase.amount)
			if err != nil {
				test.Fatalf("decimal: %v", err)
			}
			option, err := NewReserveOption(testCase.id, 7, testCase.reserveType, amount)
			if testCase.wantErr != nil {
				if !errors.Is(err, testCase.wantErr) {
					test.Fatalf("expected %v, got %v", testCase.wantErr, err)
				}
				return
			}
			if err != nil {
				test.Fatalf("unexpected error: %v", err)
			}
			if option.AccountID != 7 {
				test.Fatalf("unexpected account id: %d", option.AccountID)
			}
		})
	}
}

func TestNewReserveOptionTrimsID(test *testing.T) {
	test.Parallel()
	option, err := NewReserveOption("  r-9  ", 1, ReserveDeposit, decimal.NewFromInt(1))
	if err != nil {
		test.Fatalf("option: %v", err)
	}
	if option.ID != "r-9" {
		test.Fatalf("expected trimmed id, got %q", option.ID)
	}
}

func TestParseReserveType(test *testing.T) {
	test.Parallel()
	if parsed, err := ParseReserveType(" deposit "); err != nil || parsed != ReserveDeposit {
		test.Fatalf("expected DEPOSIT, got %v %v", parsed, err)
	}
	if parsed, err := ParseReserveType("WITHDRAW"); err != nil || parsed != ReserveWithdraw {
		test.Fatalf("expected WITHDRAW, got %v %v", parsed, err)
	}
	if _, err := ParseReserveType("refund"); !errors.Is(err, ErrInvalidReserveType) {
		test.Fatalf("expected ErrInvalidReserveType, got %v", err)
	}
}
