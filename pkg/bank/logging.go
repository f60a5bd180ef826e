package bank

import (
	"context"

	"github.com/shopspring/decimal"
)

// ManagerOption configures a Manager instance.
type ManagerOption func(*Manager)

// OperationLogger records domain-level events emitted by Manager operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing manager operation.
type OperationLog struct {
	Operation string
	ReserveID string
	AccountID int64
	Type      ReserveType
	Amount    decimal.Decimal
	Status    string
	Error     error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ManagerOption {
	return func(manager *Manager) {
		manager.logger = logger
	}
}

// WithNotifier wires the outbound notification surface.
func WithNotifier(notifier Notifier) ManagerOption {
	return func(manager *Manager) {
		manager.notifier = notifier
	}
}
