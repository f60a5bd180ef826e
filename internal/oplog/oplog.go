// Package oplog adapts the manager's operation callbacks to structured
// zap logging.
package oplog

import (
	"context"

	"github.com/NikPlatonov/bank-account-api/pkg/bank"
	"go.uber.org/zap"
)

// Logger emits one structured log line per manager operation and per
// reservation notification. It implements both bank.OperationLogger and
// bank.Notifier.
type Logger struct {
	logger *zap.Logger
}

// New returns a Logger writing through the given zap logger.
func New(logger *zap.Logger) *Logger {
	return &Logger{logger: logger}
}

func (operationLogger *Logger) LogOperation(_ context.Context, entry bank.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("reserve_id", entry.ReserveID),
		zap.Int64("account_id", entry.AccountID),
		zap.String("type", entry.Type.String()),
		zap.String("amount", entry.Amount.String()),
		zap.String("status", entry.Status),
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		operationLogger.logger.Warn("operation failed", fields...)
		return
	}
	operationLogger.logger.Info("operation completed", fields...)
}

func (operationLogger *Logger) ReserveCreated(_ context.Context, reserve bank.Reserve) {
	operationLogger.logger.Info("reserve created",
		zap.String("reserve_id", reserve.ID),
		zap.Int64("account_id", reserve.AccountID),
		zap.String("type", reserve.Type.String()),
		zap.String("amount", reserve.Amount.String()),
	)
}

func (operationLogger *Logger) ReserveDenied(_ context.Context, event bank.DeniedReserveEvent) {
	operationLogger.logger.Warn("reserve denied",
		zap.String("reserve_id", event.Option.ID),
		zap.Int64("account_id", event.Option.AccountID),
		zap.String("type", event.Option.Type.String()),
		zap.String("amount", event.Option.Amount.String()),
		zap.String("reason", event.Reason.String()),
		zap.Int("code", event.Reason.Code()),
	)
}
