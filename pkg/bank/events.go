package bank

import "context"

// DeniedReserveEvent carries the original request together with the deny
// reason so downstream consumers can match on the stable code.
type DeniedReserveEvent struct {
	Option ReserveOption
	Reason DenyReason
}

// Notifier is the outbound notification surface: a created reservation is
// emitted on success, a denial event on admission failure.
type Notifier interface {
	ReserveCreated(ctx context.Context, reserve Reserve)
	ReserveDenied(ctx context.Context, event DeniedReserveEvent)
}
