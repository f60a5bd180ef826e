package bank

import (
	"context"
	"fmt"
)

// ReserveService is the thin reservation lifecycle over a ReserveStore.
type ReserveService struct {
	store ReserveStore
}

// NewReserveService wires a ReserveService.
func NewReserveService(store ReserveStore) (*ReserveService, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: reserve store dependency is nil", ErrInvalidManagerConfig)
	}
	return &ReserveService{store: store}, nil
}

// SaveIfAllowed rejects a zero amount with a structured denial, then
// delegates to the admission-checked store insert.
func (service *ReserveService) SaveIfAllowed(ctx context.Context, reserve Reserve) error {
	if reserve.Amount.IsZero() {
		return &DeniedReserveError{
			Reason:    DenyEmptyReserve,
			ReserveID: reserve.ID,
			AccountID: reserve.AccountID,
		}
	}
	return service.store.SaveReserveIfAllowed(ctx, reserve)
}

// Delete removes a reservation row and reports whether one was removed.
// False means the reservation was already resolved.
func (service *ReserveService) Delete(ctx context.Context, id string) (bool, error) {
	return service.store.DeleteReserve(ctx, id)
}

// Get returns a reservation by id.
func (service *ReserveService) Get(ctx context.Context, id string) (Reserve, error) {
	return service.store.GetReserve(ctx, id)
}

// Exists reports whether a reservation with the id exists.
func (service *ReserveService) Exists(ctx context.Context, id string) (bool, error) {
	return service.store.ReserveExists(ctx, id)
}
