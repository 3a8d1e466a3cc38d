package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/toolbox/internal/store"
)

// Failure messages surfaced in Result.Error.
const (
	MsgNoCart             = "No active cart"
	MsgInvalidQuantity    = "Quantity must be at least 1"
	MsgStorageUnavailable = "Cart storage is unavailable"
	MsgInvalidCart        = "Cart failed validation"
	MsgHistoryNotFound    = "History entry not found"
	MsgInvalidBackup      = "Backup is invalid"
	MsgLookupFailed       = "Inventory lookup failed"
)

// failureMessage maps a store error to the message shown to the caller.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrStorageUnavailable):
		return MsgStorageUnavailable
	case errors.Is(err, store.ErrInvalidState):
		return MsgInvalidCart
	case errors.Is(err, store.ErrHistoryNotFound):
		return MsgHistoryNotFound
	case errors.Is(err, store.ErrInvalidBackup):
		return MsgInvalidBackup
	default:
		return err.Error()
	}
}

func clampWarning(added, max int) string {
	return fmt.Sprintf("Only %d added (maximum available: %d)", added, max)
}

func alreadyAtLimit(inCart, max int) string {
	return fmt.Sprintf("Only %d available and %d already in cart", max, inCart)
}

func clampUpdateWarning(max int) string {
	return fmt.Sprintf("Quantity limited to %d available", max)
}
