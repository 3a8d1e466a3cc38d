package store

import "errors"

var (
	// ErrStorageUnavailable is returned when the backend cannot be written.
	ErrStorageUnavailable = errors.New("cart storage unavailable")

	// ErrInvalidState is returned when a save would persist an invalid cart.
	ErrInvalidState = errors.New("invalid cart state")

	// ErrHistoryNotFound is returned by Restore for an unknown history id.
	ErrHistoryNotFound = errors.New("history entry not found")

	// ErrInvalidBackup is returned by Import for unreadable or tampered bundles.
	ErrInvalidBackup = errors.New("invalid backup")
)
