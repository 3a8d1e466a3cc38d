package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/toolbox/internal/ir"
)

// Export serializes the current cart, metadata and history into a backup
// bundle. The bundle carries a checksum so Import can reject edited copies.
func (s *Store) Export(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.unlock()

	current, err := s.loadLocked(ctx, false)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	meta, err := s.readMetadata(ctx)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	history, err := s.readHistory(ctx)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}

	bundle := ir.Bundle{
		Version:    ir.SchemaVersion,
		ExportedAt: s.clock.Now(),
		Current:    current,
		Metadata:   meta,
		History:    history,
	}
	sum, err := ir.BundleChecksum(bundle)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	bundle.Checksum = sum

	data, err := marshalRecord(bundle)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	return string(data), nil
}

// Import restores the current cart from a backup bundle.
//
// Only the bundle's current cart is applied, through the same path as Save:
// it is merged over the active cart (keeping its session id if there is one),
// totals are recomputed and the result is validated. History and metadata in
// the bundle are ignored. A bundle without a current cart, with a checksum
// mismatch, or that is not valid JSON returns ErrInvalidBackup.
func (s *Store) Import(ctx context.Context, data string) (*ir.CartState, error) {
	bundle, err := decodeBundle(data)
	if err != nil {
		return nil, err
	}

	items := bundle.Current.Items
	if items == nil {
		items = []ir.CartLine{}
	}
	employee := bundle.Current.EmployeeID
	location := bundle.Current.Location

	s.mu.Lock()
	state, err := s.saveLocked(ctx, Patch{Items: &items, EmployeeID: &employee, Location: &location}, false)
	if err == nil {
		s.queue(EventImported, state)
	}
	s.unlock()
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	return state.Clone(), nil
}

func decodeBundle(data string) (*ir.Bundle, error) {
	var bundle ir.Bundle
	if err := json.Unmarshal([]byte(data), &bundle); err != nil {
		return nil, fmt.Errorf("import: %w: %w", ErrInvalidBackup, err)
	}

	if bundle.Checksum != "" {
		sum, err := ir.BundleChecksum(bundle)
		if err != nil {
			return nil, fmt.Errorf("import: %w: %w", ErrInvalidBackup, err)
		}
		if sum != bundle.Checksum {
			return nil, fmt.Errorf("import: %w: checksum mismatch", ErrInvalidBackup)
		}
	}

	if bundle.Current == nil {
		return nil, fmt.Errorf("import: %w: bundle has no current cart", ErrInvalidBackup)
	}
	return &bundle, nil
}
