package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/toolbox/internal/ir"
)

var errEmptyRecord = errors.New("empty record")

// marshalRecord converts a record to JSON for storage.
// HTML escaping is disabled so notes and names round-trip byte for byte.
func marshalRecord(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// unmarshalState parses a stored CartState. A JSON null or a record without a
// session id is malformed: every persisted cart has one.
func unmarshalState(data []byte) (*ir.CartState, error) {
	if isEmptyRecord(data) {
		return nil, fmt.Errorf("unmarshal cart: %w", errEmptyRecord)
	}
	var state ir.CartState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	if state.SessionID == "" {
		return nil, errors.New("unmarshal cart: missing session_id")
	}
	return &state, nil
}

// unmarshalMetadata parses stored CartMetadata.
func unmarshalMetadata(data []byte) (*ir.CartMetadata, error) {
	if isEmptyRecord(data) {
		return nil, fmt.Errorf("unmarshal metadata: %w", errEmptyRecord)
	}
	var meta ir.CartMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &meta, nil
}

// unmarshalHistory parses the stored history list.
func unmarshalHistory(data []byte) ([]ir.HistoryEntry, error) {
	if isEmptyRecord(data) {
		return []ir.HistoryEntry{}, nil
	}
	var entries []ir.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	if entries == nil {
		entries = []ir.HistoryEntry{}
	}
	return entries, nil
}

func isEmptyRecord(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
