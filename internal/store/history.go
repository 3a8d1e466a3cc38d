package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/toolbox/internal/ir"
	"github.com/roach88/toolbox/internal/kv"
)

// History returns the stored snapshots, most recent first.
// A malformed history record is logged and reported as empty.
func (s *Store) History(ctx context.Context) ([]ir.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readHistory(ctx)
}

// Restore makes a history snapshot the active cart again.
//
// The restored cart gets a freshly generated session id (never the
// snapshot's) and last_updated = now. The previous active cart, if any, is
// replaced; it is still recoverable from history because every save
// snapshotted it.
//
// Returns ErrHistoryNotFound if no snapshot has that session id.
func (s *Store) Restore(ctx context.Context, historySessionID string) (*ir.CartState, error) {
	s.mu.Lock()
	state, err := s.restoreLocked(ctx, historySessionID)
	if err == nil {
		s.queue(EventRestored, state)
	}
	s.unlock()
	if err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

func (s *Store) restoreLocked(ctx context.Context, historySessionID string) (*ir.CartState, error) {
	history, err := s.readHistory(ctx)
	if err != nil {
		return nil, err
	}

	for _, entry := range history {
		if entry.SessionID != historySessionID {
			continue
		}
		items := entry.Items
		employee := entry.EmployeeID
		location := entry.Location
		s.logger.Info("restoring cart from history", "history_session_id", historySessionID)
		return s.saveLocked(ctx, Patch{Items: &items, EmployeeID: &employee, Location: &location}, true)
	}

	return nil, fmt.Errorf("restore %q: %w", historySessionID, ErrHistoryNotFound)
}

func (s *Store) readHistory(ctx context.Context) ([]ir.HistoryEntry, error) {
	data, err := s.backend.Get(ctx, s.key(keyHistory))
	if errors.Is(err, kv.ErrNotFound) {
		return []ir.HistoryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w: %w", ErrStorageUnavailable, err)
	}

	entries, err := unmarshalHistory(data)
	if err != nil {
		s.logger.Warn("discarding malformed cart history", "error", err)
		return []ir.HistoryEntry{}, nil
	}
	return entries, nil
}

// appendHistory prepends a snapshot of state and drops entries beyond the limit.
func (s *Store) appendHistory(ctx context.Context, state *ir.CartState, now time.Time) error {
	history, err := s.readHistory(ctx)
	if err != nil {
		return err
	}

	entry := ir.HistoryEntry{
		CartState:       *state.Clone(),
		OriginSessionID: state.SessionID,
		ArchivedAt:      now,
	}
	entry.SessionID = uniqueHistoryID(history, state.SessionID, now)

	next := make([]ir.HistoryEntry, 0, len(history)+1)
	next = append(next, entry)
	next = append(next, history...)
	if len(next) > s.historyLimit {
		next = next[:s.historyLimit]
	}

	return s.writeRecord(ctx, keyHistory, next)
}

// uniqueHistoryID derives "history_<origin>_<unix-millis>", adding a counter
// suffix when several snapshots of one session land in the same millisecond.
func uniqueHistoryID(history []ir.HistoryEntry, origin string, now time.Time) string {
	base := fmt.Sprintf("%s%s_%d", ir.HistoryPrefix, origin, now.UnixMilli())

	taken := make(map[string]struct{}, len(history))
	for _, e := range history {
		taken[e.SessionID] = struct{}{}
	}
	if _, ok := taken[base]; !ok {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", base, n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
