package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/toolbox/internal/clock"
	"github.com/roach88/toolbox/internal/ir"
	"github.com/roach88/toolbox/internal/kv"
)

// Defaults for a new Store.
const (
	DefaultTTL          = 30 * 24 * time.Hour
	DefaultHistoryLimit = 10
)

// Storage keys, relative to the store's key prefix.
const (
	keyActive   = "cart.active"
	keyMetadata = "cart.metadata"
	keyHistory  = "cart.history"
)

// Store is the persistent cart store for one device.
//
// It is constructed once per device session and injected into the engine;
// there is no package-level state. All methods are safe for concurrent use
// and are applied in a single total order.
type Store struct {
	backend      kv.Backend
	clock        clock.Clock
	ids          SessionIDGenerator
	ttl          time.Duration
	historyLimit int
	device       ir.DeviceInfo
	prefix       string
	logger       *slog.Logger

	mu      sync.Mutex
	pending []Event // guarded by mu, delivered by unlock
	subs    subscribers
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for timestamps and TTL checks.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithSessionIDs sets the session id generator.
func WithSessionIDs(g SessionIDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// WithTTL sets how long an untouched cart survives.
// Non-positive values keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithHistoryLimit sets the history ring capacity.
// Non-positive values keep the default.
func WithHistoryLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithDeviceInfo sets the device info written into metadata.
func WithDeviceInfo(d ir.DeviceInfo) Option {
	return func(s *Store) {
		s.device = d
	}
}

// WithKeyPrefix namespaces the store's keys, so several stores (e.g. one per
// employee profile) can share a backend.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithLogger sets the logger for anomalies (corrupt records, storage errors).
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Store on top of backend.
func New(backend kv.Backend, opts ...Option) *Store {
	s := &Store{
		backend:      backend,
		clock:        clock.System{},
		ids:          RandomSessionIDs{},
		ttl:          DefaultTTL,
		historyLimit: DefaultHistoryLimit,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "store")
	return s
}

// TTL returns the configured time-to-live.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// HistoryLimit returns the configured history capacity.
func (s *Store) HistoryLimit() int {
	return s.historyLimit
}

// Patch is a partial cart update applied by Save. Nil fields keep the
// current value.
type Patch struct {
	Items      *[]ir.CartLine
	EmployeeID *string
	Location   *string
}

// ItemsPatch returns a Patch replacing only the cart lines.
func ItemsPatch(items []ir.CartLine) Patch {
	return Patch{Items: &items}
}

// Load returns the active cart, or nil if there is none.
//
// A cart older than the TTL is deleted together with its metadata and nil is
// returned. A malformed record is logged and treated as absent. On success
// the metadata's last_accessed_at is refreshed.
//
// The only error is ErrStorageUnavailable when the backend cannot be read.
func (s *Store) Load(ctx context.Context) (*ir.CartState, error) {
	s.mu.Lock()
	state, err := s.loadLocked(ctx, true)
	s.unlock()
	return state, err
}

// Save merges patch over the active cart and persists the result.
//
// The session id is preserved if a cart exists; otherwise a new one is
// generated. Totals are recomputed, last_updated is stamped, metadata is
// written (keeping created_at within a session) and a snapshot is prepended
// to history.
//
// Returns ErrStorageUnavailable if the backend rejects writes and
// ErrInvalidState if the merged cart fails validation. On error no part of
// the patch is stored.
func (s *Store) Save(ctx context.Context, patch Patch) (*ir.CartState, error) {
	s.mu.Lock()
	state, err := s.saveLocked(ctx, patch, false)
	if err == nil {
		s.queue(EventSaved, state)
	}
	s.unlock()
	if err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

// Refresh replaces the active cart's lines without treating the change as a
// user edit: the session, last_updated, metadata and history are untouched.
// It is for system-driven updates such as refreshing item snapshots from the
// catalog. Returns nil if there is no active cart.
func (s *Store) Refresh(ctx context.Context, items []ir.CartLine) (*ir.CartState, error) {
	s.mu.Lock()
	state, err := s.refreshLocked(ctx, items)
	if err == nil && state != nil {
		s.queue(EventRefreshed, state)
	}
	s.unlock()
	if err != nil || state == nil {
		return nil, err
	}
	return state.Clone(), nil
}

// Clear removes the active cart and its metadata. History is retained.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	err := s.clearLocked(ctx)
	if err == nil {
		s.queue(EventCleared, nil)
	}
	s.unlock()
	return err
}

// Metadata returns the active cart's metadata, or nil if there is none.
func (s *Store) Metadata(ctx context.Context) (*ir.CartMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readMetadata(ctx)
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

// queue records an event for delivery once s.mu is released.
// s.mu must be held.
func (s *Store) queue(kind EventKind, state *ir.CartState) {
	s.pending = append(s.pending, Event{Kind: kind, State: state})
}

// unlock releases s.mu and then notifies subscribers of the events queued
// while it was held, in order.
func (s *Store) unlock() {
	events := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, ev := range events {
		s.subs.notify(ev)
	}
}

// loadLocked reads the active cart. A stale cart is deleted and an
// EventExpired is queued. touch refreshes metadata.last_accessed_at.
func (s *Store) loadLocked(ctx context.Context, touch bool) (*ir.CartState, error) {
	data, err := s.backend.Get(ctx, s.key(keyActive))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logger.Warn("failed to read cart", "error", err)
		return nil, fmt.Errorf("load cart: %w: %w", ErrStorageUnavailable, err)
	}

	state, err := unmarshalState(data)
	if err != nil {
		s.logger.Warn("discarding malformed cart record", "error", err)
		return nil, nil
	}

	now := s.clock.Now()
	if now.Sub(state.LastUpdated) > s.ttl {
		s.logger.Info("cart expired",
			"session_id", state.SessionID,
			"last_updated", state.LastUpdated,
			"ttl", s.ttl,
		)
		if err := s.deleteActive(ctx); err != nil {
			s.logger.Warn("failed to delete expired cart", "error", err)
			return nil, nil
		}
		s.queue(EventExpired, nil)
		return nil, nil
	}

	if touch {
		s.touchMetadata(ctx, state, now)
	}
	return state, nil
}

// touchMetadata refreshes last_accessed_at. Failures are logged only: a read
// must not fail because bookkeeping could not be written.
func (s *Store) touchMetadata(ctx context.Context, state *ir.CartState, now time.Time) {
	meta, err := s.readMetadata(ctx)
	if err != nil {
		s.logger.Warn("failed to read cart metadata", "error", err)
		return
	}
	if meta == nil || meta.SessionID != state.SessionID {
		meta = s.newMetadata(state.SessionID, state.LastUpdated)
	}
	meta.LastAccessedAt = now

	if err := s.writeRecord(ctx, keyMetadata, meta); err != nil {
		s.logger.Warn("failed to refresh cart metadata", "error", err)
	}
}

func (s *Store) saveLocked(ctx context.Context, patch Patch, freshSession bool) (*ir.CartState, error) {
	if err := s.probe(ctx); err != nil {
		return nil, err
	}

	current, err := s.loadLocked(ctx, false)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if next == nil {
		next = &ir.CartState{Items: []ir.CartLine{}}
	}
	if patch.Items != nil {
		next.Items = (&ir.CartState{Items: *patch.Items}).Clone().Items
	}
	if patch.EmployeeID != nil {
		next.EmployeeID = *patch.EmployeeID
	}
	if patch.Location != nil {
		next.Location = *patch.Location
	}

	now := s.clock.Now()
	if freshSession || next.SessionID == "" {
		next.SessionID = s.ids.Generate(now)
	}
	next.LastUpdated = now
	next.Recompute()

	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("save cart: %w: %w", ErrInvalidState, err)
	}

	meta, err := s.readMetadata(ctx)
	if err != nil || meta == nil || meta.SessionID != next.SessionID {
		meta = s.newMetadata(next.SessionID, now)
	}
	meta.Version = ir.SchemaVersion
	meta.DeviceInfo = s.device
	meta.LastAccessedAt = now

	// Cart and metadata land together or not at all.
	if err := s.writeRecords(ctx, record{keyActive, next}, record{keyMetadata, meta}); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	if err := s.appendHistory(ctx, next, now); err != nil {
		// The cart itself is durable; a lost snapshot only affects recovery.
		s.logger.Warn("failed to append cart history", "session_id", next.SessionID, "error", err)
	}

	s.logger.Debug("cart saved",
		"session_id", next.SessionID,
		"lines", len(next.Items),
		"total_items", next.TotalItems,
	)
	return next, nil
}

func (s *Store) refreshLocked(ctx context.Context, items []ir.CartLine) (*ir.CartState, error) {
	if err := s.probe(ctx); err != nil {
		return nil, err
	}

	current, err := s.loadLocked(ctx, false)
	if err != nil || current == nil {
		return nil, err
	}

	next := current.Clone()
	next.Items = (&ir.CartState{Items: items}).Clone().Items
	next.Recompute()
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("refresh cart: %w: %w", ErrInvalidState, err)
	}
	if err := s.writeRecords(ctx, record{keyActive, next}); err != nil {
		return nil, fmt.Errorf("refresh cart: %w", err)
	}

	s.logger.Debug("cart refreshed", "session_id", next.SessionID, "lines", len(next.Items))
	return next, nil
}

func (s *Store) clearLocked(ctx context.Context) error {
	if err := s.probe(ctx); err != nil {
		return err
	}
	if err := s.deleteActive(ctx); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *Store) deleteActive(ctx context.Context) error {
	err := s.backend.Apply(ctx,
		kv.DeleteOp(s.key(keyActive)),
		kv.DeleteOp(s.key(keyMetadata)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) probe(ctx context.Context) error {
	if err := s.backend.Probe(ctx); err != nil {
		s.logger.Warn("cart storage unavailable", "error", err)
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) newMetadata(sessionID string, createdAt time.Time) *ir.CartMetadata {
	return &ir.CartMetadata{
		Version:        ir.SchemaVersion,
		SessionID:      sessionID,
		CreatedAt:      createdAt,
		LastAccessedAt: createdAt,
		DeviceInfo:     s.device,
	}
}

// readMetadata returns nil for absent or malformed metadata.
func (s *Store) readMetadata(ctx context.Context) (*ir.CartMetadata, error) {
	data, err := s.backend.Get(ctx, s.key(keyMetadata))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w: %w", ErrStorageUnavailable, err)
	}
	meta, err := unmarshalMetadata(data)
	if err != nil {
		s.logger.Warn("discarding malformed cart metadata", "error", err)
		return nil, nil
	}
	return meta, nil
}

func (s *Store) writeRecord(ctx context.Context, name string, v any) error {
	data, err := marshalRecord(v)
	if err != nil {
		return err
	}
	if err := s.backend.Put(ctx, s.key(name), data); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// record is one named value for writeRecords.
type record struct {
	name  string
	value any
}

// writeRecords stores every record in one atomic batch.
func (s *Store) writeRecords(ctx context.Context, records ...record) error {
	ops := make([]kv.Op, 0, len(records))
	for _, r := range records {
		data, err := marshalRecord(r.value)
		if err != nil {
			return err
		}
		ops = append(ops, kv.PutOp(s.key(r.name), data))
	}
	if err := s.backend.Apply(ctx, ops...); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}
