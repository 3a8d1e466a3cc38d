package engine

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/toolbox/internal/clock"
	"github.com/roach88/toolbox/internal/ir"
	"github.com/roach88/toolbox/internal/oracle"
	"github.com/roach88/toolbox/internal/store"
)

// Engine reconciles cart mutations against availability and persists them.
//
// Thread-safety model:
//   - mutations (AddItem, UpdateQuantity, RemoveItem, Clear, SetContext,
//     CompleteCheckout, Reconcile, RestoreFromHistory, ImportBackup) are
//     serialized by mu
//   - queries (LoadCart, ListHistory, ExportBackup) rely on the store's own
//     locking
//
// INVARIANTS:
//   - a cart holds at most one line per item id
//   - AddItem never leaves a line above the item's balance at call time
type Engine struct {
	store   *store.Store
	clock   clock.Clock
	policy  QuantityPolicy
	metrics *Metrics
	logger  *slog.Logger

	mu sync.Mutex
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithQuantityPolicy sets how UpdateQuantity treats balances.
//
// Default: TrustCaller
func WithQuantityPolicy(p QuantityPolicy) EngineOption {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithMetrics sets the collectors mutations are recorded on.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithClock sets the clock used for AddedAt stamps. It should match the
// store's clock.
func WithClock(c clock.Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine over s.
func New(s *store.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:   s,
		clock:   clock.System{},
		policy:  TrustCaller,
		metrics: NewMetrics(nil),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engine")
	return e
}

// Policy returns the configured quantity policy.
func (e *Engine) Policy() QuantityPolicy {
	return e.policy
}

// AddItem adds quantity units of item to the cart.
//
// The availability oracle runs first; a rejection is returned as a failure
// with the oracle's reason and nothing changes. If the item is already in
// the cart and the combined quantity would exceed the balance, only the
// remainder is added and the result carries a warning. If nothing remains,
// the add fails. A new line is stamped with the current time.
//
// The stored line's item snapshot is refreshed from item. Non-empty notes
// replace the line's notes.
func (e *Engine) AddItem(ctx context.Context, item *ir.CatalogItem, quantity int, notes string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.addItem(ctx, item, quantity, notes)
	e.metrics.record("add", r)
	return r
}

func (e *Engine) addItem(ctx context.Context, item *ir.CatalogItem, quantity int, notes string) Result {
	if quantity < 1 {
		return fail(MsgInvalidQuantity)
	}

	avail := oracle.Check(item, quantity)
	if !avail.Available {
		e.logger.Debug("add rejected", "item_id", itemID(item), "quantity", quantity, "reason", avail.Reason)
		return fail(avail.Reason)
	}

	state, err := e.store.Load(ctx)
	if err != nil {
		return e.storeFailure("add", err)
	}

	items := currentItems(state)
	notes = norm.NFC.String(notes)
	snapshot := copyItem(*item)

	var r Result
	if line, idx := lineIndex(items, item.ID); idx >= 0 {
		add := quantity
		if balance, known := item.BalanceValue(); known && line.Quantity+quantity > balance {
			add = balance - line.Quantity
			if add <= 0 {
				return fail(alreadyAtLimit(line.Quantity, balance))
			}
			r.Warning = clampWarning(add, balance)
		}
		line.Quantity += add
		line.Item = snapshot
		if notes != "" {
			line.Notes = notes
		}
		items[idx] = line
		r.Quantity = line.Quantity
	} else {
		items = append(items, ir.CartLine{
			ID:       item.ID,
			Item:     snapshot,
			Quantity: quantity,
			AddedAt:  e.clock.Now(),
			Notes:    notes,
		})
		r.Quantity = quantity
	}

	saved, err := e.store.Save(ctx, store.ItemsPatch(items))
	if err != nil {
		return e.storeFailure("add", err)
	}
	e.metrics.setItems(saved.TotalItems)

	r.Success = true
	if r.Warning != "" {
		e.logger.Info("partial add", "item_id", item.ID, "requested", quantity, "quantity", r.Quantity)
	}
	return r
}

// UpdateQuantity sets the quantity of line id.
//
// A quantity of zero or less removes the line. Otherwise the quantity is
// written as given under TrustCaller, or capped at the line's balance under
// ClampToBalance. Fails only when there is no cart; an unknown id is a no-op
// success.
func (e *Engine) UpdateQuantity(ctx context.Context, id string, quantity int) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	var r Result
	if quantity <= 0 {
		r = e.removeItem(ctx, id)
	} else {
		r = e.updateQuantity(ctx, id, quantity)
	}
	e.metrics.record("update", r)
	return r
}

func (e *Engine) updateQuantity(ctx context.Context, id string, quantity int) Result {
	state, err := e.store.Load(ctx)
	if err != nil {
		return e.storeFailure("update", err)
	}
	if state == nil {
		return fail(MsgNoCart)
	}

	items := currentItems(state)
	line, idx := lineIndex(items, id)
	if idx < 0 {
		return succeed(0)
	}

	var r Result
	if e.policy == ClampToBalance {
		avail := oracle.Check(&line.Item, quantity)
		if !avail.Available {
			if avail.MaxAvailable == nil || *avail.MaxAvailable <= 0 {
				return fail(avail.Reason)
			}
			quantity = *avail.MaxAvailable
			r.Warning = clampUpdateWarning(quantity)
		}
	}

	line.Quantity = quantity
	items[idx] = line

	saved, err := e.store.Save(ctx, store.ItemsPatch(items))
	if err != nil {
		return e.storeFailure("update", err)
	}
	e.metrics.setItems(saved.TotalItems)

	r.Success = true
	r.Quantity = quantity
	return r
}

// RemoveItem deletes line id. Removing a line that is not there, or from
// an absent cart, is a no-op success.
func (e *Engine) RemoveItem(ctx context.Context, id string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.removeItem(ctx, id)
	e.metrics.record("remove", r)
	return r
}

func (e *Engine) removeItem(ctx context.Context, id string) Result {
	state, err := e.store.Load(ctx)
	if err != nil {
		return e.storeFailure("remove", err)
	}
	if state == nil {
		return succeed(0)
	}

	items := currentItems(state)
	_, idx := lineIndex(items, id)
	if idx < 0 {
		return succeed(0)
	}
	items = append(items[:idx], items[idx+1:]...)

	saved, err := e.store.Save(ctx, store.ItemsPatch(items))
	if err != nil {
		return e.storeFailure("remove", err)
	}
	e.metrics.setItems(saved.TotalItems)
	return succeed(0)
}

// Clear empties the active cart, keeping its session. Clearing an absent
// cart is a no-op success.
func (e *Engine) Clear(ctx context.Context) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.clear(ctx)
	e.metrics.record("clear", r)
	return r
}

func (e *Engine) clear(ctx context.Context) Result {
	state, err := e.store.Load(ctx)
	if err != nil {
		return e.storeFailure("clear", err)
	}
	if state == nil {
		return succeed(0)
	}
	if _, err := e.store.Save(ctx, store.ItemsPatch([]ir.CartLine{})); err != nil {
		return e.storeFailure("clear", err)
	}
	e.metrics.setItems(0)
	return succeed(0)
}

// SetContext records who is building the cart and where. A cart is created
// if none exists.
func (e *Engine) SetContext(ctx context.Context, employeeID, location string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := succeed(0)
	saved, err := e.store.Save(ctx, store.Patch{EmployeeID: &employeeID, Location: &location})
	if err != nil {
		r = e.storeFailure("context", err)
	} else {
		e.metrics.setItems(saved.TotalItems)
	}
	e.metrics.record("context", r)
	return r
}

// CompleteCheckout ends the active cart after a successful checkout. The
// cart and its metadata are removed; history keeps the last snapshot.
func (e *Engine) CompleteCheckout(ctx context.Context) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := succeed(0)
	if err := e.store.Clear(ctx); err != nil {
		r = e.storeFailure("checkout", err)
	} else {
		e.metrics.setItems(0)
		e.logger.Info("checkout completed")
	}
	e.metrics.record("checkout", r)
	return r
}

// LoadCart returns the active cart, or nil when there is none or storage
// cannot be read.
func (e *Engine) LoadCart(ctx context.Context) *ir.CartState {
	state, err := e.store.Load(ctx)
	if err != nil {
		e.logger.Warn("load cart failed", "error", err)
		return nil
	}
	return state
}

// ListHistory returns past cart snapshots, most recent first. Storage
// failures yield an empty list.
func (e *Engine) ListHistory(ctx context.Context) []ir.HistoryEntry {
	history, err := e.store.History(ctx)
	if err != nil {
		e.logger.Warn("list history failed", "error", err)
		return []ir.HistoryEntry{}
	}
	return history
}

// RestoreFromHistory makes a history snapshot the active cart under a new
// session id. Reports false if the snapshot does not exist or cannot be
// written.
func (e *Engine) RestoreFromHistory(ctx context.Context, historySessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := succeed(0)
	state, err := e.store.Restore(ctx, historySessionID)
	if err != nil {
		r = e.storeFailure("restore", err)
	} else {
		e.metrics.setItems(state.TotalItems)
	}
	e.metrics.record("restore", r)
	return r.Success
}

// ExportBackup serializes the cart, metadata and history. The second value
// is false if storage cannot be read.
func (e *Engine) ExportBackup(ctx context.Context) (string, bool) {
	data, err := e.store.Export(ctx)
	if err != nil {
		e.logger.Warn("export backup failed", "error", err)
		return "", false
	}
	return data, true
}

// Subscribe registers fn for cart changes made through this engine or its
// store. See store.Store.Subscribe.
func (e *Engine) Subscribe(fn func(store.Event)) (cancel func()) {
	return e.store.Subscribe(fn)
}

// ImportBackup restores the current cart from an exported backup.
func (e *Engine) ImportBackup(ctx context.Context, data string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := succeed(0)
	state, err := e.store.Import(ctx, data)
	if err != nil {
		r = e.storeFailure("import", err)
	} else {
		e.metrics.setItems(state.TotalItems)
	}
	e.metrics.record("import", r)
	return r.Success
}

func (e *Engine) storeFailure(op string, err error) Result {
	e.logger.Warn("cart operation failed", "op", op, "error", err)
	return fail(failureMessage(err))
}

// currentItems returns a mutable copy of the cart's lines.
func currentItems(state *ir.CartState) []ir.CartLine {
	if state == nil {
		return []ir.CartLine{}
	}
	return state.Clone().Items
}

func lineIndex(items []ir.CartLine, id string) (ir.CartLine, int) {
	for i, line := range items {
		if line.ID == id {
			return line, i
		}
	}
	return ir.CartLine{}, -1
}

func copyItem(item ir.CatalogItem) ir.CatalogItem {
	if item.Balance != nil {
		item.Balance = ir.Balance(*item.Balance)
	}
	return item
}

func itemID(item *ir.CatalogItem) string {
	if item == nil {
		return ""
	}
	return item.ID
}
