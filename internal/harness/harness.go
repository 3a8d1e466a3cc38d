package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/toolbox/internal/catalog"
	"github.com/roach88/toolbox/internal/config"
	"github.com/roach88/toolbox/internal/engine"
	"github.com/roach88/toolbox/internal/ir"
	"github.com/roach88/toolbox/internal/kv"
	"github.com/roach88/toolbox/internal/store"
	"github.com/roach88/toolbox/internal/testutil"
)

// Harness executes scenario steps against one engine.
type Harness struct {
	engine  *engine.Engine
	clock   *testutil.FixedClock
	catalog map[string]ir.CatalogItem
	order   []string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh in-memory backend for isolation.
//
// Execution flow:
// 1. Create fresh backend, store and engine
// 2. Execute steps, recording a trace event and checking expectations
// 3. Capture the final cart and check the final clause
func Run(scenario *Scenario) (*Result, error) {
	policy, err := engine.ParseQuantityPolicy(scenario.Policy)
	if err != nil {
		return nil, err
	}

	// Suppress logs in scenario runs
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := testutil.NewFixedClock(testutil.DefaultTestTime)
	st := store.New(kv.NewMemory(),
		store.WithClock(clk),
		store.WithSessionIDs(testutil.NewSequentialIDs("session")),
		store.WithLogger(logger),
	)

	h := &Harness{
		engine: engine.New(st,
			engine.WithClock(clk),
			engine.WithQuantityPolicy(policy),
			engine.WithLogger(logger),
		),
		clock:   clk,
		catalog: make(map[string]ir.CatalogItem, len(scenario.Catalog)),
	}
	for _, item := range scenario.Catalog {
		h.setItem(item)
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		event, err := h.execute(ctx, i+1, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
		result.Trace = append(result.Trace, event)

		for _, msg := range checkExpect(step.Expect, event) {
			result.AddError(fmt.Sprintf("step %d (%s): %s", i+1, step.Op, msg))
		}
	}

	result.Final = h.finalState(ctx)
	for _, msg := range checkFinal(scenario.Final, result.Final) {
		result.AddError("final: " + msg)
	}
	return result, nil
}

// execute runs one step and snapshots the cart afterwards.
func (h *Harness) execute(ctx context.Context, n int, step Step) (TraceEvent, error) {
	event := TraceEvent{Step: n, Op: step.Op, Item: step.Item}

	var r engine.Result
	switch step.Op {
	case OpAdd:
		qty := 1
		if step.Quantity != nil {
			qty = *step.Quantity
		}
		event.Requested = qty
		r = h.engine.AddItem(ctx, h.item(step.Item), qty, step.Notes)

	case OpUpdate:
		event.Requested = *step.Quantity
		r = h.engine.UpdateQuantity(ctx, step.Item, *step.Quantity)

	case OpRemove:
		r = h.engine.RemoveItem(ctx, step.Item)

	case OpClear:
		r = h.engine.Clear(ctx)

	case OpCheckout:
		r = h.engine.CompleteCheckout(ctx)

	case OpContext:
		r = h.engine.SetContext(ctx, step.EmployeeID, step.Location)

	case OpSetStock:
		item := h.catalog[step.Item]
		item.ID = step.Item
		item.Balance = step.Balance
		if step.Status != "" {
			item.Status = ir.ItemStatus(step.Status)
		}
		h.setItem(item)
		r = engine.Result{Success: true}

	case OpReconcile:
		report := h.engine.Reconcile(ctx, h.lookup())
		r = report.Result
		if len(report.OverBalance) > 0 {
			ids := make([]string, len(report.OverBalance))
			for i, issue := range report.OverBalance {
				ids[i] = issue.ID
			}
			r.Warning = "over balance: " + strings.Join(ids, ",")
		}

	case OpRestore:
		history := h.engine.ListHistory(ctx)
		if step.History >= len(history) {
			r = engine.Result{Error: engine.MsgHistoryNotFound}
			break
		}
		r.Success = h.engine.RestoreFromHistory(ctx, history[step.History].SessionID)
		if !r.Success {
			r.Error = engine.MsgHistoryNotFound
		}

	case OpExportImport:
		r = h.exportImport(ctx)

	case OpAdvance:
		d, err := config.ParseDuration(step.Duration)
		if err != nil {
			return event, err
		}
		h.clock.Advance(d)
		r = engine.Result{Success: true}

	case OpLoad:
		r = engine.Result{Success: true}

	default:
		return event, fmt.Errorf("unknown op %q", step.Op)
	}

	event.Success = r.Success
	event.Error = r.Error
	event.Warning = r.Warning
	event.Quantity = r.Quantity

	if cart := h.engine.LoadCart(ctx); cart != nil {
		event.TotalItems = cart.TotalItems
		event.Lines = len(cart.Items)
		event.SessionID = cart.SessionID
	}
	return event, nil
}

// exportImport round-trips the cart through a backup, ending the session in
// between so the import lands on an empty store.
func (h *Harness) exportImport(ctx context.Context) engine.Result {
	data, ok := h.engine.ExportBackup(ctx)
	if !ok {
		return engine.Result{Error: engine.MsgStorageUnavailable}
	}
	if r := h.engine.CompleteCheckout(ctx); !r.Success {
		return r
	}
	if !h.engine.ImportBackup(ctx, data) {
		return engine.Result{Error: engine.MsgInvalidBackup}
	}
	return engine.Result{Success: true}
}

func (h *Harness) finalState(ctx context.Context) FinalState {
	final := FinalState{
		Absent:     true,
		Lines:      map[string]int{},
		HistoryLen: len(h.engine.ListHistory(ctx)),
	}
	cart := h.engine.LoadCart(ctx)
	if cart == nil {
		return final
	}
	final.Absent = false
	final.SessionID = cart.SessionID
	final.TotalItems = cart.TotalItems
	for _, line := range cart.Items {
		final.Lines[line.ID] = line.Quantity
	}
	return final
}

// item returns the catalog entry for id, or nil if the catalog lacks it.
func (h *Harness) item(id string) *ir.CatalogItem {
	item, ok := h.catalog[id]
	if !ok {
		return nil
	}
	return &item
}

func (h *Harness) setItem(item ir.CatalogItem) {
	if _, ok := h.catalog[item.ID]; !ok {
		h.order = append(h.order, item.ID)
	}
	h.catalog[item.ID] = item
}

func (h *Harness) lookup() catalog.Lookup {
	items := make([]ir.CatalogItem, 0, len(h.order))
	for _, id := range h.order {
		items = append(items, h.catalog[id])
	}
	return catalog.NewStatic(items...)
}
