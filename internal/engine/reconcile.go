package engine

import (
	"context"
	"errors"

	"github.com/roach88/toolbox/internal/catalog"
	"github.com/roach88/toolbox/internal/oracle"
)

// LineIssue describes a cart line the live catalog no longer supports.
type LineIssue struct {
	ID           string `json:"id"`
	Quantity     int    `json:"quantity"`
	MaxAvailable int    `json:"max_available"`
	Reason       string `json:"reason"`
}

// ReconcileReport is the outcome of Reconcile. Refreshed counts lines found
// in the catalog; Changed counts those whose snapshot differed.
type ReconcileReport struct {
	Result
	Refreshed   int         `json:"refreshed"`
	Changed     int         `json:"changed"`
	Missing     []string    `json:"missing,omitempty"`
	OverBalance []LineIssue `json:"over_balance,omitempty"`
}

// Reconcile refreshes every line's item snapshot from lookup and reports
// lines whose quantity the live catalog cannot cover.
//
// Quantities are never changed: a line above a newly lowered balance is
// reported in OverBalance for the caller to resolve. Items the catalog no
// longer knows keep their old snapshot and are listed in Missing.
//
// The cart is written only when a snapshot changed, and then without
// stamping last_updated or adding a history entry, so catalog churn neither
// evicts recovery points nor keeps an abandoned cart from expiring.
func (e *Engine) Reconcile(ctx context.Context, lookup catalog.Lookup) ReconcileReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := e.reconcile(ctx, lookup)
	e.metrics.record("reconcile", report.Result)
	return report
}

func (e *Engine) reconcile(ctx context.Context, lookup catalog.Lookup) ReconcileReport {
	state, err := e.store.Load(ctx)
	if err != nil {
		return ReconcileReport{Result: e.storeFailure("reconcile", err)}
	}
	if state == nil {
		return ReconcileReport{Result: succeed(0)}
	}

	var report ReconcileReport
	items := currentItems(state)
	for i, line := range items {
		item, err := lookup.Get(ctx, line.ID)
		if errors.Is(err, catalog.ErrNotFound) {
			report.Missing = append(report.Missing, line.ID)
			continue
		}
		if err != nil {
			e.logger.Warn("inventory lookup failed", "item_id", line.ID, "error", err)
			return ReconcileReport{Result: fail(MsgLookupFailed)}
		}

		report.Refreshed++
		if !line.Item.Equal(item) {
			items[i].Item = copyItem(item)
			report.Changed++
		}

		if avail := oracle.Check(&item, line.Quantity); !avail.Available {
			issue := LineIssue{ID: line.ID, Quantity: line.Quantity, Reason: avail.Reason}
			if avail.MaxAvailable != nil {
				issue.MaxAvailable = *avail.MaxAvailable
			}
			report.OverBalance = append(report.OverBalance, issue)
		}
	}

	if report.Changed > 0 {
		refreshed, err := e.store.Refresh(ctx, items)
		if err != nil {
			return ReconcileReport{Result: e.storeFailure("reconcile", err)}
		}
		if refreshed != nil {
			e.metrics.setItems(refreshed.TotalItems)
		}
	}

	if len(report.OverBalance) > 0 {
		e.logger.Info("cart lines exceed live balance", "lines", len(report.OverBalance))
	}
	report.Result = succeed(0)
	return report
}
