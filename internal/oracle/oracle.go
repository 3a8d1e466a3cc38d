// Package oracle decides whether a requested quantity of a catalog item can be
// admitted into a cart. It is a pure function of its inputs.
package oracle

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/toolbox/internal/ir"
)

// Rejection reasons.
const (
	ReasonNotFound   = "Item not found"
	ReasonOutOfStock = "Item is out of stock: no available balance"
	ReasonNoBalance  = "No available balance"
)

// Availability is the oracle's decision.
// MaxAvailable is nil when the decision did not depend on a balance.
type Availability struct {
	Available    bool
	Reason       string
	MaxAvailable *int
}

// IsOutOfStock reports whether a free-text status denotes no stock.
// Upstream statuses are not normalized, so any status containing "out"
// (case-insensitively) counts. Tighten the rule here, not in callers.
// A Caser is stateful, so one is built per call.
func IsOutOfStock(status ir.ItemStatus) bool {
	return strings.Contains(cases.Fold().String(string(status)), "out")
}

// Check decides whether requested units of item can be admitted.
func Check(item *ir.CatalogItem, requested int) Availability {
	if item == nil {
		return Availability{Reason: ReasonNotFound}
	}

	if IsOutOfStock(item.Status) {
		return Availability{Reason: ReasonOutOfStock, MaxAvailable: intPtr(0)}
	}

	balance, known := item.BalanceValue()
	if known {
		if balance <= 0 {
			return Availability{Reason: ReasonNoBalance, MaxAvailable: intPtr(0)}
		}
		if requested > balance {
			return Availability{
				Reason:       fmt.Sprintf("Only %d available", balance),
				MaxAvailable: intPtr(balance),
			}
		}
	}

	return Availability{Available: true}
}

func intPtr(n int) *int {
	return &n
}
