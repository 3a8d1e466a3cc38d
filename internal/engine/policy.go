package engine

import "fmt"

// QuantityPolicy controls how UpdateQuantity treats the item's balance.
type QuantityPolicy int

const (
	// TrustCaller writes the requested quantity verbatim. Callers doing
	// manual edits are expected to bound it by the item's balance.
	TrustCaller QuantityPolicy = iota

	// ClampToBalance caps the requested quantity at the line's last-known
	// balance and rejects updates to items with nothing available.
	ClampToBalance
)

// String returns the config spelling of the policy.
func (p QuantityPolicy) String() string {
	switch p {
	case TrustCaller:
		return "trust"
	case ClampToBalance:
		return "clamp"
	default:
		return fmt.Sprintf("QuantityPolicy(%d)", int(p))
	}
}

// ParseQuantityPolicy parses "trust" or "clamp". Empty means trust.
func ParseQuantityPolicy(s string) (QuantityPolicy, error) {
	switch s {
	case "", "trust":
		return TrustCaller, nil
	case "clamp":
		return ClampToBalance, nil
	default:
		return 0, fmt.Errorf("unknown quantity policy %q (want trust or clamp)", s)
	}
}
