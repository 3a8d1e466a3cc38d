package ir

import "time"

// ItemStatus is the stock status reported by the inventory system.
// Values outside the known set are tolerated; see oracle.Check.
type ItemStatus string

const (
	StatusInStock    ItemStatus = "in-stock"
	StatusLowStock   ItemStatus = "low-stock"
	StatusOutOfStock ItemStatus = "out-of-stock"
)

// CatalogItem is a read-only inventory record owned by the inventory API.
type CatalogItem struct {
	ID       string     `json:"id" yaml:"id" validate:"required"`
	Name     string     `json:"name,omitempty" yaml:"name,omitempty"`
	Brand    string     `json:"brand,omitempty" yaml:"brand,omitempty"`
	Type     string     `json:"type,omitempty" yaml:"type,omitempty"`
	Location string     `json:"location,omitempty" yaml:"location,omitempty"`
	Balance  *int       `json:"balance,omitempty" yaml:"balance,omitempty" validate:"omitempty,gte=0"`
	Status   ItemStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// BalanceValue returns the item's remaining stock and whether it is known.
func (c CatalogItem) BalanceValue() (int, bool) {
	if c.Balance == nil {
		return 0, false
	}
	return *c.Balance, true
}

// Equal reports whether c and o describe the same item snapshot.
func (c CatalogItem) Equal(o CatalogItem) bool {
	if (c.Balance == nil) != (o.Balance == nil) {
		return false
	}
	if c.Balance != nil && *c.Balance != *o.Balance {
		return false
	}
	c.Balance, o.Balance = nil, nil
	return c == o
}

// Balance returns a pointer to n, for building CatalogItem literals.
func Balance(n int) *int {
	return &n
}

// CartLine is one item-and-quantity entry within a cart.
type CartLine struct {
	ID       string      `json:"id" validate:"required"`
	Item     CatalogItem `json:"item"`
	Quantity int         `json:"quantity" validate:"gte=1"`
	AddedAt  time.Time   `json:"added_at"`
	Notes    string      `json:"notes,omitempty"`
}

// CartState is the full active cart for one device.
type CartState struct {
	Items       []CartLine `json:"items" validate:"dive"`
	TotalItems  int        `json:"total_items"`
	TotalValue  int64      `json:"total_value"` // minor units; pricing is not tracked yet
	LastUpdated time.Time  `json:"last_updated"`
	SessionID   string     `json:"session_id" validate:"required"`
	EmployeeID  string     `json:"employee_id,omitempty"`
	Location    string     `json:"location,omitempty"`
}

// DeviceInfo identifies the device a cart was written from.
type DeviceInfo struct {
	UserAgent string `json:"user_agent"`
	Platform  string `json:"platform"`
}

// CartMetadata tracks provenance of the active cart independent of its contents.
type CartMetadata struct {
	Version        string     `json:"version"`
	SessionID      string     `json:"session_id"`
	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`
	DeviceInfo     DeviceInfo `json:"device_info"`
}

// HistoryEntry is a frozen copy of a past CartState. Its SessionID carries
// the HistoryPrefix; OriginSessionID is the live session it was taken from.
type HistoryEntry struct {
	CartState
	OriginSessionID string    `json:"origin_session_id"`
	ArchivedAt      time.Time `json:"archived_at"`
}

// Bundle is the backup transport format: current state, metadata and history.
type Bundle struct {
	Version    string         `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Current    *CartState     `json:"current,omitempty"`
	Metadata   *CartMetadata  `json:"metadata,omitempty"`
	History    []HistoryEntry `json:"history"`
	Checksum   string         `json:"checksum,omitempty"`
}

// Line returns the line for id and its index, or nil and -1.
func (s *CartState) Line(id string) (*CartLine, int) {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return &s.Items[i], i
		}
	}
	return nil, -1
}

// Recompute sets TotalItems and TotalValue from Items.
func (s *CartState) Recompute() {
	total := 0
	for _, line := range s.Items {
		total += line.Quantity
	}
	s.TotalItems = total
	s.TotalValue = 0
}

// Clone returns a deep copy of s.
func (s *CartState) Clone() *CartState {
	if s == nil {
		return nil
	}
	c := *s
	c.Items = make([]CartLine, len(s.Items))
	for i, line := range s.Items {
		c.Items[i] = line
		if line.Item.Balance != nil {
			c.Items[i].Item.Balance = Balance(*line.Item.Balance)
		}
	}
	return &c
}
