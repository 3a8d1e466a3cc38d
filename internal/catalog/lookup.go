package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/toolbox/internal/ir"
)

// ErrNotFound is returned by Lookup.Get for an unknown item id.
var ErrNotFound = errors.New("catalog item not found")

// Lookup resolves catalog items by id.
type Lookup interface {
	Get(ctx context.Context, id string) (ir.CatalogItem, error)
}

// Static is an immutable in-memory catalog.
type Static struct {
	items map[string]ir.CatalogItem
	order []string
}

// NewStatic builds a catalog from items. Later duplicates replace earlier
// ones but keep the first position.
func NewStatic(items ...ir.CatalogItem) *Static {
	s := &Static{items: make(map[string]ir.CatalogItem, len(items))}
	for _, item := range items {
		if _, ok := s.items[item.ID]; !ok {
			s.order = append(s.order, item.ID)
		}
		s.items[item.ID] = copyItem(item)
	}
	return s
}

// Get returns the item with id, or ErrNotFound.
func (s *Static) Get(_ context.Context, id string) (ir.CatalogItem, error) {
	item, ok := s.items[id]
	if !ok {
		return ir.CatalogItem{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyItem(item), nil
}

// List returns all items in declaration order.
func (s *Static) List() []ir.CatalogItem {
	out := make([]ir.CatalogItem, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, copyItem(s.items[id]))
	}
	return out
}

// Len returns the number of items.
func (s *Static) Len() int {
	return len(s.order)
}

// IDs returns the item ids sorted lexically.
func (s *Static) IDs() []string {
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	sort.Strings(ids)
	return ids
}

func copyItem(item ir.CatalogItem) ir.CatalogItem {
	if item.Balance != nil {
		item.Balance = ir.Balance(*item.Balance)
	}
	return item
}
