package engine

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/toolbox/internal/catalog"
	"github.com/roach88/toolbox/internal/ir"
	"github.com/roach88/toolbox/internal/kv"
	"github.com/roach88/toolbox/internal/store"
	"github.com/roach88/toolbox/internal/testutil"
)

type testEnv struct {
	engine   *Engine
	store    *store.Store
	backend  *kv.Memory
	clock    *testutil.FixedClock
	registry *prometheus.Registry
}

// newTestEngine wires an engine to a fresh in-memory store with a fixed
// clock, sequential session ids and a private metrics registry.
func newTestEngine(t *testing.T, opts ...EngineOption) *testEnv {
	t.Helper()
	env := &testEnv{
		backend:  kv.NewMemory(),
		clock:    testutil.NewFixedClock(time.Time{}),
		registry: prometheus.NewRegistry(),
	}
	env.store = store.New(env.backend,
		store.WithClock(env.clock),
		store.WithSessionIDs(testutil.NewSequentialIDs("session")),
	)
	base := []EngineOption{WithClock(env.clock), WithMetrics(NewMetrics(env.registry))}
	env.engine = New(env.store, append(base, opts...)...)
	return env
}

func item(id string, balance int, status ir.ItemStatus) *ir.CatalogItem {
	return &ir.CatalogItem{ID: id, Name: "Item " + id, Balance: ir.Balance(balance), Status: status}
}

func staticLookup(items ...*ir.CatalogItem) catalog.Lookup {
	list := make([]ir.CatalogItem, 0, len(items))
	for _, it := range items {
		list = append(list, *it)
	}
	return catalog.NewStatic(list...)
}
