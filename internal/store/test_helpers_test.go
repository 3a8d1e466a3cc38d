package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/toolbox/internal/ir"
	"github.com/roach88/toolbox/internal/kv"
	"github.com/roach88/toolbox/internal/testutil"
)

// testEnv bundles a store with the fakes driving it.
type testEnv struct {
	store   *Store
	backend *kv.Memory
	clock   *testutil.FixedClock
	ids     *testutil.SequentialIDs
}

// createTestStore creates a store on an in-memory backend with a fixed clock
// and sequential session ids.
func createTestStore(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		backend: kv.NewMemory(),
		clock:   testutil.NewFixedClock(time.Time{}),
		ids:     testutil.NewSequentialIDs("session"),
	}
	base := []Option{WithClock(env.clock), WithSessionIDs(env.ids)}
	env.store = New(env.backend, append(base, opts...)...)
	return env
}

// createSQLiteStore creates a store on a temp-dir SQLite database.
func createSQLiteStore(t *testing.T) (*Store, *kv.SQLite) {
	t.Helper()
	backend, err := kv.OpenSQLite(filepath.Join(t.TempDir(), "cart.db"))
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	s := New(backend,
		WithClock(testutil.NewFixedClock(time.Time{})),
		WithSessionIDs(testutil.NewSequentialIDs("session")),
	)
	return s, backend
}

// testLine creates a cart line for an in-stock item.
func testLine(id string, qty int, balance int) ir.CartLine {
	return ir.CartLine{
		ID:       id,
		Item:     ir.CatalogItem{ID: id, Name: "Item " + id, Balance: ir.Balance(balance), Status: ir.StatusInStock},
		Quantity: qty,
		AddedAt:  testutil.DefaultTestTime,
	}
}

// metadataFailingBackend rejects every write that touches cart metadata,
// alone or as part of a batch.
type metadataFailingBackend struct {
	*kv.Memory
}

func (b metadataFailingBackend) Put(ctx context.Context, key string, value []byte) error {
	if strings.HasSuffix(key, keyMetadata) {
		return fmt.Errorf("kv put %q: %w", key, kv.ErrUnavailable)
	}
	return b.Memory.Put(ctx, key, value)
}

func (b metadataFailingBackend) Apply(ctx context.Context, ops ...kv.Op) error {
	for _, op := range ops {
		if strings.HasSuffix(op.Key, keyMetadata) {
			return fmt.Errorf("kv apply %q: %w", op.Key, kv.ErrUnavailable)
		}
	}
	return b.Memory.Apply(ctx, ops...)
}
