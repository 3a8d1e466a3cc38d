package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/toolbox/internal/ir"
)

func TestStatic_GetAndList(t *testing.T) {
	s := NewStatic(
		ir.CatalogItem{ID: "B", Balance: ir.Balance(1)},
		ir.CatalogItem{ID: "A", Balance: ir.Balance(2)},
		ir.CatalogItem{ID: "B", Balance: ir.Balance(3)},
	)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"A", "B"}, s.IDs())

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "B", list[0].ID, "first declaration keeps its position")
	assert.Equal(t, 3, *list[0].Balance, "later duplicate wins")

	item, err := s.Get(context.Background(), "A")
	require.NoError(t, err)
	*item.Balance = 99

	again, err := s.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 2, *again.Balance, "callers cannot mutate the catalog")
}

func TestStatic_NotFound(t *testing.T) {
	s := NewStatic()
	_, err := s.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadFile_Formats(t *testing.T) {
	for _, name := range []string{"catalog.yaml", "catalog.cue"} {
		t.Run(name, func(t *testing.T) {
			f, err := LoadFile(filepath.Join("testdata", name))
			require.NoError(t, err)

			items := f.List()
			require.Len(t, items, 3)

			a, err := f.Get(context.Background(), "A")
			require.NoError(t, err)
			assert.Equal(t, "Cordless Drill", a.Name)
			bal, ok := a.BalanceValue()
			assert.True(t, ok)
			assert.Equal(t, 5, bal)
			assert.Equal(t, ir.StatusInStock, a.Status)

			b, err := f.Get(context.Background(), "B")
			require.NoError(t, err)
			assert.Equal(t, 0, *b.Balance)

			c, err := f.Get(context.Background(), "C")
			require.NoError(t, err)
			assert.Nil(t, c.Balance, "balance is optional")
			assert.Equal(t, ir.ItemStatus("Low-Stock"), c.Status)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		format string
		data   string
		want   string
	}{
		{"unknown field", "yaml", "items:\n  - id: A\n    colour: red\n", "colour"},
		{"missing id", "yaml", "items:\n  - name: nameless\n", "items[0]"},
		{"negative balance", "yaml", "items:\n  - id: A\n    balance: -1\n", "items[0]"},
		{"duplicate id", "yaml", "items:\n  - id: A\n  - id: A\n", "duplicate item id"},
		{"bad cue", "cue", "items: [", "build CUE catalog"},
		{"cue type mismatch", "cue", `items: [{id: 1}]`, "decode CUE catalog"},
		{"unsupported", "json", `{"items":[]}`, "unsupported catalog format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.format)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	s, err := Parse(nil, "yaml")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())

	s, err = Parse([]byte(`other: 1`), "cue")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestFile_FailedReloadKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("items:\n  - id: A\n    balance: 5\n"), 0o644))

	f, err := LoadFile(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("items: [\n"), 0o644))
	require.Error(t, f.Reload())

	item, err := f.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 5, *item.Balance)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("items:\n  - id: A\n    balance: 5\n"), 0o644))

	f, err := LoadFile(path)
	require.NoError(t, err)

	changed := make(chan struct{}, 8)
	w, err := NewWatcher(f, func(context.Context) { changed <- struct{}{} }, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte("items:\n  - id: A\n    balance: 1\n"), 0o644))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	// A truncate and a write may arrive as separate events
	assert.Eventually(t, func() bool {
		item, err := f.Get(context.Background(), "A")
		return err == nil && *item.Balance == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("items: []\n"), 0o644))

	f, err := LoadFile(path)
	require.NoError(t, err)

	w, err := NewWatcher(f, nil, nil)
	require.NoError(t, err)
	defer w.Close()

	assert.False(t, w.relevant(fsnotifyEvent(filepath.Join(dir, "other.yaml"))))
	assert.False(t, w.relevant(fsnotify.Event{Name: path, Op: fsnotify.Chmod}))
	assert.True(t, w.relevant(fsnotifyEvent(path)))
	assert.True(t, w.relevant(fsnotify.Event{Name: path, Op: fsnotify.Create}))
}

func TestWatcher_DebouncesBurstsOfWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("items:\n  - id: A\n    balance: 5\n"), 0o644))

	f, err := LoadFile(path)
	require.NoError(t, err)

	var calls atomic.Int32
	window := 300 * time.Millisecond
	w, err := NewWatcher(f, func(context.Context) { calls.Add(1) }, nil, WithDebounceWindow(window))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	for balance := 4; balance >= 0; balance-- {
		content := fmt.Sprintf("items:\n  - id: A\n    balance: %d\n", balance)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	require.Eventually(t, func() bool { return calls.Load() > 0 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(2 * window)
	assert.Equal(t, int32(1), calls.Load(), "one reload per burst")

	item, err := f.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 0, *item.Balance)
}
