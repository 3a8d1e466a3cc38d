package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/toolbox/internal/ir"
	"github.com/roach88/toolbox/internal/kv"
	"github.com/roach88/toolbox/internal/testutil"
)

func TestLoad_EmptyStoreReturnsNil(t *testing.T) {
	env := createTestStore(t)

	state, err := env.store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestSave_CreatesSessionAndRecomputesTotals(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()

	items := []ir.CartLine{testLine("A", 3, 5), testLine("B", 2, 9)}
	state, err := env.store.Save(ctx, ItemsPatch(items))
	require.NoError(t, err)

	assert.Equal(t, "session-1", state.SessionID)
	assert.Equal(t, 5, state.TotalItems)
	assert.Equal(t, int64(0), state.TotalValue)
	assert.Equal(t, env.clock.Now(), state.LastUpdated)

	loaded, err := env.store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "session-1", loaded.SessionID)
	assert.Len(t, loaded.Items, 2)
	assert.Equal(t, 5, loaded.TotalItems)
	assert.True(t, loaded.LastUpdated.Equal(env.clock.Now()))
}

func TestSave_PreservesSessionAcrossSaves(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()

	_, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 1, 5)}))
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	state, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 2, 5)}))
	require.NoError(t, err)

	assert.Equal(t, "session-1", state.SessionID)
	assert.Equal(t, 2, state.TotalItems)
}

func TestSave_IgnoresSuppliedTotals(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()

	// Items are the only source of truth for totals
	state, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 4, 5)}))
	require.NoError(t, err)
	assert.Equal(t, 4, state.TotalItems)
}

func TestSave_MergesPartialPatch(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()

	_, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 1, 5)}))
	require.NoError(t, err)

	employee := "emp-42"
	state, err := env.store.Save(ctx, Patch{EmployeeID: &employee})
	require.NoError(t, err)

	assert.Equal(t, "emp-42", state.EmployeeID)
	require.Len(t, state.Items, 1, "items untouched by an employee-only patch")
	assert.Equal(t, "A", state.Items[0].ID)
}

func TestSave_RejectsInvalidState(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()

	_, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 1, 5), testLine("A", 2, 5)}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidState))

	_, err = env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 0, 5)}))
	assert.True(t, errors.Is(err, ErrInvalidState))

	state, err := env.store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, state, "nothing persisted after rejected saves")
}

func TestSave_DoesNotAliasCallerSlice(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()

	items := []ir.CartLine{testLine("A", 1, 5)}
	state, err := env.store.Save(ctx, ItemsPatch(items))
	require.NoError(t, err)

	items[0].Quantity = 99
	state.Items[0].Quantity = 77

	loaded, err := env.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Items[0].Quantity)
}

func TestSave_StorageUnavailable(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()
	env.backend.SetUnavailable(true)

	state, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 1, 5)}))
	assert.Nil(t, state)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorageUnavailable))

	assert.True(t, errors.Is(env.store.Clear(ctx), ErrStorageUnavailable))

	_, err = env.store.Load(ctx)
	assert.True(t, errors.Is(err, ErrStorageUnavailable))
}

func TestSave_FailedMetadataWriteLeavesCartUnchanged(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()
	_, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 3, 10)}))
	require.NoError(t, err)
	historyBefore, err := env.store.History(ctx)
	require.NoError(t, err)

	failing := New(metadataFailingBackend{env.backend}, WithClock(env.clock), WithSessionIDs(env.ids))
	for range 2 {
		_, err = failing.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 6, 10)}))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStorageUnavailable))
	}

	loaded, err := env.store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 3, loaded.TotalItems, "a failed save writes nothing")
	history, err := env.store.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, len(historyBefore))
}

func TestSave_FailedMetadataWriteOnNewCart(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()
	failing := New(metadataFailingBackend{env.backend}, WithClock(env.clock), WithSessionIDs(env.ids))

	_, err := failing.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 1, 5)}))
	require.Error(t, err)

	loaded, err := env.store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
	assert.Zero(t, env.backend.Len())
}

func TestRefresh_KeepsSessionTimestampAndHistory(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()

	saved, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 2, 5)}))
	require.NoError(t, err)
	metaBefore, err := env.store.Metadata(ctx)
	require.NoError(t, err)

	env.clock.Advance(3 * 24 * time.Hour)
	line := testLine("A", 2, 5)
	line.Item.Balance = ir.Balance(1)
	line.Item.Status = ir.StatusLowStock
	refreshed, err := env.store.Refresh(ctx, []ir.CartLine{line})
	require.NoError(t, err)
	require.NotNil(t, refreshed)

	assert.Equal(t, saved.SessionID, refreshed.SessionID)
	assert.True(t, refreshed.LastUpdated.Equal(saved.LastUpdated))
	assert.Equal(t, 2, refreshed.TotalItems)

	loaded, err := env.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, *loaded.Items[0].Item.Balance)
	assert.True(t, loaded.LastUpdated.Equal(saved.LastUpdated))

	history, err := env.store.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1, "refresh adds no snapshot")

	metaAfter, err := env.store.Metadata(ctx)
	require.NoError(t, err)
	assert.True(t, metaAfter.CreatedAt.Equal(metaBefore.CreatedAt))
}

func TestRefresh_DoesNotExtendTTL(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()

	_, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 2, 5)}))
	require.NoError(t, err)

	for range 12 {
		env.clock.Advance(3 * 24 * time.Hour)
		_, err := env.store.Refresh(ctx, []ir.CartLine{testLine("A", 2, 5)})
		require.NoError(t, err)
	}

	loaded, err := env.store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded, "cart untouched by the user expires")
}

func TestRefresh_NoCart(t *testing.T) {
	env := createTestStore(t)
	state, err := env.store.Refresh(context.Background(), []ir.CartLine{testLine("A", 1, 5)})
	require.NoError(t, err)
	assert.Nil(t, state)
	assert.Zero(t, env.backend.Len())
}

func TestRefresh_StorageUnavailable(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()
	_, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 1, 5)}))
	require.NoError(t, err)

	env.backend.SetUnavailable(true)
	_, err = env.store.Refresh(ctx, []ir.CartLine{testLine("A", 1, 5)})
	assert.True(t, errors.Is(err, ErrStorageUnavailable))
}

func TestSave_ClosedSQLiteIsUnavailable(t *testing.T) {
	s, backend := createSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, backend.Close())

	_, err := s.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 1, 5)}))
	assert.True(t, errors.Is(err, ErrStorageUnavailable))
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	s, _ := createSQLiteStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 2, 5)}))
	require.NoError(t, err)

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 2, loaded.TotalItems)
}

func TestLoad_ExpiresAfterTTL(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()

	_, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 1, 5)}))
	require.NoError(t, err)

	env.clock.Advance(31 * 24 * time.Hour)

	state, err := env.store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)

	// Active cart and metadata are removed; history survives
	_, err = env.backend.Get(ctx, keyActive)
	assert.ErrorIs(t, err, kv.ErrNotFound)
	_, err = env.backend.Get(ctx, keyMetadata)
	assert.ErrorIs(t, err, kv.ErrNotFound)

	history, err := env.store.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestLoad_NotExpiredAtExactlyTTL(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()

	_, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 1, 5)}))
	require.NoError(t, err)

	env.clock.Advance(DefaultTTL)

	state, err := env.store.Load(ctx)
	require.NoError(t, err)
	assert.NotNil(t, state)
}

func TestLoad_CustomTTL(t *testing.T) {
	env := createTestStore(t, WithTTL(time.Hour))
	ctx := context.Background()

	_, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 1, 5)}))
	require.NoError(t, err)
	env.clock.Advance(2 * time.Hour)

	state, err := env.store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)
	assert.Equal(t, time.Hour, env.store.TTL())
}

func TestSave_AfterExpiryStartsNewSession(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()

	_, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 1, 5)}))
	require.NoError(t, err)
	env.clock.Advance(40 * 24 * time.Hour)

	state, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("B", 1, 5)}))
	require.NoError(t, err)
	assert.Equal(t, "session-2", state.SessionID)
	require.Len(t, state.Items, 1)
	assert.Equal(t, "B", state.Items[0].ID)
}

func TestLoad_MalformedRecordIsAbsent(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"corrupt json", `{"items": [`},
		{"null", `null`},
		{"missing session", `{"items":[],"total_items":0}`},
		{"wrong types", `{"items":"nope","session_id":"s"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := createTestStore(t)
			ctx := context.Background()
			require.NoError(t, env.backend.Put(ctx, keyActive, []byte(tt.data)))

			state, err := env.store.Load(ctx)
			require.NoError(t, err)
			assert.Nil(t, state)

			// A save over a malformed record starts a clean session
			saved, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 1, 5)}))
			require.NoError(t, err)
			assert.Equal(t, "session-1", saved.SessionID)
		})
	}
}

func TestMetadata_CreatedAtPreservedWithinSession(t *testing.T) {
	env := createTestStore(t, WithDeviceInfo(ir.DeviceInfo{UserAgent: "toolbox-cli/1.0", Platform: "linux"}))
	ctx := context.Background()
	created := env.clock.Now()

	_, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 1, 5)}))
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	_, err = env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 2, 5)}))
	require.NoError(t, err)

	meta, err := env.store.Metadata(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, ir.SchemaVersion, meta.Version)
	assert.Equal(t, "session-1", meta.SessionID)
	assert.True(t, meta.CreatedAt.Equal(created))
	assert.True(t, meta.LastAccessedAt.Equal(env.clock.Now()))
	assert.Equal(t, "linux", meta.DeviceInfo.Platform)
}

func TestLoad_RefreshesLastAccessedAt(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()

	_, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 1, 5)}))
	require.NoError(t, err)

	later := env.clock.Advance(2 * time.Hour)
	_, err = env.store.Load(ctx)
	require.NoError(t, err)

	meta, err := env.store.Metadata(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.True(t, meta.LastAccessedAt.Equal(later))
	assert.True(t, meta.CreatedAt.Before(later))
}

func TestClear_RemovesActiveKeepsHistory(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()

	_, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 1, 5)}))
	require.NoError(t, err)
	require.NoError(t, env.store.Clear(ctx))

	state, err := env.store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)

	meta, err := env.store.Metadata(ctx)
	require.NoError(t, err)
	assert.Nil(t, meta)

	history, err := env.store.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// Next save is a new session
	state, err = env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("B", 1, 5)}))
	require.NoError(t, err)
	assert.Equal(t, "session-2", state.SessionID)
}

func TestKeyPrefix_IsolatesStores(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	clk := testutil.NewFixedClock(time.Time{})

	a := New(backend, WithClock(clk), WithKeyPrefix("emp-a:"), WithSessionIDs(testutil.NewSequentialIDs("a")))
	b := New(backend, WithClock(clk), WithKeyPrefix("emp-b:"), WithSessionIDs(testutil.NewSequentialIDs("b")))

	_, err := a.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 1, 5)}))
	require.NoError(t, err)

	state, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)

	_, err = backend.Get(ctx, "emp-a:cart.active")
	assert.NoError(t, err)
}

func TestNew_Defaults(t *testing.T) {
	s := New(kv.NewMemory(), WithTTL(0), WithHistoryLimit(-1))
	assert.Equal(t, DefaultTTL, s.TTL())
	assert.Equal(t, DefaultHistoryLimit, s.HistoryLimit())
}

func TestRandomSessionIDs(t *testing.T) {
	now := time.UnixMilli(1760000000000)
	g := RandomSessionIDs{}

	id1 := g.Generate(now)
	id2 := g.Generate(now)
	assert.NotEqual(t, id1, id2)
	assert.Regexp(t, `^session_1760000000000_[0-9a-f]{12}$`, id1)
}
