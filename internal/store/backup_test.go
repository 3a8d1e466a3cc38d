package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/toolbox/internal/ir"
	"github.com/roach88/toolbox/internal/testutil"
)

func TestExportImport_RoundTripIntoEmptyStore(t *testing.T) {
	src := createTestStore(t)
	ctx := context.Background()

	location := "Warehouse B"
	_, err := src.store.Save(ctx, Patch{
		Items:    &[]ir.CartLine{testLine("A", 3, 5), testLine("B", 1, 2)},
		Location: &location,
	})
	require.NoError(t, err)

	backup, err := src.store.Export(ctx)
	require.NoError(t, err)

	dst := createTestStore(t)
	state, err := dst.store.Import(ctx, backup)
	require.NoError(t, err)

	assert.Equal(t, 4, state.TotalItems)
	assert.Equal(t, "Warehouse B", state.Location)
	require.Len(t, state.Items, 2)
	assert.Equal(t, "A", state.Items[0].ID)
	assert.Equal(t, 3, state.Items[0].Quantity)
	assert.Equal(t, "B", state.Items[1].ID)
	assert.Equal(t, 1, state.Items[1].Quantity)

	loaded, err := dst.store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 4, loaded.TotalItems)

	// Import goes through the save path, so it snapshots history too
	history, err := dst.store.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestExport_BundleContents(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()

	_, err := env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 1, 5)}))
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	_, err = env.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 2, 5)}))
	require.NoError(t, err)

	backup, err := env.store.Export(ctx)
	require.NoError(t, err)

	var bundle ir.Bundle
	require.NoError(t, json.Unmarshal([]byte(backup), &bundle))
	assert.Equal(t, ir.SchemaVersion, bundle.Version)
	require.NotNil(t, bundle.Current)
	assert.Equal(t, "session-1", bundle.Current.SessionID)
	require.NotNil(t, bundle.Metadata)
	assert.Len(t, bundle.History, 2)
	assert.NotEmpty(t, bundle.Checksum)
}

func TestExport_EmptyStore(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()

	backup, err := env.store.Export(ctx)
	require.NoError(t, err)

	var bundle ir.Bundle
	require.NoError(t, json.Unmarshal([]byte(backup), &bundle))
	assert.Nil(t, bundle.Current)

	// Nothing to restore from an empty bundle
	_, err = env.store.Import(ctx, backup)
	assert.True(t, errors.Is(err, ErrInvalidBackup))
}

func TestImport_MergesIntoExistingSession(t *testing.T) {
	src := createTestStore(t)
	ctx := context.Background()
	_, err := src.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 3, 5)}))
	require.NoError(t, err)
	backup, err := src.store.Export(ctx)
	require.NoError(t, err)

	dst := createTestStore(t, WithSessionIDs(testutil.NewSequentialIDs("device")))
	_, err = dst.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("Z", 1, 5)}))
	require.NoError(t, err)

	state, err := dst.store.Import(ctx, backup)
	require.NoError(t, err)
	assert.Equal(t, "device-1", state.SessionID, "existing session id is preserved")
	require.Len(t, state.Items, 1)
	assert.Equal(t, "A", state.Items[0].ID)
}

func TestImport_Rejections(t *testing.T) {
	src := createTestStore(t)
	ctx := context.Background()
	_, err := src.store.Save(ctx, ItemsPatch([]ir.CartLine{testLine("A", 3, 5)}))
	require.NoError(t, err)
	backup, err := src.store.Export(ctx)
	require.NoError(t, err)

	tampered := strings.Replace(backup, `"quantity":3`, `"quantity":30`, 1)
	require.NotEqual(t, backup, tampered)

	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"not json", "definitely not a backup", ErrInvalidBackup},
		{"empty", "", ErrInvalidBackup},
		{"checksum mismatch", tampered, ErrInvalidBackup},
		{"no current", `{"version":"1.0.0","history":[]}`, ErrInvalidBackup},
		{"invalid line", `{"current":{"session_id":"x","items":[{"id":"A","item":{"id":"A"},"quantity":0}]}}`, ErrInvalidState},
		{"duplicate lines", `{"current":{"session_id":"x","items":[{"id":"A","item":{"id":"A"},"quantity":1},{"id":"A","item":{"id":"A"},"quantity":1}]}}`, ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := createTestStore(t)
			state, err := dst.store.Import(ctx, tt.data)
			assert.Nil(t, state)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			loaded, err := dst.store.Load(ctx)
			require.NoError(t, err)
			assert.Nil(t, loaded)
		})
	}
}

func TestImport_WithoutChecksumIsAccepted(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()

	data := `{"current":{"session_id":"old","items":[{"id":"A","item":{"id":"A","balance":5},"quantity":2}],"total_items":999}}`
	state, err := env.store.Import(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 2, state.TotalItems, "totals are recomputed, not trusted")
	assert.Equal(t, "session-1", state.SessionID, "bundle session id is not reused")
}

func TestImport_StorageUnavailable(t *testing.T) {
	env := createTestStore(t)
	ctx := context.Background()
	env.backend.SetUnavailable(true)

	data := `{"current":{"session_id":"old","items":[{"id":"A","item":{"id":"A"},"quantity":2}]}}`
	_, err := env.store.Import(ctx, data)
	assert.True(t, errors.Is(err, ErrStorageUnavailable))

	_, err = env.store.Export(ctx)
	assert.True(t, errors.Is(err, ErrStorageUnavailable))
}
