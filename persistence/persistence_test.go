package persistence_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"liminal/core/types"
	"liminal/persistence"
)

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := persistence.New(filepath.Join(dir, persistence.DefaultFileName))

	records := []*types.Record{
		{ID: "tx_1", ContextID: "ctx-1", State: types.StateNew},
		{ID: "tx_2", ContextID: "ctx-1", State: types.StateSigned},
	}
	require.NoError(t, store.Save(records))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, "tx_1", loaded[0].ID)
}

func TestLoad_MissingFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	store := persistence.New(filepath.Join(dir, "does-not-exist.json"))
	loaded, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, loaded)
}

func TestDisabledStore_IsNoOp(t *testing.T) {
	store := persistence.New("")
	require.False(t, store.Enabled())
	require.NoError(t, store.Save([]*types.Record{{ID: "tx_1"}}))
	loaded, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestSave_OverwritesPreviousSnapshotAtomically(t *testing.T) {
	dir := t.TempDir()
	store := persistence.New(filepath.Join(dir, persistence.DefaultFileName))

	require.NoError(t, store.Save([]*types.Record{{ID: "tx_1"}}))
	require.NoError(t, store.Save([]*types.Record{{ID: "tx_2"}}))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "tx_2", loaded[0].ID)
}
