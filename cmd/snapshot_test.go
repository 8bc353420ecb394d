package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate/internal/codec"
	"realestate/internal/configuration/properties"
	"realestate/internal/registry"
	"realestate/internal/storage"
)

func storageConfig(dir string) properties.ConfigProvider {
	return properties.NewProvider(&properties.Config{
		Application: properties.ApplicationConfigProperties{AllowAdminClear: true},
		Storage: properties.StorageConfigProperties{
			DataDir: dir,
			Wal:     properties.WriteAheadLogProperties{NoSync: true, SnapCount: 100},
		},
	})
}

// seed fills the data directory behind cfg with one broker and n offers.
func seed(t *testing.T, cfg properties.ConfigProvider, n int) {
	t.Helper()
	store, err := openStorage(cfg.GetStorage())
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	c := newContract(store, cfg)
	_, err = c.Instantiate("admin", 0)
	require.NoError(t, err)
	_, _, err = c.AddBroker("admin", "broker1")
	require.NoError(t, err)
	for range n {
		_, _, err = c.CreateOffer("broker1", registry.Offer{
			PropertyType: registry.TwoRoom,
			Region:       registry.Sofia,
			Squaring:     "64kv",
			Construction: "Panel",
			Floor:        "3",
		})
		require.NoError(t, err)
	}
}

func TestSnapshot_ExportRestore(t *testing.T) {
	src := storageConfig(t.TempDir())
	seed(t, src, 3)

	backup := filepath.Join(t.TempDir(), "registry.snap")
	require.NoError(t, exportSnapshot(src, backup))

	dst := storageConfig(t.TempDir())
	seed(t, dst, 7)
	require.NoError(t, restoreSnapshot(dst, backup))

	store, err := openStorage(dst.GetStorage())
	require.NoError(t, err)
	defer store.Close()

	c := newContract(store, dst)
	require.NoError(t, c.CheckInvariants())
	count, err := c.OfferCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
	_, err = c.GetOffer(4)
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestSnapshot_RestoreRefusesDamagedFile(t *testing.T) {
	src := storageConfig(t.TempDir())
	seed(t, src, 2)
	backup := filepath.Join(t.TempDir(), "registry.snap")
	require.NoError(t, exportSnapshot(src, backup))

	raw, err := os.ReadFile(backup)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	require.NoError(t, os.WriteFile(backup, raw, 0o600))

	dst := storageConfig(t.TempDir())
	seed(t, dst, 5)
	require.ErrorIs(t, restoreSnapshot(dst, backup), storage.ErrCorruptRecord)

	store, err := openStorage(dst.GetStorage())
	require.NoError(t, err)
	defer store.Close()
	count, err := newContract(store, dst).OfferCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count, "target untouched")
}

func TestSnapshot_RestoreRefusesInconsistentState(t *testing.T) {
	// counter claims two offers, ledger holds none
	state, err := codec.Marshal(registry.State{Count: 2})
	require.NoError(t, err)
	scratch := storage.NewService()
	require.NoError(t, scratch.Update(func(tx *storage.Txn) error {
		return tx.Set("state", state)
	}))
	snap, err := scratch.Snapshot()
	require.NoError(t, err)

	backup := filepath.Join(t.TempDir(), "bad.snap")
	require.NoError(t, os.WriteFile(backup, snap, 0o600))

	require.ErrorContains(t, restoreSnapshot(storageConfig(t.TempDir()), backup), "inconsistent")
}
