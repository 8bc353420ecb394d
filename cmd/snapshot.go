package main

import (
	"fmt"
	"log/slog"
	"os"

	"realestate/internal/configuration/properties"
	"realestate/internal/registry"
	"realestate/internal/storage"
)

// exportSnapshot writes the committed registry state to path. The server
// must not be running against the same data directory.
func exportSnapshot(cfg properties.ConfigProvider, path string) error {
	store, err := openStorage(cfg.GetStorage())
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("failed to close storage", "error", err)
		}
	}()

	if err := newContract(store, cfg).CheckInvariants(); err != nil {
		return fmt.Errorf("refusing to export inconsistent state: %w", err)
	}

	snap, err := store.Snapshot()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, snap, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	slog.Info("snapshot exported", "path", path, "bytes", len(snap), "keys", store.Len())
	return nil
}

// restoreSnapshot replaces the state in the configured data directory with
// the snapshot at path. The snapshot is loaded into a scratch store and
// checked first, so a damaged or inconsistent backup never reaches disk.
func restoreSnapshot(cfg properties.ConfigProvider, path string) error {
	snap, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	scratch := storage.NewService()
	if err := scratch.Restore(snap); err != nil {
		return err
	}
	if err := newContract(scratch, cfg).CheckInvariants(); err != nil {
		return fmt.Errorf("snapshot holds inconsistent registry state: %w", err)
	}

	sc := cfg.GetStorage()
	if sc.InMemory {
		return fmt.Errorf("storage is in memory, nothing to restore into")
	}
	store, err := openStorage(sc)
	if err != nil {
		return err
	}
	if err := store.Restore(snap); err != nil {
		_ = store.Close()
		return err
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}

	slog.Info("snapshot restored", "path", path, "data_dir", sc.DataDir, "keys", scratch.Len())
	return nil
}
