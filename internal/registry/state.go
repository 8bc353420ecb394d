package registry

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"realestate/internal/codec"
	"realestate/internal/storage"
)

const (
	adminKey         = "admin"
	brokersKey       = "brokers"
	stateKey         = "state"
	contractInfoKey  = "contract_info"
	propertiesPrefix = "properties/"
)

// State is the value stored under "state". Count is the offer counter and
// always equals the highest assigned offer id. Heartbeats belongs to the
// liveness operation and never influences offer ids.
type State struct {
	Count      uint64 `json:"count"`
	Heartbeats int64  `json:"heartbeats"`
}

type ContractInfo struct {
	Name    string `json:"contract"`
	Version string `json:"version"`
}

// adminSlot distinguishes "never initialized" (no key) from "cleared"
// (key present, Admin nil).
type adminSlot struct {
	Admin *string `json:"admin"`
}

// offerKey zero-pads the id so that key order equals id order.
func offerKey(id uint64) string {
	return fmt.Sprintf("%s%020d", propertiesPrefix, id)
}

func parseOfferKey(key string) (uint64, error) {
	raw, ok := strings.CutPrefix(key, propertiesPrefix)
	if !ok || len(raw) != 20 {
		return 0, fmt.Errorf("malformed offer key %q", key)
	}
	return strconv.ParseUint(raw, 10, 64)
}

func load[T any](tx *storage.Txn, key string, out *T) (bool, error) {
	raw, ok := tx.Get(key)
	if !ok {
		return false, nil
	}
	if err := codec.Unmarshal(raw, out); err != nil {
		diag, _ := codec.Diagnose(raw)
		slog.Error("stored value does not decode", "key", key, "value", diag, "error", err)
		return true, storageErr("decode "+key, err)
	}
	return true, nil
}

func save(tx *storage.Txn, key string, v any) error {
	raw, err := codec.Marshal(v)
	if err != nil {
		return storageErr("encode "+key, err)
	}
	return storageErr("write "+key, tx.Set(key, raw))
}

func loadState(tx *storage.Txn) (State, error) {
	var st State
	ok, err := load(tx, stateKey, &st)
	if err != nil {
		return State{}, err
	}
	if !ok {
		return State{}, fmt.Errorf("registry state: %w", ErrNotFound)
	}
	return st, nil
}
