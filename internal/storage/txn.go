package storage

import (
	"bytes"
	"slices"
	"strings"
)

type op struct {
	key     string
	value   []byte
	deleted bool
}

// Txn is a view of the store plus the writes buffered so far. Reads see the
// buffered writes; nothing reaches the store until the enclosing Update
// returns nil.
type Txn struct {
	store    *Store
	writable bool
	pending  map[string]op
	order    []string
}

func newTxn(store *Store, writable bool) *Txn {
	return &Txn{
		store:    store,
		writable: writable,
		pending:  make(map[string]op),
	}
}

// Get returns a copy of the value stored under key.
func (t *Txn) Get(key string) ([]byte, bool) {
	if o, ok := t.pending[key]; ok {
		if o.deleted {
			return nil, false
		}
		return bytes.Clone(o.value), true
	}

	v, ok := t.store.get(key)
	if !ok {
		return nil, false
	}
	return bytes.Clone(v), true
}

func (t *Txn) Has(key string) bool {
	_, ok := t.Get(key)
	return ok
}

func (t *Txn) Set(key string, value []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	if key == "" {
		return ErrEmptyKey
	}
	if value == nil {
		value = []byte{}
	}
	t.record(op{key: key, value: bytes.Clone(value)})
	return nil
}

func (t *Txn) Delete(key string) error {
	if !t.writable {
		return ErrReadOnly
	}
	if key == "" {
		return ErrEmptyKey
	}
	t.record(op{key: key, deleted: true})
	return nil
}

// Scan visits every live key with the given prefix in ascending byte order,
// buffered writes included. Returning false from fn stops the scan.
func (t *Txn) Scan(prefix string, fn func(key string, value []byte) bool) error {
	keys := t.store.keysWithPrefix(prefix)
	for k := range t.pending {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)

	for _, k := range keys {
		v, ok := t.Get(k)
		if !ok {
			continue
		}
		if !fn(k, v) {
			return nil
		}
	}
	return nil
}

func (t *Txn) record(o op) {
	if _, seen := t.pending[o.key]; !seen {
		t.order = append(t.order, o.key)
	}
	t.pending[o.key] = o
}

// ops returns the buffered writes, one per key, in first-write order.
func (t *Txn) ops() []op {
	out := make([]op, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.pending[k])
	}
	return out
}
