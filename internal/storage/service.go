package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/tidwall/wal"

	"realestate/internal/metrics"
)

const walFolder = "wal"

type Options struct {
	Dir    string
	NoSync bool
	// SnapCount is the number of committed batches after which the WAL is
	// compacted into a single snapshot record. Zero disables compaction.
	SnapCount uint64
}

// Service is an ordered byte-key/byte-value store with atomic multi-key
// transactions. When opened with a directory every committed transaction is
// one WAL record, so a crash can never expose half of a transaction.
type Service struct {
	store *Store

	writeMu   sync.Mutex
	log       *wal.Log
	nextIndex uint64
	snapCount uint64
	sinceSnap uint64
	closed    bool
}

// NewService returns a volatile store with no WAL.
func NewService() *Service {
	return &Service{store: NewStore(), nextIndex: 1}
}

// Open opens (or creates) a durable store under opts.Dir and replays its WAL.
func Open(opts Options) (*Service, error) {
	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", opts.Dir, err)
	}

	walOpts := *wal.DefaultOptions
	walOpts.NoSync = opts.NoSync
	log, err := wal.Open(filepath.Join(opts.Dir, walFolder), &walOpts)
	if err != nil {
		return nil, fmt.Errorf("wal.Open: %w", err)
	}

	s := &Service{
		store:     NewStore(),
		log:       log,
		nextIndex: 1,
		snapCount: opts.SnapCount,
	}

	if err := s.replay(); err != nil {
		_ = log.Close()
		return nil, err
	}

	metrics.StorageKeysTotal.Set(float64(s.store.Len()))
	return s, nil
}

func (s *Service) replay() error {
	last, err := s.log.LastIndex()
	if err != nil {
		return fmt.Errorf("wal.LastIndex: %w", err)
	}
	if last == 0 {
		return nil
	}

	first, err := s.log.FirstIndex()
	if err != nil {
		return fmt.Errorf("wal.FirstIndex: %w", err)
	}

	var batches, snapshots int
	for idx := first; idx <= last; idx++ {
		data, err := s.log.Read(idx)
		if err != nil {
			return fmt.Errorf("wal.Read(%d): %w", idx, err)
		}

		recType, payload, err := unmarshalRecord(data)
		if err != nil {
			return fmt.Errorf("record %d: %w", idx, err)
		}

		ops, err := decodeOps(payload)
		if err != nil {
			return fmt.Errorf("record %d: %w", idx, err)
		}

		switch recType {
		case RecordTypeSnapshot:
			s.store.Replace(make(map[string][]byte, len(ops)))
			s.sinceSnap = 0
			snapshots++
		case RecordTypeBatch:
			s.sinceSnap++
			batches++
		}
		s.store.apply(ops)
	}

	s.nextIndex = last + 1

	slog.Info("replayed WAL",
		"wal_first", first,
		"wal_last", last,
		"batches", batches,
		"snapshots", snapshots,
		"keys", s.store.Len(),
	)
	return nil
}

// View runs fn against a consistent read-only view of committed state.
func (s *Service) View(fn func(tx *Txn) error) error {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	metrics.StorageOperationsTotal.WithLabelValues("view").Inc()
	return fn(newTxn(s.store, false))
}

// Update runs fn in an exclusive read-write transaction. If fn returns nil
// its writes are logged and applied together; otherwise they are dropped.
// Updates are serialized, so fn observes every previously committed write
// and nothing else changes underneath it.
func (s *Service) Update(fn func(tx *Txn) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return ErrClosed
	}

	tx := newTxn(s.store, true)
	if err := fn(tx); err != nil {
		metrics.StorageOperationsTotal.WithLabelValues("rollback").Inc()
		return err
	}

	ops := tx.ops()
	if len(ops) == 0 {
		return nil
	}

	if s.log != nil {
		if err := s.appendLocked(RecordTypeBatch, encodeOps(ops)); err != nil {
			return err
		}
		s.sinceSnap++
	}

	s.store.apply(ops)
	metrics.StorageOperationsTotal.WithLabelValues("commit").Inc()
	metrics.StorageKeysTotal.Set(float64(s.store.Len()))

	if s.log != nil && s.snapCount > 0 && s.sinceSnap >= s.snapCount {
		if err := s.compactLocked(); err != nil {
			// the batch itself is durable; compaction is retried on the next commit
			slog.Warn("wal compaction failed", "error", err)
		}
	}

	return nil
}

func (s *Service) Get(key string) ([]byte, bool) {
	var (
		value []byte
		ok    bool
	)
	_ = s.View(func(tx *Txn) error {
		value, ok = tx.Get(key)
		return nil
	})
	metrics.StorageOperationsTotal.WithLabelValues("get").Inc()
	return value, ok
}

func (s *Service) Len() int {
	return s.store.Len()
}

// Snapshot encodes the full committed key space in key order as one
// checksummed snapshot record, the same framing the WAL uses. It is the
// backup format read by Restore.
func (s *Service) Snapshot() ([]byte, error) {
	s.store.mu.RLock()
	payload := encodeOps(sortedOps(s.store.data))
	s.store.mu.RUnlock()

	metrics.StorageSnapshotSize.Set(float64(len(payload)))
	return marshalRecord(RecordTypeSnapshot, payload), nil
}

// Restore replaces all state with a snapshot produced by Snapshot. The
// snapshot is verified before anything is changed; on a durable store it is
// logged and the WAL behind it dropped, so the restore survives a restart.
func (s *Service) Restore(snapshot []byte) error {
	recType, payload, err := unmarshalRecord(snapshot)
	if err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if recType != RecordTypeSnapshot {
		return fmt.Errorf("decode snapshot: %w: record type %d", ErrCorruptRecord, recType)
	}
	ops, err := decodeOps(payload)
	if err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if s.log != nil {
		if err := s.writeSnapshotLocked(payload); err != nil {
			return err
		}
	}

	data := make(map[string][]byte, len(ops))
	for _, o := range ops {
		if !o.deleted {
			data[o.key] = o.value
		}
	}
	s.store.Replace(data)
	metrics.StorageKeysTotal.Set(float64(len(data)))
	slog.Info("storage restored from snapshot", "keys", len(data))
	return nil
}

func (s *Service) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.log != nil {
		return s.log.Close()
	}
	return nil
}

func (s *Service) appendLocked(recType byte, payload []byte) error {
	start := time.Now()
	if err := s.log.Write(s.nextIndex, marshalRecord(recType, payload)); err != nil {
		return fmt.Errorf("wal.Write(%d): %w", s.nextIndex, err)
	}
	metrics.WALWriteDuration.Observe(time.Since(start).Seconds())
	metrics.WALWritesTotal.Inc()

	s.nextIndex++
	return nil
}

func (s *Service) compactLocked() error {
	return s.writeSnapshotLocked(encodeOps(sortedOps(s.store.data)))
}

// writeSnapshotLocked appends a snapshot record and drops every record before it.
func (s *Service) writeSnapshotLocked(payload []byte) error {
	snapIndex := s.nextIndex
	if err := s.appendLocked(RecordTypeSnapshot, payload); err != nil {
		return err
	}
	if err := s.log.TruncateFront(snapIndex); err != nil {
		return fmt.Errorf("wal.TruncateFront: %w", err)
	}

	s.sinceSnap = 0
	metrics.StorageSnapshotSize.Set(float64(len(payload)))
	slog.Debug("wal compacted", "snapshot_index", snapIndex, "bytes", len(payload))
	return nil
}

func sortedOps(data map[string][]byte) []op {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	ops := make([]op, 0, len(keys))
	for _, k := range keys {
		ops = append(ops, op{key: k, value: data[k]})
	}
	return ops
}
