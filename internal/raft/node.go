package raft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"realestate/internal/configuration/properties"

	etcdraft "go.etcd.io/raft/v3"
)

var (
	ErrStopped    = errors.New("raft node stopped")
	ErrNotStarted = errors.New("raft node not started")
)

// Applier consumes committed proposals in log order. The returned bytes are
// handed back to the proposer.
type Applier interface {
	Apply(data []byte) ([]byte, error)
}

type result struct {
	data []byte
	err  error
}

// Node is a single-member raft group used as a sequencer: every submitted
// proposal is appended to the raft log, committed and then applied exactly
// once, in log order, by one goroutine. Durable state lives behind the
// Applier; the raft log itself is kept in memory and starts fresh on every
// boot.
type Node struct {
	Id       uint64
	raftNode etcdraft.Node
	storage  *etcdraft.MemoryStorage
	applier  Applier

	// Proposal handling
	pending   map[uint64]chan result
	nextReqID atomic.Uint64
	mu        sync.Mutex

	// Leader tracking
	leaderCh   chan struct{}
	leaderOnce sync.Once
	isLeader   atomic.Bool

	lastApplied atomic.Uint64

	// Lifecycle
	started   atomic.Bool
	stopCh    chan struct{}
	stopOnce  sync.Once
	stoppedWg sync.WaitGroup

	// failCh is closed when the loop exits on an error; failErr is set first.
	failCh   chan struct{}
	failOnce sync.Once
	failErr  error

	tickInterval   time.Duration
	proposeTimeout time.Duration
}

// NewNode creates a raft node with the given configuration. Call Start to
// begin ticking and applying.
func NewNode(rc *properties.RaftConfigProperties, applier Applier) (*Node, error) {
	cfg, err := newNodeConfig(rc)
	if err != nil {
		return nil, err
	}

	n := &Node{
		Id:             cfg.id,
		raftNode:       cfg.raftNode,
		storage:        cfg.storage,
		applier:        applier,
		pending:        make(map[uint64]chan result),
		leaderCh:       make(chan struct{}),
		stopCh:         make(chan struct{}),
		failCh:         make(chan struct{}),
		tickInterval:   rc.TickDuration(),
		proposeTimeout: rc.ProposeDuration(),
	}

	slog.Info("raft node created", "id", n.Id)
	return n, nil
}

func (n *Node) Status() etcdraft.Status {
	return n.raftNode.Status()
}

// Start launches the raft loop and campaigns for leadership. Submit blocks
// until the node has become leader.
func (n *Node) Start() {
	if !n.started.CompareAndSwap(false, true) {
		return
	}

	n.startLoop()

	ctx, cancel := context.WithTimeout(context.Background(), n.proposeTimeout)
	defer cancel()
	if err := n.raftNode.Campaign(ctx); err != nil {
		slog.Warn("campaign failed, waiting for election timeout", "node_id", n.Id, "error", err)
	}
}

// WaitLeader blocks until the node leads the group.
func (n *Node) WaitLeader(ctx context.Context) error {
	if err := n.failure(); err != nil {
		return err
	}
	select {
	case <-n.leaderCh:
		return nil
	case <-n.stopCh:
		return ErrStopped
	case <-n.failCh:
		return n.failure()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Node) IsLeader() bool {
	return n.isLeader.Load()
}

func (n *Node) LastApplied() uint64 {
	return n.lastApplied.Load()
}

func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		close(n.stopCh)
		n.stoppedWg.Wait()
		n.raftNode.Stop()
		n.failPending(ErrStopped)
		slog.Info("raft node stopped", "id", n.Id)
	})
}

// fail marks the node unusable after the raft loop gave up. Waiting and
// future proposals return ErrStopped wrapping err.
func (n *Node) fail(err error) {
	n.failOnce.Do(func() {
		n.failErr = fmt.Errorf("%w: %w", ErrStopped, err)
		n.isLeader.Store(false)
		close(n.failCh)
		n.failPending(n.failErr)
	})
}

func (n *Node) failure() error {
	select {
	case <-n.failCh:
		return n.failErr
	default:
		return nil
	}
}

func (n *Node) markLeader() {
	n.leaderOnce.Do(func() {
		close(n.leaderCh)
		slog.Info("raft node became leader", "id", n.Id)
	})
}
