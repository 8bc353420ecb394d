package raft

import (
	"errors"
	"log/slog"
	"time"

	"realestate/internal/metrics"

	etcdraft "go.etcd.io/raft/v3"
)

func (n *Node) startLoop() {
	n.stoppedWg.Add(1)
	go func() {
		defer n.stoppedWg.Done()
		n.runLoop()
	}()

	n.stoppedWg.Add(1)
	go func() {
		defer n.stoppedWg.Done()
		n.collectMetrics()
	}()

	slog.Info("raft loop started", "node_id", n.Id)
}

func (n *Node) collectMetrics() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-n.stopCh:
			return
		case <-n.failCh:
			n.updateMetrics()
			return
		case <-ticker.C:
			n.updateMetrics()
		}
	}
}

func (n *Node) updateMetrics() {
	status := n.raftNode.Status()

	if status.RaftState == etcdraft.StateLeader {
		metrics.RaftIsLeader.Set(1)
	} else {
		metrics.RaftIsLeader.Set(0)
	}

	metrics.RaftTerm.Set(float64(status.Term))
	metrics.RaftCommitIndex.Set(float64(status.Commit))
	metrics.RaftAppliedIndex.Set(float64(n.LastApplied()))
}

func (n *Node) runLoop() {
	ticker := time.NewTicker(n.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.stopCh:
			slog.Debug("raft loop stopping", "node_id", n.Id)
			return

		case <-ticker.C:
			n.raftNode.Tick()

		case rd, ok := <-n.raftNode.Ready():
			if !ok {
				slog.Warn("raft ready channel closed", "node_id", n.Id)
				n.fail(errors.New("ready channel closed"))
				return
			}
			if err := n.processReady(rd); err != nil {
				slog.Error("processReady failed", "node_id", n.Id, "error", err)
				n.fail(err)
				return
			}
		}
	}
}

func (n *Node) processReady(rd etcdraft.Ready) error {
	slog.Debug("processing ready",
		"node_id", n.Id,
		"entries", len(rd.Entries),
		"committed", len(rd.CommittedEntries),
		"messages", len(rd.Messages),
	)

	if rd.SoftState != nil {
		leader := rd.SoftState.RaftState == etcdraft.StateLeader
		n.isLeader.Store(leader)
		if leader {
			n.markLeader()
		}
	}

	if !etcdraft.IsEmptySnap(rd.Snapshot) {
		if err := n.storage.ApplySnapshot(rd.Snapshot); err != nil {
			return err
		}
	}
	if !etcdraft.IsEmptyHardState(rd.HardState) {
		if err := n.storage.SetHardState(rd.HardState); err != nil {
			return err
		}
	}
	if err := n.storage.Append(rd.Entries); err != nil {
		return err
	}

	if len(rd.Messages) > 0 {
		// a single-member group has no peers to talk to
		slog.Debug("dropping raft messages", "node_id", n.Id, "count", len(rd.Messages))
	}

	n.applyCommitted(rd.CommittedEntries)

	n.raftNode.Advance()
	return nil
}
