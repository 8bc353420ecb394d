package raft

import (
	"log/slog"

	"go.etcd.io/etcd/pkg/v3/pbutil"
	"go.etcd.io/raft/v3/raftpb"
)

// applyCommitted processes committed raft entries.
func (n *Node) applyCommitted(entries []raftpb.Entry) {
	for _, entry := range entries {
		switch entry.Type {
		case raftpb.EntryConfChange:
			n.applyConfChange(entry)
		case raftpb.EntryNormal:
			n.applyNormalEntry(entry)
		default:
			slog.Warn("ignoring unsupported raft entry type",
				"node_id", n.Id,
				"index", entry.Index,
				"term", entry.Term,
				"type", entry.Type.String(),
			)
		}

		n.updateLastApplied(entry.Index)
	}
}

// applyConfChange records the bootstrap membership entry.
func (n *Node) applyConfChange(entry raftpb.Entry) {
	var cc raftpb.ConfChange
	pbutil.MustUnmarshal(&cc, entry.Data)

	confState := n.raftNode.ApplyConfChange(cc)
	slog.Debug("applied conf change",
		"node_id", n.Id,
		"index", entry.Index,
		"type", cc.Type.String(),
		"target_node", cc.NodeID,
		"voters", confState.Voters,
	)
}

// applyNormalEntry hands a proposal to the applier and delivers the outcome
// to the proposer, if it is still waiting.
func (n *Node) applyNormalEntry(entry raftpb.Entry) {
	if len(entry.Data) == 0 {
		return
	}

	reqID, data, err := decodeProposal(entry.Data)
	if err != nil {
		slog.Error("failed to decode proposal",
			"node_id", n.Id,
			"index", entry.Index,
			"error", err,
		)
		return
	}

	out, err := n.applier.Apply(data)
	if err != nil {
		slog.Error("failed to apply proposal",
			"node_id", n.Id,
			"index", entry.Index,
			"req_id", reqID,
			"error", err,
		)
	}

	n.notifyWaiter(reqID, result{data: out, err: err})
}

// notifyWaiter sends a result to the waiting proposer, if any.
func (n *Node) notifyWaiter(reqID uint64, res result) {
	n.mu.Lock()
	waiterCh, ok := n.pending[reqID]
	n.mu.Unlock()

	if !ok {
		slog.Debug("no waiter for proposal", "req_id", reqID)
		return
	}

	select {
	case waiterCh <- res:
	default:
		slog.Debug("waiter channel full", "req_id", reqID)
	}
}

func (n *Node) updateLastApplied(index uint64) {
	if index > n.lastApplied.Load() {
		n.lastApplied.Store(index)
	}
}
