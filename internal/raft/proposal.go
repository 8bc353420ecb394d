package raft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"realestate/internal/metrics"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	proposalReqIDField protowire.Number = 1
	proposalDataField  protowire.Number = 2
)

// Submit proposes data, waits for it to be committed and applied, and
// returns what the Applier produced. If ctx carries no deadline the
// configured propose timeout applies. A cancelled wait does not withdraw the
// proposal: it may still be applied later.
func (n *Node) Submit(ctx context.Context, data []byte) ([]byte, error) {
	if !n.started.Load() {
		return nil, ErrNotStarted
	}
	if err := n.failure(); err != nil {
		return nil, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.proposeTimeout)
		defer cancel()
	}

	if err := n.WaitLeader(ctx); err != nil {
		return nil, fmt.Errorf("wait for leader: %w", err)
	}

	reqID := n.nextReqID.Add(1)

	respCh := make(chan result, 1)
	n.registerPending(reqID, respCh)
	defer n.unregisterPending(reqID)

	// Propose blocks while the loop is not draining Ready, so it must also
	// give up once the loop has failed.
	proposeCtx, cancelPropose := context.WithCancel(ctx)
	defer cancelPropose()
	go func() {
		select {
		case <-n.failCh:
			cancelPropose()
		case <-proposeCtx.Done():
		}
	}()

	metrics.RaftProposalsTotal.Inc()
	if err := n.raftNode.Propose(proposeCtx, encodeProposal(reqID, data)); err != nil {
		metrics.RaftProposalsFailed.Inc()
		if ferr := n.failure(); ferr != nil {
			return nil, ferr
		}
		return nil, fmt.Errorf("raft propose: %w", err)
	}

	select {
	case res := <-respCh:
		if res.err != nil {
			metrics.RaftProposalsFailed.Inc()
		}
		return res.data, res.err
	case <-n.stopCh:
		metrics.RaftProposalsFailed.Inc()
		return nil, ErrStopped
	case <-n.failCh:
		metrics.RaftProposalsFailed.Inc()
		return nil, n.failure()
	case <-ctx.Done():
		metrics.RaftProposalsFailed.Inc()
		slog.Warn("proposal wait aborted", "node_id", n.Id, "req_id", reqID, "error", ctx.Err())
		return nil, ctx.Err()
	}
}

func (n *Node) registerPending(reqID uint64, ch chan result) {
	n.mu.Lock()
	n.pending[reqID] = ch
	n.mu.Unlock()
}

func (n *Node) unregisterPending(reqID uint64) {
	n.mu.Lock()
	delete(n.pending, reqID)
	n.mu.Unlock()
}

func (n *Node) failPending(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for id, ch := range n.pending {
		select {
		case ch <- result{err: err}:
		default:
		}
		delete(n.pending, id)
	}
}

func encodeProposal(reqID uint64, data []byte) []byte {
	b := make([]byte, 0, len(data)+16)
	b = protowire.AppendTag(b, proposalReqIDField, protowire.VarintType)
	b = protowire.AppendVarint(b, reqID)
	b = protowire.AppendTag(b, proposalDataField, protowire.BytesType)
	b = protowire.AppendBytes(b, data)
	return b
}

func decodeProposal(b []byte) (uint64, []byte, error) {
	var (
		reqID   uint64
		data    []byte
		hasData bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == proposalReqIDField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, nil, protowire.ParseError(n)
			}
			reqID = v
			b = b[n:]
		case num == proposalDataField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, nil, protowire.ParseError(n)
			}
			data = v
			hasData = true
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return 0, nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}

	if reqID == 0 || !hasData {
		return 0, nil, errors.New("proposal without request id or payload")
	}
	return reqID, data, nil
}
