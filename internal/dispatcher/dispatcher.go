// Package dispatcher is the single entry point for registry operations. It
// validates tagged requests, submits mutations to the sequencer so they are
// applied one at a time in a total order, serves reads from committed state,
// and reports every outcome as a Response with a stable code.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"realestate/internal/codec"
	"realestate/internal/metrics"
	"realestate/internal/registry"
)

var ErrSequencerUnavailable = errors.New("sequencer unavailable")

// Sequencer orders encoded commands and returns the encoded Response produced
// when the command was applied.
type Sequencer interface {
	Submit(ctx context.Context, data []byte) ([]byte, error)
}

type Reader interface {
	GetOffer(id uint64) (registry.Offer, error)
}

type Dispatcher struct {
	seq    Sequencer
	reader Reader
}

func New(seq Sequencer, reader Reader) *Dispatcher {
	return &Dispatcher{seq: seq, reader: reader}
}

// Execute runs req on behalf of caller. Domain failures are reported in the
// Response code; the returned error is reserved for infrastructure problems
// such as a cancelled context or a stopped sequencer, in which case a
// mutation may or may not have been applied.
func (d *Dispatcher) Execute(ctx context.Context, caller string, req Request) (*Response, error) {
	traceID := uuid.NewString()
	start := time.Now()

	resp, err := d.execute(ctx, traceID, caller, req)
	if err != nil {
		slog.Warn("request failed before completion",
			"trace_id", traceID,
			"op", req.Op,
			"caller", caller,
			"error", err,
		)
		metrics.OperationsTotal.WithLabelValues(string(req.Op), "error").Inc()
		return nil, err
	}

	resp.TraceID = traceID
	metrics.OperationsTotal.WithLabelValues(string(req.Op), resp.Code.String()).Inc()
	metrics.OperationDuration.WithLabelValues(string(req.Op)).Observe(time.Since(start).Seconds())
	for _, ev := range resp.Events {
		metrics.EventsTotal.WithLabelValues(ev.Action).Inc()
	}

	slog.Debug("request handled",
		"trace_id", traceID,
		"op", req.Op,
		"caller", caller,
		"code", resp.Code,
	)
	return resp, nil
}

func (d *Dispatcher) execute(ctx context.Context, traceID, caller string, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return Failure(err), nil
	}

	if !req.Op.Mutating() {
		return d.query(req), nil
	}

	data, err := codec.Marshal(Command{TraceID: traceID, Caller: caller, Request: req})
	if err != nil {
		return Failure(fmt.Errorf("%w: %w", ErrInvalidRequest, err)), nil
	}

	out, err := d.seq.Submit(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrSequencerUnavailable, err)
	}

	var resp Response
	if err := codec.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// Query serves a read-only request without going through the sequencer.
func (d *Dispatcher) Query(req Request) *Response {
	if err := req.Validate(); err != nil {
		return Failure(err)
	}
	if req.Op.Mutating() {
		return Failure(fmt.Errorf("%w: %s is not a query", ErrInvalidRequest, req.Op))
	}
	return d.query(req)
}

func (d *Dispatcher) query(req Request) *Response {
	switch req.Op {
	case OpGetOffer:
		offer, err := d.reader.GetOffer(req.OfferID)
		if err != nil {
			return Failure(err)
		}
		return &Response{Code: CodeOK, OfferID: req.OfferID, Offer: &offer}
	default:
		return Failure(fmt.Errorf("%w: unknown operation %q", ErrInvalidRequest, req.Op))
	}
}

func Failure(err error) *Response {
	return &Response{Code: CodeOf(err), Log: err.Error()}
}
