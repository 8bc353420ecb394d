package statemachine

import (
	"fmt"
	"log/slog"
	"sync"

	"realestate/internal/codec"
	"realestate/internal/dispatcher"
	"realestate/internal/registry"
)

type ApplyCallback func(cmd dispatcher.Command, resp *dispatcher.Response)

// StateMachine is the apply side of the sequencer: it decodes a committed
// command, runs it against the registry and encodes the outcome. It must be
// driven by a single goroutine so that commands apply in log order.
type StateMachine struct {
	contract  *registry.Contract
	callbacks []ApplyCallback
	mu        sync.RWMutex
}

func New(contract *registry.Contract) *StateMachine {
	return &StateMachine{
		contract:  contract,
		callbacks: make([]ApplyCallback, 0),
	}
}

// OnApply registers cb to observe every applied command.
func (sm *StateMachine) OnApply(cb ApplyCallback) {
	sm.mu.Lock()
	sm.callbacks = append(sm.callbacks, cb)
	sm.mu.Unlock()
}

// Apply never fails for a well-formed command: domain errors are carried in
// the encoded Response. It returns an error only when data cannot be decoded
// or the response cannot be encoded.
func (sm *StateMachine) Apply(data []byte) ([]byte, error) {
	var cmd dispatcher.Command
	if err := codec.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("unmarshal command: %w", err)
	}

	resp := sm.execute(cmd)
	sm.notify(cmd, resp)

	out, err := codec.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return out, nil
}

func (sm *StateMachine) execute(cmd dispatcher.Command) *dispatcher.Response {
	req := cmd.Request
	if err := req.Validate(); err != nil {
		return dispatcher.Failure(err)
	}

	switch req.Op {
	case dispatcher.OpBootstrap:
		events, err := sm.contract.Instantiate(cmd.Caller, req.Seed)
		return eventsResponse(events, err)

	case dispatcher.OpIncrement:
		events, err := sm.contract.Increment()
		return eventsResponse(events, err)

	case dispatcher.OpAddBroker:
		broker, events, err := sm.contract.AddBroker(cmd.Caller, req.Address)
		if err != nil {
			return dispatcher.Failure(err)
		}
		return &dispatcher.Response{Code: dispatcher.CodeOK, Broker: broker, Events: events}

	case dispatcher.OpCreateOffer:
		id, events, err := sm.contract.CreateOffer(cmd.Caller, *req.Offer)
		if err != nil {
			return dispatcher.Failure(err)
		}
		return &dispatcher.Response{Code: dispatcher.CodeOK, OfferID: id, Events: events}

	case dispatcher.OpRotateAdmin:
		events, err := sm.contract.RotateAdmin(cmd.Caller, req.NewAdmin)
		return eventsResponse(events, err)

	default:
		slog.Warn("command is not a mutation", "trace_id", cmd.TraceID, "op", req.Op)
		return dispatcher.Failure(fmt.Errorf("%w: %s cannot be sequenced", dispatcher.ErrInvalidRequest, req.Op))
	}
}

func (sm *StateMachine) notify(cmd dispatcher.Command, resp *dispatcher.Response) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, cb := range sm.callbacks {
		cb(cmd, resp)
	}
}

func eventsResponse(events []registry.Event, err error) *dispatcher.Response {
	if err != nil {
		return dispatcher.Failure(err)
	}
	return &dispatcher.Response{Code: dispatcher.CodeOK, Events: events}
}
