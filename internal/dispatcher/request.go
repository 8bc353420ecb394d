package dispatcher

import (
	"fmt"

	"realestate/internal/registry"
)

type Operation string

const (
	OpBootstrap   Operation = "bootstrap"
	OpIncrement   Operation = "increment"
	OpAddBroker   Operation = "add_broker"
	OpCreateOffer Operation = "create_offer"
	OpRotateAdmin Operation = "rotate_admin"
	OpGetOffer    Operation = "get_offer"
)

// Mutating reports whether op changes registry state and therefore has to be
// ordered by the sequencer.
func (op Operation) Mutating() bool {
	switch op {
	case OpBootstrap, OpIncrement, OpAddBroker, OpCreateOffer, OpRotateAdmin:
		return true
	default:
		return false
	}
}

func (op Operation) Known() bool {
	return op.Mutating() || op == OpGetOffer
}

// Request is the tagged union of every registry operation. Only the fields
// relevant to Op are read.
type Request struct {
	Op       Operation       `json:"op"`
	Seed     int64           `json:"seed,omitempty"`
	Address  string          `json:"address,omitempty"`
	Offer    *registry.Offer `json:"offer,omitempty"`
	NewAdmin *string         `json:"new_admin,omitempty"`
	OfferID  uint64          `json:"offer_id,omitempty"`
}

// Validate rejects requests that cannot be encoded or applied. Offers with an
// unknown property type or region fail here with registry.ErrInvalidOffer,
// before the caller's broker membership is looked at.
func (r Request) Validate() error {
	if !r.Op.Known() {
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidRequest, r.Op)
	}
	if r.Op == OpCreateOffer {
		if r.Offer == nil {
			return fmt.Errorf("%w: create_offer without an offer", ErrInvalidRequest)
		}
		return r.Offer.Validate()
	}
	return nil
}

// Command is what travels through the sequencer: the request together with
// the identity that issued it.
type Command struct {
	TraceID string  `json:"trace_id"`
	Caller  string  `json:"caller"`
	Request Request `json:"request"`
}

type Response struct {
	Code    Code             `json:"code"`
	Log     string           `json:"log,omitempty"`
	Broker  string           `json:"broker,omitempty"`
	OfferID uint64           `json:"offer_id,omitempty"`
	Offer   *registry.Offer  `json:"offer,omitempty"`
	Events  []registry.Event `json:"events,omitempty"`
	TraceID string           `json:"trace_id,omitempty"`
}

func (r *Response) OK() bool {
	return r.Code == CodeOK
}

// Err turns a failed response back into an error that matches the registry
// sentinel for its code.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	sentinel := r.Code.Sentinel()
	if r.Log == "" || r.Log == sentinel.Error() {
		return sentinel
	}
	return &ResponseError{Code: r.Code, Log: r.Log}
}

type ResponseError struct {
	Code Code
	Log  string
}

func (e *ResponseError) Error() string {
	return e.Log
}

func (e *ResponseError) Unwrap() error {
	return e.Code.Sentinel()
}
