package transport

import (
	"context"
	"fmt"

	"realestate/internal/dispatcher"
	"realestate/internal/registry"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Client calls the registry service as a fixed caller identity.
type Client struct {
	conn   grpc.ClientConnInterface
	caller string
}

func NewClient(conn grpc.ClientConnInterface, caller string) *Client {
	return &Client{conn: conn, caller: caller}
}

// Dial opens a connection to target. The returned close function releases it.
func Dial(target, caller string, opts ...grpc.DialOption) (*Client, func() error, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)))
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return NewClient(conn, caller), conn.Close, nil
}

// As returns a client sharing the connection but calling as another identity.
func (c *Client) As(caller string) *Client {
	return &Client{conn: c.conn, caller: caller}
}

// Execute sends a mutation. Requests that would be refused before reaching
// the sequencer, such as offers with an unknown region, are answered locally
// with the same Response the server would produce; they could not be encoded
// on the wire anyway.
func (c *Client) Execute(ctx context.Context, req dispatcher.Request) (*dispatcher.Response, error) {
	if err := req.Validate(); err != nil {
		return dispatcher.Failure(err), nil
	}
	if c.caller != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, CallerMetadataKey, c.caller)
	}
	out := new(dispatcher.Response)
	if err := c.conn.Invoke(ctx, ExecuteFullMethod, &req, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Query(ctx context.Context, req dispatcher.Request) (*dispatcher.Response, error) {
	if err := req.Validate(); err != nil {
		return dispatcher.Failure(err), nil
	}
	out := new(dispatcher.Response)
	if err := c.conn.Invoke(ctx, QueryFullMethod, &req, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Bootstrap(ctx context.Context, seed int64) (*dispatcher.Response, error) {
	return c.Execute(ctx, dispatcher.Request{Op: dispatcher.OpBootstrap, Seed: seed})
}

func (c *Client) Increment(ctx context.Context) (*dispatcher.Response, error) {
	return c.Execute(ctx, dispatcher.Request{Op: dispatcher.OpIncrement})
}

func (c *Client) AddBroker(ctx context.Context, address string) (*dispatcher.Response, error) {
	return c.Execute(ctx, dispatcher.Request{Op: dispatcher.OpAddBroker, Address: address})
}

func (c *Client) CreateOffer(ctx context.Context, offer registry.Offer) (*dispatcher.Response, error) {
	return c.Execute(ctx, dispatcher.Request{Op: dispatcher.OpCreateOffer, Offer: &offer})
}

// RotateAdmin hands the administrator role to newAdmin; nil clears it.
func (c *Client) RotateAdmin(ctx context.Context, newAdmin *string) (*dispatcher.Response, error) {
	return c.Execute(ctx, dispatcher.Request{Op: dispatcher.OpRotateAdmin, NewAdmin: newAdmin})
}

func (c *Client) GetOffer(ctx context.Context, id uint64) (*dispatcher.Response, error) {
	return c.Query(ctx, dispatcher.Request{Op: dispatcher.OpGetOffer, OfferID: id})
}
