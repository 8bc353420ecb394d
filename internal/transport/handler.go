package transport

import (
	"context"
	"errors"
	"log/slog"

	"realestate/internal/dispatcher"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Executor is the part of the dispatcher the transport needs.
type Executor interface {
	Execute(ctx context.Context, caller string, req dispatcher.Request) (*dispatcher.Response, error)
	Query(req dispatcher.Request) *dispatcher.Response
}

type RegistryHandler struct {
	executor Executor
}

func NewRegistryHandler(e Executor) *RegistryHandler {
	return &RegistryHandler{executor: e}
}

// Execute runs a request as the identity found in the caller metadata.
// Registry failures come back as a Response code with an OK status; only
// transport and sequencing problems become gRPC errors.
func (h *RegistryHandler) Execute(ctx context.Context, req *dispatcher.Request) (*dispatcher.Response, error) {
	caller, ok := callerFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing "+CallerMetadataKey+" metadata")
	}

	slog.Debug("received request", "op", req.Op, "caller", caller)

	resp, err := h.executor.Execute(ctx, caller, *req)
	if err != nil {
		slog.Error("request failed",
			"op", req.Op,
			"caller", caller,
			"error", err,
		)
		return nil, toGRPCError(err)
	}
	return resp, nil
}

func (h *RegistryHandler) Query(_ context.Context, req *dispatcher.Request) (*dispatcher.Response, error) {
	return h.executor.Query(*req), nil
}

func callerFromContext(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	values := md.Get(CallerMetadataKey)
	if len(values) == 0 || values[0] == "" {
		return "", false
	}
	return values[0], true
}

func toGRPCError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, dispatcher.ErrSequencerUnavailable):
		return status.Error(codes.Unavailable, "sequencer unavailable")
	default:
		return status.Errorf(codes.Internal, "internal error: %v", err)
	}
}
