package transport

import (
	"context"
	"log/slog"
	"net"
	"time"

	"realestate/internal/configuration/properties"
	"realestate/internal/metrics"

	"google.golang.org/grpc"
)

type Service struct {
	network              string
	listenAddr           string
	timeout              time.Duration
	maxConcurrentStreams uint32
	handler              *RegistryHandler
	Server               *grpc.Server
}

func NewTransportService(transportConfig *properties.TransportConfigProperties, executor Executor) *Service {
	ts := &Service{
		network:              transportConfig.Network,
		listenAddr:           transportConfig.ListenAddr(),
		timeout:              transportConfig.RequestTimeout(),
		maxConcurrentStreams: transportConfig.MaxConcurrentStreams,
		handler:              NewRegistryHandler(executor),
	}

	if transportConfig.Timeout == 0 {
		slog.Warn("transport timeout can't be less than 1 second, using 1 second")
	}

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			metrics.UnaryServerInterceptor(),
			timeoutInterceptor(ts.timeout),
		),
	}
	if ts.maxConcurrentStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(ts.maxConcurrentStreams))
	}

	ts.Server = grpc.NewServer(opts...)
	RegisterRegistryServer(ts.Server, ts.handler)
	return ts
}

// StartServer listens on the configured address and serves in the background.
func (ts *Service) StartServer() (net.Listener, error) {
	lis, err := net.Listen(ts.network, ts.listenAddr)
	if err != nil {
		return nil, err
	}

	slog.Info("transport listening", "addr", lis.Addr().String(), "timeout", ts.timeout)
	ts.Serve(lis)
	return lis, nil
}

// Serve serves on an existing listener in the background.
func (ts *Service) Serve(lis net.Listener) {
	go func() {
		if err := ts.Server.Serve(lis); err != nil {
			slog.Error("failed to serve listener", "error", err)
		}
	}()
}

// Stop waits up to grace for in-flight requests before forcing the server
// down.
func (ts *Service) Stop(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		ts.Server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		slog.Warn("graceful stop timed out, forcing", "grace", grace)
		ts.Server.Stop()
	}
}

func timeoutInterceptor(d time.Duration) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		return handler(ctx, req)
	}
}
