package transport

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"realestate/internal/configuration/properties"
	"realestate/internal/dispatcher"
	"realestate/internal/raft"
	"realestate/internal/registry"
	"realestate/internal/statemachine"
	"realestate/internal/storage"
)

func sampleOffer() registry.Offer {
	return registry.Offer{
		PropertyType: registry.OneRoom,
		Region:       registry.Varna,
		Squaring:     "90kv",
		Construction: "Tuhla",
		Floor:        "5",
	}
}

// startStack wires storage, registry, sequencer and dispatcher behind an
// in-memory gRPC listener and returns a client calling as "admin".
func startStack(t *testing.T) *Client {
	t.Helper()

	contract := registry.New(storage.NewService(), registry.Options{AllowAdminClear: true})
	node, err := raft.NewNode(&properties.RaftConfigProperties{
		NodeId:         1,
		TickInterval:   10,
		ElectionTick:   10,
		HeartbeatTick:  1,
		ProposeTimeout: 5000,
	}, statemachine.New(contract))
	require.NoError(t, err)
	node.Start()
	t.Cleanup(node.Stop)

	ts := NewTransportService(&properties.TransportConfigProperties{
		Network: "tcp",
		Address: "127.0.0.1",
		Port:    "0",
		Timeout: 5,
	}, dispatcher.New(node, contract))

	lis := bufconn.Listen(1 << 20)
	ts.Serve(lis)
	t.Cleanup(func() { ts.Stop(time.Second) })

	client, closeConn, err := Dial("passthrough:///bufnet", "admin",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeConn() })

	return client
}

func TestTransport_EndToEnd(t *testing.T) {
	admin := startStack(t)
	ctx := context.Background()

	resp, err := admin.Bootstrap(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, dispatcher.CodeOK, resp.Code, resp.Log)
	assert.NotEmpty(t, resp.TraceID)

	resp, err = admin.AddBroker(ctx, "broker1")
	require.NoError(t, err)
	require.Equal(t, dispatcher.CodeOK, resp.Code, resp.Log)
	assert.Equal(t, "broker1", resp.Broker)

	broker := admin.As("broker1")
	resp, err = broker.CreateOffer(ctx, sampleOffer())
	require.NoError(t, err)
	require.Equal(t, dispatcher.CodeOK, resp.Code, resp.Log)
	assert.Equal(t, uint64(1), resp.OfferID)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "make_offer", resp.Events[0].Action)

	resp, err = broker.GetOffer(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, dispatcher.CodeOK, resp.Code, resp.Log)
	require.NotNil(t, resp.Offer)
	assert.True(t, sampleOffer().Equal(*resp.Offer))

	resp, err = broker.GetOffer(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, dispatcher.CodeNotFound, resp.Code)
	require.ErrorIs(t, resp.Err(), registry.ErrNotFound)
}

func TestTransport_DomainErrorsAreCodes(t *testing.T) {
	admin := startStack(t)
	ctx := context.Background()

	resp, err := admin.Bootstrap(ctx, 0)
	require.NoError(t, err)
	require.True(t, resp.OK())

	resp, err = admin.As("mallory").AddBroker(ctx, "broker1")
	require.NoError(t, err)
	assert.Equal(t, dispatcher.CodeUnauthorized, resp.Code)

	resp, err = admin.CreateOffer(ctx, sampleOffer())
	require.NoError(t, err)
	assert.Equal(t, dispatcher.CodeNotBroker, resp.Code)

	resp, err = admin.Bootstrap(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, dispatcher.CodeAlreadyInitialized, resp.Code)

	resp, err = admin.Execute(ctx, dispatcher.Request{Op: "burn"})
	require.NoError(t, err)
	assert.Equal(t, dispatcher.CodeInvalidRequest, resp.Code)

	resp, err = admin.Query(ctx, dispatcher.Request{Op: dispatcher.OpIncrement})
	require.NoError(t, err)
	assert.Equal(t, dispatcher.CodeInvalidRequest, resp.Code)
}

func TestTransport_InvalidOfferIsACode(t *testing.T) {
	admin := startStack(t)
	ctx := context.Background()

	_, err := admin.Bootstrap(ctx, 0)
	require.NoError(t, err)
	resp, err := admin.AddBroker(ctx, "broker1")
	require.NoError(t, err)
	require.True(t, resp.OK(), resp.Log)

	broker := admin.As("broker1")
	bad := sampleOffer()
	bad.Region = 0
	resp, err = broker.CreateOffer(ctx, bad)
	require.NoError(t, err)
	assert.Equal(t, dispatcher.CodeInvalidOffer, resp.Code)
	require.ErrorIs(t, resp.Err(), registry.ErrInvalidOffer)

	resp, err = broker.GetOffer(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, dispatcher.CodeNotFound, resp.Code)

	resp, err = broker.CreateOffer(ctx, sampleOffer())
	require.NoError(t, err)
	require.True(t, resp.OK(), resp.Log)
	assert.Equal(t, uint64(1), resp.OfferID, "rejected offer did not consume an id")
}

func TestTransport_ExecuteRequiresCaller(t *testing.T) {
	admin := startStack(t)

	_, err := admin.As("").Increment(context.Background())
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	resp, err := admin.As("").GetOffer(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, dispatcher.CodeNotFound, resp.Code)
}

func TestTransport_ConcurrentOffers(t *testing.T) {
	admin := startStack(t)
	ctx := context.Background()

	_, err := admin.Bootstrap(ctx, 0)
	require.NoError(t, err)
	brokers := []string{"broker1", "broker2", "broker3", "broker4"}
	for _, b := range brokers {
		resp, err := admin.AddBroker(ctx, b)
		require.NoError(t, err)
		require.True(t, resp.OK(), resp.Log)
	}

	const perBroker = 10
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[uint64]struct{})
	)
	for _, b := range brokers {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			for range perBroker {
				resp, err := c.CreateOffer(ctx, sampleOffer())
				if !assert.NoError(t, err) || !assert.True(t, resp.OK(), resp.Log) {
					return
				}
				mu.Lock()
				ids[resp.OfferID] = struct{}{}
				mu.Unlock()
			}
		}(admin.As(b))
	}
	wg.Wait()

	require.Len(t, ids, len(brokers)*perBroker)
	for id := uint64(1); id <= uint64(len(brokers)*perBroker); id++ {
		assert.Contains(t, ids, id)
	}
}

func TestCallerFromContext_Missing(t *testing.T) {
	_, ok := callerFromContext(context.Background())
	assert.False(t, ok)
}

func TestToGRPCError(t *testing.T) {
	assert.Equal(t, codes.DeadlineExceeded, status.Code(toGRPCError(context.DeadlineExceeded)))
	assert.Equal(t, codes.Canceled, status.Code(toGRPCError(context.Canceled)))
	assert.Equal(t, codes.Unavailable, status.Code(toGRPCError(dispatcher.ErrSequencerUnavailable)))
	assert.Equal(t, codes.Internal, status.Code(toGRPCError(assert.AnError)))
}
