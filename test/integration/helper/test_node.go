package helper

import (
	"context"
	"sync"
	"testing"
	"time"

	"realestate/internal/configuration/properties"
	"realestate/internal/dispatcher"
	"realestate/internal/logging"
	"realestate/internal/raft"
	"realestate/internal/registry"
	"realestate/internal/statemachine"
	"realestate/internal/storage"
	"realestate/internal/transport"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var initOnce sync.Once

type TestNodeConfig struct {
	SnapCount       uint64
	AllowAdminClear bool
	TickInterval    time.Duration
}

var DefaultConfig = TestNodeConfig{
	SnapCount:       5,
	AllowAdminClear: true,
	TickInterval:    10 * time.Millisecond,
}

// TestNode runs the whole registry stack over a real TCP listener with a
// durable store, so it can be stopped and restarted on the same data.
type TestNode struct {
	t       *testing.T
	config  TestNodeConfig
	DataDir string

	Storage   *storage.Service
	Contract  *registry.Contract
	Raft      *raft.Node
	Transport *transport.Service
	Addr      string

	client    *transport.Client
	closeConn func() error
	running   bool
	mu        sync.Mutex
}

func NewTestNode(t *testing.T, cfg *TestNodeConfig, logLevel string) *TestNode {
	initOnce.Do(func() {
		logging.Init(logLevel)
	})

	actualCfg := DefaultConfig
	if cfg != nil {
		actualCfg = *cfg
	}

	n := &TestNode{
		t:       t,
		config:  actualCfg,
		DataDir: t.TempDir(),
	}
	t.Cleanup(n.Stop)

	n.Start()
	return n
}

func (n *TestNode) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return
	}

	store, err := storage.Open(storage.Options{
		Dir:       n.DataDir,
		NoSync:    true,
		SnapCount: n.config.SnapCount,
	})
	require.NoError(n.t, err)

	contract := registry.New(store, registry.Options{
		AllowAdminClear: n.config.AllowAdminClear,
		ContractName:    "crates.io:real-estate",
		ContractVersion: "test",
	})
	require.NoError(n.t, contract.CheckInvariants())

	node, err := raft.NewNode(&properties.RaftConfigProperties{
		NodeId:         1,
		TickInterval:   uint64(n.config.TickInterval / time.Millisecond),
		ElectionTick:   10,
		HeartbeatTick:  1,
		ProposeTimeout: 5000,
	}, statemachine.New(contract))
	require.NoError(n.t, err)
	node.Start()

	ts := transport.NewTransportService(&properties.TransportConfigProperties{
		Network: "tcp",
		Address: "127.0.0.1",
		Port:    "0",
		Timeout: 5,
	}, dispatcher.New(node, contract))
	lis, err := ts.StartServer()
	require.NoError(n.t, err)

	client, closeConn, err := transport.Dial(lis.Addr().String(), "",
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(n.t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(n.t, node.WaitLeader(ctx))

	n.Storage = store
	n.Contract = contract
	n.Raft = node
	n.Transport = ts
	n.Addr = lis.Addr().String()
	n.client = client
	n.closeConn = closeConn
	n.running = true
}

func (n *TestNode) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running {
		return
	}

	_ = n.closeConn()
	n.Transport.Stop(time.Second)
	n.Raft.Stop()
	require.NoError(n.t, n.Storage.Close())
	n.running = false
}

func (n *TestNode) Restart() {
	n.Stop()
	n.Start()
}

// As returns a client calling as identity.
func (n *TestNode) As(identity string) *transport.Client {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.client.As(identity)
}

// MustOK returns a checker that fails t unless a client call succeeded with
// CodeOK: must := helper.MustOK(t); must(client.Increment(ctx)).
func MustOK(t *testing.T) func(*dispatcher.Response, error) *dispatcher.Response {
	return func(resp *dispatcher.Response, err error) *dispatcher.Response {
		t.Helper()
		require.NoError(t, err)
		require.NoError(t, resp.Err(), "code %s", resp.Code)
		return resp
	}
}

func SampleOffer(floor string) registry.Offer {
	return registry.Offer{
		PropertyType: registry.OneRoom,
		Region:       registry.Varna,
		Squaring:     "90kv",
		Construction: "Tuhla",
		Floor:        floor,
	}
}
