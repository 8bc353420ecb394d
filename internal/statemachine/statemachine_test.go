package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate/internal/codec"
	"realestate/internal/dispatcher"
	"realestate/internal/registry"
	"realestate/internal/storage"
)

func apply(t *testing.T, sm *StateMachine, caller string, req dispatcher.Request) *dispatcher.Response {
	t.Helper()
	data, err := codec.Marshal(dispatcher.Command{TraceID: "t", Caller: caller, Request: req})
	require.NoError(t, err)

	out, err := sm.Apply(data)
	require.NoError(t, err)

	var resp dispatcher.Response
	require.NoError(t, codec.Unmarshal(out, &resp))
	return &resp
}

func newStateMachine(t *testing.T) (*StateMachine, *registry.Contract) {
	t.Helper()
	contract := registry.New(storage.NewService(), registry.Options{AllowAdminClear: true})
	return New(contract), contract
}

func TestApply_Scenario(t *testing.T) {
	sm, contract := newStateMachine(t)

	resp := apply(t, sm, "admin", dispatcher.Request{Op: dispatcher.OpBootstrap, Seed: 3})
	require.Equal(t, dispatcher.CodeOK, resp.Code, resp.Log)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "instantiate", resp.Events[0].Action)

	resp = apply(t, sm, "admin", dispatcher.Request{Op: dispatcher.OpAddBroker, Address: "broker1"})
	require.Equal(t, dispatcher.CodeOK, resp.Code, resp.Log)
	assert.Equal(t, "broker1", resp.Broker)

	offer := registry.Offer{
		PropertyType: registry.OneRoom,
		Region:       registry.Varna,
		Squaring:     "90kv",
		Construction: "Tuhla",
		Floor:        "5",
	}
	resp = apply(t, sm, "broker1", dispatcher.Request{Op: dispatcher.OpCreateOffer, Offer: &offer})
	require.Equal(t, dispatcher.CodeOK, resp.Code, resp.Log)
	assert.Equal(t, uint64(1), resp.OfferID)

	resp = apply(t, sm, "anyone", dispatcher.Request{Op: dispatcher.OpIncrement})
	require.Equal(t, dispatcher.CodeOK, resp.Code, resp.Log)

	got, err := contract.GetOffer(1)
	require.NoError(t, err)
	assert.True(t, offer.Equal(got))

	st, err := contract.State()
	require.NoError(t, err)
	assert.Equal(t, registry.State{Count: 1, Heartbeats: 4}, st)
}

func TestApply_FailuresCarryCodes(t *testing.T) {
	sm, _ := newStateMachine(t)

	resp := apply(t, sm, "admin", dispatcher.Request{Op: dispatcher.OpBootstrap})
	require.True(t, resp.OK())

	tests := []struct {
		name   string
		caller string
		req    dispatcher.Request
		want   dispatcher.Code
	}{
		{"second bootstrap", "admin", dispatcher.Request{Op: dispatcher.OpBootstrap}, dispatcher.CodeAlreadyInitialized},
		{"add broker as stranger", "mallory", dispatcher.Request{Op: dispatcher.OpAddBroker, Address: "broker1"}, dispatcher.CodeUnauthorized},
		{"invalid broker", "admin", dispatcher.Request{Op: dispatcher.OpAddBroker, Address: "BAD"}, dispatcher.CodeInvalidIdentity},
		{"offer from non broker", "admin", dispatcher.Request{Op: dispatcher.OpCreateOffer, Offer: &registry.Offer{PropertyType: registry.TwoRoom, Region: registry.Sofia}}, dispatcher.CodeNotBroker},
		{"offer missing", "admin", dispatcher.Request{Op: dispatcher.OpCreateOffer}, dispatcher.CodeInvalidRequest},
		{"read through sequencer", "admin", dispatcher.Request{Op: dispatcher.OpGetOffer, OfferID: 1}, dispatcher.CodeInvalidRequest},
		{"unknown op", "admin", dispatcher.Request{Op: "transfer"}, dispatcher.CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := apply(t, sm, tt.caller, tt.req)
			assert.Equal(t, tt.want, resp.Code, resp.Log)
			assert.NotEmpty(t, resp.Log)
			assert.Empty(t, resp.Events)
		})
	}
}

func TestApply_Callbacks(t *testing.T) {
	sm, _ := newStateMachine(t)

	var seen []dispatcher.Operation
	sm.OnApply(func(cmd dispatcher.Command, resp *dispatcher.Response) {
		seen = append(seen, cmd.Request.Op)
	})

	apply(t, sm, "admin", dispatcher.Request{Op: dispatcher.OpBootstrap})
	apply(t, sm, "admin", dispatcher.Request{Op: dispatcher.OpIncrement})

	assert.Equal(t, []dispatcher.Operation{dispatcher.OpBootstrap, dispatcher.OpIncrement}, seen)
}

func TestApply_Garbage(t *testing.T) {
	sm, _ := newStateMachine(t)

	_, err := sm.Apply([]byte{0xff, 0x00})
	require.Error(t, err)
}
