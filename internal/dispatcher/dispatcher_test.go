package dispatcher_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate/internal/dispatcher"
	"realestate/internal/registry"
	"realestate/internal/statemachine"
	"realestate/internal/storage"
)

// localSequencer applies submissions inline, one at a time.
type localSequencer struct {
	mu      sync.Mutex
	sm      *statemachine.StateMachine
	err     error
	applied int
}

func (s *localSequencer) Submit(_ context.Context, data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.applied++
	return s.sm.Apply(data)
}

func newDispatcher(t *testing.T) (*dispatcher.Dispatcher, *localSequencer) {
	t.Helper()
	contract := registry.New(storage.NewService(), registry.Options{})
	seq := &localSequencer{sm: statemachine.New(contract)}
	return dispatcher.New(seq, contract), seq
}

func offer() *registry.Offer {
	return &registry.Offer{
		PropertyType: registry.OneRoom,
		Region:       registry.Varna,
		Squaring:     "90kv",
		Construction: "Tuhla",
		Floor:        "5",
	}
}

func exec(t *testing.T, d *dispatcher.Dispatcher, caller string, req dispatcher.Request) *dispatcher.Response {
	t.Helper()
	resp, err := d.Execute(context.Background(), caller, req)
	require.NoError(t, err)
	return resp
}

func TestDispatcher_Scenario(t *testing.T) {
	d, _ := newDispatcher(t)

	resp := exec(t, d, "admin", dispatcher.Request{Op: dispatcher.OpBootstrap})
	require.True(t, resp.OK(), resp.Log)
	assert.NotEmpty(t, resp.TraceID)

	resp = exec(t, d, "admin", dispatcher.Request{Op: dispatcher.OpAddBroker, Address: "broker1"})
	require.True(t, resp.OK(), resp.Log)

	resp = exec(t, d, "broker1", dispatcher.Request{Op: dispatcher.OpCreateOffer, Offer: offer()})
	require.True(t, resp.OK(), resp.Log)
	assert.Equal(t, uint64(1), resp.OfferID)

	first := exec(t, d, "", dispatcher.Request{Op: dispatcher.OpGetOffer, OfferID: 1})
	require.True(t, first.OK(), first.Log)
	second := exec(t, d, "someone", dispatcher.Request{Op: dispatcher.OpGetOffer, OfferID: 1})
	require.True(t, second.OK(), second.Log)
	assert.Equal(t, first.Offer, second.Offer, "reads are idempotent")
	assert.True(t, offer().Equal(*first.Offer))

	resp = exec(t, d, "", dispatcher.Request{Op: dispatcher.OpGetOffer, OfferID: 2})
	assert.Equal(t, dispatcher.CodeNotFound, resp.Code)
}

func TestDispatcher_ReadsBypassSequencer(t *testing.T) {
	d, seq := newDispatcher(t)

	exec(t, d, "admin", dispatcher.Request{Op: dispatcher.OpBootstrap})
	require.Equal(t, 1, seq.applied)

	resp := d.Query(dispatcher.Request{Op: dispatcher.OpGetOffer, OfferID: 1})
	assert.Equal(t, dispatcher.CodeNotFound, resp.Code)
	exec(t, d, "", dispatcher.Request{Op: dispatcher.OpGetOffer, OfferID: 1})
	assert.Equal(t, 1, seq.applied)

	resp = d.Query(dispatcher.Request{Op: dispatcher.OpAddBroker, Address: "broker1"})
	assert.Equal(t, dispatcher.CodeInvalidRequest, resp.Code)
	assert.Equal(t, 1, seq.applied)
}

func TestDispatcher_InvalidRequests(t *testing.T) {
	d, seq := newDispatcher(t)

	resp := exec(t, d, "admin", dispatcher.Request{Op: "mint"})
	assert.Equal(t, dispatcher.CodeInvalidRequest, resp.Code)

	resp = exec(t, d, "admin", dispatcher.Request{Op: dispatcher.OpCreateOffer})
	assert.Equal(t, dispatcher.CodeInvalidRequest, resp.Code)

	assert.Zero(t, seq.applied)
}

func TestDispatcher_InvalidOffer(t *testing.T) {
	contract := registry.New(storage.NewService(), registry.Options{})
	seq := &localSequencer{sm: statemachine.New(contract)}
	d := dispatcher.New(seq, contract)

	require.True(t, exec(t, d, "admin", dispatcher.Request{Op: dispatcher.OpBootstrap}).OK())
	require.True(t, exec(t, d, "admin", dispatcher.Request{Op: dispatcher.OpAddBroker, Address: "broker1"}).OK())
	applied := seq.applied

	noRegion := offer()
	noRegion.Region = 0
	badType := offer()
	badType.PropertyType = 42

	for _, o := range []*registry.Offer{noRegion, badType} {
		resp := exec(t, d, "broker1", dispatcher.Request{Op: dispatcher.OpCreateOffer, Offer: o})
		assert.Equal(t, dispatcher.CodeInvalidOffer, resp.Code, resp.Log)
		require.ErrorIs(t, resp.Err(), registry.ErrInvalidOffer)
	}

	resp := exec(t, d, "stranger", dispatcher.Request{Op: dispatcher.OpCreateOffer, Offer: noRegion})
	assert.Equal(t, dispatcher.CodeInvalidOffer, resp.Code, "offer shape is checked before membership")

	assert.Equal(t, applied, seq.applied, "invalid offers never reach the sequencer")
	count, err := contract.OfferCount()
	require.NoError(t, err)
	assert.Zero(t, count)

	resp = exec(t, d, "broker1", dispatcher.Request{Op: dispatcher.OpCreateOffer, Offer: offer()})
	require.True(t, resp.OK(), resp.Log)
	assert.Equal(t, uint64(1), resp.OfferID)
}

func TestDispatcher_SequencerFailure(t *testing.T) {
	d, seq := newDispatcher(t)
	seq.err = errors.New("node stopped")

	_, err := d.Execute(context.Background(), "admin", dispatcher.Request{Op: dispatcher.OpBootstrap})
	require.ErrorIs(t, err, dispatcher.ErrSequencerUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Execute(ctx, "admin", dispatcher.Request{Op: dispatcher.OpBootstrap})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want dispatcher.Code
	}{
		{nil, dispatcher.CodeOK},
		{registry.ErrUnauthorized, dispatcher.CodeUnauthorized},
		{registry.ErrInvalidIdentity, dispatcher.CodeInvalidIdentity},
		{registry.ErrAlreadyBroker, dispatcher.CodeAlreadyBroker},
		{registry.ErrNotBroker, dispatcher.CodeNotBroker},
		{registry.ErrNotFound, dispatcher.CodeNotFound},
		{dispatcher.ErrInvalidRequest, dispatcher.CodeInvalidRequest},
		{registry.ErrStorageFailure, dispatcher.CodeStorageFailure},
		{registry.ErrAlreadyInitialized, dispatcher.CodeAlreadyInitialized},
		{registry.ErrInvalidOffer, dispatcher.CodeInvalidOffer},
		{errors.New("disk on fire"), dispatcher.CodeStorageFailure},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, dispatcher.CodeOf(tt.err), "%v", tt.err)
		if tt.err != nil && tt.want != dispatcher.CodeStorageFailure {
			assert.Equal(t, tt.err, tt.want.Sentinel())
		}
	}
	wrapped := fmt.Errorf("%w: %w", dispatcher.ErrInvalidRequest, registry.ErrInvalidOffer)
	assert.Equal(t, dispatcher.CodeInvalidOffer, dispatcher.CodeOf(wrapped))

	assert.Equal(t, uint32(9), uint32(dispatcher.CodeInvalidOffer))
	assert.Equal(t, "NotBroker", dispatcher.CodeNotBroker.String())
}

func TestResponseErr(t *testing.T) {
	resp := dispatcher.Failure(errors.Join(registry.ErrNotFound, errors.New("property with id 3 does not exist")))
	err := resp.Err()
	require.ErrorIs(t, err, registry.ErrNotFound)
	assert.Contains(t, err.Error(), "property with id 3")

	ok := &dispatcher.Response{Code: dispatcher.CodeOK}
	assert.NoError(t, ok.Err())
}
