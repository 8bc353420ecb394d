package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"realestate/internal/dispatcher"
	"realestate/internal/registry"
	"realestate/test/integration/helper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecovery_OffersSurviveRestart(t *testing.T) {
	n := helper.NewTestNode(t, nil, "info")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	must := helper.MustOK(t)

	admin := n.As("admin")
	must(admin.Bootstrap(ctx, 0))
	must(admin.AddBroker(ctx, "broker1"))

	broker := n.As("broker1")
	// enough commits to cross the WAL compaction threshold at least once
	for i := 1; i <= 12; i++ {
		resp := must(broker.CreateOffer(ctx, helper.SampleOffer(fmt.Sprint(i))))
		require.Equal(t, uint64(i), resp.OfferID)
	}

	n.Restart()

	broker = n.As("broker1")
	for i := 1; i <= 12; i++ {
		resp := must(broker.GetOffer(ctx, uint64(i)))
		assert.Equal(t, fmt.Sprint(i), resp.Offer.Floor)
	}

	resp := must(broker.CreateOffer(ctx, helper.SampleOffer("13")))
	assert.Equal(t, uint64(13), resp.OfferID, "counter resumes after restart")

	resp, err := n.As("admin").Bootstrap(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, dispatcher.CodeAlreadyInitialized, resp.Code)
	assert.ErrorIs(t, resp.Err(), registry.ErrAlreadyInitialized)

	require.NoError(t, n.Contract.CheckInvariants())
}

func TestRecovery_AdminRotationIsDurable(t *testing.T) {
	n := helper.NewTestNode(t, nil, "info")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	must := helper.MustOK(t)

	must(n.As("admin").Bootstrap(ctx, 0))
	next := "admin2"
	must(n.As("admin").RotateAdmin(ctx, &next))

	n.Restart()

	resp, err := n.As("admin").AddBroker(ctx, "broker1")
	require.NoError(t, err)
	assert.ErrorIs(t, resp.Err(), registry.ErrUnauthorized)

	must(n.As("admin2").AddBroker(ctx, "broker1"))

	must(n.As("admin2").RotateAdmin(ctx, nil))
	n.Restart()

	admin, err := n.Contract.Admin()
	require.NoError(t, err)
	assert.Nil(t, admin)

	resp, err = n.As("admin2").AddBroker(ctx, "broker2")
	require.NoError(t, err)
	assert.ErrorIs(t, resp.Err(), registry.ErrUnauthorized)

	brokers, err := n.Contract.Brokers()
	require.NoError(t, err)
	assert.Equal(t, []string{"broker1"}, brokers)
}

func TestRecovery_HeartbeatsDoNotMoveOfferIDs(t *testing.T) {
	n := helper.NewTestNode(t, nil, "info")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	must := helper.MustOK(t)

	must(n.As("admin").Bootstrap(ctx, 10))
	must(n.As("admin").AddBroker(ctx, "broker1"))
	for range 3 {
		must(n.As("anyone").Increment(ctx))
	}

	n.Restart()

	st, err := n.Contract.State()
	require.NoError(t, err)
	assert.Equal(t, registry.State{Count: 0, Heartbeats: 13}, st)

	resp := must(n.As("broker1").CreateOffer(ctx, helper.SampleOffer("1")))
	assert.Equal(t, uint64(1), resp.OfferID)
}
