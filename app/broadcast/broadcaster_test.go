package broadcast

import (
	"context"
	"errors"
	"inventory-service/app/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	forwarded []domain.Event
	err       error
	closed    bool
}

func (f *fakeSink) Forward(_ context.Context, evt domain.Event) error {
	f.forwarded = append(f.forwarded, evt)
	return f.err
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func TestBroadcaster_SubscribeMatchesCollectionAndType(t *testing.T) {
	b := New("node-a")
	ctx := context.Background()

	var products, anyOrders, everything Recorder
	b.Subscribe(domain.CollectionProducts, string(domain.EventUpdate), products.Handle)
	b.Subscribe(domain.CollectionOrders, Wildcard, anyOrders.Handle)
	b.Subscribe(Wildcard, Wildcard, everything.Handle)

	b.Publish(ctx, domain.Event{Event: domain.EventUpdate, Collection: domain.CollectionProducts, DocumentID: "p1"})
	b.Publish(ctx, domain.Event{Event: domain.EventCreate, Collection: domain.CollectionProducts, DocumentID: "p2"})
	b.Publish(ctx, domain.Event{Event: domain.EventCreate, Collection: domain.CollectionOrders, DocumentID: "o1"})

	require.Len(t, products.Events(), 1)
	assert.Equal(t, "p1", products.Events()[0].DocumentID)
	assert.Len(t, anyOrders.Events(), 1)
	assert.Len(t, everything.Events(), 3)
}

func TestBroadcaster_PublishStampsEvent(t *testing.T) {
	b := New("node-a")
	var rec Recorder
	b.Subscribe(Wildcard, Wildcard, rec.Handle)

	b.Publish(context.Background(), domain.Event{Event: domain.EventCreate, Collection: domain.CollectionOrders})

	evt := rec.Events()[0]
	assert.NotEmpty(t, evt.ID)
	assert.False(t, evt.Timestamp.IsZero())
	assert.Equal(t, "node-a", evt.Origin)
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := New("node-a")
	var rec Recorder
	unsubscribe := b.Subscribe(Wildcard, Wildcard, rec.Handle)

	b.Publish(context.Background(), domain.Event{Collection: domain.CollectionOrders})
	unsubscribe()
	b.Publish(context.Background(), domain.Event{Collection: domain.CollectionOrders})

	assert.Len(t, rec.Events(), 1)
}

func TestBroadcaster_SubscriberPanicDoesNotStopDelivery(t *testing.T) {
	b := New("node-a")
	var rec Recorder
	b.Subscribe(Wildcard, Wildcard, func(context.Context, domain.Event) { panic("boom") })
	b.Subscribe(Wildcard, Wildcard, rec.Handle)

	assert.NotPanics(t, func() {
		b.Publish(context.Background(), domain.Event{Collection: domain.CollectionProducts})
	})
	assert.Len(t, rec.Events(), 1)
}

func TestBroadcaster_ForwardsToSinksEvenOnError(t *testing.T) {
	failing := &fakeSink{err: errors.New("broker down")}
	healthy := &fakeSink{}
	b := New("node-a", failing, healthy)

	b.Publish(context.Background(), domain.Event{Collection: domain.CollectionProducts})

	assert.Len(t, failing.forwarded, 1)
	assert.Len(t, healthy.forwarded, 1)

	require.NoError(t, b.Close())
	assert.True(t, failing.closed)
	assert.True(t, healthy.closed)
}

func TestBroadcaster_DeliverSkipsOwnEventsAndNeverForwards(t *testing.T) {
	sink := &fakeSink{}
	b := New("node-a", sink)
	var rec Recorder
	b.Subscribe(Wildcard, Wildcard, rec.Handle)

	b.Deliver(context.Background(), domain.Event{Collection: domain.CollectionProducts, Origin: "node-a"})
	b.Deliver(context.Background(), domain.Event{Collection: domain.CollectionProducts, Origin: "node-b"})

	require.Len(t, rec.Events(), 1)
	assert.Equal(t, "node-b", rec.Events()[0].Origin)
	assert.Empty(t, sink.forwarded)
}

func TestBroadcaster_AddSink(t *testing.T) {
	b := New("node-a")
	b.Publish(context.Background(), domain.Event{Collection: domain.CollectionOrders})

	late := &fakeSink{}
	b.AddSink(late)
	b.Publish(context.Background(), domain.Event{Collection: domain.CollectionOrders, DocumentID: "o-1"})

	require.Len(t, late.forwarded, 1)
	assert.Equal(t, "o-1", late.forwarded[0].DocumentID)
	require.NoError(t, b.Close())
	assert.True(t, late.closed)
}
