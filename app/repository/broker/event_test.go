package broker

import (
	"context"
	"encoding/json"
	"inventory-service/app/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	events []domain.Event
}

func (c *captured) Deliver(_ context.Context, evt domain.Event) {
	c.events = append(c.events, evt)
}

func TestDecodeEvent_KeepsDocumentRaw(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	data, err := encodeEvent(domain.Event{
		ID:         "evt-1",
		Event:      domain.EventUpdate,
		Collection: domain.CollectionProducts,
		DocumentID: "P",
		Document:   domain.StockView{ProductID: "P", Available: 4, StockStatus: domain.StockStatusLowStock},
		Timestamp:  at,
		Origin:     "node-a",
	})
	require.NoError(t, err)

	evt, err := decodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", evt.ID)
	assert.Equal(t, domain.EventUpdate, evt.Event)
	assert.Equal(t, domain.CollectionProducts, evt.Collection)
	assert.Equal(t, "node-a", evt.Origin)
	assert.True(t, at.Equal(evt.Timestamp))

	raw, ok := evt.Document.(json.RawMessage)
	require.True(t, ok)
	var view domain.StockView
	require.NoError(t, json.Unmarshal(raw, &view))
	assert.Equal(t, int64(4), view.Available)

	sink := &captured{}
	sink.Deliver(context.Background(), evt)
	assert.Len(t, sink.events, 1)
}

func TestDecodeEvent_Garbage(t *testing.T) {
	_, err := decodeEvent([]byte("not json"))
	assert.Error(t, err)
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "STOREFRONT", streamName("storefront"))
	assert.Equal(t, "storefront.orders", subject("STOREFRONT", domain.CollectionOrders))
	assert.Equal(t, "storefront.*", subject("STOREFRONT", "*"))
}
