// Package broker carries broadcaster events between instances over NATS JetStream or Kafka.
package broker

import (
	"context"
	"encoding/json"
	"inventory-service/app/domain"
)

// Deliverer receives events published by other instances.
type Deliverer interface {
	Deliver(ctx context.Context, evt domain.Event)
}

// wireEvent keeps the document raw on decode; subscribers of relayed events see json.RawMessage.
type wireEvent struct {
	domain.Event
	Document json.RawMessage `json:"document"`
}

func encodeEvent(evt domain.Event) ([]byte, error) {
	return json.Marshal(evt)
}

func decodeEvent(data []byte) (domain.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return domain.Event{}, err
	}
	evt := w.Event
	evt.Document = w.Document
	return evt, nil
}
