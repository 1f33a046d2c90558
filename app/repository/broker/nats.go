package broker

import (
	"context"
	"errors"
	"fmt"
	"inventory-service/app/domain"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
)

func streamName(name string) string {
	return strings.ToUpper(name)
}

func subject(stream, collection string) string {
	return fmt.Sprintf("%s.%s", strings.ToLower(stream), collection)
}

// EnsureStream creates the event stream unless it already exists.
func EnsureStream(ctx context.Context, js jetstream.JetStream, name string) error {
	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:     streamName(name),
		Subjects: []string{subject(name, "*")},
		Storage:  jetstream.FileStorage,
	})
	if err != nil && !errors.Is(err, jetstream.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("create %s stream: %w", streamName(name), err)
	}
	return nil
}

type natsSink struct {
	js     jetstream.JetStream
	stream string
}

// NewNatsSink publishes every event to <stream>.<collection>.
func NewNatsSink(js jetstream.JetStream, stream string) domain.EventSink {
	return &natsSink{js: js, stream: stream}
}

func (s *natsSink) Forward(ctx context.Context, evt domain.Event) error {
	msg, err := encodeEvent(evt)
	if err != nil {
		slog.ErrorContext(ctx, "[natsSink] Forward", "json.Marshal", err)
		return err
	}

	if _, err = s.js.Publish(ctx, subject(s.stream, evt.Collection), msg, jetstream.WithMsgID(evt.ID)); err != nil {
		slog.ErrorContext(ctx, "[natsSink] Forward", "Publish", err)
		return err
	}
	return nil
}

func (s *natsSink) Close() error {
	return nil
}

// NatsRelay feeds events other instances published on the stream to the local broadcaster.
type NatsRelay struct {
	js      jetstream.JetStream
	stream  string
	target  Deliverer
	consume jetstream.ConsumeContext
}

func NewNatsRelay(js jetstream.JetStream, stream string, target Deliverer) *NatsRelay {
	return &NatsRelay{js: js, stream: stream, target: target}
}

// Start attaches an ordered consumer that only sees events published from now on.
func (r *NatsRelay) Start(ctx context.Context) error {
	consumer, err := r.js.OrderedConsumer(ctx, streamName(r.stream), jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject(r.stream, "*")},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create ordered consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		evt, err := decodeEvent(msg.Data())
		if err != nil {
			slog.WarnContext(ctx, "[NatsRelay] Consume", "decode", err, "subject", msg.Subject())
			return
		}
		r.target.Deliver(ctx, evt)
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", streamName(r.stream), err)
	}
	r.consume = cc
	slog.InfoContext(ctx, "[NatsRelay] Start", "stream", streamName(r.stream))
	return nil
}

func (r *NatsRelay) Stop() {
	if r.consume != nil {
		r.consume.Stop()
	}
}
