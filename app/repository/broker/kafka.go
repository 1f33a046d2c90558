package broker

import (
	"context"
	"inventory-service/app/domain"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type kafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink writes events keyed by document id so one document's events stay in one partition.
func NewKafkaSink(brokers []string, topic string) domain.EventSink {
	return &kafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}}
}

func (s *kafkaSink) Forward(ctx context.Context, evt domain.Event) error {
	data, err := encodeEvent(evt)
	if err != nil {
		slog.ErrorContext(ctx, "[kafkaSink] Forward", "json.Marshal", err)
		return err
	}

	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.Collection + "/" + evt.DocumentID),
		Value: data,
		Time:  evt.Timestamp,
	})
}

func (s *kafkaSink) Close() error {
	return s.writer.Close()
}

// KafkaRelay reads the topic in a consumer group of its own, so every instance sees every event.
type KafkaRelay struct {
	reader *kafka.Reader
	target Deliverer
}

func NewKafkaRelay(brokers []string, topic, instanceID string, target Deliverer) *KafkaRelay {
	return &KafkaRelay{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     "inventory-relay-" + instanceID,
			StartOffset: kafka.LastOffset,
			MinBytes:    1,
			MaxBytes:    10e6,
		}),
		target: target,
	}
}

// Run blocks until ctx is done.
func (r *KafkaRelay) Run(ctx context.Context) error {
	for {
		msg, err := r.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.WarnContext(ctx, "[KafkaRelay] Run", "readMessage", err)
			continue
		}

		evt, err := decodeEvent(msg.Value)
		if err != nil {
			slog.WarnContext(ctx, "[KafkaRelay] Run", "decode", err, "offset", msg.Offset)
			continue
		}
		r.target.Deliver(ctx, evt)
	}
}

func (r *KafkaRelay) Close() error {
	return r.reader.Close()
}
