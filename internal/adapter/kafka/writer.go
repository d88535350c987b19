// Package kafka mirrors freshly fetched reports to a Kafka topic so a fleet
// of displays can be observed from one place.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/metar-display/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// SnapshotMessage is the JSON value of a published report.
type SnapshotMessage struct {
	Station   string    `json:"station"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	FetchedAt time.Time `json:"fetched_at"`
}

// messageWriter is the subset of kafkago.Writer the Publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces report snapshots to a Kafka topic.
// It implements weathercache.SnapshotSink.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for topic. Each snapshot is flushed
// as its own batch.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		MaxAttempts:            3,
		WriteTimeout:           5 * time.Second,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes one snapshot keyed by station, so each station's reports
// stay ordered within a partition.
func (p *Publisher) Publish(ctx context.Context, station string, kind domain.ReportKind, snap domain.Snapshot) error {
	msg, err := serializeToMessage(station, kind, snap)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s snapshot: %w", kind, err)
	}
	p.logger.Debug("snapshot published", "station", station, "kind", string(kind))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a snapshot into a Kafka message.
func serializeToMessage(station string, kind domain.ReportKind, snap domain.Snapshot) (kafkago.Message, error) {
	data, err := json.Marshal(SnapshotMessage{
		Station:   station,
		Kind:      string(kind),
		Text:      snap.Text,
		FetchedAt: snap.FetchedAt.UTC(),
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(station),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(kind)},
			{Key: "fetched_at", Value: []byte(snap.FetchedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
