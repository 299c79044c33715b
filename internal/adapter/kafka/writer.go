package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/conagua-etl/internal/config"
	"github.com/couchcryptid/conagua-etl/internal/domain"
)

// Writer publishes measurement records to a Kafka topic.
// It implements pipeline.Loader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Record is the JSON payload of one published measurement.
type Record struct {
	Date      string       `json:"date"`
	Year      int          `json:"year"`
	State     string       `json:"state"`
	StateName string       `json:"state_name"`
	StationID string       `json:"station_id,omitempty"`
	Kind      string       `json:"kind"`
	Unit      string       `json:"unit"`
	Value     domain.Value `json:"value"`
}

// Load serializes every record of ds and publishes them in a single
// WriteMessages call.
func (w *Writer) Load(ctx context.Context, key domain.ArchiveKey, ds domain.Dataset) error {
	if ds.Len() == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, 0, ds.Len())
	for _, rec := range ds.Records {
		msg, err := serializeToMessage(rec)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	w.logger.Debug("records published", "key", key.String(), "topic", w.writer.Topic, "records", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// messageKey groups a station's readings on one partition:
// state|kind|date|station.
func messageKey(rec domain.MeasurementRecord) string {
	return strings.Join([]string{rec.State.Code(), rec.Kind.String(), rec.Date.Format(domain.DateLayout), rec.StationID}, "|")
}

// serializeToMessage marshals a MeasurementRecord into a Kafka message.
func serializeToMessage(rec domain.MeasurementRecord) (kafkago.Message, error) {
	data, err := json.Marshal(Record{
		Date:      rec.Date.Format(domain.DateLayout),
		Year:      rec.Date.Year(),
		State:     rec.State.Code(),
		StateName: rec.State.Name(),
		StationID: rec.StationID,
		Kind:      rec.Kind.String(),
		Unit:      rec.Kind.Unit(),
		Value:     rec.Value,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(messageKey(rec)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(rec.Kind.String())},
			{Key: "state", Value: []byte(rec.State.Code())},
		},
	}, nil
}
