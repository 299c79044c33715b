//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/conagua-etl/internal/adapter/kafka"
	"github.com/couchcryptid/conagua-etl/internal/app"
	"github.com/couchcryptid/conagua-etl/internal/config"
	"github.com/couchcryptid/conagua-etl/internal/domain"
	"github.com/couchcryptid/conagua-etl/internal/mockportal"
	"github.com/couchcryptid/conagua-etl/internal/observability"
)

const testSinkTopic = "test-measurements"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("conagua-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

type publishedMessage struct {
	Record  kafka.Record
	Key     string
	Headers map[string]string
}

// readPublished reads n messages from the sink topic and deserializes them.
func readPublished(ctx context.Context, t *testing.T, broker string, n int) []publishedMessage {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out := make([]publishedMessage, 0, n)
	for len(out) < n {
		msg, err := consumer.ReadMessage(readCtx)
		require.NoError(t, err, "read from sink topic")

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		var rec kafka.Record
		require.NoError(t, json.Unmarshal(msg.Value, &rec), "unmarshal sink message")
		out = append(out, publishedMessage{Record: rec, Key: string(msg.Key), Headers: headers})
	}
	return out
}

// TestKafkaWriter verifies that kafka.Writer publishes one message per record.
func TestKafkaWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testSinkTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	date := time.Date(2020, time.January, 15, 0, 0, 0, 0, time.UTC)
	ds := domain.Dataset{
		Kind:    domain.Precipitation,
		State:   domain.Jalisco,
		Columns: domain.DefaultColumnOrder,
		Records: []domain.MeasurementRecord{
			{Date: date, State: domain.Jalisco, StationID: "14001", Kind: domain.Precipitation, Value: domain.MustValue("3.4")},
			{Date: date, State: domain.Jalisco, StationID: "14002", Kind: domain.Precipitation, Value: domain.Missing()},
		},
	}
	key := domain.ArchiveKey{State: domain.Jalisco, Kind: domain.Precipitation, Year: 2020}
	require.NoError(t, writer.Load(ctx, key, ds))

	msgs := readPublished(ctx, t, broker, 2)
	assert.Equal(t, "JAL|PRECIPITATION|2020-01-15|14001", msgs[0].Key)
	assert.Equal(t, "PRECIPITATION", msgs[0].Headers["kind"])
	assert.Equal(t, "JAL", msgs[0].Headers["state"])
	assert.Equal(t, "Jalisco", msgs[0].Record.StateName)
	assert.Equal(t, "mm", msgs[0].Record.Unit)
	assert.True(t, msgs[0].Record.Value.Equal(domain.MustValue("3.4")))
	assert.True(t, msgs[1].Record.Value.IsMissing())
}

// TestPipelineEndToEnd wires portal, cache, extractor, transformer and the
// Kafka sink from configuration and runs a batch against the mock portal.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	missing := domain.ArchiveKey{State: domain.Jalisco, Kind: domain.Precipitation, Year: 1999}
	portal := httptest.NewServer(mockportal.Handler(mockportal.Options{
		FirstYear: 1990,
		LastYear:  2020,
		Missing:   map[domain.ArchiveKey]bool{missing: true},
	}))
	t.Cleanup(portal.Close)

	cfg := &config.Config{
		PortalBaseURL:   portal.URL,
		FetchTimeout:    5 * time.Second,
		MaxArchiveBytes: 1 << 20,
		CacheSize:       8,
		Workers:         2,
		Layout:          domain.DefaultLayout(),
		OutputDir:       t.TempDir(),
		ExportFormat:    "csv",
		KafkaBrokers:    []string{broker},
		KafkaTopic:      testSinkTopic,
	}
	a, err := app.New(cfg, discardLogger(), observability.NewMetricsForTesting(), app.Options{Export: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ok := domain.ArchiveKey{State: domain.Colima, Kind: domain.Precipitation, Year: 1999}
	rng, err := domain.ParseDateRange("1999-01-01", "1999-01-31")
	require.NoError(t, err)

	results := a.Pipeline.RunBatch(ctx, []domain.ArchiveKey{missing, ok}, rng)
	require.Len(t, results, 2)
	require.ErrorIs(t, results[0].Err, domain.ErrNotFound)
	require.NoError(t, results[1].Err)
	require.Equal(t, 4, results[1].Dataset.Len())

	msgs := readPublished(ctx, t, broker, 4)
	for _, m := range msgs {
		assert.Equal(t, "COL", m.Record.State)
		assert.Equal(t, "PRECIPITATION", m.Record.Kind)
		assert.Equal(t, 1999, m.Record.Year)
		assert.Equal(t, "COL", m.Headers["state"])
	}
}
