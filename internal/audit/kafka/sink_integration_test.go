//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"contacts/internal/audit"
	"contacts/internal/audit/kafka"
	"contacts/pkg/testutil/containers"
)

func TestSinkPublishesToRedpanda(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rp := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const topic = "contacts.audit.test"
	sink, err := kafka.Dial(ctx, rp.Brokers, topic,
		kafka.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	defer sink.Close()

	event := audit.Event{
		Action:    audit.ActionContactCreated,
		ContactID: "0192d5a4-7b7e-7c3a-9d1e-3f2a1b0c9d8e",
		RequestID: "req-1",
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, sink.Append(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.NotEmpty(t, records)

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, event.Action, got.Action)
	assert.Equal(t, event.ContactID, got.ContactID)
	assert.Equal(t, []byte(event.ContactID), records[0].Key)
}
