package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"contacts/internal/audit"
	"contacts/pkg/platform/circuit"
)

type fakeProducer struct {
	mu      sync.Mutex
	err     error
	records []*kgo.Record
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if f.err == nil {
			f.records = append(f.records, r)
		}
		out = append(out, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return out
}

func (f *fakeProducer) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func event(contactID string) audit.Event {
	return audit.Event{
		Action:    audit.ActionContactCreated,
		ContactID: contactID,
		RequestID: "req-1",
		Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestAppendProducesKeyedRecord(t *testing.T) {
	prod := &fakeProducer{}
	sink := NewSink(prod, "contacts.audit")

	require.NoError(t, sink.Append(t.Context(), event("c-1")))

	require.Len(t, prod.records, 1)
	rec := prod.records[0]
	assert.Equal(t, "contacts.audit", rec.Topic)
	assert.Equal(t, []byte("c-1"), rec.Key)

	var got audit.Event
	require.NoError(t, json.Unmarshal(rec.Value, &got))
	assert.Equal(t, event("c-1"), got)
}

func TestAppendFallsBackAndOpensBreaker(t *testing.T) {
	prod := &fakeProducer{err: errors.New("broker down")}
	fallback := audit.NewMemorySink()
	breaker := circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	sink := NewSink(prod, "t", WithFallback(fallback), WithBreaker(breaker))

	require.NoError(t, sink.Append(t.Context(), event("a")))
	require.NoError(t, sink.Append(t.Context(), event("b")))
	assert.True(t, breaker.IsOpen())

	prod.setErr(nil)
	require.NoError(t, sink.Append(t.Context(), event("c")))

	assert.Empty(t, prod.records, "open breaker skips kafka during cooldown")
	assert.Len(t, fallback.Events(), 3)
}

func TestAppendRecoversAfterCooldown(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	prod := &fakeProducer{err: errors.New("broker down")}
	breaker := circuit.New("test",
		circuit.WithFailureThreshold(1),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	sink := NewSink(prod, "t", WithFallback(audit.NewMemorySink()), WithBreaker(breaker))

	require.NoError(t, sink.Append(t.Context(), event("a")))
	require.True(t, breaker.IsOpen())

	prod.setErr(nil)
	now = now.Add(2 * time.Minute)
	require.NoError(t, sink.Append(t.Context(), event("b")))

	assert.False(t, breaker.IsOpen())
	assert.Len(t, prod.records, 1)
}
