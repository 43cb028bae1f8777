package otel

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"

	"chatdesk/backend/internal/events"
)

type recordingEmitter struct {
	records []otellog.Record
}

func (r *recordingEmitter) Emit(_ context.Context, rec otellog.Record) {
	r.records = append(r.records, rec)
}

func attrs(rec otellog.Record) map[string]otellog.Value {
	out := map[string]otellog.Value{}
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value
		return true
	})
	return out
}

func TestNewEventLog_NilProviderIsNoop(t *testing.T) {
	p := NewEventLog(nil)
	assert.IsType(t, events.Noop{}, p)
	assert.NoError(t, p.Publish(context.Background(), events.Event{}))
}

func TestEventLog_Publish(t *testing.T) {
	rec := &recordingEmitter{}
	now := time.Date(2026, 4, 2, 10, 0, 1, 0, time.UTC)
	l := &EventLog{logger: rec, now: func() time.Time { return now }}
	at := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	e := events.Event{
		Type:           events.TypeTakenOver,
		BusinessID:     "biz-a",
		ConversationID: "conv-1",
		EmployeeID:     "emp-olga",
		FromMode:       "ai",
		ToMode:         "human",
		Version:        4,
		OccurredAt:     at,
	}

	require.NoError(t, l.Publish(context.Background(), e))
	require.Len(t, rec.records, 1)
	r := rec.records[0]
	assert.Equal(t, at, r.Timestamp())
	assert.Equal(t, now, r.ObservedTimestamp())
	assert.Equal(t, "conversation.taken_over", r.EventName())

	got := attrs(r)
	assert.Equal(t, "biz-a", got["business_id"].AsString())
	assert.Equal(t, "conv-1", got["conversation_id"].AsString())
	assert.Equal(t, "emp-olga", got["employee_id"].AsString())
	assert.Equal(t, "ai", got["from_mode"].AsString())
	assert.Equal(t, "human", got["to_mode"].AsString())
	assert.Equal(t, int64(4), got["version"].AsInt64())

	var body events.Event
	require.NoError(t, json.Unmarshal([]byte(r.Body().AsString()), &body))
	assert.Equal(t, e, body)
}

func TestEventLog_Publish_Defaults(t *testing.T) {
	rec := &recordingEmitter{}
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	l := &EventLog{logger: rec, now: func() time.Time { return now }}

	require.NoError(t, l.Publish(context.Background(), events.Event{
		Type:           events.TypeReleasedOnDelete,
		BusinessID:     "biz-a",
		ConversationID: "conv-2",
	}))
	require.Len(t, rec.records, 1)
	assert.Equal(t, now, rec.records[0].Timestamp())
	_, hasEmployee := attrs(rec.records[0])["employee_id"]
	assert.False(t, hasEmployee)
}
