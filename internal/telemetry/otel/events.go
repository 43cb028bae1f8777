package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"chatdesk/backend/internal/events"
)

const eventLoggerName = "chatdesk/backend/conversation-events"

// recordEmitter is the subset of otellog.Logger used by EventLog.
type recordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// EventLog publishes conversation events as OpenTelemetry log records, one record per event,
// so they land next to the request traces in the collector.
type EventLog struct {
	logger recordEmitter
	now    func() time.Time
}

// NewEventLog returns a publisher over provider. A nil provider yields events.Noop.
func NewEventLog(provider *sdklog.LoggerProvider) events.Publisher {
	if provider == nil {
		return events.Noop{}
	}
	return &EventLog{logger: provider.Logger(eventLoggerName), now: time.Now}
}

// Publish emits e. The body is the JSON form of the event.
func (l *EventLog) Publish(ctx context.Context, e events.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	var rec otellog.Record
	at := e.OccurredAt
	if at.IsZero() {
		at = l.now().UTC()
	}
	rec.SetTimestamp(at)
	rec.SetObservedTimestamp(l.now().UTC())
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetEventName(string(e.Type))
	rec.SetBody(otellog.StringValue(string(body)))
	rec.AddAttributes(
		otellog.String("event_type", string(e.Type)),
		otellog.String("business_id", e.BusinessID),
		otellog.String("conversation_id", e.ConversationID),
		otellog.String("from_mode", e.FromMode),
		otellog.String("to_mode", e.ToMode),
		otellog.Int64("version", e.Version),
	)
	if e.EmployeeID != "" {
		rec.AddAttributes(otellog.String("employee_id", e.EmployeeID))
	}
	l.logger.Emit(ctx, rec)
	return nil
}
