package securityevent

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("modelplane/authcore/internal/securityevent")

// Fanout delivers each event to every configured sink. A sink failure is
// logged and does not stop delivery to the others; Record reports the first
// failure after trying all sinks.
type Fanout struct {
	sinks []Sink
}

// NewFanout returns a fanout over the given sinks. Nil sinks are skipped so
// optional sinks (Kafka when unconfigured) can be passed directly.
func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Record assigns an ID if missing and fans the event out.
func (f *Fanout) Record(ctx context.Context, e Event) error {
	ctx, span := tracer.Start(ctx, "securityevent.Record")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.type", e.Type),
		attribute.String("event.severity", e.Severity),
	)

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	var firstErr error
	for _, s := range f.sinks {
		if err := s.Record(ctx, e); err != nil {
			slog.Error("security event sink failed",
				"type", e.Type, "subject", e.SubjectID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
