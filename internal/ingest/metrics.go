package ingest

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "proctor-integrity/backend/internal/ingest"

type counters struct {
	accepted metric.Int64Counter
	rejected metric.Int64Counter
	tamper   metric.Int64Counter
}

func newCounters(meter metric.Meter) *counters {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}
	fallback := noop.NewMeterProvider().Meter(meterName)
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			log.Printf("ingest: create counter %s: %v", name, err)
			c, _ = fallback.Int64Counter(name)
		}
		return c
	}
	return &counters{
		accepted: counter("proctor.signals.accepted", "Signals stored."),
		rejected: counter("proctor.signals.rejected", "Signals rejected, by reason."),
		tamper:   counter("proctor.tamper.flags", "Tamper flags recorded, by kind."),
	}
}

func (c *counters) recordAccepted(ctx context.Context) {
	c.accepted.Add(ctx, 1)
}

func (c *counters) recordRejected(ctx context.Context, reason string) {
	c.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (c *counters) recordTamper(ctx context.Context, kind string) {
	c.tamper.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
