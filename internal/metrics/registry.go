package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds all engine metrics
type Registry struct {
	meter metric.Meter

	// Audit log metrics
	AppendCounter       metric.Int64Counter
	AppendDuration      metric.Float64Histogram
	VerifyDuration      metric.Float64Histogram
	ChainBreakCounter   metric.Int64Counter
	EntriesArchived     metric.Int64Counter

	// Compliance workflow metrics
	RecordsCreated     metric.Int64Counter
	TransitionCounter  metric.Int64Counter
	TransitionRejected metric.Int64Counter
	RiskRecomputed     metric.Int64Counter
}

// NewRegistry creates the engine metrics on the global meter provider
func NewRegistry() (*Registry, error) {
	meter := otel.Meter("contact-compliance-backend")

	r := &Registry{meter: meter}

	var err error

	if r.AppendCounter, err = meter.Int64Counter(
		"audit.append.total",
		metric.WithDescription("Audit entries appended"),
	); err != nil {
		return nil, err
	}

	if r.AppendDuration, err = meter.Float64Histogram(
		"audit.append.duration",
		metric.WithDescription("Audit append latency"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if r.VerifyDuration, err = meter.Float64Histogram(
		"audit.verify.duration",
		metric.WithDescription("Chain verification latency"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if r.ChainBreakCounter, err = meter.Int64Counter(
		"audit.chain.breaks.total",
		metric.WithDescription("Hash chain breaks detected"),
	); err != nil {
		return nil, err
	}

	if r.EntriesArchived, err = meter.Int64Counter(
		"audit.archived.total",
		metric.WithDescription("Audit entries moved to archive"),
	); err != nil {
		return nil, err
	}

	if r.RecordsCreated, err = meter.Int64Counter(
		"compliance.records.created.total",
		metric.WithDescription("Compliance records created"),
	); err != nil {
		return nil, err
	}

	if r.TransitionCounter, err = meter.Int64Counter(
		"compliance.transitions.total",
		metric.WithDescription("Workflow transitions applied"),
	); err != nil {
		return nil, err
	}

	if r.TransitionRejected, err = meter.Int64Counter(
		"compliance.transitions.rejected.total",
		metric.WithDescription("Workflow transitions rejected as illegal"),
	); err != nil {
		return nil, err
	}

	if r.RiskRecomputed, err = meter.Int64Counter(
		"compliance.risk.recomputed.total",
		metric.WithDescription("Risk score recomputations"),
	); err != nil {
		return nil, err
	}

	return r, nil
}

// RecordTransition records a workflow transition with its action label
func (r *Registry) RecordTransition(ctx context.Context, action string) {
	if r == nil {
		return
	}
	r.TransitionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
	))
}

// RecordAppend records an audit append with its action label
func (r *Registry) RecordAppend(ctx context.Context, action string, durationMs float64) {
	if r == nil {
		return
	}
	r.AppendCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
	))
	r.AppendDuration.Record(ctx, durationMs)
}
