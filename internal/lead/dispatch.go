package lead

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"sales-assistant/internal/domain"
	"sales-assistant/internal/metrics"
	"sales-assistant/pkg/logging"
)

const defaultSinkTimeout = 10 * time.Second

// Sink receives captured leads for downstream automation. The returned text is
// the sink's freeform confirmation, if any.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, lead domain.LeadData) (string, error)
}

// Outcome is the result of delivering one lead to one sink.
type Outcome struct {
	Sink     string
	Primary  bool
	Response string
	Err      error
}

func (o Outcome) OK() bool { return o.Err == nil }

// Dispatcher delivers a lead to every configured sink concurrently. The first
// sink is the primary one.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	logger  *logging.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
}

func NewDispatcher(sinks []Sink, timeout time.Duration, logger *logging.Logger, m *metrics.Collector) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultSinkTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Dispatcher{
		sinks:   kept,
		timeout: timeout,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("sales-assistant.internal.lead"),
	}
}

// Sinks returns the names of the configured sinks in dispatch order.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

// Dispatch sends lead to all sinks at once and waits for every one of them.
// Failures are recorded in the outcomes, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, lead domain.LeadData) []Outcome {
	ctx, span := d.tracer.Start(ctx, "lead.dispatch", trace.WithAttributes(
		attribute.Int("lead.sinks", len(d.sinks)),
	))
	defer span.End()

	outcomes := make([]Outcome, len(d.sinks))
	var g errgroup.Group
	for i, sink := range d.sinks {
		g.Go(func() error {
			sinkCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			resp, err := sink.Deliver(sinkCtx, lead)
			outcomes[i] = Outcome{Sink: sink.Name(), Primary: i == 0, Response: resp, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		d.metrics.ObserveSinkDelivery(o.Sink, o.OK())
		if o.OK() {
			d.logger.Info("lead delivered", "sink", o.Sink, "lead_id", lead.ID, "session_id", lead.SessionID)
			continue
		}
		span.RecordError(o.Err)
		d.logger.Warn("lead delivery failed", "sink", o.Sink, "lead_id", lead.ID, "session_id", lead.SessionID, "err", o.Err)
	}
	if !Succeeded(outcomes) {
		span.SetStatus(codes.Error, "no sink accepted the lead")
	}
	return outcomes
}

// Succeeded reports whether at least one sink accepted the lead.
func Succeeded(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if o.OK() {
			return true
		}
	}
	return false
}

// RepresentativeResponse picks the confirmation text to echo: the primary
// sink's response when it succeeded, otherwise the first successful one.
func RepresentativeResponse(outcomes []Outcome) string {
	for _, o := range outcomes {
		if o.Primary && o.OK() {
			return o.Response
		}
	}
	for _, o := range outcomes {
		if o.OK() {
			return o.Response
		}
	}
	return ""
}
