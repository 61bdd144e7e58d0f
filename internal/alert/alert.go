// Package alert implements alert dispatching to multiple sinks.
package alert

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dwsmith1983/prebuild/internal/metrics"
	"github.com/dwsmith1983/prebuild/pkg/types"
)

// Sink is an alert destination.
type Sink interface {
	Send(ctx context.Context, alert types.Alert) error
	Name() string
}

// Dispatcher routes alerts to configured sinks.
type Dispatcher struct {
	sinks    []Sink
	logger   *slog.Logger
	console  io.Writer
	ebClient EventBridgeAPI
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger used for delivery errors.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithConsoleOutput sets where console sinks write. The default is stderr.
func WithConsoleOutput(w io.Writer) DispatcherOption {
	return func(d *Dispatcher) { d.console = w }
}

// WithEventBridgeClient sets the client used by eventbridge sinks.
func WithEventBridgeClient(c EventBridgeAPI) DispatcherOption {
	return func(d *Dispatcher) { d.ebClient = c }
}

// NewDispatcher creates a dispatcher from alert configs.
func NewDispatcher(configs []types.AlertConfig, opts ...DispatcherOption) (*Dispatcher, error) {
	d := &Dispatcher{logger: slog.Default()}
	for _, o := range opts {
		o(d)
	}
	for _, cfg := range configs {
		sink, err := d.newSink(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating %s sink: %w", cfg.Type, err)
		}
		d.sinks = append(d.sinks, sink)
	}
	return d, nil
}

// AddSink registers an additional sink.
func (d *Dispatcher) AddSink(s Sink) {
	d.sinks = append(d.sinks, s)
}

// Dispatch sends an alert to all configured sinks. Delivery failures are
// logged and counted; they never propagate.
func (d *Dispatcher) Dispatch(ctx context.Context, alert types.Alert) {
	for _, sink := range d.sinks {
		attrs := metric.WithAttributes(attribute.String("sink", sink.Name()))
		if err := sink.Send(ctx, alert); err != nil {
			d.logger.Error("alert delivery failed", "sink", sink.Name(), "error", err)
			metrics.AlertsFailed.Add(ctx, 1, attrs)
			continue
		}
		metrics.AlertsDispatched.Add(ctx, 1, attrs)
	}
}

// AlertFunc returns a function suitable for use as the coordinator's alert callback.
func (d *Dispatcher) AlertFunc() func(context.Context, types.Alert) {
	return d.Dispatch
}

func (d *Dispatcher) newSink(cfg types.AlertConfig) (Sink, error) {
	switch cfg.Type {
	case types.AlertConsole:
		return NewConsoleSink(d.console), nil
	case types.AlertWebhook:
		if cfg.URL == "" {
			return nil, fmt.Errorf("webhook URL required")
		}
		return NewWebhookSink(cfg.URL), nil
	case types.AlertFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file path required")
		}
		return NewFileSink(cfg.Path)
	case types.AlertEventBridge:
		var opts []EventBridgeSinkOption
		if d.ebClient != nil {
			opts = append(opts, WithEventBridgeSinkClient(d.ebClient))
		}
		return NewEventBridgeSink(cfg.EventBusName, cfg.Source, opts...)
	default:
		return nil, fmt.Errorf("unknown alert type %q", cfg.Type)
	}
}
