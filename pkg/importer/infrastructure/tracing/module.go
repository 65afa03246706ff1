package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/fx"

	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
	metrics "github.com/tigerroll/surfin-import/pkg/importer/core/metrics"
	logger "github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

// NewTracer builds the tracer selected by importer.tracing.exporter. The
// provider is registered globally and flushed when the application stops.
func NewTracer(lc fx.Lifecycle, cfg *config.Config) (metrics.Tracer, error) {
	tcfg := cfg.Importer.Tracing
	switch tcfg.Exporter {
	case "", "none":
		logger.Infof("Tracing: disabled.")
		return metrics.NewNoOpTracer(), nil
	}

	tp, err := NewTracerProvider(context.Background(), tcfg)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	logger.Infof("Tracing: exporting spans with '%s' to '%s'.", tcfg.Exporter, tcfg.Endpoint)
	return NewOpenTelemetryTracer(tp), nil
}

// Module provides the metrics.Tracer of the application.
var Module = fx.Options(
	fx.Provide(NewTracer),
)
