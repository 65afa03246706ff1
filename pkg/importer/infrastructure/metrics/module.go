package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/fx"

	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
	metrics "github.com/tigerroll/surfin-import/pkg/importer/core/metrics"
	logger "github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

// NewMetricRecorder builds the recorder selected by importer.metrics.exporter and
// binds its resources to the application lifecycle. With a positive
// async_buffer_size the recorder is wrapped in an AsyncMetricRecorder.
func NewMetricRecorder(lc fx.Lifecycle, cfg *config.Config) (metrics.MetricRecorder, error) {
	mcfg := cfg.Importer.Metrics

	var recorder metrics.MetricRecorder
	switch mcfg.Exporter {
	case "", "none":
		logger.Infof("Metrics: recording disabled.")
		return metrics.NewNoOpMetricRecorder(), nil
	case "prometheus":
		prom := NewPrometheusRecorder()
		if mcfg.ListenAddress != "" {
			serveMetrics(lc, mcfg.ListenAddress, prom.Handler())
		}
		recorder = prom
	case "otlp-grpc", "otlp-http":
		mp, err := NewMeterProvider(context.Background(), mcfg, cfg.Importer.Tracing.ServiceName)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return mp.Shutdown(ctx)
			},
		})
		otelRecorder, err := NewOTelRecorder(mp)
		if err != nil {
			return nil, err
		}
		recorder = otelRecorder
	default:
		logger.Warnf("Metrics: unknown exporter '%s'; recording disabled.", mcfg.Exporter)
		return metrics.NewNoOpMetricRecorder(), nil
	}
	logger.Infof("Metrics: using '%s' recorder.", mcfg.Exporter)

	if mcfg.AsyncBufferSize > 0 {
		async := NewAsyncMetricRecorder(mcfg.AsyncBufferSize, recorder)
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				async.Close()
				return nil
			},
		})
		logger.Debugf("MetricRecorder decorated with asynchronous wrapper.")
		return async, nil
	}
	return recorder, nil
}

// serveMetrics exposes handler on addr under /metrics for the lifetime of the application.
func serveMetrics(lc fx.Lifecycle, addr string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorf("Metrics: listener on %s failed: %v", addr, err)
				}
			}()
			logger.Infof("Metrics: serving /metrics on %s.", addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

// Module provides the metrics.MetricRecorder of the application.
var Module = fx.Options(
	fx.Provide(NewMetricRecorder),
)
