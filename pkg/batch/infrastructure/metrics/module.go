package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"

	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
	metrics "github.com/tigerroll/bulkop/pkg/batch/core/metrics"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

// Module replaces the no-op metric and tracing hooks with the exporters
// selected in bulkop.observability. It must be combined with the core metrics module.
var Module = fx.Options(
	fx.Provide(provideTelemetry),
	fx.Decorate(decorateRecorder),
	fx.Decorate(decorateTracer),
	fx.Invoke(registerMetricsServer),
)

func provideTelemetry(lc fx.Lifecycle, cfg *config.Config) (*Telemetry, error) {
	t, err := NewTelemetry(context.Background(), cfg.Bulkop.Observability)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return t.Shutdown(ctx)
		},
	})
	return t, nil
}

// decorateRecorder selects the configured recorder and, when async_buffer_size is set,
// moves recording off the worker goroutines.
func decorateRecorder(lc fx.Lifecycle, t *Telemetry, cfg *config.Config, fallback metrics.MetricRecorder) metrics.MetricRecorder {
	r := t.Recorder()
	if r == nil {
		return fallback
	}
	if size := cfg.Bulkop.Observability.AsyncBufferSize; size > 0 {
		async := NewAsyncMetricRecorder(size, r)
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				async.Close()
				return nil
			},
		})
		return async
	}
	return r
}

func decorateTracer(t *Telemetry, fallback metrics.Tracer) metrics.Tracer {
	if tr := t.Tracer(); tr != nil {
		return tr
	}
	return fallback
}

// registerMetricsServer exposes the Prometheus registry on metrics_address for the
// lifetime of the application.
func registerMetricsServer(lc fx.Lifecycle, t *Telemetry, cfg *config.Config) {
	addr := cfg.Bulkop.Observability.MetricsAddress
	if t.Prometheus == nil || addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", t.Prometheus.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorf("Metrics server stopped: %v", err)
				}
			}()
			logger.Infof("Serving metrics on %s/metrics", ln.Addr())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
