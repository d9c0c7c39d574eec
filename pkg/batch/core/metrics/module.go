package metrics

import (
	"go.uber.org/fx"
)

// Module provides no-op metric and tracing hooks.
// The infrastructure metrics module decorates them with real exporters when configured.
var Module = fx.Options(
	fx.Provide(NewNoOpMetricRecorder),
	fx.Provide(NewNoOpTracer),
)
