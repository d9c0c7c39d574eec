package listener

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	"github.com/tigerroll/bulkop/pkg/batch/listener/logging"
	"github.com/tigerroll/bulkop/pkg/batch/listener/tracing"
)

// Module aggregates all batch listeners. The CompletionSignaler is also provided by
// its concrete type so callers can Await batches.
var Module = fx.Options(
	logging.Module,
	tracing.Module,
	fx.Provide(NewCompletionSignaler),
	fx.Provide(fx.Annotate(
		func(s *CompletionSignaler) port.BatchListener { return s },
		fx.ResultTags(`group:"batchListeners"`),
	)),
)
