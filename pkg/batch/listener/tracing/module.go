package tracing

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
)

// Module adds the tracing BatchListener to the batchListeners group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewBatchListener,
		fx.As(new(port.BatchListener)),
		fx.ResultTags(`group:"batchListeners"`),
	)),
)
