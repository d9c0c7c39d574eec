package logging

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
)

// Module adds the logging BatchListener to the batchListeners group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewBatchListener,
		fx.As(new(port.BatchListener)),
		fx.ResultTags(`group:"batchListeners"`),
	)),
)

// OperationLogModule provides the logging OperationLogWriter. Used with the in-memory store.
var OperationLogModule = fx.Options(
	fx.Provide(fx.Annotate(
		NewOperationLogWriter,
		fx.As(new(port.OperationLogWriter)),
	)),
)
