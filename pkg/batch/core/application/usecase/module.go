package usecase

import (
	"go.uber.org/fx"
)

// Module provides the BatchManagementService as BatchOperator and BatchExplorer.
var Module = fx.Options(
	fx.Provide(NewBatchManagementService),
	fx.Provide(
		func(s *BatchManagementService) BatchOperator { return s },
		func(s *BatchManagementService) BatchExplorer { return s },
	),
)
