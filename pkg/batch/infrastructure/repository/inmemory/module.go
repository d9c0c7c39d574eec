package inmemory

import (
	"go.uber.org/fx"

	repository "github.com/tigerroll/bulkop/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/bulkop/pkg/batch/core/tx"
)

// Module is an Fx module that provides InMemoryStore as repository.Store and its
// transaction manager as tx.TransactionManager.
var Module = fx.Options(
	fx.Provide(NewInMemoryStore),
	fx.Provide(func(s *InMemoryStore) repository.Store { return s }),
	fx.Provide(
		fx.Annotate(
			NewTransactionManager,
			fx.As(new(tx.TransactionManager)),
		),
	),
)
