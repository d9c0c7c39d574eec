package sql

import (
	"go.uber.org/fx"

	"github.com/tigerroll/bulkop/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/bulkop/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	"github.com/tigerroll/bulkop/pkg/batch/core/config"
	repository "github.com/tigerroll/bulkop/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/bulkop/pkg/batch/core/tx"
)

// StoreParams defines the dependencies of the SQL store.
type StoreParams struct {
	fx.In
	DBResolver database.DBConnectionResolver
	Cfg        *config.Config
}

func storeDBName(cfg *config.Config) string {
	if name := cfg.Bulkop.Infrastructure.StoreDBRef; name != "" {
		return name
	}
	return "metadata"
}

// NewStore creates the SQL store on the connection named by infrastructure.store_db_ref.
func NewStore(p StoreParams) *SQLStore {
	return NewSQLStore(p.DBResolver, storeDBName(p.Cfg))
}

// NewTransactionManager creates the transaction manager of the store's connection.
func NewTransactionManager(p StoreParams) *gormadapter.GormTransactionManager {
	return gormadapter.NewGormTransactionManager(p.DBResolver, storeDBName(p.Cfg))
}

// Module provides SQLStore as repository.Store, its transaction manager and the
// operation log writer. It expects a database.DBConnectionResolver, see adapter/database/gorm.
var Module = fx.Options(
	fx.Provide(NewStore),
	fx.Provide(func(s *SQLStore) repository.Store { return s }),
	fx.Provide(
		fx.Annotate(
			NewTransactionManager,
			fx.As(new(tx.TransactionManager)),
		),
	),
	fx.Provide(NewOperationLogWriter),
	fx.Provide(func(w *OperationLogWriter) port.OperationLogWriter { return w }),
)
