package gorm

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/bulkop/pkg/batch/adapter/database"
)

// Module provides the connection resolver. Concrete providers come from the
// sqlite, postgres and mysql subpackages.
var Module = fx.Options(
	fx.Provide(NewGormDBConnectionResolver),
	fx.Provide(func(r *GormDBConnectionResolver) database.DBConnectionResolver { return r }),
	fx.Invoke(func(lc fx.Lifecycle, r *GormDBConnectionResolver) {
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return r.CloseAll() }})
	}),
)
