// Package mysql provides the MySQL DBProvider.
package mysql

import (
	"fmt"

	driver "github.com/go-sql-driver/mysql"
	"go.uber.org/fx"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tigerroll/bulkop/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/bulkop/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/bulkop/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/bulkop/pkg/batch/core/config"
)

func init() {
	gormadapter.RegisterDialector("mysql", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString formats the DSN with the driver's Config. Times are parsed into time.Time.
// Affected rows count matched rows, as the optimistic locking of the store expects.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	dsn := driver.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	dsn.DBName = c.Database
	dsn.ParseTime = true
	dsn.ClientFoundRows = true
	if len(c.Params) > 0 {
		dsn.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			dsn.Params[k] = v
		}
	}
	return dsn.FormatDSN()
}

// MySQLDBProvider opens MySQL connections.
type MySQLDBProvider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates the MySQL DBProvider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &MySQLDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "mysql")}
}

// Module registers the provider in the db_providers group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewProvider,
		fx.ResultTags(`group:"`+database.DBProviderGroup+`"`),
	)),
)
