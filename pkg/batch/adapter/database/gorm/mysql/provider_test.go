package mysql_test

import (
	"testing"

	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "github.com/tigerroll/bulkop/pkg/batch/adapter/database/config"
	"github.com/tigerroll/bulkop/pkg/batch/adapter/database/gorm/mysql"
)

func TestConnectionString(t *testing.T) {
	dsn := mysql.ConnectionString(dbconfig.DatabaseConfig{
		Host:     "db",
		Port:     3306,
		User:     "bulkop",
		Password: "secret",
		Database: "engine",
		Params:   map[string]string{"sql_mode": "TRADITIONAL"},
	})

	parsed, err := driver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "bulkop", parsed.User)
	assert.Equal(t, "secret", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "engine", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.True(t, parsed.ClientFoundRows)
	assert.Equal(t, "TRADITIONAL", parsed.Params["sql_mode"])
}
