package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dbconfig "github.com/tigerroll/bulkop/pkg/batch/adapter/database/config"
	"github.com/tigerroll/bulkop/pkg/batch/adapter/database/gorm/postgres"
)

func TestConnectionString(t *testing.T) {
	cfg := dbconfig.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "bulkop",
		Password: "secret",
		Database: "engine",
	}
	assert.Equal(t, "host=db port=5432 user=bulkop password=secret dbname=engine sslmode=disable", postgres.ConnectionString(cfg))

	cfg.Sslmode = "require"
	cfg.Schema = "ops"
	cfg.Params = map[string]string{"connect_timeout": "5", "application_name": "bulkop"}
	assert.Equal(t,
		"host=db port=5432 user=bulkop password=secret dbname=engine sslmode=require search_path=ops application_name=bulkop connect_timeout=5",
		postgres.ConnectionString(cfg))
}
