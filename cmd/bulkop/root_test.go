package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/tigerroll/bulkop/pkg/batch/component/export"
	"github.com/tigerroll/bulkop/pkg/batch/component/migration"
	usecase "github.com/tigerroll/bulkop/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
	"github.com/tigerroll/bulkop/pkg/batch/engine/worker"
	batchlistener "github.com/tigerroll/bulkop/pkg/batch/listener"
)

const testConfig = `
bulkop:
  batch:
    invocations_per_batch_job: 2
    batch_jobs_per_seed: 1
    batch_poll_time_seconds: 0
    default_job_retries: 3
  worker:
    pool_size: 2
    acquire_size: 5
    idle_wait_millis: 10
  system:
    logging:
      level: ERROR
  infrastructure:
    store: inmemory
`

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand([]byte(testConfig))
	commands := []string{"serve", "submit", "status", "suspend", "activate", "delete", "retries", "migrate", "export-history"}

	for _, name := range commands {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	for _, name := range []string{"up", "down", "version"} {
		sub, _, err := cmd.Find([]string{"migrate", name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestSubmitFlags(t *testing.T) {
	cmd := NewRootCommand([]byte(testConfig))
	submit, _, err := cmd.Find([]string{"submit"})
	require.NoError(t, err)

	typeFlag := submit.Flags().Lookup("type")
	require.NotNil(t, typeFlag)
	assert.Equal(t, "t", typeFlag.Shorthand)
	assert.Equal(t, "false", submit.Flags().Lookup("wait").DefValue)
	assert.Equal(t, "10m0s", submit.Flags().Lookup("timeout").DefValue)
	assert.Equal(t, "cli", cmd.PersistentFlags().Lookup("user").DefValue)
}

func TestGetApplicationOptions_Validate(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")

	t.Run("inmemory with workers", func(t *testing.T) {
		cfg := config.NewConfig()
		options := GetApplicationOptions(envFile, []byte(testConfig), cfg, runMode{workers: true, autoMigrate: true})
		options = append(options, fx.Invoke(func(usecase.BatchOperator, usecase.BatchExplorer, *batchlistener.CompletionSignaler, *worker.Pool, *export.HistoryExporter) {}))
		assert.NoError(t, fx.ValidateApp(options...))
	})

	t.Run("sql", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.Bulkop.Infrastructure.Store = config.StoreSQL
		options := GetApplicationOptions(envFile, []byte(testConfig), cfg, runMode{autoMigrate: true})
		options = append(options, fx.Invoke(func(usecase.BatchOperator, *migration.SchemaRunner) {}))
		assert.NoError(t, fx.ValidateApp(options...))
	})
}

func TestReadPayload(t *testing.T) {
	opts := &SubmitOptions{Payload: `{"variables": {"approved": true, "count": 2}}`}
	payload, err := opts.readPayload()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"approved": true, "count": 2}, payload["variables"])

	opts = &SubmitOptions{Payload: "deleteReason: cleanup\nskipSubprocesses: true"}
	payload, err = opts.readPayload()
	require.NoError(t, err)
	assert.Equal(t, "cleanup", payload["deleteReason"])
	assert.Equal(t, true, payload["skipSubprocesses"])

	payload, err = (&SubmitOptions{}).readPayload()
	require.NoError(t, err)
	assert.Empty(t, payload)

	_, err = (&SubmitOptions{Payload: "variables: [unclosed"}).readPayload()
	assert.Error(t, err)
}

func TestSubmit_WaitsForCompletion(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var out bytes.Buffer
	cmd := NewRootCommand([]byte(testConfig))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"--env-file", filepath.Join(t.TempDir(), ".env"),
		"submit",
		"--type", "set-variables",
		"--ids", "pi-1,pi-2,pi-3",
		"--payload", `{"variables": {"approved": true}}`,
		"--wait",
		"--timeout", "20s",
	})

	require.NoError(t, cmd.ExecuteContext(ctx))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Batch "+lines[0]+" completed", lines[1])
}

func TestSubmit_UnknownOperationType(t *testing.T) {
	cmd := NewRootCommand([]byte(testConfig))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), ".env"), "submit", "--type", "no-such-operation", "--ids", "pi-1"})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create batch")
}

func TestMigrate_RequiresSQLStore(t *testing.T) {
	cmd := NewRootCommand([]byte(testConfig))
	cmd.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), ".env"), "migrate", "version"})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate requires infrastructure.store 'sql'")
}
