package logging_test

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	"github.com/tigerroll/bulkop/pkg/batch/listener/logging"
	logger "github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
	testutil "github.com/tigerroll/bulkop/pkg/batch/test"
)

func captureLog(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	logger.Configure(&buf, "json", "INFO")
	t.Cleanup(func() { logger.Configure(os.Stderr, "console", "INFO") })
	return &buf
}

func TestOperationLogWriter(t *testing.T) {
	buf := captureLog(t)
	w := logging.NewOperationLogWriter()

	err := w.Write(context.Background(), port.OperationLogEntry{
		Operation:  model.OperationRetries,
		EntityType: "Batch",
		BatchID:    "batch-1",
		UserID:     "demo",
		Timestamp:  testutil.Epoch,
		Properties: []model.PropertyChange{
			{Name: "retries", OrgValue: 0, NewValue: 3},
			{Name: "async", NewValue: true},
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "SetJobRetries Batch 'batch-1' by demo at 2026-03-01T09:00:00.000Z")
	assert.Contains(t, out, "retries=3 (was 0), async=true")
}

func TestOperationLogWriter_SystemUser(t *testing.T) {
	buf := captureLog(t)
	require.NoError(t, logging.NewOperationLogWriter().Write(context.Background(), port.OperationLogEntry{
		Operation: model.OperationDelete, EntityType: "Batch", BatchID: "b", Timestamp: testutil.Epoch,
	}))
	assert.Contains(t, buf.String(), "by <system>")
}

func TestBatchListener(t *testing.T) {
	buf := captureLog(t)
	l := logging.NewBatchListener()
	batch := model.NewBatch("correlate-message", 8, 4, 2, testutil.Epoch)
	batch.JobsCreated = 4

	l.OnBatchCreated(context.Background(), batch)
	l.OnBatchCancelled(context.Background(), batch)

	out := buf.String()
	assert.Contains(t, out, "created - ID: "+batch.ID)
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, "WorkUnits created: 4 of 8")
}
