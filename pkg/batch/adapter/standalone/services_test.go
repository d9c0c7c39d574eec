package standalone

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	logger "github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

func TestLoggingTargetService(t *testing.T) {
	var buf bytes.Buffer
	logger.Configure(&buf, "json", "INFO")
	t.Cleanup(func() { logger.Configure(os.Stderr, "console", "INFO") })

	ctx := context.Background()
	svc := LoggingTargetService{}
	assert.NoError(t, svc.SetVariables(ctx, "pi-1", map[string]interface{}{"b": 1, "a": 2}))
	assert.NoError(t, svc.UpdateSuspensionState(ctx, "pi-2", true))
	assert.NoError(t, svc.Correlate(ctx, port.CorrelationRequest{MessageName: "paid", InstanceID: "pi-3"}))
	assert.NoError(t, svc.Delete(ctx, port.DeletionRequest{InstanceID: "pi-4", Reason: "cleanup"}))
	assert.NoError(t, AllowAllChecker{}.Check(ctx, port.Capability{Resource: port.ResourceBatch, Permission: port.PermissionCreate}))

	out := buf.String()
	assert.Contains(t, out, "variables [a, b] set on instance 'pi-1'")
	assert.Contains(t, out, "instance 'pi-2' suspended=true")
	assert.Contains(t, out, "message 'paid' correlated to instance 'pi-3'")
	assert.Contains(t, out, "instance 'pi-4' deleted (reason 'cleanup')")
}
