package logging

import (
	"context"
	"fmt"
	"strings"

	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	logger "github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

// OperationLogWriter writes audit records to the log. It backs the in-memory store,
// which has no durable operation log.
type OperationLogWriter struct{}

// NewOperationLogWriter creates an OperationLogWriter.
func NewOperationLogWriter() *OperationLogWriter {
	return &OperationLogWriter{}
}

// Write logs entry at Info with its property changes.
func (w *OperationLogWriter) Write(ctx context.Context, entry port.OperationLogEntry) error {
	var b strings.Builder
	for i, p := range entry.Properties {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString("=")
		b.WriteString(formatValue(p.NewValue))
		if p.OrgValue != nil {
			b.WriteString(" (was ")
			b.WriteString(formatValue(p.OrgValue))
			b.WriteString(")")
		}
	}
	user := entry.UserID
	if user == "" {
		user = "<system>"
	}
	logger.Infof("OperationLog: %s %s '%s' by %s at %s [%s]",
		entry.Operation, entry.EntityType, entry.BatchID, user, entry.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"), b.String())
	return nil
}

func formatValue(v interface{}) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprint(v)
}

var _ port.OperationLogWriter = (*OperationLogWriter)(nil)
