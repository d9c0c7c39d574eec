// Package export writes finished historic batches to a parquet object on a named storage.
package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"go.uber.org/fx"

	"github.com/tigerroll/bulkop/pkg/batch/adapter/storage"
	coreConfig "github.com/tigerroll/bulkop/pkg/batch/core/config"
	"github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	"github.com/tigerroll/bulkop/pkg/batch/core/domain/repository"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

const module = "history_export"

// HistorySource lists historic batches.
type HistorySource interface {
	FindHistoricBatches(ctx context.Context, finishedOnly bool) ([]*model.HistoricBatch, error)
}

// historyRecord is one parquet row. Times are epoch milliseconds in UTC.
type historyRecord struct {
	ID                     string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Type                   string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	TotalJobs              int32  `parquet:"name=total_jobs, type=INT32"`
	BatchJobsPerSeed       int32  `parquet:"name=batch_jobs_per_seed, type=INT32"`
	InvocationsPerBatchJob int32  `parquet:"name=invocations_per_batch_job, type=INT32"`
	TenantID               string `parquet:"name=tenant_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreateUserID           string `parquet:"name=create_user_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	StartTime              int64  `parquet:"name=start_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	EndTime                int64  `parquet:"name=end_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	DurationMillis         int64  `parquet:"name=duration_millis, type=INT64"`
}

func toRecord(h *model.HistoricBatch) historyRecord {
	rec := historyRecord{
		ID:                     h.ID,
		Type:                   h.Type,
		TotalJobs:              int32(h.TotalJobs),
		BatchJobsPerSeed:       int32(h.BatchJobsPerSeed),
		InvocationsPerBatchJob: int32(h.InvocationsPerBatchJob),
		TenantID:               h.TenantID,
		CreateUserID:           h.CreateUserID,
		StartTime:              h.StartTime.UTC().UnixMilli(),
	}
	if h.EndTime != nil {
		rec.EndTime = h.EndTime.UTC().UnixMilli()
		rec.DurationMillis = h.EndTime.Sub(h.StartTime).Milliseconds()
	}
	return rec
}

// HistoryExporter writes finished historic batches as a single parquet object.
type HistoryExporter struct {
	source      HistorySource
	resolver    storage.StorageConnectionResolver
	compression parquet.CompressionCodec
}

// NewHistoryExporter creates an exporter. compression is SNAPPY, GZIP or NONE; empty means SNAPPY.
func NewHistoryExporter(source HistorySource, resolver storage.StorageConnectionResolver, compression string) (*HistoryExporter, error) {
	codec, err := compressionCodec(compression)
	if err != nil {
		return nil, exception.NewBatchError(module, "invalid compression", err, false)
	}
	return &HistoryExporter{source: source, resolver: resolver, compression: codec}, nil
}

// Export writes every finished historic batch to objectName on the storage named storageRef,
// in the configured bucket. It returns the number of exported rows. Nothing is uploaded
// when no batch has finished.
func (e *HistoryExporter) Export(ctx context.Context, storageRef, objectName string) (int, error) {
	if storageRef == "" || objectName == "" {
		return 0, exception.NewBatchErrorf(module, "storage reference and object name are required")
	}
	batches, err := e.source.FindHistoricBatches(ctx, true)
	if err != nil {
		return 0, exception.NewBatchError(module, "failed to read historic batches", err, true)
	}
	if len(batches) == 0 {
		logger.Infof("History export: no finished batches, skipping '%s'.", objectName)
		return 0, nil
	}

	buf, err := e.encode(batches)
	if err != nil {
		return 0, err
	}

	conn, err := e.resolver.ResolveStorageConnection(ctx, storageRef)
	if err != nil {
		return 0, exception.NewBatchError(module, fmt.Sprintf("failed to resolve storage '%s'", storageRef), err, false)
	}
	if err := conn.Upload(ctx, "", objectName, buf, "application/vnd.apache.parquet"); err != nil {
		return 0, exception.NewBatchError(module, fmt.Sprintf("failed to upload '%s' to '%s'", objectName, storageRef), err, true)
	}
	logger.Infof("History export: wrote %d batches to %s:%s (%s).", len(batches), storageRef, objectName, e.compression)
	return len(batches), nil
}

func (e *HistoryExporter) encode(batches []*model.HistoricBatch) (buf *bytes.Buffer, err error) {
	buf = new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(historyRecord), 1)
	if err != nil {
		return nil, exception.NewBatchError(module, "failed to create parquet writer", err, false)
	}
	pw.CompressionType = e.compression

	for _, h := range batches {
		if err := pw.Write(toRecord(h)); err != nil {
			return nil, exception.NewBatchError(module, fmt.Sprintf("failed to write batch %s", h.ID), err, false)
		}
	}

	// WriteStop panics on some schema errors.
	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = exception.NewBatchErrorf(module, "parquet writer panicked: %v", r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return nil, exception.NewBatchError(module, "failed to finalize parquet data", err, false)
	}
	return buf, nil
}

func compressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY", "":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}

type exporterParams struct {
	fx.In
	Store    repository.Store
	Resolver storage.StorageConnectionResolver
	Cfg      *coreConfig.Config
}

func provideExporter(p exporterParams) (*HistoryExporter, error) {
	return NewHistoryExporter(p.Store, p.Resolver, p.Cfg.Bulkop.Infrastructure.ExportCompression)
}

// Module provides the HistoryExporter.
var Module = fx.Options(
	fx.Provide(provideExporter),
)
