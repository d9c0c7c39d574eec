package test

import (
	"fmt"
	"time"

	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
)

// TargetIDs returns n ids of the form "<prefix>-<i>", starting at 1.
func TargetIDs(prefix string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%d", prefix, i+1)
	}
	return ids
}

// NewTestBatchConfig returns batch settings with the given sizes and defaults for the rest.
func NewTestBatchConfig(invocationsPerJob, jobsPerSeed int) *config.BatchConfig {
	cfg := config.NewConfig().Bulkop.Batch
	cfg.InvocationsPerBatchJob = invocationsPerJob
	cfg.BatchJobsPerSeed = jobsPerSeed
	return &cfg
}

// Epoch is the fixed start time used by clock based tests.
var Epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
