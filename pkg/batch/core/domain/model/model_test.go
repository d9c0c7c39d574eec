package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
)

func TestGroupByDeployment(t *testing.T) {
	ids := []string{"a", "x", "b", "c", "y", "d"}
	mappings := []model.IDMapping{
		{TargetID: "a", DeploymentID: "d1"},
		{TargetID: "b", DeploymentID: "d2"},
		{TargetID: "c", DeploymentID: "d1"},
		{TargetID: "d", DeploymentID: "d2"},
	}

	assert.Equal(t, []string{"a", "c", "b", "d", "x", "y"}, model.GroupByDeployment(ids, mappings))
	assert.Equal(t, ids, model.GroupByDeployment(ids, nil))
}

func TestBatchConfiguration_Narrow(t *testing.T) {
	cfg := model.BatchConfiguration{
		IDs: []string{"a", "b", "c"},
		IDMappings: []model.IDMapping{
			{TargetID: "a", DeploymentID: "d1"},
			{TargetID: "c", DeploymentID: "d2"},
		},
	}

	narrowed := cfg.Narrow([]string{"b", "c"})
	assert.Equal(t, []string{"b", "c"}, narrowed.IDs)
	assert.Equal(t, []model.IDMapping{{TargetID: "c", DeploymentID: "d2"}}, narrowed.IDMappings)
	assert.Len(t, cfg.IDs, 3, "receiver untouched")

	assert.Nil(t, model.BatchConfiguration{IDs: []string{"a"}}.Narrow([]string{"a"}).IDMappings)
}

func TestBatchConfiguration_CommonDeployment(t *testing.T) {
	mappings := []model.IDMapping{
		{TargetID: "a", DeploymentID: "d1"},
		{TargetID: "b", DeploymentID: "d1"},
		{TargetID: "c", DeploymentID: "d2"},
	}

	d, ok := model.BatchConfiguration{IDs: []string{"a", "b"}, IDMappings: mappings}.CommonDeployment()
	assert.True(t, ok)
	assert.Equal(t, "d1", d)

	_, ok = model.BatchConfiguration{IDs: []string{"a", "c"}, IDMappings: mappings}.CommonDeployment()
	assert.False(t, ok)

	_, ok = model.BatchConfiguration{IDs: []string{"a", "z"}, IDMappings: mappings}.CommonDeployment()
	assert.False(t, ok)
}

func TestNewBatchStatistics(t *testing.T) {
	b := model.NewBatch("set-variables", 10, 5, 1, time.Now())
	b.JobsCreated = 6

	stats := model.NewBatchStatistics(b, 2, 1)
	assert.Equal(t, 10, stats.TotalJobs)
	assert.Equal(t, 4, stats.CompletedJobs)
	assert.Equal(t, 6, stats.RemainingJobs)
	assert.Equal(t, 1, stats.FailedJobs)
}

func TestJob_IsAcquirable(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	job := model.NewJob(model.JobTypeBatch, "def", "batch", 3, now)

	assert.True(t, job.IsAcquirable(now))
	assert.False(t, job.IsAcquirable(now.Add(-time.Second)), "not yet due")

	until := now.Add(time.Minute)
	job.LockOwner, job.LockExpirationTime = "worker-1", &until
	assert.False(t, job.IsAcquirable(now))
	assert.True(t, job.IsAcquirable(now.Add(2*time.Minute)), "expired lock")

	job.Unlock()
	job.Suspended = true
	assert.False(t, job.IsAcquirable(now))

	job.Suspended = false
	job.Retries = 0
	assert.False(t, job.IsAcquirable(now))
	assert.True(t, job.IsIncident())
}

func TestBatchFilter_Matches(t *testing.T) {
	b := model.NewBatch("correlate-message", 1, 1, 1, time.Now())
	b.TenantID = "tenant-a"
	suspended := true

	assert.True(t, model.BatchFilter{}.Matches(b))
	assert.True(t, model.BatchFilter{Type: "correlate-message", TenantID: "tenant-a"}.Matches(b))
	assert.False(t, model.BatchFilter{Type: "set-variables"}.Matches(b))
	assert.False(t, model.BatchFilter{Suspended: &suspended}.Matches(b))
}
