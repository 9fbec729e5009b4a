package integration

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsync/backend/internal/domain/integration"
)

func completedResult(platform integration.PlatformType, synced int, itemErrs ...string) *integration.SyncResult {
	r := &integration.SyncResult{
		ConnectionID: uuid.New(),
		PlatformType: platform,
		State:        integration.SyncStateCompleted,
		SyncedCount:  synced,
		StartedAt:    time.Now().Add(-time.Second),
		FinishedAt:   time.Now(),
	}
	for _, id := range itemErrs {
		r.AddItemError(id, integration.NewMappingError(platform, id, "status", "bad"))
	}
	return r
}

func failedResult(platform integration.PlatformType, err error) *integration.SyncResult {
	r := &integration.SyncResult{
		ConnectionID: uuid.New(),
		PlatformType: platform,
		State:        integration.SyncStateFetching,
	}
	r.Fail(err)
	return r
}

func TestAggregate_PartialSuccess(t *testing.T) {
	a := completedResult(integration.PlatformTaobao, 50)
	a.UnmappedStatusCount = 2
	b := failedResult(integration.PlatformDouyin, integration.NewAuthError(integration.PlatformDouyin, "token expired", nil))

	summary := Aggregate([]*integration.SyncResult{a, b})

	assert.True(t, summary.Success)
	assert.Equal(t, 50, summary.SyncedCount)
	assert.Zero(t, summary.ErrorCount)
	assert.Equal(t, "50 synced, 0 errors, 1 of 2 platforms failed", summary.Message)
	require.Len(t, summary.Platforms, 2)

	pa, pb := summary.Platforms[0], summary.Platforms[1]
	assert.Equal(t, a.ConnectionID, pa.ConnectionID)
	assert.Equal(t, integration.SyncStateCompleted, pa.Status)
	assert.Equal(t, 2, pa.UnmappedStatusCount)
	assert.Zero(t, pa.ErrorCount)
	assert.Empty(t, pa.Error)
	assert.GreaterOrEqual(t, pa.DurationMs, int64(1000))

	assert.Equal(t, integration.SyncStateFailed, pb.Status)
	assert.Zero(t, pb.SyncedCount)
	assert.Equal(t, 1, pb.ErrorCount)
	assert.Equal(t, "auth", pb.ErrorKind)
	assert.Contains(t, pb.Error, "token expired")
}

func TestAggregate_SumsItemErrors(t *testing.T) {
	summary := Aggregate([]*integration.SyncResult{
		completedResult(integration.PlatformTaobao, 100, "1", "2"),
		completedResult(integration.PlatformKuaishou, 20, "3"),
	})

	assert.True(t, summary.Success)
	assert.Equal(t, 120, summary.SyncedCount)
	assert.Equal(t, 3, summary.ErrorCount)
	assert.Equal(t, "120 synced, 3 errors", summary.Message)
	assert.Len(t, summary.Platforms[0].Errors, 2)
}

func TestAggregate_AllFailed(t *testing.T) {
	summary := Aggregate([]*integration.SyncResult{
		failedResult(integration.PlatformTaobao, &integration.TimeoutError{ConnectionID: "c1", Limit: "10m0s"}),
		nil,
	})

	assert.False(t, summary.Success)
	assert.Zero(t, summary.ErrorCount)
	require.Len(t, summary.Platforms, 1)
	assert.Equal(t, "timeout", summary.Platforms[0].ErrorKind)
	assert.Equal(t, "0 synced, 0 errors, 1 of 1 platforms failed", summary.Message)
}

func TestAggregate_Empty(t *testing.T) {
	summary := Aggregate(nil)

	assert.False(t, summary.Success)
	assert.NotNil(t, summary.Platforms)
	assert.Equal(t, "0 synced, 0 errors", summary.Message)
}
