package integration

import (
	"fmt"

	"github.com/marketsync/backend/internal/domain/integration"
)

// Aggregate merges per-connection results into one summary. A failed
// connection counts its connection error once in its own ErrorCount; the
// run-level ErrorCount only sums item-level errors. The run succeeds when at
// least one connection completed.
func Aggregate(results []*integration.SyncResult) *OrdersSummary {
	summary := &OrdersSummary{
		Platforms: make([]PlatformSummary, 0, len(results)),
	}

	failed := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		ps := PlatformSummary{
			PlatformType:        r.PlatformType,
			ConnectionID:        r.ConnectionID,
			Status:              r.State,
			SyncedCount:         r.SyncedCount,
			UnchangedCount:      r.UnchangedCount,
			UnmappedStatusCount: r.UnmappedStatusCount,
			ErrorCount:          r.ErrorCount(),
			Errors:              r.Errors,
			DurationMs:          r.Duration().Milliseconds(),
		}
		if r.Failed() {
			failed++
			ps.ErrorCount++
			if r.ConnectionError != nil {
				ps.Error = r.ConnectionError.Error()
				ps.ErrorKind = integration.ErrorKind(r.ConnectionError)
			}
		} else {
			summary.Success = true
		}

		summary.SyncedCount += r.SyncedCount
		summary.ErrorCount += r.ErrorCount()
		summary.Platforms = append(summary.Platforms, ps)
	}

	summary.Message = fmt.Sprintf("%d synced, %d errors", summary.SyncedCount, summary.ErrorCount)
	if failed > 0 {
		summary.Message += fmt.Sprintf(", %d of %d platforms failed", failed, len(summary.Platforms))
	}
	return summary
}
