package workflows

import (
	"context"
	"sync/atomic"

	"go.temporal.io/sdk/activity"

	"github.com/samirrijal/bagfinder/internal/core/domain"
	"github.com/samirrijal/bagfinder/internal/core/usecases"
)

// ImportActivities holds the activity implementations for the import workflow.
type ImportActivities struct {
	Importer *usecases.ImportService
}

// RunImport fetches and stores one batch of BAG objects, heartbeating the
// running total of stored records.
func (a *ImportActivities) RunImport(ctx context.Context, req domain.ImportRequest) (domain.ImportSummary, error) {
	logger := activity.GetLogger(ctx)

	var stored atomic.Int64
	req.Progress = func(n int) {
		activity.RecordHeartbeat(ctx, stored.Add(int64(n)))
	}

	summary, err := a.Importer.Import(ctx, req)
	if err != nil {
		logger.Error("import failed", "error", err, "stored", summary.Stored)
		return summary, err
	}
	logger.Info("import done", "fetched", summary.Fetched, "stored", summary.Stored, "discarded", summary.Discarded)
	return summary, nil
}

// AnnounceImport publishes the import-completed event.
func (a *ImportActivities) AnnounceImport(ctx context.Context, summary domain.ImportSummary) error {
	return a.Importer.Announce(ctx, summary)
}
