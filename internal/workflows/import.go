package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/bagfinder/internal/core/domain"
)

// ImportWorkflowID is the fixed workflow ID of scheduled imports, so two runs never overlap.
const ImportWorkflowID = "bag-import"

// ImportWorkflow runs an import and then announces it. A failed announcement
// is logged; the stored data is what matters.
func ImportWorkflow(ctx workflow.Context, req domain.ImportRequest) (domain.ImportSummary, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("starting import", "minArea", req.MinArea, "municipalities", req.Municipalities)

	var a *ImportActivities

	importCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 10 * time.Second,
			MaximumAttempts: 3,
		},
	})

	var summary domain.ImportSummary
	if err := workflow.ExecuteActivity(importCtx, a.RunImport, req).Get(ctx, &summary); err != nil {
		return summary, err
	}

	announceCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})
	if err := workflow.ExecuteActivity(announceCtx, a.AnnounceImport, summary).Get(ctx, nil); err != nil {
		logger.Warn("announcing import failed", "error", err)
	}

	logger.Info("import finished", "stored", summary.Stored, "seeded", summary.Seeded)
	return summary, nil
}
