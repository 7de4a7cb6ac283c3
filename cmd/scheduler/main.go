package main

import (
	"context"
	"flag"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/bagfinder/internal/adapters/nats"
	"github.com/samirrijal/bagfinder/internal/adapters/pdok"
	"github.com/samirrijal/bagfinder/internal/adapters/postgres"
	"github.com/samirrijal/bagfinder/internal/core/domain"
	"github.com/samirrijal/bagfinder/internal/core/ports"
	"github.com/samirrijal/bagfinder/internal/core/usecases"
	"github.com/samirrijal/bagfinder/internal/pkg/config"
	"github.com/samirrijal/bagfinder/internal/pkg/logging"
	"github.com/samirrijal/bagfinder/internal/workflows"
)

func main() {
	cfg, err := config.Load("bagfinder-scheduler")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	runNow := flag.Bool("now", false, "start one import immediately in addition to the cron schedule")
	flag.Parse()

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var events ports.EventPublisher
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, imports will not be announced", "error", err)
		} else {
			defer pub.Close()
			events = pub
		}
	}

	source := pdok.New(pdok.Config{
		URL:      cfg.PDOK.URL,
		TypeName: cfg.PDOK.TypeName,
		Count:    cfg.PDOK.Count,
		Timeout:  cfg.PDOK.TimeoutDuration(),
	})

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.ImportWorkflow)
	w.RegisterActivity(&workflows.ImportActivities{
		Importer: usecases.NewImportService(source, postgres.NewPropertyRepo(db), events),
	})

	req := domain.ImportRequest{
		MinArea:        cfg.Import.MinArea,
		Municipalities: cfg.Import.Municipalities,
		SeedSamples:    cfg.Import.SeedSamples,
	}

	if cfg.Import.Cron != "" {
		// An already running schedule with the same ID is reused, not duplicated.
		run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:           workflows.ImportWorkflowID,
			TaskQueue:    cfg.Temporal.TaskQueue,
			CronSchedule: cfg.Import.Cron,
		}, workflows.ImportWorkflow, req)
		if err != nil {
			log.Fatalf("schedule import: %v", err)
		}
		slog.Info("import scheduled", "cron", cfg.Import.Cron, "run_id", run.GetRunID())
	}

	if *runNow {
		run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:        workflows.ImportWorkflowID + "-manual",
			TaskQueue: cfg.Temporal.TaskQueue,
		}, workflows.ImportWorkflow, req)
		if err != nil {
			log.Fatalf("start import: %v", err)
		}
		slog.Info("import started", "run_id", run.GetRunID())
	}

	slog.Info("scheduler worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
