package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	ansi "github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"

	natsadapter "github.com/samirrijal/bagfinder/internal/adapters/nats"
	"github.com/samirrijal/bagfinder/internal/adapters/pdok"
	"github.com/samirrijal/bagfinder/internal/adapters/postgres"
	"github.com/samirrijal/bagfinder/internal/core/domain"
	"github.com/samirrijal/bagfinder/internal/core/ports"
	"github.com/samirrijal/bagfinder/internal/core/usecases"
	"github.com/samirrijal/bagfinder/internal/pkg/config"
	"github.com/samirrijal/bagfinder/internal/pkg/logging"
)

func main() {
	cfg, err := config.Load("bagfinder-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	minArea := flag.Float64("min-area", cfg.Import.MinArea, "minimum floor area in m²")
	municipalities := flag.String("municipalities", strings.Join(cfg.Import.Municipalities, ","), "comma-separated municipality filter; empty imports all")
	seed := flag.Bool("seed", cfg.Import.SeedSamples, "also upsert the built-in sample records")
	seedOnly := flag.Bool("seed-only", false, "only upsert the sample records, skip PDOK")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var events ports.EventPublisher
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, import will not be announced", "error", err)
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
	importer := usecases.NewImportService(source, postgres.NewPropertyRepo(db), events)

	if *seedOnly {
		n, err := importer.SeedSamples(ctx)
		if err != nil {
			log.Fatalf("seed: %v", err)
		}
		slog.Info("sample records stored", "count", n)
		return
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(ansi.NewAnsiStderr()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetDescription("[cyan]storing verblijfsobjecten[reset]"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("records"),
	)

	summary, err := importer.Import(ctx, domain.ImportRequest{
		MinArea:        *minArea,
		Municipalities: splitList(*municipalities),
		SeedSamples:    *seed,
		Progress:       func(n int) { _ = bar.Add(n) },
	})
	_ = bar.Finish()
	if err != nil {
		log.Fatalf("import: %v", err)
	}

	slog.Info("import complete",
		"fetched", summary.Fetched,
		"stored", summary.Stored,
		"discarded", summary.Discarded,
		"seeded", summary.Seeded,
		"took", summary.FinishedAt.Sub(summary.StartedAt).String(),
	)

	if err := importer.Announce(ctx, summary); err != nil {
		slog.Warn("announce import", "error", err)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
