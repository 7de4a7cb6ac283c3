package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/bagfinder/internal/adapters/http"
	natsadapter "github.com/samirrijal/bagfinder/internal/adapters/nats"
	"github.com/samirrijal/bagfinder/internal/adapters/pdok"
	"github.com/samirrijal/bagfinder/internal/adapters/postgres"
	"github.com/samirrijal/bagfinder/internal/adapters/valkey"
	"github.com/samirrijal/bagfinder/internal/core/domain"
	"github.com/samirrijal/bagfinder/internal/core/ports"
	"github.com/samirrijal/bagfinder/internal/core/usecases"
	"github.com/samirrijal/bagfinder/internal/pkg/config"
	"github.com/samirrijal/bagfinder/internal/pkg/logging"
	"github.com/samirrijal/bagfinder/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("bagfinder-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	deps := &http.Dependencies{
		Defaults: http.QueryDefaults{
			Municipality: cfg.Query.DefaultMunicipality,
			MinArea:      cfg.Query.DefaultMinArea,
		},
		DataTimeout: cfg.PDOK.TimeoutDuration() + 5*time.Second,
	}

	// Optional dependencies stay untyped nil when unavailable.
	var (
		repo   ports.PropertyRepository
		cache  ports.CacheService
		events ports.EventPublisher
	)

	if cfg.Database.Enabled {
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		switch {
		case err != nil && cfg.Source.Mode == string(usecases.ModeDatabase):
			log.Fatalf("database: %v", err)
		case err != nil:
			slog.Warn("database unavailable, answering from PDOK", "error", err)
		default:
			defer db.Close()
			pr := postgres.NewPropertyRepo(db)
			repo, deps.Database = pr, pr
			go db.ReportPoolMetrics(ctx, 15*time.Second)
		}
	}

	if cfg.Valkey.Enabled {
		c, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer c.Close()
			cache, deps.Cache = c, c
		}
	}

	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			events, deps.Events = pub, pub
		}
	}

	source := pdok.New(pdok.Config{
		URL:      cfg.PDOK.URL,
		TypeName: cfg.PDOK.TypeName,
		Count:    cfg.PDOK.Count,
		Timeout:  cfg.PDOK.TimeoutDuration(),
	})

	properties := usecases.NewPropertyService(repo, source, cache, events, usecases.PropertyServiceConfig{
		Mode:            usecases.SourceMode(cfg.Source.Mode),
		Limit:           cfg.Query.Limit,
		CacheTTLSeconds: cfg.Query.CacheTTL,
	})
	deps.Properties = properties

	// Fresh imports make cached answers stale.
	if cfg.NATS.Enabled {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats subscriber unavailable", "error", err)
		} else {
			defer sub.Close()
			err = sub.SubscribeImportCompleted(ctx, func(ctx context.Context, s *domain.ImportSummary) error {
				slog.InfoContext(ctx, "import completed, invalidating cache", "stored", s.Stored)
				return properties.InvalidateCache(ctx)
			})
			if err != nil {
				slog.Warn("subscribe import events", "error", err)
			}
		}
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024,
		AppName:      "BAG Vastgoedfinder API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept",
		ExposeHeaders: http.DataSourceHeader,
		MaxAge:        3600,
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "source_mode", cfg.Source.Mode)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
