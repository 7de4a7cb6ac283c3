package usecases

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/bagfinder/internal/core/domain"
	"github.com/samirrijal/bagfinder/internal/core/ports"
	"github.com/samirrijal/bagfinder/internal/pkg/logging"
	"github.com/samirrijal/bagfinder/internal/pkg/metrics"
)

const (
	importBatchSize   = 1000
	importConcurrency = 4
	importFetchLimit  = 50000
)

// ImportService copies BAG verblijfsobjecten from PDOK into the database.
type ImportService struct {
	source ports.FeatureSource
	repo   ports.PropertyRepository
	events ports.EventPublisher
}

// NewImportService creates a new ImportService. events may be nil.
func NewImportService(source ports.FeatureSource, repo ports.PropertyRepository, events ports.EventPublisher) *ImportService {
	return &ImportService{source: source, repo: repo, events: events}
}

// Import fetches residential objects of at least req.MinArea m² and upserts
// them. Unlike the query path there is no fallback: an upstream failure fails the import.
// req.Progress may be called from several goroutines.
func (s *ImportService) Import(ctx context.Context, req domain.ImportRequest) (domain.ImportSummary, error) {
	start := time.Now()
	summary := domain.ImportSummary{StartedAt: start.UTC()}

	features, err := s.source.FetchFeatures(ctx, domain.FeatureQuery{
		MinArea:         req.MinArea,
		ResidentialOnly: true,
		Limit:           importFetchLimit,
	})
	if err != nil {
		return summary, fmt.Errorf("fetch features: %w", err)
	}
	summary.Fetched = len(features)

	records := make([]domain.ImportRecord, 0, len(features))
	for _, feat := range features {
		// Without a BAG id every run would insert the object again.
		if stringProp(feat.Properties, "identificatie") == "" {
			summary.Discarded++
			continue
		}
		p := parseFeature(feat)
		if !p.ok() {
			summary.Discarded++
			continue
		}
		if !wanted(p.record.Object, req) {
			continue
		}
		if p.record.Purpose == "" {
			p.record.Purpose = domain.ResidentialPurpose
		}
		records = append(records, p.record)
	}
	logging.FromContext(ctx).InfoContext(ctx, "parsed features",
		"fetched", summary.Fetched, "kept", len(records), "discarded", summary.Discarded)

	summary.Stored, err = s.store(ctx, records, req.Progress)
	if err != nil {
		return summary, err
	}

	if req.SeedSamples {
		summary.Seeded, err = s.SeedSamples(ctx)
		if err != nil {
			return summary, err
		}
	}

	summary.FinishedAt = time.Now().UTC()
	metrics.ImportDuration.Observe(time.Since(start).Seconds())
	return summary, nil
}

// SeedSamples upserts the built-in sample records so a fresh database has something to show.
func (s *ImportService) SeedSamples(ctx context.Context) (int, error) {
	n, err := s.store(ctx, sampleImportRecords(), nil)
	if err != nil {
		return n, fmt.Errorf("seed samples: %w", err)
	}
	return n, nil
}

// Announce tells subscribers an import finished.
func (s *ImportService) Announce(ctx context.Context, summary domain.ImportSummary) error {
	if s.events == nil {
		return nil
	}
	if err := s.events.PublishImportCompleted(ctx, &summary); err != nil {
		return fmt.Errorf("announce import: %w", err)
	}
	return nil
}

func (s *ImportService) store(ctx context.Context, records []domain.ImportRecord, progress func(int)) (int, error) {
	if s.repo == nil {
		return 0, ErrNoRepository
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(importConcurrency)

	var stored atomic.Int64
	for batch := range slices.Chunk(records, importBatchSize) {
		g.Go(func() error {
			if err := s.repo.UpsertBatch(gctx, batch); err != nil {
				return fmt.Errorf("upsert batch: %w", err)
			}
			stored.Add(int64(len(batch)))
			metrics.ImportRecordsStored.Add(float64(len(batch)))
			if progress != nil {
				progress(len(batch))
			}
			return nil
		})
	}

	err := g.Wait()
	return int(stored.Load()), err
}

func wanted(v domain.Verblijfsobject, req domain.ImportRequest) bool {
	if v.Area < req.MinArea {
		return false
	}
	if len(req.Municipalities) == 0 {
		return true
	}
	for _, m := range req.Municipalities {
		if (domain.Filter{Municipality: m}).Matches(v) {
			return true
		}
	}
	return false
}
