package usecases

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/samirrijal/bagfinder/internal/core/domain"
	"github.com/samirrijal/bagfinder/internal/core/ports"
	"github.com/samirrijal/bagfinder/internal/pkg/logging"
	"github.com/samirrijal/bagfinder/internal/pkg/metrics"
)

// SourceMode selects where FindProperties looks for data.
type SourceMode string

const (
	// ModeAuto queries the database first and falls back to PDOK when it errors or finds nothing.
	ModeAuto     SourceMode = "auto"
	ModeDatabase SourceMode = "database"
	ModePDOK     SourceMode = "pdok"
)

// ErrNoRepository is returned in database mode when no database is configured.
var ErrNoRepository = errors.New("no property repository configured")

var errNoFeatureSource = errors.New("no feature source configured")

const municipalitiesCacheKey = "gemeenten"

// PropertyServiceConfig tunes a PropertyService.
type PropertyServiceConfig struct {
	Mode            SourceMode
	Limit           int // max rows read from the database per query
	CacheTTLSeconds int
	// EventTimeout bounds the fallback announcement made on the request path.
	EventTimeout time.Duration
}

// PropertyService answers property queries from the database or PDOK.
type PropertyService struct {
	repo   ports.PropertyRepository
	source ports.FeatureSource
	cache  ports.CacheService
	events ports.EventPublisher
	cfg    PropertyServiceConfig

	// generation is part of every query cache key; bumping it orphans old entries.
	generation atomic.Uint64
}

// NewPropertyService creates a new PropertyService. repo, cache and events may be nil.
func NewPropertyService(
	repo ports.PropertyRepository,
	source ports.FeatureSource,
	cache ports.CacheService,
	events ports.EventPublisher,
	cfg PropertyServiceConfig,
) *PropertyService {
	if cfg.Mode == "" {
		cfg.Mode = ModeAuto
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 1000
	}
	if cfg.CacheTTLSeconds <= 0 {
		cfg.CacheTTLSeconds = 300
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = 2 * time.Second
	}
	return &PropertyService{repo: repo, source: source, cache: cache, events: events, cfg: cfg}
}

// FindProperties returns the verblijfsobjecten in municipality (substring,
// case-insensitive; empty means all) with at least minArea m², largest first.
func (s *PropertyService) FindProperties(ctx context.Context, municipality string, minArea float64) (*domain.PropertyResult, error) {
	f := domain.Filter{Municipality: municipality, MinArea: minArea}

	cacheKey := fmt.Sprintf("verblijfsobjecten:v%d:%s:%g", s.generation.Load(), strings.ToLower(municipality), minArea)
	var cached domain.PropertyResult
	if s.cacheGet(ctx, cacheKey, "find_properties", &cached) {
		return &cached, nil
	}

	res, err := s.query(ctx, f)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(res.Results, func(a, b domain.Verblijfsobject) int {
		return cmp.Compare(b.Area, a.Area)
	})
	metrics.PropertyQueries.WithLabelValues(string(res.Source)).Inc()

	// Sample data stands in for an outage; caching it would outlive the outage.
	if res.Source != domain.SourceFallback {
		s.cacheSet(ctx, cacheKey, res, s.cfg.CacheTTLSeconds)
	}
	return res, nil
}

func (s *PropertyService) query(ctx context.Context, f domain.Filter) (*domain.PropertyResult, error) {
	switch s.cfg.Mode {
	case ModeDatabase:
		if s.repo == nil {
			return nil, ErrNoRepository
		}
		records, err := s.repo.FindByFilter(ctx, f, s.cfg.Limit)
		if err != nil {
			return nil, fmt.Errorf("find properties: %w", err)
		}
		return domain.NewPropertyResult(records, domain.SourceDatabase), nil

	case ModePDOK:
		return s.fromUpstream(ctx, f), nil

	default:
		if s.repo != nil {
			records, err := s.repo.FindByFilter(ctx, f, s.cfg.Limit)
			switch {
			case err != nil:
				logging.FromContext(ctx).WarnContext(ctx, "database query failed, trying PDOK", "error", err)
			case len(records) > 0:
				return domain.NewPropertyResult(records, domain.SourceDatabase), nil
			}
		}
		return s.fromUpstream(ctx, f), nil
	}
}

// fromUpstream runs the PDOK fetch through the normalizer. It never fails.
func (s *PropertyService) fromUpstream(ctx context.Context, f domain.Filter) *domain.PropertyResult {
	var (
		features []domain.RawFeature
		err      = errNoFeatureSource
	)
	if s.source != nil {
		features, err = s.source.FetchFeatures(ctx, domain.FeatureQuery{MinArea: f.MinArea})
	}

	n := Normalize(features, err, f)
	if n.Discarded > 0 {
		logging.FromContext(ctx).DebugContext(ctx, "discarded malformed features", "count", n.Discarded)
	}
	if n.Source == domain.SourceFallback {
		attrs := []any{"reason", n.FallbackReason, "municipality", f.Municipality, "min_area", f.MinArea}
		if err != nil {
			attrs = append(attrs, "error", err)
		}
		logging.FromContext(ctx).WarnContext(ctx, "serving sample data", attrs...)
		s.announceFallback(ctx, f, n)
	}
	return domain.NewPropertyResult(n.Records, n.Source)
}

func (s *PropertyService) announceFallback(ctx context.Context, f domain.Filter, n domain.Normalized) {
	if s.events == nil {
		return
	}
	event := &domain.FallbackEvent{
		Municipality: f.Municipality,
		MinArea:      f.MinArea,
		Reason:       n.FallbackReason,
		Count:        len(n.Records),
		Time:         time.Now().UTC(),
	}
	// A stalled broker must not hold the response past EventTimeout.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.EventTimeout)
	defer cancel()
	if err := s.events.PublishFallbackServed(pubCtx, event); err != nil {
		logging.FromContext(ctx).DebugContext(ctx, "publish fallback event", "error", err)
	}
}

// ListMunicipalities returns the distinct municipalities with residential objects, sorted.
func (s *PropertyService) ListMunicipalities(ctx context.Context) ([]string, error) {
	var cached []string
	if s.cacheGet(ctx, municipalitiesCacheKey, "list_municipalities", &cached) {
		return cached, nil
	}

	if s.repo == nil || s.cfg.Mode == ModePDOK {
		if s.cfg.Mode == ModeDatabase {
			return nil, ErrNoRepository
		}
		return FallbackMunicipalities(), nil
	}

	names, err := s.repo.ListMunicipalities(ctx)
	if err != nil {
		if s.cfg.Mode == ModeDatabase {
			return nil, fmt.Errorf("list municipalities: %w", err)
		}
		logging.FromContext(ctx).WarnContext(ctx, "database query failed, listing sample municipalities", "error", err)
		return FallbackMunicipalities(), nil
	}
	if names == nil {
		names = []string{}
	}

	s.cacheSet(ctx, municipalitiesCacheKey, names, 3600)
	return names, nil
}

// InvalidateCache drops cached query results, typically after an import.
func (s *PropertyService) InvalidateCache(ctx context.Context) error {
	s.generation.Add(1)
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, municipalitiesCacheKey)
}

func (s *PropertyService) cacheGet(ctx context.Context, key, op string, v any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ports.ErrCacheMiss) {
			logging.FromContext(ctx).WarnContext(ctx, "cache read failed", "key", key, "error", err)
		}
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		logging.FromContext(ctx).DebugContext(ctx, "undecodable cache entry", "key", key, "error", err)
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(op).Inc()
	return true
}

func (s *PropertyService) cacheSet(ctx context.Context, key string, v any, ttlSeconds int) {
	if s.cache == nil {
		return
	}
	data, err := msgpack.Marshal(v)
	if err != nil {
		logging.FromContext(ctx).DebugContext(ctx, "cache encode", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, ttlSeconds); err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
}
