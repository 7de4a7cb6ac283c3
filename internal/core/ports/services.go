package ports

import (
	"context"
	"errors"

	"github.com/samirrijal/bagfinder/internal/core/domain"
)

// FeatureSource fetches raw features from the external geodata service.
// Any error means the upstream could not deliver a usable response.
type FeatureSource interface {
	FetchFeatures(ctx context.Context, q domain.FeatureQuery) ([]domain.RawFeature, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishImportCompleted(ctx context.Context, summary *domain.ImportSummary) error
	PublishFallbackServed(ctx context.Context, event *domain.FallbackEvent) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeImportCompleted(ctx context.Context, handler func(ctx context.Context, summary *domain.ImportSummary) error) error
}

// ErrCacheMiss is returned by CacheService.Get for an absent or expired key.
var ErrCacheMiss = errors.New("cache miss")

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
