package ports

import (
	"context"

	"github.com/samirrijal/bagfinder/internal/core/domain"
)

// PropertyRepository persists verblijfsobjecten.
type PropertyRepository interface {
	// FindByFilter returns residential objects passing f, largest area first.
	FindByFilter(ctx context.Context, f domain.Filter, limit int) ([]domain.Verblijfsobject, error)
	ListMunicipalities(ctx context.Context) ([]string, error)
	UpsertBatch(ctx context.Context, records []domain.ImportRecord) error
	Ping(ctx context.Context) error
}
