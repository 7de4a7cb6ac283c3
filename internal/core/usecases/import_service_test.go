package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/bagfinder/internal/core/domain"
	"github.com/samirrijal/bagfinder/internal/core/usecases"
)

type recordingRepo struct {
	mockPropertyRepo
	mu      sync.Mutex
	batches [][]domain.ImportRecord
}

func newRecordingRepo() *recordingRepo {
	r := &recordingRepo{}
	r.upsertBatchFn = func(ctx context.Context, records []domain.ImportRecord) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.batches = append(r.batches, records)
		return nil
	}
	return r
}

func (r *recordingRepo) stored() []domain.ImportRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []domain.ImportRecord
	for _, b := range r.batches {
		all = append(all, b...)
	}
	return all
}

func bagFeatures(n int, municipality string, area float64) []domain.RawFeature {
	out := make([]domain.RawFeature, 0, n)
	for i := range n {
		out = append(out, feature(map[string]any{
			"identificatie":     fmt.Sprintf("%s-%05d", municipality, i),
			"oppervlakte":       area,
			"woonplaats":        municipality,
			"gebruiksdoel":      []any{"woonfunctie"},
			"pandidentificatie": "0599100000000001",
			"openbareruimte":    "Coolsingel",
			"huisnummer":        40.0,
			"postcode":          "3011AD",
			"status":            "Verblijfsobject in gebruik",
		}, `[92500, 437000]`))
	}
	return out
}

func TestImportService_Import_ChunksAndStores(t *testing.T) {
	src := &mockFeatureSource{fetchFn: func(ctx context.Context, q domain.FeatureQuery) ([]domain.RawFeature, error) {
		assert.True(t, q.ResidentialOnly)
		assert.Equal(t, 1000.0, q.MinArea)
		assert.Positive(t, q.Limit)
		return bagFeatures(2500, "Rotterdam", 1500), nil
	}}
	repo := newRecordingRepo()

	var progressed atomic.Int64
	svc := usecases.NewImportService(src, repo, nil)
	summary, err := svc.Import(context.Background(), domain.ImportRequest{
		MinArea:  1000,
		Progress: func(n int) { progressed.Add(int64(n)) },
	})
	require.NoError(t, err)

	assert.Equal(t, 2500, summary.Fetched)
	assert.Equal(t, 2500, summary.Stored)
	assert.Equal(t, int64(2500), progressed.Load())
	assert.Len(t, repo.batches, 3, "1000 + 1000 + 500")
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))

	rec := repo.stored()[0]
	assert.Equal(t, "woonfunctie", rec.Purpose)
	assert.Equal(t, "Coolsingel", rec.Street)
	assert.Equal(t, "40", rec.HouseNumber)
	assert.Equal(t, domain.PlanarPoint{X: 92500, Y: 437000}, rec.RD)
	assert.InDelta(t, 4.47, rec.Object.Location.Lon, 0.05)
	assert.InDelta(t, 51.92, rec.Object.Location.Lat, 0.05)
}

func TestImportService_Import_FiltersMunicipalitiesAndDiscards(t *testing.T) {
	features := append(bagFeatures(3, "Rotterdam", 1500), bagFeatures(2, "Zwolle", 1500)...)
	features = append(features,
		feature(map[string]any{"oppervlakte": 1500.0, "woonplaats": "Rotterdam"}, `[92500, 437000]`),
		feature(map[string]any{"identificatie": "nogeo", "oppervlakte": 1500.0, "woonplaats": "Rotterdam"}, ""),
	)
	src := &mockFeatureSource{fetchFn: func(ctx context.Context, q domain.FeatureQuery) ([]domain.RawFeature, error) {
		return features, nil
	}}
	repo := newRecordingRepo()

	svc := usecases.NewImportService(src, repo, nil)
	summary, err := svc.Import(context.Background(), domain.ImportRequest{
		MinArea:        1000,
		Municipalities: []string{"rotterdam", "Amsterdam"},
	})
	require.NoError(t, err)

	assert.Equal(t, 7, summary.Fetched)
	assert.Equal(t, 2, summary.Discarded, "missing id and missing geometry")
	assert.Equal(t, 3, summary.Stored)
	for _, r := range repo.stored() {
		assert.Equal(t, "Rotterdam", r.Object.Municipality)
	}
}

func TestImportService_Import_UpstreamErrorAborts(t *testing.T) {
	src := &mockFeatureSource{fetchFn: func(ctx context.Context, q domain.FeatureQuery) ([]domain.RawFeature, error) {
		return nil, errors.New("pdok: 503")
	}}
	repo := newRecordingRepo()

	svc := usecases.NewImportService(src, repo, nil)
	_, err := svc.Import(context.Background(), domain.ImportRequest{MinArea: 1000, SeedSamples: true})

	require.Error(t, err)
	assert.Empty(t, repo.batches, "no fallback data is written on upstream failure")
}

func TestImportService_Import_RepositoryError(t *testing.T) {
	src := &mockFeatureSource{fetchFn: func(ctx context.Context, q domain.FeatureQuery) ([]domain.RawFeature, error) {
		return bagFeatures(10, "Utrecht", 2000), nil
	}}
	repo := &mockPropertyRepo{upsertBatchFn: func(ctx context.Context, records []domain.ImportRecord) error {
		return errors.New("disk full")
	}}

	svc := usecases.NewImportService(src, repo, nil)
	summary, err := svc.Import(context.Background(), domain.ImportRequest{MinArea: 1000})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Zero(t, summary.Stored)
}

func TestImportService_SeedSamples(t *testing.T) {
	src := &mockFeatureSource{fetchFn: func(ctx context.Context, q domain.FeatureQuery) ([]domain.RawFeature, error) {
		return nil, nil
	}}
	repo := newRecordingRepo()

	svc := usecases.NewImportService(src, repo, nil)
	summary, err := svc.Import(context.Background(), domain.ImportRequest{MinArea: 1000, SeedSamples: true})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Stored)
	assert.Equal(t, 12, summary.Seeded)
	for _, r := range repo.stored() {
		assert.Equal(t, domain.ResidentialPurpose, r.Purpose)
	}
}

func TestImportService_Announce(t *testing.T) {
	pub := &mockPublisher{}
	svc := usecases.NewImportService(&mockFeatureSource{}, newRecordingRepo(), pub)

	require.NoError(t, svc.Announce(context.Background(), domain.ImportSummary{Stored: 42}))
	require.Len(t, pub.imports, 1)
	assert.Equal(t, 42, pub.imports[0].Stored)

	pub.err = errors.New("no stream")
	assert.Error(t, svc.Announce(context.Background(), domain.ImportSummary{}))

	assert.NoError(t, usecases.NewImportService(&mockFeatureSource{}, nil, nil).Announce(context.Background(), domain.ImportSummary{}))
}
