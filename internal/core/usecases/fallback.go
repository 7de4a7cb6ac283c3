package usecases

import (
	"slices"

	"github.com/samirrijal/bagfinder/internal/core/domain"
)

// sampleRecords is served when PDOK is unreachable or yields nothing usable.
// Never hand it out directly; callers get filtered copies.
var sampleRecords = [...]domain.Verblijfsobject{
	{ID: "0599010000000001", Area: 1200, Municipality: "Rotterdam", Location: domain.GeoPoint{Lon: 4.4792, Lat: 51.9225}},
	{ID: "0599010000000002", Area: 1500, Municipality: "Rotterdam", Location: domain.GeoPoint{Lon: 4.4802, Lat: 51.9235}},
	{ID: "0599010000000003", Area: 2000, Municipality: "Rotterdam", Location: domain.GeoPoint{Lon: 4.4812, Lat: 51.9245}},
	{ID: "0599010000000004", Area: 1100, Municipality: "Rotterdam", Location: domain.GeoPoint{Lon: 4.4782, Lat: 51.9215}},
	{ID: "0599010000000005", Area: 1800, Municipality: "Rotterdam", Location: domain.GeoPoint{Lon: 4.4797, Lat: 51.9230}},
	{ID: "0363010000000001", Area: 1300, Municipality: "Amsterdam", Location: domain.GeoPoint{Lon: 4.8952, Lat: 52.3702}},
	{ID: "0363010000000002", Area: 1600, Municipality: "Amsterdam", Location: domain.GeoPoint{Lon: 4.8962, Lat: 52.3712}},
	{ID: "0363010000000003", Area: 2200, Municipality: "Amsterdam", Location: domain.GeoPoint{Lon: 4.8972, Lat: 52.3722}},
	{ID: "0518010000000001", Area: 1400, Municipality: "Den Haag", Location: domain.GeoPoint{Lon: 4.3113, Lat: 52.0799}},
	{ID: "0518010000000002", Area: 1900, Municipality: "Den Haag", Location: domain.GeoPoint{Lon: 4.3123, Lat: 52.0809}},
	{ID: "0344010000000001", Area: 1250, Municipality: "Utrecht", Location: domain.GeoPoint{Lon: 5.1214, Lat: 52.0907}},
	{ID: "0344010000000002", Area: 1750, Municipality: "Utrecht", Location: domain.GeoPoint{Lon: 5.1224, Lat: 52.0917}},
}

// FallbackRecords returns the sample records passing f, in dataset order.
// The returned slice is freshly allocated.
func FallbackRecords(f domain.Filter) []domain.Verblijfsobject {
	out := make([]domain.Verblijfsobject, 0, len(sampleRecords))
	for _, r := range sampleRecords {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// FallbackMunicipalities lists the municipalities present in the sample data, sorted.
func FallbackMunicipalities() []string {
	var names []string
	for _, r := range sampleRecords {
		if !slices.Contains(names, r.Municipality) {
			names = append(names, r.Municipality)
		}
	}
	slices.Sort(names)
	return names
}

// sampleImportRecords turns the sample data into storable residential records.
func sampleImportRecords() []domain.ImportRecord {
	out := make([]domain.ImportRecord, 0, len(sampleRecords))
	for _, r := range sampleRecords {
		out = append(out, domain.ImportRecord{
			Object:  r,
			Purpose: domain.ResidentialPurpose,
			Status:  "Verblijfsobject in gebruik",
		})
	}
	return out
}
