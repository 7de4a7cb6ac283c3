package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
)

// UnknownMunicipality is used when a feature carries no municipality name.
const UnknownMunicipality = "Unknown"

// ResidentialPurpose is the BAG gebruiksdoel of dwellings.
const ResidentialPurpose = "woonfunctie"

// Verblijfsobject is a BAG addressable object (a dwelling or other unit) with its floor area.
type Verblijfsobject struct {
	ID           string   `json:"id"`
	Area         float64  `json:"area"` // m²
	Municipality string   `json:"municipality"`
	Location     GeoPoint `json:"location"`
}

type verblijfsobjectJSON struct {
	ID           string            `json:"id"`
	Area         float64           `json:"area"`
	Municipality string            `json:"municipality"`
	Geometry     *geojson.Geometry `json:"geometry"`
}

// MarshalJSON renders the location as a GeoJSON Point under "geometry".
func (v Verblijfsobject) MarshalJSON() ([]byte, error) {
	return json.Marshal(verblijfsobjectJSON{
		ID:           v.ID,
		Area:         v.Area,
		Municipality: v.Municipality,
		Geometry:     geojson.NewGeometry(v.Location.Point()),
	})
}

// Filter selects records by minimum area and municipality substring.
type Filter struct {
	Municipality string
	MinArea      float64
}

// Matches reports whether v passes the filter. An empty municipality matches everything;
// otherwise the match is a case-insensitive substring test.
func (f Filter) Matches(v Verblijfsobject) bool {
	if v.Area < f.MinArea {
		return false
	}
	if f.Municipality == "" {
		return true
	}
	return strings.Contains(strings.ToLower(v.Municipality), strings.ToLower(f.Municipality))
}

// DataSource tells where a result set came from.
type DataSource string

const (
	SourceDatabase DataSource = "database"
	SourcePDOK     DataSource = "pdok"
	SourceFallback DataSource = "fallback"
)

// PropertyResult is the answer to a property query. Results are ordered by area, largest first.
type PropertyResult struct {
	Count   int               `json:"count"`
	Results []Verblijfsobject `json:"results"`
	Source  DataSource        `json:"-"`
}

// NewPropertyResult wraps records, keeping Count in sync.
func NewPropertyResult(records []Verblijfsobject, source DataSource) *PropertyResult {
	if records == nil {
		records = []Verblijfsobject{}
	}
	return &PropertyResult{Count: len(records), Results: records, Source: source}
}

// RawFeature is one GeoJSON feature as returned by the upstream WFS.
type RawFeature struct {
	Properties map[string]any `json:"properties"`
	Geometry   *RawGeometry   `json:"geometry"`
}

// RawGeometry keeps coordinates undecoded so their nesting can be inspected.
type RawGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// FeatureQuery describes an upstream fetch.
type FeatureQuery struct {
	MinArea         float64
	ResidentialOnly bool
	Limit           int
}

// Normalized is the outcome of turning a raw upstream response into records.
type Normalized struct {
	Records   []Verblijfsobject
	Source    DataSource
	Discarded int
	// FallbackReason explains a SourceFallback outcome; empty otherwise.
	FallbackReason string
}

// ImportRecord is a Verblijfsobject with the BAG attributes kept in the database.
type ImportRecord struct {
	Object      Verblijfsobject
	Purpose     string // gebruiksdoel
	RD          PlanarPoint
	PandID      string
	Street      string
	HouseNumber string
	Postcode    string
	Status      string
}

// ImportRequest configures a BAG import run.
type ImportRequest struct {
	MinArea        float64  `json:"min_area"`
	Municipalities []string `json:"municipalities,omitempty"`
	SeedSamples    bool     `json:"seed_samples"`
	// Progress, when set, is called with the number of records stored by each batch.
	Progress func(n int) `json:"-"`
}

// ImportSummary reports what an import run did.
type ImportSummary struct {
	Fetched    int       `json:"fetched"`
	Stored     int       `json:"stored"`
	Discarded  int       `json:"discarded"`
	Seeded     int       `json:"seeded"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// FallbackEvent is emitted when a query is answered from the built-in sample data.
type FallbackEvent struct {
	Municipality string    `json:"municipality"`
	MinArea      float64   `json:"min_area"`
	Reason       string    `json:"reason"`
	Count        int       `json:"count"`
	Time         time.Time `json:"time"`
}
