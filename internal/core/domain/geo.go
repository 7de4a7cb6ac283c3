package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/samirrijal/bagfinder/internal/pkg/geospatial"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point returns the orb representation, ordered lon/lat.
func (p GeoPoint) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// PlanarPoint is a coordinate on the Dutch national grid (RD New, EPSG:28992), in meters.
type PlanarPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// NetherlandsBounds is the envelope converted RD points are expected to fall in.
var NetherlandsBounds = Bounds{MinLat: 50, MinLon: 3, MaxLat: 54, MaxLon: 8}

// Contains reports whether p lies inside b, edges included.
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

var (
	ErrNoCoordinates      = errors.New("no coordinates")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Coordinates is the raw geometry of an upstream feature, tagged by shape.
// It is either a Point or a Ring.
type Coordinates interface {
	// Representative returns the point used to place the feature on the map.
	Representative() PlanarPoint
}

// Point is a single coordinate pair.
type Point PlanarPoint

func (p Point) Representative() PlanarPoint { return PlanarPoint(p) }

// Ring is the first ring of a line or polygon geometry. Never empty.
type Ring []PlanarPoint

func (r Ring) Representative() PlanarPoint { return r[0] }

// maxDepth covers MultiPolygon, the deepest GeoJSON nesting.
const maxDepth = 4

// ParseCoordinates decodes a GeoJSON coordinates member. A flat pair becomes
// a Point; deeper nestings (LineString, Polygon, MultiPolygon) are reduced to
// their first ring.
func ParseCoordinates(raw json.RawMessage) (Coordinates, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrNoCoordinates
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}

	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: not an array", ErrInvalidCoordinates)
	}
	if len(arr) == 0 {
		return nil, ErrNoCoordinates
	}

	// Descend through first elements until arr holds coordinate pairs.
	depth := 1
	for {
		first, ok := arr[0].([]any)
		if !ok {
			break
		}
		depth++
		if depth > maxDepth {
			return nil, fmt.Errorf("%w: nesting deeper than %d", ErrInvalidCoordinates, maxDepth)
		}
		if len(first) == 0 {
			return nil, ErrNoCoordinates
		}
		if _, nested := first[0].([]any); !nested {
			break
		}
		arr = first
	}

	if depth == 1 {
		p, err := parsePair(arr)
		if err != nil {
			return nil, err
		}
		return Point(p), nil
	}

	// Only the first vertex places the feature; malformed later ones are dropped.
	first, err := parsePair(arr[0].([]any))
	if err != nil {
		return nil, err
	}
	ring := make(Ring, 1, len(arr))
	ring[0] = first
	for _, item := range arr[1:] {
		pair, ok := item.([]any)
		if !ok {
			continue
		}
		if p, err := parsePair(pair); err == nil {
			ring = append(ring, p)
		}
	}
	return ring, nil
}

func parsePair(pair []any) (PlanarPoint, error) {
	if len(pair) < 2 {
		return PlanarPoint{}, fmt.Errorf("%w: pair has %d values", ErrInvalidCoordinates, len(pair))
	}
	x, okX := pair[0].(float64)
	y, okY := pair[1].(float64)
	if !okX || !okY {
		return PlanarPoint{}, fmt.Errorf("%w: non-numeric pair", ErrInvalidCoordinates)
	}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return PlanarPoint{}, fmt.Errorf("%w: non-finite pair", ErrInvalidCoordinates)
	}
	return PlanarPoint{X: x, Y: y}, nil
}

// ToGeoPoint converts an RD point to WGS 84.
func (p PlanarPoint) ToGeoPoint() GeoPoint {
	lon, lat := geospatial.RDToWGS84(p.X, p.Y)
	return GeoPoint{Lat: lat, Lon: lon}
}
