package usecases

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/samirrijal/bagfinder/internal/core/domain"
)

type discardReason string

const (
	discardMissingGeometry    discardReason = "missing_geometry"
	discardMissingCoordinates discardReason = "missing_coordinates"
	discardInvalidCoordinates discardReason = "invalid_coordinates"
)

// parsedFeature is the outcome of parsing one upstream feature: a record,
// or the reason it was dropped.
type parsedFeature struct {
	record domain.ImportRecord
	reason discardReason
}

func (p parsedFeature) ok() bool { return p.reason == "" }

// municipalityKeys are tried in order; BAG payloads are not consistent about which one is set.
var municipalityKeys = []string{"woonplaats", "gemeentenaam", "gemeente"}

func parseFeature(f domain.RawFeature) parsedFeature {
	if f.Geometry == nil {
		return parsedFeature{reason: discardMissingGeometry}
	}

	coords, err := domain.ParseCoordinates(f.Geometry.Coordinates)
	if err != nil {
		if errors.Is(err, domain.ErrNoCoordinates) {
			return parsedFeature{reason: discardMissingCoordinates}
		}
		return parsedFeature{reason: discardInvalidCoordinates}
	}
	rd := coords.Representative()

	props := f.Properties
	id := stringProp(props, "identificatie")
	if id == "" {
		id = uuid.NewString()
	}

	municipality := domain.UnknownMunicipality
	for _, key := range municipalityKeys {
		if v := stringProp(props, key); v != "" {
			municipality = v
			break
		}
	}

	return parsedFeature{record: domain.ImportRecord{
		Object: domain.Verblijfsobject{
			ID:           id,
			Area:         areaProp(props),
			Municipality: municipality,
			Location:     rd.ToGeoPoint(),
		},
		Purpose:     stringProp(props, "gebruiksdoel"),
		RD:          rd,
		PandID:      stringProp(props, "pandidentificatie"),
		Street:      firstStringProp(props, "openbareruimte", "openbare_ruimte"),
		HouseNumber: stringProp(props, "huisnummer"),
		Postcode:    stringProp(props, "postcode"),
		Status:      stringProp(props, "status"),
	}}
}

// areaProp reads oppervlakte as a number or numeric string. Anything unusable is 0.
func areaProp(props map[string]any) float64 {
	var area float64
	switch v := props["oppervlakte"].(type) {
	case float64:
		area = v
	case json.Number:
		area, _ = v.Float64()
	case string:
		area, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	if math.IsNaN(area) || math.IsInf(area, 0) || area < 0 {
		return 0
	}
	return area
}

// stringProp renders scalar properties as text. Lists (gebruiksdoel may be
// multi-valued) are joined with commas.
func stringProp(props map[string]any, key string) string {
	switch v := props[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}

func firstStringProp(props map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := stringProp(props, k); v != "" {
			return v
		}
	}
	return ""
}
