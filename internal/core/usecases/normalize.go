package usecases

import (
	"github.com/samirrijal/bagfinder/internal/core/domain"
	"github.com/samirrijal/bagfinder/internal/pkg/metrics"
)

// Fallback reasons.
const (
	ReasonUpstreamError = "upstream_error"
	ReasonEmptyUpstream = "empty_upstream"
	ReasonNoMatch       = "no_match"
)

// Normalize turns the outcome of an upstream fetch into filtered records.
//
// A failed fetch, an empty response, or a response where nothing survives
// parsing and filtering all yield the filtered sample data instead. Malformed
// features are dropped and counted. Upstream order is preserved.
func Normalize(features []domain.RawFeature, fetchErr error, f domain.Filter) domain.Normalized {
	if fetchErr != nil {
		return fallback(f, ReasonUpstreamError, 0)
	}

	records := make([]domain.Verblijfsobject, 0, len(features))
	discarded := 0
	for _, feat := range features {
		p := parseFeature(feat)
		if !p.ok() {
			discarded++
			metrics.FeaturesDiscarded.WithLabelValues(string(p.reason)).Inc()
			continue
		}
		if f.Matches(p.record.Object) {
			records = append(records, p.record.Object)
		}
	}

	if len(records) == 0 {
		reason := ReasonNoMatch
		if len(features) == 0 {
			reason = ReasonEmptyUpstream
		}
		return fallback(f, reason, discarded)
	}

	return domain.Normalized{Records: records, Source: domain.SourcePDOK, Discarded: discarded}
}

func fallback(f domain.Filter, reason string, discarded int) domain.Normalized {
	metrics.FallbackServed.WithLabelValues(reason).Inc()
	return domain.Normalized{
		Records:        FallbackRecords(f),
		Source:         domain.SourceFallback,
		Discarded:      discarded,
		FallbackReason: reason,
	}
}
