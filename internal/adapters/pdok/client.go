package pdok

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/bagfinder/internal/core/domain"
	"github.com/samirrijal/bagfinder/internal/pkg/logging"
	"github.com/samirrijal/bagfinder/internal/pkg/metrics"
)

const (
	DefaultURL      = "https://service.pdok.nl/lv/bag/wfs/v2_0"
	DefaultTypeName = "bag:verblijfsobject"
	DefaultCount    = 10000
	DefaultTimeout  = 60 * time.Second
)

var tracer = otel.Tracer("github.com/samirrijal/bagfinder/internal/adapters/pdok")

// Config configures a Client. Zero fields take the defaults above.
type Config struct {
	URL      string
	TypeName string
	Count    int
	Timeout  time.Duration
}

// Client implements ports.FeatureSource against the PDOK BAG WFS.
// Each fetch is a single request; failures are reported, never retried.
type Client struct {
	http     *http.Client
	baseURL  string
	typeName string
	count    int
}

// New creates a new PDOK WFS client.
func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.TypeName == "" {
		cfg.TypeName = DefaultTypeName
	}
	if cfg.Count <= 0 {
		cfg.Count = DefaultCount
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		http:     &http.Client{Timeout: cfg.Timeout},
		baseURL:  cfg.URL,
		typeName: cfg.TypeName,
		count:    cfg.Count,
	}
}

// FetchFeatures runs one WFS GetFeature request for objects with at least q.MinArea m².
func (c *Client) FetchFeatures(ctx context.Context, q domain.FeatureQuery) ([]domain.RawFeature, error) {
	ctx, span := tracer.Start(ctx, "pdok.GetFeature", trace.WithAttributes(
		attribute.Float64("bag.min_area", q.MinArea),
		attribute.Bool("bag.residential_only", q.ResidentialOnly),
	))
	defer span.End()

	start := time.Now()
	features, err := c.fetch(ctx, q)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("bag.features", len(features)))
		metrics.UpstreamFeatures.Add(float64(len(features)))
	}
	metrics.UpstreamRequestDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	return features, err
}

func (c *Client) fetch(ctx context.Context, q domain.FeatureQuery) ([]domain.RawFeature, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(q), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pdok request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pdok: HTTP %d: %s", resp.StatusCode, snippet)
	}

	var envelope struct {
		Features *[]json.RawMessage `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	if envelope.Features == nil {
		return nil, fmt.Errorf("decode feature collection: no features member")
	}

	features := make([]domain.RawFeature, 0, len(*envelope.Features))
	for i, raw := range *envelope.Features {
		var f domain.RawFeature
		if err := json.Unmarshal(raw, &f); err != nil {
			logging.FromContext(ctx).DebugContext(ctx, "skipping undecodable feature", "index", i, "error", err)
			metrics.FeaturesDiscarded.WithLabelValues("undecodable").Inc()
			continue
		}
		features = append(features, f)
	}
	return features, nil
}

func (c *Client) requestURL(q domain.FeatureQuery) string {
	count := c.count
	if q.Limit > 0 {
		count = q.Limit
	}

	v := url.Values{}
	v.Set("service", "WFS")
	v.Set("version", "2.0.0")
	v.Set("request", "GetFeature")
	v.Set("typeName", c.typeName)
	v.Set("outputFormat", "json")
	v.Set("count", strconv.Itoa(count))
	v.Set("CQL_FILTER", cqlFilter(q))
	return c.baseURL + "?" + v.Encode()
}

func cqlFilter(q domain.FeatureQuery) string {
	filter := "oppervlakte>=" + strconv.FormatFloat(q.MinArea, 'f', -1, 64)
	if q.ResidentialOnly {
		filter += " AND gebruiksdoel='" + domain.ResidentialPurpose + "'"
	}
	return filter
}
