package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/bagfinder/internal/adapters/http"
	"github.com/samirrijal/bagfinder/internal/core/domain"
	"github.com/samirrijal/bagfinder/internal/core/usecases"
)

// ---- Fakes ----

type fakeRepo struct {
	findFn  func(ctx context.Context, f domain.Filter, limit int) ([]domain.Verblijfsobject, error)
	listFn  func(ctx context.Context) ([]string, error)
	pingErr error
}

func (r *fakeRepo) FindByFilter(ctx context.Context, f domain.Filter, limit int) ([]domain.Verblijfsobject, error) {
	if r.findFn != nil {
		return r.findFn(ctx, f, limit)
	}
	return nil, nil
}

func (r *fakeRepo) ListMunicipalities(ctx context.Context) ([]string, error) {
	if r.listFn != nil {
		return r.listFn(ctx)
	}
	return nil, nil
}

func (r *fakeRepo) UpsertBatch(ctx context.Context, records []domain.ImportRecord) error { return nil }
func (r *fakeRepo) Ping(ctx context.Context) error                                      { return r.pingErr }

type fakeSource struct {
	features []domain.RawFeature
	err      error
	queries  []domain.FeatureQuery
}

func (s *fakeSource) FetchFeatures(ctx context.Context, q domain.FeatureQuery) ([]domain.RawFeature, error) {
	s.queries = append(s.queries, q)
	return s.features, s.err
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type connector bool

func (c connector) Connected() bool { return bool(c) }

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func pdokDeps(src *fakeSource) *handler.Dependencies {
	return &handler.Dependencies{
		Properties: usecases.NewPropertyService(nil, src, nil, nil, usecases.PropertyServiceConfig{Mode: usecases.ModePDOK}),
		Defaults:   handler.QueryDefaults{Municipality: "Rotterdam", MinArea: 1000},
	}
}

func feature(id string, area float64, place, coords string) domain.RawFeature {
	return domain.RawFeature{
		Properties: map[string]any{"identificatie": id, "oppervlakte": area, "woonplaats": place},
		Geometry:   &domain.RawGeometry{Type: "Point", Coordinates: json.RawMessage(coords)},
	}
}

func rotterdamFeatures() []domain.RawFeature {
	return []domain.RawFeature{
		feature("small", 1100, "Rotterdam", `[92000, 437000]`),
		feature("large", 4000, "Rotterdam", `[92100, 437100]`),
		feature("mid", 2500, "Rotterdam", `[92200, 437200]`),
		feature("elsewhere", 9000, "Amsterdam", `[121000, 487000]`),
	}
}

type wireResult struct {
	Count   int `json:"count"`
	Results []struct {
		ID           string  `json:"id"`
		Area         float64 `json:"area"`
		Municipality string  `json:"municipality"`
		Geometry     struct {
			Type        string    `json:"type"`
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"results"`
}

func get(t *testing.T, app *fiber.App, target string) (int, map[string]string, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", target, nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	headers := map[string]string{}
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return resp.StatusCode, headers, b
}

// ---- verblijfsobjecten ----

func TestProperties_DefaultsFromPDOK(t *testing.T) {
	src := &fakeSource{features: rotterdamFeatures()}
	app := setupApp(pdokDeps(src))

	status, headers, body := get(t, app, "/api/verblijfsobjecten")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	if headers["X-Data-Source"] != "pdok" {
		t.Errorf("expected X-Data-Source pdok, got %q", headers["X-Data-Source"])
	}
	if len(src.queries) != 1 || src.queries[0].MinArea != 1000 {
		t.Errorf("expected one upstream query with minArea 1000, got %+v", src.queries)
	}

	var res wireResult
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if res.Count != 3 || len(res.Results) != 3 {
		t.Fatalf("expected 3 Rotterdam results, got count=%d len=%d", res.Count, len(res.Results))
	}
	for i, id := range []string{"large", "mid", "small"} {
		if res.Results[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, res.Results[i].ID)
		}
	}
	g := res.Results[0].Geometry
	if g.Type != "Point" || len(g.Coordinates) != 2 {
		t.Fatalf("unexpected geometry %+v", g)
	}
	if g.Coordinates[0] < 3 || g.Coordinates[0] > 8 || g.Coordinates[1] < 50 || g.Coordinates[1] > 54 {
		t.Errorf("coordinates should be [lon, lat] inside the Netherlands, got %v", g.Coordinates)
	}
	if strings.Contains(string(body), "source") {
		t.Errorf("body must not carry the data source: %s", body)
	}
}

func TestProperties_QueryAliases(t *testing.T) {
	src := &fakeSource{features: rotterdamFeatures()}
	app := setupApp(pdokDeps(src))

	status, _, body := get(t, app, "/api/verblijfsobjecten?municipality=amster&minArea=5000")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var res wireResult
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if res.Count != 1 || res.Results[0].ID != "elsewhere" {
		t.Errorf("expected only the Amsterdam object, got %+v", res)
	}
	if src.queries[0].MinArea != 5000 {
		t.Errorf("expected minArea 5000 upstream, got %v", src.queries[0].MinArea)
	}
}

func TestProperties_InvalidParameters(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"negative", "minOppervlakte=-1"},
		{"not a number", "minOppervlakte=groot"},
		{"nan", "minOppervlakte=NaN"},
		{"infinite", "minOppervlakte=Inf"},
		{"negative alias", "minArea=-0.5"},
		{"municipality too long", "gemeente=" + strings.Repeat("a", 101)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{features: rotterdamFeatures()}
			app := setupApp(pdokDeps(src))

			status, _, body := get(t, app, "/api/verblijfsobjecten?"+tt.query)
			if status != 400 {
				t.Fatalf("expected 400, got %d: %s", status, body)
			}
			var apiErr handler.APIError
			if err := json.Unmarshal(body, &apiErr); err != nil {
				t.Fatal(err)
			}
			if apiErr.Code != "bad_request" || apiErr.Message == "" {
				t.Errorf("unexpected error body %+v", apiErr)
			}
			if len(src.queries) != 0 {
				t.Error("upstream must not be called for an invalid request")
			}
		})
	}
}

func TestProperties_ZeroMinAreaAccepted(t *testing.T) {
	app := setupApp(pdokDeps(&fakeSource{features: rotterdamFeatures()}))

	status, _, body := get(t, app, "/api/verblijfsobjecten?minOppervlakte=0&gemeente=")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
}

func TestProperties_ConfiguredZeroMinAreaDefault(t *testing.T) {
	tests := []struct {
		name     string
		defaults handler.QueryDefaults
		want     float64
	}{
		{"configured zero", handler.QueryDefaults{Municipality: "Rotterdam", MinArea: 0}, 0},
		{"unset", handler.QueryDefaults{}, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{features: rotterdamFeatures()}
			deps := pdokDeps(src)
			deps.Defaults = tt.defaults
			app := setupApp(deps)

			status, _, body := get(t, app, "/api/verblijfsobjecten")
			if status != 200 {
				t.Fatalf("expected 200, got %d: %s", status, body)
			}
			if len(src.queries) != 1 || src.queries[0].MinArea != tt.want {
				t.Errorf("expected upstream minArea %g, got %+v", tt.want, src.queries)
			}
		})
	}
}

func TestProperties_UpstreamFailureServesFallback(t *testing.T) {
	app := setupApp(pdokDeps(&fakeSource{err: errors.New("connection refused")}))

	status, headers, body := get(t, app, "/api/verblijfsobjecten?gemeente=Rotterdam&minOppervlakte=1000")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	if headers["X-Data-Source"] != "fallback" {
		t.Errorf("expected fallback source, got %q", headers["X-Data-Source"])
	}
	if headers["Cache-Control"] != "no-store" {
		t.Errorf("fallback responses must not be cached, got %q", headers["Cache-Control"])
	}

	var res wireResult
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if res.Count != 5 || res.Results[0].Area != 2000 {
		t.Errorf("expected 5 sample records led by 2000 m², got %+v", res)
	}
}

func TestProperties_ServiceLogsCarryRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	app := setupApp(pdokDeps(&fakeSource{err: errors.New("connection refused")}))
	req := httptest.NewRequest("GET", "/api/verblijfsobjecten", nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry["msg"] == "serving sample data" {
			found = true
			if entry["request_id"] != "req-42" {
				t.Errorf("expected request_id req-42 on service log, got %v", entry)
			}
		}
	}
	if !found {
		t.Fatalf("no service log line captured: %s", buf.String())
	}
}

func TestProperties_DatabaseFirst(t *testing.T) {
	repo := &fakeRepo{findFn: func(ctx context.Context, f domain.Filter, limit int) ([]domain.Verblijfsobject, error) {
		return []domain.Verblijfsobject{
			{ID: "db-1", Area: 1200, Municipality: "Rotterdam"},
			{ID: "db-2", Area: 3000, Municipality: "Rotterdam"},
		}, nil
	}}
	src := &fakeSource{features: rotterdamFeatures()}
	deps := &handler.Dependencies{
		Properties: usecases.NewPropertyService(repo, src, nil, nil, usecases.PropertyServiceConfig{}),
	}
	app := setupApp(deps)

	status, headers, body := get(t, app, "/api/verblijfsobjecten")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	if headers["X-Data-Source"] != "database" {
		t.Errorf("expected database source, got %q", headers["X-Data-Source"])
	}
	if headers["Cache-Control"] != "public, max-age=300" {
		t.Errorf("unexpected Cache-Control %q", headers["Cache-Control"])
	}
	var res wireResult
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if res.Count != 2 || res.Results[0].ID != "db-2" {
		t.Errorf("expected database rows largest first, got %+v", res)
	}
	if len(src.queries) != 0 {
		t.Error("PDOK must not be queried when the database has rows")
	}
}

func TestProperties_DatabaseModeWithoutDatabase(t *testing.T) {
	deps := &handler.Dependencies{
		Properties: usecases.NewPropertyService(nil, &fakeSource{}, nil, nil, usecases.PropertyServiceConfig{Mode: usecases.ModeDatabase}),
	}
	app := setupApp(deps)

	status, _, body := get(t, app, "/api/verblijfsobjecten")
	if status != 503 {
		t.Fatalf("expected 503, got %d: %s", status, body)
	}
}

func TestProperties_DatabaseErrorIs500(t *testing.T) {
	repo := &fakeRepo{findFn: func(ctx context.Context, f domain.Filter, limit int) ([]domain.Verblijfsobject, error) {
		return nil, errors.New("relation does not exist")
	}}
	deps := &handler.Dependencies{
		Properties: usecases.NewPropertyService(repo, nil, nil, nil, usecases.PropertyServiceConfig{Mode: usecases.ModeDatabase}),
	}
	app := setupApp(deps)

	status, _, body := get(t, app, "/api/verblijfsobjecten")
	if status != 500 {
		t.Fatalf("expected 500, got %d", status)
	}
	if strings.Contains(string(body), "relation") {
		t.Errorf("internal error details leaked: %s", body)
	}
}

func TestProperties_ETagNotModified(t *testing.T) {
	app := setupApp(pdokDeps(&fakeSource{features: rotterdamFeatures()}))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/verblijfsobjecten", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected an ETag")
	}

	req := httptest.NewRequest("GET", "/api/verblijfsobjecten", nil)
	req.Header.Set("If-None-Match", etag)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

// ---- gemeenten ----

func TestMunicipalities_FromDatabase(t *testing.T) {
	repo := &fakeRepo{listFn: func(ctx context.Context) ([]string, error) {
		return []string{"Amsterdam", "Rotterdam"}, nil
	}}
	deps := &handler.Dependencies{
		Properties: usecases.NewPropertyService(repo, nil, nil, nil, usecases.PropertyServiceConfig{}),
	}
	app := setupApp(deps)

	status, _, body := get(t, app, "/api/gemeenten")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var res struct {
		Gemeenten []string `json:"gemeenten"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if strings.Join(res.Gemeenten, ",") != "Amsterdam,Rotterdam" {
		t.Errorf("unexpected gemeenten %v", res.Gemeenten)
	}
}

func TestMunicipalities_WithoutDatabase(t *testing.T) {
	app := setupApp(pdokDeps(&fakeSource{}))

	status, _, body := get(t, app, "/api/gemeenten")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `"Den Haag"`) {
		t.Errorf("expected sample municipalities, got %s", body)
	}
}

// ---- health ----

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		db       handler.Pinger
		status   int
		database string
	}{
		{"not configured", nil, 200, "not configured"},
		{"connected", pingerFunc(func(context.Context) error { return nil }), 200, "connected"},
		{"disconnected", pingerFunc(func(context.Context) error { return errors.New("dial tcp: refused") }), 503, "disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := pdokDeps(&fakeSource{})
			deps.Database = tt.db
			app := setupApp(deps)

			status, _, body := get(t, app, "/api/health")
			if status != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, status)
			}
			var res map[string]string
			if err := json.Unmarshal(body, &res); err != nil {
				t.Fatal(err)
			}
			if res["database"] != tt.database {
				t.Errorf("expected database %q, got %q", tt.database, res["database"])
			}
		})
	}
}

func TestReady(t *testing.T) {
	deps := pdokDeps(&fakeSource{})
	deps.Database = &fakeRepo{}
	deps.Events = connector(false)
	app := setupApp(deps)

	status, _, body := get(t, app, "/api/ready")
	if status != 503 {
		t.Fatalf("expected 503 with NATS disconnected, got %d", status)
	}
	var res struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if res.Checks["database"] != "ok" || res.Checks["cache"] != "not configured" || res.Checks["nats"] != "disconnected" {
		t.Errorf("unexpected checks %v", res.Checks)
	}

	deps.Events = connector(true)
	status, _, _ = get(t, setupApp(deps), "/api/ready")
	if status != 200 {
		t.Errorf("expected 200 once NATS is connected, got %d", status)
	}
}

// ---- root & graphql ----

func TestRoot(t *testing.T) {
	status, _, body := get(t, setupApp(pdokDeps(&fakeSource{})), "/")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), "BAG Vastgoedfinder API") {
		t.Errorf("unexpected body %s", body)
	}
}

func TestGraphQL_Verblijfsobjecten(t *testing.T) {
	app := setupApp(pdokDeps(&fakeSource{features: rotterdamFeatures()}))

	query := `{"query":"{ verblijfsobjecten(gemeente: \"rotter\", minOppervlakte: 2000) { count source results { id area location { lat lon } } } gemeenten }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(query))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Data struct {
			Verblijfsobjecten struct {
				Count   int    `json:"count"`
				Source  string `json:"source"`
				Results []struct {
					ID       string  `json:"id"`
					Area     float64 `json:"area"`
					Location struct {
						Lat float64 `json:"lat"`
						Lon float64 `json:"lon"`
					} `json:"location"`
				} `json:"results"`
			} `json:"verblijfsobjecten"`
			Gemeenten []string `json:"gemeenten"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Errors) > 0 {
		t.Fatalf("unexpected errors %v", out.Errors)
	}
	v := out.Data.Verblijfsobjecten
	if v.Count != 2 || v.Source != "pdok" || v.Results[0].ID != "large" {
		t.Errorf("unexpected result %+v", v)
	}
	if v.Results[0].Location.Lat < 50 || v.Results[0].Location.Lat > 54 {
		t.Errorf("unexpected latitude %v", v.Results[0].Location.Lat)
	}
	if len(out.Data.Gemeenten) == 0 {
		t.Error("expected gemeenten")
	}
}

func TestGraphQL_RejectsNegativeArea(t *testing.T) {
	app := setupApp(pdokDeps(&fakeSource{}))

	query := `{"query":"{ verblijfsobjecten(minOppervlakte: -1) { count } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(query))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Errors) == 0 {
		t.Error("expected a validation error")
	}
}

func TestGraphQL_EmptyBody(t *testing.T) {
	app := setupApp(pdokDeps(&fakeSource{}))

	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}
