package weather_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-poller/internal/observability"
	"github.com/i474232898/weather-poller/internal/store"
	"github.com/i474232898/weather-poller/internal/weather"
	"github.com/i474232898/weather-poller/internal/weather/providers"
)

// --- fakes ---

type fetchResult struct {
	obs weather.Observation
	err error
}

type fakeFetcher struct {
	results map[string]fetchResult
	calls   []string
	onFetch func(loc weather.Location)
}

func (f *fakeFetcher) Fetch(_ context.Context, loc weather.Location) (weather.Observation, error) {
	f.calls = append(f.calls, loc.City)
	if f.onFetch != nil {
		f.onFetch(loc)
	}
	if r, ok := f.results[loc.City]; ok {
		return r.obs, r.err
	}
	return goodObservation(), nil
}

type failingStore struct {
	*store.MemoryStore
	failCity string
}

func (s *failingStore) Append(ctx context.Context, rec weather.Record) error {
	if rec.City == s.failCity {
		return errors.New("disk full")
	}
	return s.MemoryStore.Append(ctx, rec)
}

func goodObservation() weather.Observation {
	return weather.Observation{
		Readings: &weather.Readings{TempMin: 280.1, TempMax: 285.4, Temp: 283.2, Humidity: 55},
	}
}

var cycleStart = time.Date(2024, 8, 15, 17, 35, 36, 0, time.UTC)

func newTestPipeline(f weather.Fetcher, s weather.Store, clock clockwork.Clock) (*weather.Pipeline, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	return weather.NewPipeline(f, s, clock, observability.DiscardLogger(), metrics), metrics
}

func cityNames(records []weather.Record) []string {
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.City)
	}
	return names
}

// --- tests ---

func TestPipeline_RunCycle_AttemptsEveryLocation(t *testing.T) {
	ff := &fakeFetcher{results: map[string]fetchResult{
		"Los Angeles": {err: &weather.ProviderError{Provider: "test", StatusCode: http.StatusUnauthorized}},
		"Paris":       {err: &weather.TransportError{Provider: "test", Err: context.DeadlineExceeded}},
		"London":      {obs: weather.Observation{Name: "London"}},
	}}
	mem := store.NewMemoryStore()
	p, _ := newTestPipeline(ff, mem, clockwork.NewFakeClockAt(cycleStart))

	report := p.RunCycle(context.Background(), weather.DefaultLocations())

	assert.Equal(t, 6, report.Attempts)
	assert.Len(t, ff.calls, 6)
	assert.Equal(t, 3, report.Stored)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	assert.False(t, report.Cancelled)
	assert.Equal(t, 3, mem.Len())
}

func TestPipeline_RunCycle_FailureIsolation(t *testing.T) {
	for _, failing := range weather.DefaultLocations() {
		t.Run(failing.City, func(t *testing.T) {
			ff := &fakeFetcher{results: map[string]fetchResult{
				failing.City: {err: errors.New("boom")},
			}}
			mem := store.NewMemoryStore()
			p, _ := newTestPipeline(ff, mem, clockwork.NewFakeClockAt(cycleStart))

			report := p.RunCycle(context.Background(), weather.DefaultLocations())
			assert.Equal(t, 5, report.Stored)

			records, err := mem.LatestN(context.Background(), 10)
			require.NoError(t, err)
			assert.Len(t, records, 5)
			assert.NotContains(t, cityNames(records), failing.City)
		})
	}
}

func TestPipeline_RunCycle_StorageFailureIsIsolated(t *testing.T) {
	fs := &failingStore{MemoryStore: store.NewMemoryStore(), failCity: "Paris"}
	p, metrics := newTestPipeline(&fakeFetcher{}, fs, clockwork.NewFakeClockAt(cycleStart))

	report := p.RunCycle(context.Background(), weather.DefaultLocations())

	assert.Equal(t, 6, report.Attempts)
	assert.Equal(t, 5, report.Stored)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 5, fs.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FetchResults.WithLabelValues("storage")))
}

func TestPipeline_RunCycle_AppendsInRegistryOrder(t *testing.T) {
	clock := clockwork.NewFakeClockAt(cycleStart)
	ff := &fakeFetcher{onFetch: func(weather.Location) { clock.Advance(time.Second) }}
	mem := store.NewMemoryStore()
	p, _ := newTestPipeline(ff, mem, clock)

	p.RunCycle(context.Background(), weather.DefaultLocations())

	records, err := mem.LatestN(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, []string{"Manchester", "London", "Marseille", "Paris", "Los Angeles", "New York"}, cityNames(records))
	assert.Equal(t, cycleStart.Add(6*time.Second), records[0].Timestamp)
}

func TestPipeline_RunCycle_CancelledBeforeStart(t *testing.T) {
	ff := &fakeFetcher{}
	mem := store.NewMemoryStore()
	p, metrics := newTestPipeline(ff, mem, clockwork.NewFakeClockAt(cycleStart))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := p.RunCycle(ctx, weather.DefaultLocations())

	assert.True(t, report.Cancelled)
	assert.Zero(t, report.Attempts)
	assert.Empty(t, ff.calls)
	assert.Zero(t, mem.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CyclesTotal.WithLabelValues("cancelled")))
}

func TestPipeline_RunCycle_CancelledMidCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ff := &fakeFetcher{onFetch: func(loc weather.Location) {
		if loc.City == "Paris" {
			cancel()
		}
	}}
	mem := store.NewMemoryStore()
	p, metrics := newTestPipeline(ff, mem, clockwork.NewFakeClockAt(cycleStart))

	report := p.RunCycle(ctx, weather.DefaultLocations())

	assert.True(t, report.Cancelled)
	assert.Equal(t, []string{"New York", "Los Angeles", "Paris"}, ff.calls)
	assert.Equal(t, 3, report.Attempts)
	assert.Equal(t, 2, report.Stored)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 2, mem.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FetchResults.WithLabelValues("cancelled")))
	assert.Zero(t, testutil.ToFloat64(metrics.FetchResults.WithLabelValues("storage")))
}

func TestPipeline_RunCycle_DistinctIDsAcrossCycles(t *testing.T) {
	loc := []weather.Location{weather.NewLocation("US", "New York", 40.7128, -74.0060)}
	mem := store.NewMemoryStore()
	p, _ := newTestPipeline(&fakeFetcher{}, mem, clockwork.NewFakeClockAt(cycleStart))

	p.RunCycle(context.Background(), loc)
	p.RunCycle(context.Background(), loc)

	records, err := mem.LatestN(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.NotEqual(t, records[0].ID, records[1].ID)
	assert.NotEqual(t, uuid.Nil, records[0].ID)
}

func TestPipeline_RunCycle_MissingCoordinatesIsIsolated(t *testing.T) {
	locs := []weather.Location{
		{Country: "US", City: "Nowhere"},
		weather.NewLocation("FR", "Paris", 48.8566, 2.3522),
	}
	ff := &fakeFetcher{}
	mem := store.NewMemoryStore()
	p, _ := newTestPipeline(ff, mem, clockwork.NewFakeClockAt(cycleStart))

	report := p.RunCycle(context.Background(), locs)

	assert.Equal(t, 2, report.Attempts)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"Paris"}, ff.calls)
	assert.Equal(t, 1, mem.Len())
}

// --- scenarios against a real provider over HTTP ---

type openWeatherStub struct {
	// bodies keyed by the lat query parameter; a nil entry replies 500.
	bodies map[string]*string
}

func (s openWeatherStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, ok := s.bodies[r.URL.Query().Get("lat")]
	if !ok || body == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(*body))
}

func strPtr(s string) *string { return &s }

const newYorkBody = `{"main":{"temp_min":280.1,"temp_max":285.4,"temp":283.2,"humidity":55}}`

func stubProvider(t *testing.T, stub openWeatherStub) *providers.OpenWeatherProvider {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	return providers.NewOpenWeatherProvider(&http.Client{Timeout: 2 * time.Second}, "key", srv.URL, providers.DefaultBreakerConfig())
}

func TestScenario_NewYorkSingleCycle(t *testing.T) {
	provider := stubProvider(t, openWeatherStub{bodies: map[string]*string{
		"40.7128": strPtr(newYorkBody),
	}})
	mem := store.NewMemoryStore()
	p, _ := newTestPipeline(provider, mem, nil)
	reg, err := weather.NewRegistry(weather.NewLocation("US", "New York", 40.7128, -74.0060))
	require.NoError(t, err)

	before := time.Now().UTC()
	p.RunCycle(context.Background(), reg.Locations())
	after := time.Now().UTC()

	records, err := mem.LatestN(context.Background(), 6)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "US", rec.Country)
	assert.Equal(t, "New York", rec.City)
	assert.Equal(t, 280.1, rec.MinTemp)
	assert.Equal(t, 285.4, rec.MaxTemp)
	assert.Equal(t, 283.2, rec.CurrentTemp)
	assert.Equal(t, 55, rec.Humidity)
	assert.False(t, rec.Timestamp.Before(before))
	assert.False(t, rec.Timestamp.After(after))
}

func TestScenario_OneProviderErrorAmongSix(t *testing.T) {
	bodies := map[string]*string{}
	for _, loc := range weather.DefaultLocations() {
		bodies[fmt.Sprint(*loc.Lat)] = strPtr(newYorkBody)
	}
	bodies["48.8566"] = nil // Paris replies 500

	provider := stubProvider(t, openWeatherStub{bodies: bodies})
	mem := store.NewMemoryStore()
	p, metrics := newTestPipeline(provider, mem, clockwork.NewFakeClockAt(cycleStart))

	report := p.RunCycle(context.Background(), weather.DefaultLocations())

	records, err := mem.LatestN(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, records, 5)
	assert.NotContains(t, cityNames(records), "Paris")
	assert.Equal(t, 6, report.Attempts)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FetchResults.WithLabelValues("provider")))
	assert.Equal(t, float64(5), testutil.ToFloat64(metrics.RecordsStored))
}

func TestScenario_MissingMainSection(t *testing.T) {
	provider := stubProvider(t, openWeatherStub{bodies: map[string]*string{
		"51.5074": strPtr(`{"name":"London","weather":[{"main":"Rain"}]}`),
	}})
	mem := store.NewMemoryStore()
	p, _ := newTestPipeline(provider, mem, clockwork.NewFakeClockAt(cycleStart))

	var report weather.CycleReport
	require.NotPanics(t, func() {
		report = p.RunCycle(context.Background(), []weather.Location{weather.NewLocation("GB", "London", 51.5074, -0.1278)})
	})

	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, mem.Len())
}

func TestScenario_FiveFailuresThenOneSuccess(t *testing.T) {
	bodies := map[string]*string{}
	for _, loc := range weather.DefaultLocations() {
		bodies[fmt.Sprint(*loc.Lat)] = nil
	}
	bodies["53.4808"] = strPtr(newYorkBody) // Manchester, last in the registry

	provider := stubProvider(t, openWeatherStub{bodies: bodies})
	mem := store.NewMemoryStore()
	p, _ := newTestPipeline(provider, mem, clockwork.NewFakeClockAt(cycleStart))

	report := p.RunCycle(context.Background(), weather.DefaultLocations())

	assert.Equal(t, 6, report.Attempts)
	assert.Equal(t, 5, report.Failed)
	assert.Equal(t, 1, report.Stored)

	records, err := mem.LatestN(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Manchester", records[0].City)
}

func TestScenario_FailingLocationsTripAndRecoverIndependently(t *testing.T) {
	var healthy atomic.Bool
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if !healthy.Load() && r.URL.Query().Get("lat") != "53.4808" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(newYorkBody))
	}))
	t.Cleanup(srv.Close)

	provider := providers.NewOpenWeatherProvider(&http.Client{Timeout: 2 * time.Second}, "key", srv.URL, providers.BreakerConfig{
		MaxConsecutiveFailures: 1,
		OpenTimeout:            50 * time.Millisecond,
	})
	mem := store.NewMemoryStore()
	p, _ := newTestPipeline(provider, mem, nil)

	first := p.RunCycle(context.Background(), weather.DefaultLocations())
	assert.Equal(t, 5, first.Failed)
	assert.Equal(t, 1, first.Stored)
	assert.Equal(t, int32(6), requests.Load())

	// Open circuits fail fast, but Manchester keeps being requested and stored.
	second := p.RunCycle(context.Background(), weather.DefaultLocations())
	assert.Equal(t, 5, second.Failed)
	assert.Equal(t, 1, second.Stored)
	assert.Equal(t, int32(7), requests.Load())

	healthy.Store(true)
	time.Sleep(100 * time.Millisecond)

	third := p.RunCycle(context.Background(), weather.DefaultLocations())
	assert.Zero(t, third.Failed)
	assert.Equal(t, 6, third.Stored)
	assert.Equal(t, 8, mem.Len())
}
