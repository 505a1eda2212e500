package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-ingest-service/internal/adapter/memory"
	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
	"github.com/couchcryptid/hazard-ingest-service/internal/pipeline"
)

const geocodedPlace = "Antalya, Türkiye"

// slowGeocoder takes delay per lookup and gives up when ctx is done.
type slowGeocoder struct {
	delay time.Duration
	calls atomic.Int64
}

func (g *slowGeocoder) ReverseGeocode(ctx context.Context, _, _ float64) (domain.GeocodingResult, error) {
	g.calls.Add(1)
	if g.delay > 0 {
		t := time.NewTimer(g.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return domain.GeocodingResult{}, ctx.Err()
		}
	}
	return domain.GeocodingResult{FormattedAddress: geocodedPlace}, nil
}

func (g *slowGeocoder) Calls() int { return int(g.calls.Load()) }

// ctxStore fails writes on a done context, as database/sql does.
type ctxStore struct {
	*memory.Store
}

func (s ctxStore) InsertIfAbsent(ctx context.Context, rec domain.Record) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return s.Store.InsertIfAbsent(ctx, rec)
}

func (s ctxStore) UpsertOverwriting(ctx context.Context, rec domain.Record) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return s.Store.UpsertOverwriting(ctx, rec)
}

type failingLookup struct{}

func (failingLookup) Existing(context.Context, domain.Kind, []string) (map[string]bool, error) {
	return nil, errors.New("connection refused")
}

func modisRaws(n int) []domain.RawRecord {
	out := make([]domain.RawRecord, n)
	for i := range n {
		out[i] = raw(domain.SourceNASAMODIS, i+2, map[string]string{
			domain.FieldLatitude:   fmt.Sprintf("%.5f", 36.0+float64(i)/100),
			domain.FieldLongitude:  "30.70000",
			domain.FieldDate:       "2024-04-26",
			domain.FieldClock:      "0130",
			domain.FieldConfidence: "80",
		})
	}
	return out
}

func fire(id string) domain.FireDetection {
	return domain.FireDetection{ID: id, Source: "NASA_FIRMS_MODIS", Latitude: 36.9, Longitude: 30.7, Place: "Lat: 36.9, Lon: 30.7"}
}

func places(recs []domain.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.(domain.FireDetection).Place
	}
	return out
}

func TestEnricher_CapKeepsCoordinatePlace(t *testing.T) {
	metrics := newTestMetrics()
	geo := &slowGeocoder{}
	e := pipeline.NewEnricher(geo, nil, pipeline.EnricherConfig{MaxLookups: 2}, discardLogger(), metrics)

	got := e.Enrich(context.Background(), domain.SourceNASAMODIS, domain.KindFire,
		[]domain.Record{fire("f1"), fire("f2"), fire("f3"), fire("f4")})

	assert.Equal(t, 2, geo.Calls())
	assert.Equal(t, []string{geocodedPlace, geocodedPlace, "Lat: 36.9, Lon: 30.7", "Lat: 36.9, Lon: 30.7"}, places(got))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.GeocodeSkipped.WithLabelValues("nasa-modis", "limit")))
}

func TestEnricher_SkipsStoredRecords(t *testing.T) {
	metrics := newTestMetrics()
	store := memory.New(nil)
	_, err := store.InsertIfAbsent(context.Background(), fire("f1"))
	require.NoError(t, err)
	geo := &slowGeocoder{}
	e := pipeline.NewEnricher(geo, store, pipeline.EnricherConfig{}, discardLogger(), metrics)

	got := e.Enrich(context.Background(), domain.SourceNASAMODIS, domain.KindFire,
		[]domain.Record{fire("f1"), fire("f2")})

	assert.Equal(t, 1, geo.Calls())
	assert.Equal(t, []string{"Lat: 36.9, Lon: 30.7", geocodedPlace}, places(got))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeSkipped.WithLabelValues("nasa-modis", "stored")))
}

func TestEnricher_LookupErrorGeocodesAll(t *testing.T) {
	geo := &slowGeocoder{}
	e := pipeline.NewEnricher(geo, failingLookup{}, pipeline.EnricherConfig{}, discardLogger(), newTestMetrics())

	got := e.Enrich(context.Background(), domain.SourceNASAMODIS, domain.KindFire,
		[]domain.Record{fire("f1"), fire("f2")})

	assert.Equal(t, 2, geo.Calls())
	assert.Equal(t, []string{geocodedPlace, geocodedPlace}, places(got))
}

func TestEnricher_NoCandidates(t *testing.T) {
	geo := &slowGeocoder{}
	e := pipeline.NewEnricher(geo, failingLookup{}, pipeline.EnricherConfig{}, discardLogger(), newTestMetrics())
	alert := domain.TsunamiAlert{ID: "noaa_1"}

	got := e.Enrich(context.Background(), domain.SourceNOAA, domain.KindTsunami, []domain.Record{alert})

	assert.Zero(t, geo.Calls())
	assert.Equal(t, []domain.Record{alert}, got)
}

func TestEnricher_BudgetStopsLookups(t *testing.T) {
	geo := &slowGeocoder{delay: 20 * time.Millisecond}
	e := pipeline.NewEnricher(geo, nil, pipeline.EnricherConfig{Budget: 50 * time.Millisecond}, discardLogger(), newTestMetrics())
	recs := make([]domain.Record, 20)
	for i := range recs {
		recs[i] = fire(fmt.Sprintf("f%d", i))
	}

	got := e.Enrich(context.Background(), domain.SourceNASAMODIS, domain.KindFire, recs)

	assert.Less(t, geo.Calls(), 20)
	assert.Equal(t, "Lat: 36.9, Lon: 30.7", places(got)[19])
}

func TestScheduler_SlowGeocoderLeavesTimeForUpserts(t *testing.T) {
	metrics := newTestMetrics()
	store := ctxStore{memory.New(nil)}
	geo := &slowGeocoder{delay: 10 * time.Millisecond}
	enricher := pipeline.NewEnricher(geo, store, pipeline.EnricherConfig{MaxLookups: 200, Budget: 10 * time.Second},
		discardLogger(), metrics)
	f := &mockFetcher{
		id:      domain.SourceNASAMODIS,
		timeout: 200 * time.Millisecond,
		result:  domain.FetchResult{Records: modisRaws(50)},
	}
	s := pipeline.NewScheduler(newPipeline(store, metrics, pipeline.WithEnricher(enricher)),
		[]pipeline.Fetcher{f}, pipeline.SchedulerConfig{Interval: time.Minute}, discardLogger(), metrics)

	report, ran := s.RunCycle(context.Background(), pipeline.TriggerTimer, domain.DefaultFetchParams())
	require.True(t, ran)
	src := report.Sources[0]
	require.True(t, src.OK(), src.Error)
	assert.Equal(t, 50, src.Stored)
	assert.Zero(t, src.Failed)
	assert.Less(t, geo.Calls(), 50)

	recs, err := store.List(context.Background(), domain.KindFire, domain.Filter{})
	require.NoError(t, err)
	var coordinate int
	for _, r := range recs {
		if strings.HasPrefix(r.(domain.FireDetection).Place, "Lat: ") {
			coordinate++
		}
	}
	assert.Positive(t, coordinate)

	// Every detection is now stored, so the next cycle makes no lookups.
	before := geo.Calls()
	report, ran = s.RunCycle(context.Background(), pipeline.TriggerTimer, domain.DefaultFetchParams())
	require.True(t, ran)
	assert.Equal(t, 50, report.Sources[0].Unchanged)
	assert.Equal(t, before, geo.Calls())
	assert.Equal(t, 50.0, testutil.ToFloat64(metrics.GeocodeSkipped.WithLabelValues("nasa-modis", "stored")))
}
