package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-ingest-service/internal/adapter/memory"
	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
	"github.com/couchcryptid/hazard-ingest-service/internal/pipeline"
)

// flakyStore fails writes for the listed natural ids and delegates the rest.
type flakyStore struct {
	*memory.Store
	failIDs map[string]bool
	inserts int
	upserts int
}

func (f *flakyStore) InsertIfAbsent(ctx context.Context, rec domain.Record) (bool, error) {
	f.inserts++
	if f.failIDs[rec.NaturalID()] {
		return false, fmt.Errorf("insert %s: %w: connection reset", rec.NaturalID(), domain.ErrPersistence)
	}
	return f.Store.InsertIfAbsent(ctx, rec)
}

func (f *flakyStore) UpsertOverwriting(ctx context.Context, rec domain.Record) (bool, error) {
	f.upserts++
	if f.failIDs[rec.NaturalID()] {
		return false, fmt.Errorf("upsert %s: %w: connection reset", rec.NaturalID(), domain.ErrPersistence)
	}
	return f.Store.UpsertOverwriting(ctx, rec)
}

var occurred = time.Date(2024, 4, 26, 12, 10, 0, 0, time.UTC)

func quake(id string) domain.SeismicEvent {
	return domain.SeismicEvent{ID: id, Source: "EMSC", OccurredAt: occurred, Magnitude: 4.2, Place: "WESTERN TURKEY"}
}

func TestEngine_InsertIfAbsentPolicy(t *testing.T) {
	store := &flakyStore{Store: memory.New(nil)}
	engine := pipeline.NewEngine(store, discardLogger())

	first := engine.Upsert(context.Background(), domain.KindSeismic, []domain.Record{quake("emsc_1"), quake("emsc_2")})

	corrected := quake("emsc_1")
	corrected.Magnitude = 4.6
	second := engine.Upsert(context.Background(), domain.KindSeismic, []domain.Record{corrected})

	assert.Equal(t, 2, first.Count())
	assert.Equal(t, 0, second.Count())
	assert.Equal(t, 1, second.Unchanged)
	assert.Equal(t, 3, store.inserts)
	assert.Zero(t, store.upserts)

	// Upstream corrections are not propagated.
	recs, err := store.List(context.Background(), domain.KindSeismic, domain.Filter{Limit: 10})
	require.NoError(t, err)
	for _, r := range recs {
		assert.Equal(t, 4.2, r.(domain.SeismicEvent).Magnitude)
	}
}

func TestEngine_RefreshPolicyForTsunami(t *testing.T) {
	store := &flakyStore{Store: memory.New(nil)}
	engine := pipeline.NewEngine(store, discardLogger())
	alert := domain.TsunamiAlert{
		ID: "usgs_tsunami_us1", Source: "USGS", IssuedAt: occurred,
		RelatedMagnitude: 7.2, AlertLevel: domain.AlertWarning, Status: domain.StatusActive,
	}

	first := engine.Upsert(context.Background(), domain.KindTsunami, []domain.Record{alert})
	same := engine.Upsert(context.Background(), domain.KindTsunami, []domain.Record{alert})

	alert.Status = domain.StatusCancelled
	changed := engine.Upsert(context.Background(), domain.KindTsunami, []domain.Record{alert})

	assert.Equal(t, 1, first.Count())
	assert.Equal(t, 0, same.Count())
	assert.Equal(t, 1, same.Unchanged)
	assert.Equal(t, 1, changed.Count())
	assert.Equal(t, 3, store.upserts)
	assert.Zero(t, store.inserts)
}

func TestEngine_FailedWriteDoesNotAbortBatch(t *testing.T) {
	store := &flakyStore{Store: memory.New(nil), failIDs: map[string]bool{"emsc_2": true}}
	engine := pipeline.NewEngine(store, discardLogger())

	res := engine.Upsert(context.Background(), domain.KindSeismic,
		[]domain.Record{quake("emsc_1"), quake("emsc_2"), quake("emsc_3")})

	assert.Equal(t, 2, res.Count())
	assert.Equal(t, 1, res.Failed)
	require.ErrorIs(t, res.Err, domain.ErrPersistence)
	assert.Contains(t, res.Err.Error(), "emsc_2")

	n, err := store.Count(context.Background(), domain.KindSeismic)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEngine_RejectsMismatchedKind(t *testing.T) {
	engine := pipeline.NewEngine(memory.New(nil), discardLogger())
	fire := domain.FireDetection{ID: "nasa_modis_1_2_2024-04-26_0130", Source: "NASA_FIRMS_MODIS", DetectedAt: occurred}

	res := engine.Upsert(context.Background(), domain.KindSeismic, []domain.Record{fire, quake("emsc_1")})

	assert.Equal(t, 1, res.Count())
	assert.Equal(t, 1, res.Failed)
	assert.True(t, errors.Is(res.Err, domain.ErrPersistence))
}

func TestEngine_PersistenceFailureSurfacesInReport(t *testing.T) {
	store := &flakyStore{Store: memory.New(nil), failIDs: map[string]bool{"emsc_b": true}}
	metrics := newTestMetrics()
	p := newPipeline(store, metrics)
	f := &mockFetcher{id: domain.SourceEMSC, result: domain.FetchResult{
		Records: []domain.RawRecord{emscRaw("a", "4.2"), emscRaw("b", "5.1")},
	}}

	report := p.IngestSource(context.Background(), f, domain.DefaultFetchParams())

	assert.Equal(t, 1, report.Stored)
	assert.Equal(t, 1, report.Failed)
	require.ErrorIs(t, report.Err, domain.ErrPersistence)
	assert.Contains(t, report.Error, "1 of 2 records not stored")
}
