package pipeline

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
	"github.com/couchcryptid/hazard-ingest-service/internal/observability"
)

// RecordTransformer implements Transformer using domain.Normalize.
type RecordTransformer struct{}

// NewTransformer creates a RecordTransformer.
func NewTransformer() *RecordTransformer {
	return &RecordTransformer{}
}

// Transform normalizes raw into a canonical record.
func (t *RecordTransformer) Transform(_ context.Context, raw domain.RawRecord) (domain.Record, error) {
	return domain.Normalize(raw)
}

// Lookup reports which natural ids are already stored. The check is read-only;
// the upsert still decides uniqueness.
type Lookup interface {
	Existing(ctx context.Context, kind domain.Kind, ids []string) (map[string]bool, error)
}

// EnricherConfig bounds reverse lookups for one source pass.
type EnricherConfig struct {
	MaxLookups int           // 0 means no cap
	Budget     time.Duration // 0 means only the caller's deadline applies
}

// Enricher fills in place names by reverse geocoding ahead of the upsert.
type Enricher struct {
	geocoder   domain.Geocoder
	lookup     Lookup
	maxLookups int
	budget     time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewEnricher creates an Enricher. lookup may be nil, in which case every
// record that needs a place is a lookup candidate.
func NewEnricher(geocoder domain.Geocoder, lookup Lookup, cfg EnricherConfig, logger *slog.Logger, metrics *observability.Metrics) *Enricher {
	return &Enricher{
		geocoder:   geocoder,
		lookup:     lookup,
		maxLookups: cfg.MaxLookups,
		budget:     cfg.Budget,
		logger:     logger,
		metrics:    metrics,
	}
}

// Enrich returns recs with reverse-geocoded places where a lookup was made.
// Records already stored, and records past the lookup cap or the time budget,
// keep the place they were normalized with. Lookups use at most half of the
// time left on ctx so the upsert that follows keeps the rest.
func (e *Enricher) Enrich(ctx context.Context, source domain.SourceID, kind domain.Kind, recs []domain.Record) []domain.Record {
	var (
		candidates []int
		ids        []string
	)
	for i, rec := range recs {
		if domain.NeedsPlace(rec) {
			candidates = append(candidates, i)
			ids = append(ids, rec.NaturalID())
		}
	}
	if len(candidates) == 0 {
		return recs
	}

	var stored map[string]bool
	if e.lookup != nil {
		var err error
		stored, err = e.lookup.Existing(ctx, kind, ids)
		if err != nil {
			e.logger.Warn("stored id check failed, geocoding all candidates", "source", string(source), "error", err)
		}
	}

	lookupCtx, cancel := e.lookupContext(ctx)
	defer cancel()

	out := slices.Clone(recs)
	var lookups, skippedStored, skippedLimit int
	for _, i := range candidates {
		rec := recs[i]
		if stored[rec.NaturalID()] {
			skippedStored++
			continue
		}
		if (e.maxLookups > 0 && lookups >= e.maxLookups) || lookupCtx.Err() != nil {
			skippedLimit++
			continue
		}
		lookups++
		out[i] = domain.EnrichPlace(lookupCtx, rec, e.geocoder, e.logger)
	}

	e.metrics.GeocodeSkipped.WithLabelValues(string(source), "stored").Add(float64(skippedStored))
	e.metrics.GeocodeSkipped.WithLabelValues(string(source), "limit").Add(float64(skippedLimit))
	if skippedLimit > 0 {
		e.logger.Info("place lookups capped, keeping coordinate places",
			"source", string(source),
			"lookups", lookups,
			"skipped", skippedLimit,
		)
	}
	return out
}

func (e *Enricher) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	budget := e.budget
	if deadline, ok := ctx.Deadline(); ok {
		if half := time.Until(deadline) / 2; budget <= 0 || half < budget {
			budget = half
		}
		return context.WithTimeout(ctx, budget)
	}
	if budget > 0 {
		return context.WithTimeout(ctx, budget)
	}
	return context.WithCancel(ctx)
}
