package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
	"github.com/couchcryptid/hazard-ingest-service/internal/observability"
)

// Fetcher retrieves and parses one upstream source.
type Fetcher interface {
	Source() domain.SourceID
	Timeout() time.Duration
	Fetch(ctx context.Context, params domain.FetchParams) (domain.FetchResult, error)
}

// Transformer converts a raw record into a canonical record.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawRecord) (domain.Record, error)
}

// Publisher announces newly stored records to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, recs []domain.Record) error
}

// Archiver keeps a copy of each raw upstream payload.
type Archiver interface {
	Archive(ctx context.Context, source domain.SourceID, fetchedAt time.Time, payload []byte) error
}

// SourceReport is the outcome of one source's fetch-normalize-upsert pass.
type SourceReport struct {
	Source     domain.SourceID `json:"source"`
	Kind       domain.Kind     `json:"kind"`
	StartedAt  time.Time       `json:"started_at"`
	Duration   time.Duration   `json:"-"`
	DurationMS int64           `json:"duration_ms"`
	Fetched    int             `json:"fetched"`
	Malformed  int             `json:"malformed"`
	Dropped    int             `json:"dropped"`
	Excluded   int             `json:"excluded"`
	Stored     int             `json:"stored"`
	Unchanged  int             `json:"unchanged"`
	Failed     int             `json:"failed"`

	// Err is a *domain.SourceError for transport, parse, or persistence failures.
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// OK reports whether the pass finished without any failure.
func (r SourceReport) OK() bool { return r.Err == nil }

// Pipeline runs the ingestion stages for a single source.
type Pipeline struct {
	transformer Transformer
	engine      *Engine
	enricher    *Enricher
	publisher   Publisher
	archiver    Archiver
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithPublisher sends stored records to pub after each pass.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithEnricher geocodes places for normalized records before the upsert.
func WithEnricher(e *Enricher) Option {
	return func(p *Pipeline) { p.enricher = e }
}

// WithArchiver stores every fetched payload with arc.
func WithArchiver(arc Archiver) Option {
	return func(p *Pipeline) { p.archiver = arc }
}

// WithClock overrides the clock used for report timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// New creates a Pipeline writing through engine.
func New(t Transformer, engine *Engine, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		transformer: t,
		engine:      engine,
		clock:       clockwork.NewRealClock(),
		logger:      logger,
		metrics:     metrics,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IngestSource fetches f once, normalizes every record, and upserts the
// survivors. Failures are recorded in the report, never returned or panicked,
// so sibling sources are unaffected.
func (p *Pipeline) IngestSource(ctx context.Context, f Fetcher, params domain.FetchParams) (report SourceReport) {
	id := f.Source()
	src, _ := domain.LookupSource(id)
	logger := p.logger.With("source", string(id))
	start := p.clock.Now()

	report = SourceReport{Source: id, Kind: src.Kind, StartedAt: start.UTC()}
	defer func() {
		report.Duration = p.clock.Since(start)
		report.DurationMS = report.Duration.Milliseconds()
		p.metrics.SourceDuration.WithLabelValues(string(id)).Observe(report.Duration.Seconds())
		if report.Err != nil {
			report.Error = report.Err.Error()
			p.metrics.SourceFailures.WithLabelValues(string(id), domain.FailureKind(report.Err)).Inc()
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, f.Timeout())
	res, err := f.Fetch(fetchCtx, params)
	cancel()
	if err != nil {
		if domain.FailureKind(err) == "" {
			err = domain.NewSourceError(id, domain.ErrTransport, err)
		}
		report.Err = err
		logger.Error("fetch failed, skipping source for this cycle", "error", err)
		return report
	}

	p.archive(ctx, id, start, res.Payload, logger)

	report.Fetched = len(res.Records)
	report.Malformed = res.Malformed
	p.metrics.RecordsFetched.WithLabelValues(string(id)).Add(float64(report.Fetched))
	p.metrics.RecordsMalformed.WithLabelValues(string(id)).Add(float64(report.Malformed))

	recs := make([]domain.Record, 0, len(res.Records))
	for _, raw := range res.Records {
		rec, err := p.transformer.Transform(ctx, raw)
		if errors.Is(err, domain.ErrNotCandidate) {
			report.Excluded++
			p.metrics.RecordsExcluded.WithLabelValues(string(id)).Inc()
			continue
		}
		if err != nil {
			report.Dropped++
			p.metrics.RecordsDropped.WithLabelValues(string(id), dropReason(err)).Inc()
			logger.Warn("dropping record", "line", raw.Line, "error", err)
			continue
		}
		recs = append(recs, rec)
	}

	if p.enricher != nil {
		recs = p.enricher.Enrich(ctx, id, src.Kind, recs)
	}

	result := p.engine.Upsert(ctx, src.Kind, recs)
	report.Stored = result.Count()
	report.Unchanged = result.Unchanged
	report.Failed = result.Failed
	p.metrics.RecordsStored.WithLabelValues(string(id)).Add(float64(report.Stored))
	if result.Failed > 0 {
		report.Err = domain.NewSourceError(id, domain.ErrPersistence,
			fmt.Errorf("%d of %d records not stored: %w", result.Failed, len(recs), result.Err))
	}

	p.publish(ctx, result.Stored, logger)

	logger.Info("source ingested",
		"fetched", report.Fetched,
		"malformed", report.Malformed,
		"dropped", report.Dropped,
		"excluded", report.Excluded,
		"stored", report.Stored,
		"unchanged", report.Unchanged,
		"failed", report.Failed,
	)
	return report
}

func (p *Pipeline) archive(ctx context.Context, id domain.SourceID, at time.Time, payload []byte, logger *slog.Logger) {
	if p.archiver == nil || len(payload) == 0 {
		return
	}
	if err := p.archiver.Archive(ctx, id, at, payload); err != nil {
		p.metrics.ArchiveErrors.Inc()
		logger.Warn("archive payload failed", "error", err)
	}
}

func (p *Pipeline) publish(ctx context.Context, recs []domain.Record, logger *slog.Logger) {
	if p.publisher == nil || len(recs) == 0 {
		return
	}
	if err := p.publisher.Publish(ctx, recs); err != nil {
		p.metrics.PublishErrors.Add(float64(len(recs)))
		logger.Warn("publish stored records failed", "count", len(recs), "error", err)
	}
}

func dropReason(err error) string {
	if errors.Is(err, domain.ErrMissingField) {
		return "missing_field"
	}
	return "invalid_field"
}
