// Package query translates API parameters into store queries.
//
// With refresh-on-read enabled, every query first asks the scheduler for an
// on-demand cycle over the sources it covers and then reads the store. The
// refresh outcome never affects the response: a failed or skipped refresh
// still returns whatever was persisted by earlier cycles.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
	"github.com/couchcryptid/hazard-ingest-service/internal/pipeline"
)

// ErrNotFound is returned for an unknown route kind or source slug.
var ErrNotFound = errors.New("not found")

// AllSources is the slug selecting every source of a kind.
const AllSources = "all"

// Reader is the read side of the record store.
type Reader interface {
	List(ctx context.Context, kind domain.Kind, f domain.Filter) ([]domain.Record, error)
	Count(ctx context.Context, kind domain.Kind) (int, error)
}

// Scheduler is the part of pipeline.Scheduler the facade uses.
type Scheduler interface {
	Refresh(ctx context.Context, params domain.FetchParams, ids ...domain.SourceID) (pipeline.CycleReport, bool)
	State() pipeline.State
	SourceReports() []pipeline.SourceReport
}

// Service answers record queries.
type Service struct {
	reader        Reader
	scheduler     Scheduler
	refreshOnRead bool
	logger        *slog.Logger
}

// NewService creates a query facade. scheduler may be nil, which disables
// refresh-on-read and omits scheduler state from Status.
func NewService(reader Reader, scheduler Scheduler, refreshOnRead bool, logger *slog.Logger) *Service {
	return &Service{
		reader:        reader,
		scheduler:     scheduler,
		refreshOnRead: refreshOnRead && scheduler != nil,
		logger:        logger,
	}
}

// Result is the answer to one query.
type Result struct {
	Kind    domain.Kind
	Source  string   // stored source name for single-source queries
	Sources []string // stored source names for "all" queries
	Records []domain.Record
}

// Envelope renders the response body: the source or sources, the count, and
// the records under the kind's plural name.
func (r Result) Envelope() map[string]any {
	records := r.Records
	if records == nil {
		records = []domain.Record{}
	}
	body := map[string]any{
		"count":           len(records),
		PluralName(r.Kind): records,
	}
	if r.Source != "" {
		body["source"] = r.Source
	} else {
		body["sources"] = r.Sources
	}
	return body
}

// Query returns the records of kind from the source named by slug, or from
// all sources of kind when slug is AllSources, newest first.
func (s *Service) Query(ctx context.Context, kind domain.Kind, slug string, p Params) (Result, error) {
	srcs, err := resolveSources(kind, slug)
	if err != nil {
		return Result{}, err
	}

	names := domain.SourceNames(srcs)
	res := Result{Kind: kind}
	if slug == AllSources {
		res.Sources = names
	} else {
		res.Source = names[0]
	}

	if s.refreshOnRead {
		s.refresh(ctx, srcs, p)
	}

	filter := p.Filter(kind, names)
	if slug == AllSources {
		// Every source of the kind is selected; no need to constrain on source.
		filter.Sources = nil
	}
	res.Records, err = s.reader.List(ctx, kind, filter)
	if err != nil {
		return Result{}, fmt.Errorf("query %s/%s: %w", kind, slug, err)
	}
	return res, nil
}

func (s *Service) refresh(ctx context.Context, srcs []domain.Source, p Params) {
	ids := make([]domain.SourceID, len(srcs))
	for i, src := range srcs {
		ids[i] = src.ID
	}
	report, ran := s.scheduler.Refresh(ctx, p.FetchParams(), ids...)
	if !ran {
		s.logger.Debug("refresh skipped, cycle already running")
		return
	}
	for _, r := range report.Failed() {
		s.logger.Warn("on-demand refresh failed, serving stored data",
			"source", string(r.Source),
			"error", r.Error,
		)
	}
}

func resolveSources(kind domain.Kind, slug string) ([]domain.Source, error) {
	if slug == AllSources {
		srcs := domain.SourcesOfKind(kind)
		if len(srcs) == 0 {
			return nil, fmt.Errorf("%w: kind %q", ErrNotFound, kind)
		}
		return srcs, nil
	}
	src, ok := domain.LookupSource(domain.SourceID(slug))
	if !ok || src.Kind != kind {
		return nil, fmt.Errorf("%w: %s source %q", ErrNotFound, kind, slug)
	}
	return []domain.Source{src}, nil
}

// Status summarizes scheduler state and stored record counts.
type Status struct {
	State   pipeline.State          `json:"state,omitempty"`
	Sources []pipeline.SourceReport `json:"sources"`
	Counts  map[domain.Kind]int     `json:"counts"`
}

// Status returns the latest per-source reports and the record count per kind.
func (s *Service) Status(ctx context.Context) (Status, error) {
	st := Status{
		Sources: []pipeline.SourceReport{},
		Counts:  make(map[domain.Kind]int, len(domain.Kinds())),
	}
	if s.scheduler != nil {
		st.State = s.scheduler.State()
		st.Sources = s.scheduler.SourceReports()
	}
	for _, k := range domain.Kinds() {
		n, err := s.reader.Count(ctx, k)
		if err != nil {
			return Status{}, fmt.Errorf("count %s: %w", k, err)
		}
		st.Counts[k] = n
	}
	return st, nil
}
