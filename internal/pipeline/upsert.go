package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
)

// Store is the write side of the record store. Both operations must be atomic
// in the store itself; the engine never checks for existence first.
type Store interface {
	InsertIfAbsent(ctx context.Context, rec domain.Record) (bool, error)
	UpsertOverwriting(ctx context.Context, rec domain.Record) (bool, error)
}

// UpsertResult is the outcome of one batch.
type UpsertResult struct {
	Stored    []domain.Record // inserted, or refreshed under RefreshMutable
	Unchanged int             // already stored, nothing written
	Failed    int
	Err       error // first failure, nil when Failed is 0
}

// Count is the number of records inserted or updated.
func (r UpsertResult) Count() int { return len(r.Stored) }

// Engine writes canonical records to the store according to their entity
// kind's conflict policy. Batches are best-effort: each record is written on
// its own and a failed write does not stop the rest.
type Engine struct {
	store  Store
	logger *slog.Logger
}

// NewEngine creates a dedup-upsert engine over store.
func NewEngine(store Store, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// Upsert stores recs, all of which must be of kind.
func (e *Engine) Upsert(ctx context.Context, kind domain.Kind, recs []domain.Record) UpsertResult {
	var res UpsertResult

	ent := domain.EntityFor(kind)
	write := e.store.InsertIfAbsent
	if ent.Policy == domain.RefreshMutable {
		write = e.store.UpsertOverwriting
	}

	for _, rec := range recs {
		if rec.EntityKind() != kind {
			e.fail(&res, rec, fmt.Errorf("%w: %s record in %s batch", domain.ErrPersistence, rec.EntityKind(), kind))
			continue
		}

		written, err := write(ctx, rec)
		if err != nil {
			e.fail(&res, rec, err)
			continue
		}
		if written {
			res.Stored = append(res.Stored, rec)
		} else {
			res.Unchanged++
		}
	}
	return res
}

func (e *Engine) fail(res *UpsertResult, rec domain.Record, err error) {
	res.Failed++
	if res.Err == nil {
		res.Err = err
	}
	e.logger.Error("store write failed, skipping record",
		"natural_id", rec.NaturalID(),
		"kind", rec.EntityKind(),
		"error", err,
	)
}
