// Package memory is an in-process store with the same conflict semantics as
// the PostgreSQL store. It backs tests and deployments without DATABASE_URL.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
)

type row struct {
	id        uuid.UUID
	record    domain.Record
	createdAt time.Time
	updatedAt time.Time
}

// Store keeps one table per entity kind, keyed by natural id.
type Store struct {
	mu     sync.RWMutex
	tables map[domain.Kind]map[string]*row
	clock  clockwork.Clock
}

// New creates an empty store.
func New(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	tables := make(map[domain.Kind]map[string]*row)
	for _, k := range domain.Kinds() {
		tables[k] = make(map[string]*row)
	}
	return &Store{tables: tables, clock: clock}
}

// InsertIfAbsent stores rec unless its natural id is already present.
func (s *Store) InsertIfAbsent(_ context.Context, rec domain.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.table(rec.EntityKind())
	if err != nil {
		return false, err
	}
	if _, ok := table[rec.NaturalID()]; ok {
		return false, nil
	}
	s.insert(table, rec)
	return true, nil
}

// UpsertOverwriting stores rec, or refreshes the mutable fields of the stored
// row. It reports false when the stored row already matched.
func (s *Store) UpsertOverwriting(_ context.Context, rec domain.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.table(rec.EntityKind())
	if err != nil {
		return false, err
	}
	existing, ok := table[rec.NaturalID()]
	if !ok {
		s.insert(table, rec)
		return true, nil
	}
	merged, changed := domain.Refresh(existing.record, rec)
	if !changed {
		return false, nil
	}
	existing.record = merged
	existing.updatedAt = s.clock.Now().UTC()
	return true, nil
}

// List returns the records of kind matching f, newest first.
func (s *Store) List(_ context.Context, kind domain.Kind, f domain.Filter) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, err := s.table(kind)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Record, 0, len(table))
	for _, r := range table {
		if f.Match(r.record) {
			out = append(out, r.record)
		}
	}
	slices.SortFunc(out, func(a, b domain.Record) int {
		if c := b.Timestamp().Compare(a.Timestamp()); c != 0 {
			return c
		}
		return cmp.Compare(a.NaturalID(), b.NaturalID())
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Count returns the number of stored records of kind.
func (s *Store) Count(_ context.Context, kind domain.Kind) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, err := s.table(kind)
	if err != nil {
		return 0, err
	}
	return len(table), nil
}

// Existing returns the subset of ids already stored for kind.
func (s *Store) Existing(_ context.Context, kind domain.Kind, ids []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, err := s.table(kind)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, id := range ids {
		if _, ok := table[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) table(kind domain.Kind) (map[string]*row, error) {
	t, ok := s.tables[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrPersistence, kind)
	}
	return t, nil
}

func (s *Store) insert(table map[string]*row, rec domain.Record) {
	now := s.clock.Now().UTC()
	table[rec.NaturalID()] = &row{id: uuid.New(), record: rec, createdAt: now, updatedAt: now}
}
