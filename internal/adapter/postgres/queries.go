package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// upsertSQL builds the conflict-resolving insert for ent. Parameters are
// id, natural_id, the data columns in Entity.Columns order, then the
// timestamp used for both created_at and updated_at.
func upsertSQL(ent domain.Entity, policy domain.ConflictPolicy) string {
	cols := make([]string, 0, len(ent.Columns)+4)
	cols = append(cols, "id", "natural_id")
	cols = append(cols, ent.Columns...)
	cols = append(cols, "created_at", "updated_at")

	placeholders := make([]string, len(cols))
	for i := range len(cols) - 1 {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	// created_at and updated_at share the final parameter.
	placeholders[len(cols)-1] = placeholders[len(cols)-2]

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s AS t (%s) VALUES (%s) ON CONFLICT (natural_id) ",
		ent.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	if policy != domain.RefreshMutable || len(ent.Mutable) == 0 {
		b.WriteString("DO NOTHING")
		return b.String()
	}

	sets := make([]string, 0, len(ent.Mutable)+1)
	current := make([]string, len(ent.Mutable))
	incoming := make([]string, len(ent.Mutable))
	for i, c := range ent.Mutable {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		current[i] = "t." + c
		incoming[i] = "EXCLUDED." + c
	}
	sets = append(sets, "updated_at = EXCLUDED.updated_at")

	fmt.Fprintf(&b, "DO UPDATE SET %s WHERE (%s) IS DISTINCT FROM (%s)",
		strings.Join(sets, ", "), strings.Join(current, ", "), strings.Join(incoming, ", "))
	return b.String()
}

func execUpsert(ctx context.Context, db executor, rec domain.Record, policy domain.ConflictPolicy, now time.Time) (bool, error) {
	ent := domain.EntityFor(rec.EntityKind())
	if ent.Table == "" {
		return false, fmt.Errorf("%w: unknown kind %q", domain.ErrPersistence, rec.EntityKind())
	}

	args := make([]any, 0, len(ent.Columns)+3)
	args = append(args, uuid.New(), rec.NaturalID())
	args = append(args, rec.Values()...)
	args = append(args, now)

	res, err := db.ExecContext(ctx, upsertSQL(ent, policy), args...)
	if err != nil {
		return false, fmt.Errorf("upsert %s: %w: %w", rec.NaturalID(), domain.ErrPersistence, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert %s rows affected: %w: %w", rec.NaturalID(), domain.ErrPersistence, err)
	}
	return n > 0, nil
}

// selectColumns returns natural_id followed by the data columns.
func selectColumns(ent domain.Entity) string {
	return "natural_id, " + strings.Join(ent.Columns, ", ")
}

func queryList(ctx context.Context, db executor, kind domain.Kind, f domain.Filter) ([]domain.Record, error) {
	ent := domain.EntityFor(kind)
	if ent.Table == "" {
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrPersistence, kind)
	}

	var (
		where  []string
		args   []any
		argIdx int
	)
	nextArg := func(v any) string {
		argIdx++
		args = append(args, v)
		return fmt.Sprintf("$%d", argIdx)
	}

	if len(f.Sources) > 0 {
		where = append(where, "source = ANY("+nextArg(pq.Array(f.Sources))+")")
	}
	if !f.Since.IsZero() {
		where = append(where, ent.TimeColumn+" >= "+nextArg(f.Since))
	}
	switch kind {
	case domain.KindSeismic, domain.KindTsunami:
		if f.MinMagnitude > 0 {
			where = append(where, "magnitude >= "+nextArg(f.MinMagnitude))
		}
	case domain.KindFire:
		if f.MinConfidence > 0 {
			where = append(where, "confidence >= "+nextArg(f.MinConfidence))
		}
		if f.MinFRP > 0 {
			where = append(where, "frp >= "+nextArg(f.MinFRP))
		}
	}
	if kind == domain.KindTsunami && f.AlertLevel != "" {
		where = append(where, "alert_level ILIKE '%' || "+nextArg(escapeLike(f.AlertLevel))+" || '%'")
	}

	query := "SELECT " + selectColumns(ent) + " FROM " + ent.Table
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + ent.TimeColumn + " DESC, natural_id"
	if f.Limit > 0 {
		query += " LIMIT " + nextArg(f.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w: %w", ent.Table, domain.ErrPersistence, err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w: %w", ent.Table, domain.ErrPersistence, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w: %w", ent.Table, domain.ErrPersistence, err)
	}
	return out, nil
}

func queryExisting(ctx context.Context, db executor, kind domain.Kind, ids []string) (map[string]bool, error) {
	ent := domain.EntityFor(kind)
	if ent.Table == "" {
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrPersistence, kind)
	}
	out := make(map[string]bool)
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := db.QueryContext(ctx,
		"SELECT natural_id FROM "+ent.Table+" WHERE natural_id = ANY($1)", pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("existing %s: %w: %w", ent.Table, domain.ErrPersistence, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s: %w: %w", ent.Table, domain.ErrPersistence, err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("existing %s: %w: %w", ent.Table, domain.ErrPersistence, err)
	}
	return out, nil
}

func queryCount(ctx context.Context, db executor, kind domain.Kind) (int, error) {
	ent := domain.EntityFor(kind)
	if ent.Table == "" {
		return 0, fmt.Errorf("%w: unknown kind %q", domain.ErrPersistence, kind)
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+ent.Table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w: %w", ent.Table, domain.ErrPersistence, err)
	}
	return n, nil
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
