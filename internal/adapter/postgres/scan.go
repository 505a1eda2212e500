package postgres

import (
	"database/sql"
	"fmt"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanRecord scans a row selected with selectColumns into the record type of kind.
func scanRecord(row scannable, kind domain.Kind) (domain.Record, error) {
	switch kind {
	case domain.KindSeismic:
		var e domain.SeismicEvent
		err := row.Scan(&e.ID, &e.Source, &e.OccurredAt, &e.Latitude, &e.Longitude,
			&e.DepthKm, &e.Magnitude, &e.Place)
		e.OccurredAt = e.OccurredAt.UTC()
		return e, err

	case domain.KindFire:
		var f domain.FireDetection
		err := row.Scan(&f.ID, &f.Source, &f.DetectedAt, &f.Latitude, &f.Longitude,
			&f.Brightness, &f.Confidence, &f.FireRadiativePower, &f.ScanAngle, &f.TrackAngle,
			&f.Satellite, &f.Instrument, &f.Place)
		f.DetectedAt = f.DetectedAt.UTC()
		return f, err

	case domain.KindTsunami:
		var (
			a       domain.TsunamiAlert
			level   string
			status  string
			expires sql.NullTime
		)
		err := row.Scan(&a.ID, &a.Source, &a.IssuedAt, &a.Latitude, &a.Longitude,
			&a.RelatedMagnitude, &a.RelatedDepthKm, &level, &status, &a.AffectedRegions,
			&a.Message, &expires)
		a.IssuedAt = a.IssuedAt.UTC()
		a.AlertLevel = domain.AlertLevel(level)
		a.Status = domain.AlertStatus(status)
		if expires.Valid {
			t := expires.Time.UTC()
			a.ExpiresAt = &t
		}
		return a, err

	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}
