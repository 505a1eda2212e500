package domain

import (
	"strings"
	"time"
)

// AlertLevel grades a tsunami alert.
type AlertLevel string

const (
	AlertWatch        AlertLevel = "Watch"
	AlertWarning      AlertLevel = "Warning"
	AlertMajorWarning AlertLevel = "Major Warning"
	AlertUnknown      AlertLevel = "Unknown"
)

// AlertStatus is the lifecycle state of a tsunami alert.
type AlertStatus string

const (
	StatusActive    AlertStatus = "Active"
	StatusPotential AlertStatus = "Potential"
	StatusCancelled AlertStatus = "Cancelled"
	StatusExpired   AlertStatus = "Expired"
)

// Unknown is the default for missing optional text fields.
const Unknown = "Unknown"

// Record is a canonical, normalized hazard record of any kind.
type Record interface {
	EntityKind() Kind
	NaturalID() string
	SourceName() string
	Timestamp() time.Time

	// Values returns the record's data in Entity.Columns order.
	Values() []any
}

// SeismicEvent is an earthquake reported by a seismic network.
type SeismicEvent struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_at"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	DepthKm    float64   `json:"depth_km"`
	Magnitude  float64   `json:"magnitude"`
	Place      string    `json:"place"`
}

func (e SeismicEvent) EntityKind() Kind     { return KindSeismic }
func (e SeismicEvent) NaturalID() string    { return e.ID }
func (e SeismicEvent) SourceName() string   { return e.Source }
func (e SeismicEvent) Timestamp() time.Time { return e.OccurredAt }

func (e SeismicEvent) Values() []any {
	return []any{e.Source, e.OccurredAt, e.Latitude, e.Longitude, e.DepthKm, e.Magnitude, e.Place}
}

// FireDetection is a satellite thermal-anomaly detection.
type FireDetection struct {
	ID                 string    `json:"id"`
	Source             string    `json:"source"`
	DetectedAt         time.Time `json:"detected_at"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	Brightness         float64   `json:"brightness"`
	Confidence         int       `json:"confidence"`
	FireRadiativePower float64   `json:"frp"`
	ScanAngle          float64   `json:"scan"`
	TrackAngle         float64   `json:"track"`
	Satellite          string    `json:"satellite"`
	Instrument         string    `json:"instrument"`
	Place              string    `json:"place"`
}

func (f FireDetection) EntityKind() Kind     { return KindFire }
func (f FireDetection) NaturalID() string    { return f.ID }
func (f FireDetection) SourceName() string   { return f.Source }
func (f FireDetection) Timestamp() time.Time { return f.DetectedAt }

func (f FireDetection) Values() []any {
	return []any{
		f.Source, f.DetectedAt, f.Latitude, f.Longitude, f.Brightness, f.Confidence,
		f.FireRadiativePower, f.ScanAngle, f.TrackAngle, f.Satellite, f.Instrument, f.Place,
	}
}

// TsunamiAlert is an issued tsunami alert or a tsunami-potential earthquake.
type TsunamiAlert struct {
	ID               string      `json:"id"`
	Source           string      `json:"source"`
	IssuedAt         time.Time   `json:"issued_at"`
	Latitude         float64     `json:"latitude"`
	Longitude        float64     `json:"longitude"`
	RelatedMagnitude float64     `json:"magnitude"`
	RelatedDepthKm   float64     `json:"depth_km"`
	AlertLevel       AlertLevel  `json:"alert_level"`
	Status           AlertStatus `json:"status"`
	AffectedRegions  string      `json:"affected_regions"`
	Message          string      `json:"message"`
	ExpiresAt        *time.Time  `json:"expires_at,omitempty"`
}

func (a TsunamiAlert) EntityKind() Kind     { return KindTsunami }
func (a TsunamiAlert) NaturalID() string    { return a.ID }
func (a TsunamiAlert) SourceName() string   { return a.Source }
func (a TsunamiAlert) Timestamp() time.Time { return a.IssuedAt }

func (a TsunamiAlert) Values() []any {
	var expires any
	if a.ExpiresAt != nil {
		expires = *a.ExpiresAt
	}
	return []any{
		a.Source, a.IssuedAt, a.Latitude, a.Longitude, a.RelatedMagnitude, a.RelatedDepthKm,
		string(a.AlertLevel), string(a.Status), a.AffectedRegions, a.Message, expires,
	}
}

// sameMutable reports whether the refreshable fields of a and b are equal.
func (a TsunamiAlert) sameMutable(b TsunamiAlert) bool {
	if a.Status != b.Status || a.AlertLevel != b.AlertLevel || a.Message != b.Message {
		return false
	}
	switch {
	case a.ExpiresAt == nil && b.ExpiresAt == nil:
		return true
	case a.ExpiresAt == nil || b.ExpiresAt == nil:
		return false
	default:
		return a.ExpiresAt.Equal(*b.ExpiresAt)
	}
}

// Refresh merges next into prev according to the kind's conflict policy. It
// returns the record to keep and whether anything changed. Identity fields of
// prev always win; for tsunami alerts the mutable fields come from next.
func Refresh(prev, next Record) (Record, bool) {
	if EntityFor(prev.EntityKind()).Policy != RefreshMutable {
		return prev, false
	}
	p, ok1 := prev.(TsunamiAlert)
	n, ok2 := next.(TsunamiAlert)
	if !ok1 || !ok2 || p.sameMutable(n) {
		return prev, false
	}
	p.Status = n.Status
	p.AlertLevel = n.AlertLevel
	p.Message = n.Message
	p.ExpiresAt = n.ExpiresAt
	return p, true
}

// ParseAlertStatus maps upstream status text onto AlertStatus. Empty text is Active.
func ParseAlertStatus(s string) AlertStatus {
	switch v := strings.ToLower(strings.TrimSpace(s)); {
	case v == "":
		return StatusActive
	case strings.HasPrefix(v, "cancel"):
		return StatusCancelled
	case strings.HasPrefix(v, "expire"), v == "ended", v == "final":
		return StatusExpired
	case strings.HasPrefix(v, "potential"):
		return StatusPotential
	default:
		return StatusActive
	}
}
