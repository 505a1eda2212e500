package domain

// Kind names an entity kind.
type Kind string

const (
	KindSeismic Kind = "seismic"
	KindFire    Kind = "fire"
	KindTsunami Kind = "tsunami"
)

// ConflictPolicy decides what happens when a natural id is already stored.
type ConflictPolicy int

const (
	// InsertIfAbsent discards the incoming record. Upstream corrections to
	// already-stored events are not propagated.
	InsertIfAbsent ConflictPolicy = iota

	// RefreshMutable overwrites the Mutable columns and leaves identity columns alone.
	RefreshMutable
)

func (p ConflictPolicy) String() string {
	if p == RefreshMutable {
		return "refresh_mutable"
	}
	return "insert_if_absent"
}

// Entity describes how a kind is stored.
type Entity struct {
	Kind       Kind
	Table      string
	Columns    []string // data columns, in Record.Values order
	Mutable    []string // subset of Columns refreshed on conflict
	TimeColumn string
	Policy     ConflictPolicy
}

var entities = map[Kind]Entity{
	KindSeismic: {
		Kind:       KindSeismic,
		Table:      "seismic_events",
		Columns:    []string{"source", "occurred_at", "latitude", "longitude", "depth_km", "magnitude", "place"},
		TimeColumn: "occurred_at",
		Policy:     InsertIfAbsent,
	},
	KindFire: {
		Kind:  KindFire,
		Table: "fire_detections",
		Columns: []string{
			"source", "detected_at", "latitude", "longitude", "brightness", "confidence",
			"frp", "scan", "track", "satellite", "instrument", "place",
		},
		TimeColumn: "detected_at",
		Policy:     InsertIfAbsent,
	},
	KindTsunami: {
		Kind:  KindTsunami,
		Table: "tsunami_alerts",
		Columns: []string{
			"source", "issued_at", "latitude", "longitude", "magnitude", "depth_km",
			"alert_level", "status", "affected_regions", "message", "expires_at",
		},
		Mutable:    []string{"alert_level", "status", "message", "expires_at"},
		TimeColumn: "issued_at",
		Policy:     RefreshMutable,
	},
}

// EntityFor returns the descriptor for k. Unknown kinds yield a zero Entity.
func EntityFor(k Kind) Entity {
	return entities[k]
}

// Kinds returns all entity kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindSeismic, KindFire, KindTsunami}
}
