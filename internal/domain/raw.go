package domain

import "strings"

// Canonical RawRecord field keys. Adapters map their wire columns onto these.
const (
	FieldEventID    = "event_id"
	FieldTime       = "time"    // source-local date-time text, parsed with Source.TimeLayouts
	FieldTimeMillis = "time_ms" // epoch milliseconds
	FieldDate       = "date"    // FIRMS acquisition date
	FieldClock      = "clock"   // FIRMS acquisition time, HHMM, possibly unpadded
	FieldLatitude   = "latitude"
	FieldLongitude  = "longitude"
	FieldDepth      = "depth"
	FieldMagnitude  = "magnitude"
	FieldPlace      = "place"
	FieldTsunami    = "tsunami" // "1" or "true" when the upstream flag is set
	FieldBrightness = "brightness"
	FieldConfidence = "confidence"
	FieldFRP        = "frp"
	FieldScan       = "scan"
	FieldTrack      = "track"
	FieldSatellite  = "satellite"
	FieldInstrument = "instrument"
	FieldStatus     = "status"
	FieldSeverity   = "severity"
	FieldExpires    = "expires"
	FieldMessage    = "message"
	FieldAffected   = "affected"
)

// RawRecord is one upstream record as loosely-typed text fields.
type RawRecord struct {
	Source SourceID
	Fields map[string]string

	// Line is the 1-based position in the upstream payload, for log context.
	Line int
}

// Get returns the trimmed value for key and whether it is non-empty.
func (r RawRecord) Get(key string) (string, bool) {
	v := strings.TrimSpace(r.Fields[key])
	return v, v != ""
}

// FetchParams narrows an upstream request. Adapters ignore parameters their
// endpoint does not support.
type FetchParams struct {
	MinMagnitude float64
	Limit        int
	Region       string
	Days         int
}

// DefaultFetchParams returns the parameters used by scheduled cycles.
func DefaultFetchParams() FetchParams {
	return FetchParams{Limit: 100, Region: "Global", Days: 1}
}

// FetchResult is a parsed upstream response.
type FetchResult struct {
	Records   []RawRecord
	Malformed int    // records skipped by the parser
	Payload   []byte // raw response body, kept for archiving
}
