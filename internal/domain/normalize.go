package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Tsunami thresholds on related earthquake magnitude.
const (
	TsunamiCandidateMagnitude = 6.0
	WarningMagnitude          = 7.0
	MajorWarningMagnitude     = 8.0
)

// Normalize converts a RawRecord into its canonical record. It is pure: the
// same input always yields the same record and natural id.
//
// Records missing a natural-id component are rejected with ErrMissingField or
// ErrInvalidField. Tsunami records failing candidacy are rejected with
// ErrNotCandidate.
func Normalize(raw RawRecord) (Record, error) {
	src, ok := LookupSource(raw.Source)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, raw.Source)
	}

	switch src.Kind {
	case KindSeismic:
		return normalizeSeismic(src, raw)
	case KindFire:
		return normalizeFire(src, raw)
	case KindTsunami:
		return normalizeTsunami(src, raw)
	default:
		return nil, fmt.Errorf("%w: %q has no kind", ErrUnknownSource, raw.Source)
	}
}

func normalizeSeismic(src Source, raw RawRecord) (Record, error) {
	at, err := parseTimestamp(src, raw)
	if err != nil {
		return nil, err
	}
	lat, lon, err := parseCoordinates(raw)
	if err != nil {
		return nil, err
	}

	eventID, ok := raw.Get(FieldEventID)
	if src.TimeDerivedID {
		eventID, ok = strconv.FormatInt(at.Unix(), 10), true
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, FieldEventID)
	}

	return SeismicEvent{
		ID:         src.IDPrefix + "_" + eventID,
		Source:     src.Name,
		OccurredAt: at,
		Latitude:   lat,
		Longitude:  lon,
		DepthKm:    floatOrZero(raw, FieldDepth),
		Magnitude:  floatOrZero(raw, FieldMagnitude),
		Place:      stringOrUnknown(raw, FieldPlace),
	}, nil
}

func normalizeFire(src Source, raw RawRecord) (Record, error) {
	latText, ok := raw.Get(FieldLatitude)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, FieldLatitude)
	}
	lonText, ok := raw.Get(FieldLongitude)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, FieldLongitude)
	}
	date, ok := raw.Get(FieldDate)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, FieldDate)
	}
	hhmm, ok := raw.Get(FieldClock)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, FieldClock)
	}
	hhmm = padClock(hhmm)

	at, err := parseInZone(src, date+" "+hhmm)
	if err != nil {
		return nil, err
	}
	lat, lon, err := parseCoordinates(raw)
	if err != nil {
		return nil, err
	}

	place, ok := raw.Get(FieldPlace)
	if !ok {
		place = fmt.Sprintf("Lat: %s, Lon: %s", latText, lonText)
	}

	return FireDetection{
		ID:                 strings.Join([]string{src.IDPrefix, latText, lonText, date, hhmm}, "_"),
		Source:             src.Name,
		DetectedAt:         at,
		Latitude:           lat,
		Longitude:          lon,
		Brightness:         floatOrZero(raw, FieldBrightness),
		Confidence:         parseConfidence(raw),
		FireRadiativePower: floatOrZero(raw, FieldFRP),
		ScanAngle:          floatOrZero(raw, FieldScan),
		TrackAngle:         floatOrZero(raw, FieldTrack),
		Satellite:          stringOrUnknown(raw, FieldSatellite),
		Instrument:         stringOrUnknown(raw, FieldInstrument),
		Place:              place,
	}, nil
}

func normalizeTsunami(src Source, raw RawRecord) (Record, error) {
	magnitude := floatOrZero(raw, FieldMagnitude)
	flagged := tsunamiFlag(raw)
	if magnitude < TsunamiCandidateMagnitude && !flagged {
		return nil, fmt.Errorf("%w: magnitude %.1f without tsunami flag", ErrNotCandidate, magnitude)
	}

	eventID, ok := raw.Get(FieldEventID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, FieldEventID)
	}
	at, err := parseTimestamp(src, raw)
	if err != nil {
		return nil, err
	}

	// Issued alerts may come without an epicentre, so coordinates are optional.
	var lat, lon float64
	if _, ok := raw.Get(FieldLatitude); ok {
		if lat, lon, err = parseCoordinates(raw); err != nil {
			return nil, err
		}
	}

	level := ClassifyAlertLevel(magnitude)
	if magnitude == 0 {
		severity, _ := raw.Get(FieldSeverity)
		level = alertLevelFromSeverity(severity)
	}

	var status AlertStatus
	if text, ok := raw.Get(FieldStatus); ok {
		status = ParseAlertStatus(text)
	} else if flagged {
		status = StatusActive
	} else {
		status = StatusPotential
	}

	message, ok := raw.Get(FieldMessage)
	if !ok {
		message = fmt.Sprintf("Magnitude %s earthquake detected. Tsunami %s.",
			formatMagnitude(magnitude), strings.ToLower(string(status)))
	}

	var expires *time.Time
	if text, ok := raw.Get(FieldExpires); ok {
		if t, err := parseInZone(src, text); err == nil {
			expires = &t
		}
	}

	return TsunamiAlert{
		ID:               src.IDPrefix + "_" + eventID,
		Source:           src.Name,
		IssuedAt:         at,
		Latitude:         lat,
		Longitude:        lon,
		RelatedMagnitude: magnitude,
		RelatedDepthKm:   floatOrZero(raw, FieldDepth),
		AlertLevel:       level,
		Status:           status,
		AffectedRegions:  stringOrUnknown(raw, FieldAffected),
		Message:          message,
		ExpiresAt:        expires,
	}, nil
}

// ClassifyAlertLevel grades a tsunami alert from the related magnitude.
func ClassifyAlertLevel(magnitude float64) AlertLevel {
	switch {
	case magnitude >= MajorWarningMagnitude:
		return AlertMajorWarning
	case magnitude >= WarningMagnitude:
		return AlertWarning
	default:
		return AlertWatch
	}
}

func alertLevelFromSeverity(severity string) AlertLevel {
	s := strings.ToLower(severity)
	switch {
	case strings.Contains(s, "major"):
		return AlertMajorWarning
	case strings.Contains(s, "warning"):
		return AlertWarning
	case strings.Contains(s, "watch"), strings.Contains(s, "advisory"):
		return AlertWatch
	default:
		return AlertUnknown
	}
}

func tsunamiFlag(raw RawRecord) bool {
	v, _ := raw.Get(FieldTsunami)
	return v == "1" || strings.EqualFold(v, "true")
}

// parseTimestamp reads either epoch milliseconds or the source-local time text.
func parseTimestamp(src Source, raw RawRecord) (time.Time, error) {
	if ms, ok := raw.Get(FieldTimeMillis); ok {
		v, err := strconv.ParseFloat(ms, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %s %q", ErrInvalidField, FieldTimeMillis, ms)
		}
		return time.UnixMilli(int64(v)).UTC(), nil
	}
	text, ok := raw.Get(FieldTime)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrMissingField, FieldTime)
	}
	return parseInZone(src, text)
}

func parseInZone(src Source, text string) (time.Time, error) {
	zone := src.Zone
	if zone == nil {
		zone = time.UTC
	}
	for _, layout := range src.TimeLayouts {
		if t, err := time.ParseInLocation(layout, text, zone); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s %q", ErrInvalidField, FieldTime, text)
}

// parseCoordinates requires both coordinates. Latitude outside [-90, 90] is
// rejected; longitude is wrapped into [-180, 180].
func parseCoordinates(raw RawRecord) (float64, float64, error) {
	lat, err := requiredFloat(raw, FieldLatitude)
	if err != nil {
		return 0, 0, err
	}
	lon, err := requiredFloat(raw, FieldLongitude)
	if err != nil {
		return 0, 0, err
	}
	if lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("%w: %s %v out of range", ErrInvalidField, FieldLatitude, lat)
	}
	return lat, wrapLongitude(lon), nil
}

func wrapLongitude(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

func requiredFloat(raw RawRecord, key string) (float64, error) {
	text, ok := raw.Get(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidField, key, text)
	}
	return v, nil
}

// floatOrZero parses an optional numeric field, returning 0 when absent or malformed.
func floatOrZero(raw RawRecord, key string) float64 {
	text, ok := raw.Get(key)
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func stringOrUnknown(raw RawRecord, key string) string {
	if v, ok := raw.Get(key); ok {
		return v
	}
	return Unknown
}

// parseConfidence accepts a 0-100 number or a VIIRS class letter.
func parseConfidence(raw RawRecord) int {
	text, ok := raw.Get(FieldConfidence)
	if !ok {
		return 0
	}
	switch strings.ToLower(text) {
	case "l", "low":
		return 30
	case "n", "nominal":
		return 60
	case "h", "high":
		return 90
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

// padClock left-pads an HHMM acquisition time, e.g. "45" -> "0045".
func padClock(hhmm string) string {
	if len(hhmm) >= 4 {
		return hhmm
	}
	return strings.Repeat("0", 4-len(hhmm)) + hhmm
}

// formatMagnitude prints m with at least one decimal place, so 7 reads "7.0".
func formatMagnitude(m float64) string {
	s := strconv.FormatFloat(m, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
