package domain

import (
	"slices"
	"strings"
	"time"
)

// Filter is a store predicate over one entity kind. Zero fields do not constrain.
type Filter struct {
	Sources       []string // stored source names; empty matches all
	MinMagnitude  float64
	MinConfidence int
	MinFRP        float64
	AlertLevel    string // case-insensitive substring
	Since         time.Time
	Limit         int
}

// Match reports whether rec satisfies every predicate except Limit.
// Magnitude applies to seismic and tsunami records, confidence and FRP to
// fires, and alert level to tsunami alerts.
func (f Filter) Match(rec Record) bool {
	if len(f.Sources) > 0 && !slices.Contains(f.Sources, rec.SourceName()) {
		return false
	}
	if !f.Since.IsZero() && rec.Timestamp().Before(f.Since) {
		return false
	}

	switch r := rec.(type) {
	case SeismicEvent:
		return f.MinMagnitude <= 0 || r.Magnitude >= f.MinMagnitude
	case FireDetection:
		if f.MinConfidence > 0 && r.Confidence < f.MinConfidence {
			return false
		}
		return f.MinFRP <= 0 || r.FireRadiativePower >= f.MinFRP
	case TsunamiAlert:
		if f.MinMagnitude > 0 && r.RelatedMagnitude < f.MinMagnitude {
			return false
		}
		return f.AlertLevel == "" ||
			strings.Contains(strings.ToLower(string(r.AlertLevel)), strings.ToLower(f.AlertLevel))
	default:
		return false
	}
}
