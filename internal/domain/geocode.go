package domain

import (
	"context"
	"log/slog"
)

// NeedsPlace reports whether rec should be reverse geocoded. FIRMS feeds carry
// no place names, so fire detections always qualify; other kinds qualify only
// when upstream left the place empty.
func NeedsPlace(rec Record) bool {
	switch r := rec.(type) {
	case FireDetection:
		return true
	case SeismicEvent:
		return r.Place == Unknown
	default:
		return false
	}
}

// EnrichPlace replaces a record's place with a reverse-geocoded name. If
// geocoder is nil or geocoding fails, rec is returned unchanged.
func EnrichPlace(ctx context.Context, rec Record, geocoder Geocoder, logger *slog.Logger) Record {
	if geocoder == nil || !NeedsPlace(rec) {
		return rec
	}

	var lat, lon float64
	switch r := rec.(type) {
	case FireDetection:
		lat, lon = r.Latitude, r.Longitude
	case SeismicEvent:
		lat, lon = r.Latitude, r.Longitude
	}

	result, err := geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"natural_id", rec.NaturalID(),
			"lat", lat,
			"lon", lon,
			"error", err,
		)
		return rec
	}
	place := result.FormattedAddress
	if place == "" {
		place = result.PlaceName
	}
	if place == "" {
		return rec
	}

	switch r := rec.(type) {
	case FireDetection:
		r.Place = place
		return r
	case SeismicEvent:
		r.Place = place
		return r
	}
	return rec
}
