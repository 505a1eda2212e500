// Package domain models natural-hazard records ingested from public upstream feeds.
//
// # Entity Kinds
//
// Three canonical kinds share one shape (natural id, source, timestamp,
// coordinates, kind-specific measurements):
//
//	seismic  SeismicEvent   earthquakes reported by seismic networks
//	fire     FireDetection  satellite thermal anomalies
//	tsunami  TsunamiAlert   tsunami alerts and tsunami-potential earthquakes
//
// Each kind is described by an [Entity] descriptor, which carries its table,
// column order, mutable columns, and conflict policy. Storage adapters build
// their statements from the descriptor instead of hand-writing one save path
// per kind.
//
// # Sources
//
//	kandilli    KOERI Kandilli Observatory, fixed-width text, Turkey local time (UTC+03:00)
//	emsc        EMSC seismic portal, FDSN GeoJSON
//	nasa-modis  NASA FIRMS MODIS NRT, CSV
//	nasa-viirs  NASA FIRMS VIIRS S-NPP NRT, CSV
//	usgs        USGS significant-earthquake GeoJSON, screened for tsunami potential
//	noaa        NOAA tsunami.gov alert JSON
//
// Adapters translate the wire formats into [RawRecord] field maps keyed by the
// Field* constants. All semantic work (timestamps, coordinates, defaults,
// classification, candidacy) happens in [Normalize] so adapters stay
// format-only.
//
// # Natural IDs
//
// Natural ids are reproducible from upstream data alone:
//
//	seismic  {prefix}_{sourceEventId}            e.g. "emsc_20240426_0000123"
//	                                             Kandilli has no event id; the
//	                                             origin time in unix seconds is used.
//	fire     {prefix}_{lat}_{lon}_{date}_{HHMM}  raw upstream coordinate text
//	tsunami  {prefix}_{sourceEventId}            e.g. "usgs_tsunami_us7000abcd"
//
// The prefix is source-specific, so two sources reporting the same physical
// event produce two rows. There is no cross-source correlation.
//
// # Tsunami Classification
//
//	magnitude < 7.0        Watch
//	7.0 <= magnitude < 8.0 Warning
//	magnitude >= 8.0       Major Warning
//
// A record is a tsunami candidate when magnitude >= 6.0 or the upstream
// tsunami flag is set. Non-candidates are excluded before storage.
package domain
