package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
)

// featureCollection holds features undecoded so one bad feature does not fail
// the whole document.
type featureCollection struct {
	Features []json.RawMessage `json:"features"`
}

type geoFeature struct {
	ID         any            `json:"id"`
	Properties map[string]any `json:"properties"`
	Geometry   *struct {
		Coordinates []any `json:"coordinates"` // [lon, lat, depth]
	} `json:"geometry"`
}

// decodeFeatures decodes a GeoJSON FeatureCollection and calls fn for each
// well-formed feature. Numbers are kept as json.Number so upstream text is
// preserved exactly.
func decodeFeatures(body []byte, logger *slog.Logger, fn func(geoFeature) (map[string]string, error)) (domain.FetchResult, error) {
	var res domain.FetchResult
	if len(bytes.TrimSpace(body)) == 0 {
		return res, nil
	}

	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return res, fmt.Errorf("decode feature collection: %w", err)
	}

	for i, raw := range fc.Features {
		line := i + 1
		var f geoFeature
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&f); err != nil {
			malformed(&res, logger, line, err.Error())
			continue
		}
		fields, err := fn(f)
		if err != nil {
			malformed(&res, logger, line, err.Error())
			continue
		}
		res.Records = append(res.Records, domain.RawRecord{Line: line, Fields: fields})
	}
	return res, nil
}

// coordinate returns the i-th geometry coordinate as text.
func (f geoFeature) coordinate(i int) string {
	if f.Geometry == nil || i >= len(f.Geometry.Coordinates) {
		return ""
	}
	return textOf(f.Geometry.Coordinates[i])
}

func (f geoFeature) prop(key string) string {
	return textOf(f.Properties[key])
}

// textOf renders a decoded JSON scalar as text. Objects and arrays yield "".
func textOf(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func emscURL(base string, _ Options, p domain.FetchParams) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	limit := p.Limit
	if limit <= 0 {
		limit = domain.DefaultFetchParams().Limit
	}

	q := u.Query()
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("minmag", strconv.FormatFloat(p.MinMagnitude, 'f', -1, 64))
	q.Set("orderby", "time-desc")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseEMSC reads the FDSN GeoJSON export. properties.time is ISO-8601 in the
// current API and epoch milliseconds in older exports.
func parseEMSC(body []byte, logger *slog.Logger) (domain.FetchResult, error) {
	return decodeFeatures(body, logger, func(f geoFeature) (map[string]string, error) {
		id := textOf(f.ID)
		if id == "" {
			id = f.prop("unid")
		}

		fields := map[string]string{
			domain.FieldEventID:   id,
			domain.FieldLatitude:  firstNonEmpty(f.coordinate(1), f.prop("lat")),
			domain.FieldLongitude: firstNonEmpty(f.coordinate(0), f.prop("lon")),
			domain.FieldDepth:     firstNonEmpty(f.prop("depth"), absText(f.coordinate(2))),
			domain.FieldMagnitude: f.prop("mag"),
			domain.FieldPlace:     firstNonEmpty(f.prop("place"), f.prop("flynn_region")),
		}
		setTime(fields, f.Properties["time"])
		return fields, nil
	})
}

// parseUSGS reads the USGS summary feed. Every feature passes through; the
// normalizer decides tsunami candidacy.
func parseUSGS(body []byte, logger *slog.Logger) (domain.FetchResult, error) {
	return decodeFeatures(body, logger, func(f geoFeature) (map[string]string, error) {
		if f.Geometry == nil {
			return nil, errors.New("missing geometry")
		}
		place := f.prop("place")
		fields := map[string]string{
			domain.FieldEventID:   textOf(f.ID),
			domain.FieldLatitude:  f.coordinate(1),
			domain.FieldLongitude: f.coordinate(0),
			domain.FieldDepth:     f.coordinate(2),
			domain.FieldMagnitude: f.prop("mag"),
			domain.FieldTsunami:   f.prop("tsunami"),
			domain.FieldPlace:     place,
			domain.FieldAffected:  place,
		}
		setTime(fields, f.Properties["time"])
		return fields, nil
	})
}

// setTime stores a numeric time as epoch milliseconds and text as a timestamp.
func setTime(fields map[string]string, v any) {
	switch v := v.(type) {
	case json.Number:
		fields[domain.FieldTimeMillis] = v.String()
	case string:
		fields[domain.FieldTime] = v
	}
}

// absText strips a leading minus. FDSN geometry encodes depth as negative elevation.
func absText(s string) string {
	return strings.TrimPrefix(s, "-")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
