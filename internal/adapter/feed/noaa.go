package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
)

type noaaDocument struct {
	Alerts []json.RawMessage `json:"tsunamiAlerts"`
}

// parseNOAA reads the tsunami.gov alert list. A document without the
// tsunamiAlerts key means no alerts are in effect.
func parseNOAA(body []byte, logger *slog.Logger) (domain.FetchResult, error) {
	var res domain.FetchResult
	if len(bytes.TrimSpace(body)) == 0 {
		return res, nil
	}

	var doc noaaDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return res, fmt.Errorf("decode tsunami alerts: %w", err)
	}

	for i, raw := range doc.Alerts {
		line := i + 1
		var alert map[string]any
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&alert); err != nil {
			malformed(&res, logger, line, err.Error())
			continue
		}
		if alert == nil {
			malformed(&res, logger, line, "null alert")
			continue
		}

		get := func(key string) string { return textOf(alert[key]) }
		res.Records = append(res.Records, domain.RawRecord{
			Line: line,
			Fields: map[string]string{
				domain.FieldEventID:   get("id"),
				domain.FieldTime:      get("date"),
				domain.FieldStatus:    get("status"),
				domain.FieldSeverity:  get("severity"),
				domain.FieldExpires:   get("expiryDate"),
				domain.FieldMessage:   get("description"),
				domain.FieldAffected:  affectedAreas(alert["affectedAreas"]),
				domain.FieldLatitude:  get("latitude"),
				domain.FieldLongitude: get("longitude"),
				domain.FieldMagnitude: get("magnitude"),
				domain.FieldDepth:     get("depth"),
				// An issued NOAA alert is itself the tsunami flag.
				domain.FieldTsunami: "1",
			},
		})
	}
	return res, nil
}

// affectedAreas accepts either a string or a list of area names.
func affectedAreas(v any) string {
	list, ok := v.([]any)
	if !ok {
		return textOf(v)
	}
	names := make([]string, 0, len(list))
	for _, item := range list {
		if s := strings.TrimSpace(textOf(item)); s != "" {
			names = append(names, s)
		}
	}
	return strings.Join(names, ", ")
}
