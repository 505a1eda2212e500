package query

import (
	"fmt"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
)

// Route segment for each kind, as in /api/{segment}/{source}.
var segments = map[domain.Kind]string{
	domain.KindSeismic: "earthquakes",
	domain.KindFire:    "fires",
	domain.KindTsunami: "tsunami",
}

var plurals = map[domain.Kind]string{
	domain.KindSeismic: "earthquakes",
	domain.KindFire:    "fires",
	domain.KindTsunami: "tsunami_alerts",
}

var kindLabels = map[domain.Kind]string{
	domain.KindSeismic: "earthquakes",
	domain.KindFire:    "fire detections",
	domain.KindTsunami: "tsunami alerts",
}

// KindForSegment maps a route segment to its entity kind.
func KindForSegment(segment string) (domain.Kind, bool) {
	for k, s := range segments {
		if s == segment {
			return k, true
		}
	}
	return "", false
}

// PluralName is the envelope key holding records of kind k.
func PluralName(k domain.Kind) string {
	return plurals[k]
}

// Endpoint is one entry in the API catalogue.
type Endpoint struct {
	Path        string
	Description string
}

// Endpoints lists every record route: per source, then the "all" route, for
// each kind in order.
func Endpoints() []Endpoint {
	var out []Endpoint
	for _, k := range domain.Kinds() {
		for _, src := range domain.SourcesOfKind(k) {
			out = append(out, Endpoint{
				Path:        fmt.Sprintf("/api/%s/%s", segments[k], src.ID),
				Description: fmt.Sprintf("%s %s", src.Name, kindLabels[k]),
			})
		}
		out = append(out, Endpoint{
			Path:        fmt.Sprintf("/api/%s/%s", segments[k], AllSources),
			Description: "all sources, " + kindLabels[k],
		})
	}
	return out
}

// Catalogue renders Endpoints as a path to description map, including the
// service routes.
func Catalogue() map[string]string {
	cat := map[string]string{
		"/":           "service status and endpoint catalogue",
		"/api/status": "scheduler state, per-source reports and record counts",
	}
	for _, e := range Endpoints() {
		cat[e.Path] = e.Description
	}
	return cat
}
