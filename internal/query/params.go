package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
)

// Defaults for absent or invalid parameters.
const (
	DefaultLimit  = 100
	MaxLimit      = 1000
	DefaultRegion = "Global"
	DefaultDays   = 1
)

// Params are the recognized query parameters.
type Params struct {
	MinMagnitude  float64
	Limit         int
	Region        string
	Days          int
	DaysSet       bool // days was given explicitly
	MinConfidence int
	MinFRP        float64
	AlertLevel    string
}

// DefaultParams returns the parameters used when a request supplies none.
func DefaultParams() Params {
	return Params{Limit: DefaultLimit, Region: DefaultRegion, Days: DefaultDays}
}

// ParseParams reads the recognized parameters from q. Unknown keys are
// ignored; values that are malformed or out of range fall back to the default
// rather than failing the request. Limit is capped at MaxLimit and confidence
// at 100.
func ParseParams(q url.Values) Params {
	p := DefaultParams()

	if v, ok := parseFloat(q, "min_magnitude"); ok && v >= 0 {
		p.MinMagnitude = v
	}
	if v, ok := parseInt(q, "limit"); ok && v > 0 {
		p.Limit = min(v, MaxLimit)
	}
	if v := strings.TrimSpace(q.Get("region")); v != "" {
		p.Region = v
	}
	if v, ok := parseInt(q, "days"); ok && v > 0 {
		p.Days = v
		p.DaysSet = true
	}
	if v, ok := parseInt(q, "min_confidence"); ok && v >= 0 {
		p.MinConfidence = min(v, 100)
	}
	if v, ok := parseFloat(q, "min_frp"); ok && v >= 0 {
		p.MinFRP = v
	}
	p.AlertLevel = strings.TrimSpace(q.Get("alert_level"))
	return p
}

// Filter builds the store predicate for kind over the given stored source
// names. The days window always applies to fire detections, which FIRMS
// reports per acquisition day; for other kinds only when days was given.
func (p Params) Filter(kind domain.Kind, sources []string) domain.Filter {
	f := domain.Filter{
		Sources: sources,
		Limit:   p.Limit,
	}
	if kind == domain.KindFire || p.DaysSet {
		f.Since = domain.WindowStart(p.Days)
	}
	switch kind {
	case domain.KindSeismic:
		f.MinMagnitude = p.MinMagnitude
	case domain.KindFire:
		f.MinConfidence = p.MinConfidence
		f.MinFRP = p.MinFRP
	case domain.KindTsunami:
		f.MinMagnitude = p.MinMagnitude
		f.AlertLevel = p.AlertLevel
	}
	return f
}

// FetchParams returns the upstream parameters for an on-demand refresh.
func (p Params) FetchParams() domain.FetchParams {
	return domain.FetchParams{
		MinMagnitude: p.MinMagnitude,
		Limit:        p.Limit,
		Region:       p.Region,
		Days:         p.Days,
	}
}

func parseFloat(q url.Values, key string) (float64, bool) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func parseInt(q url.Values, key string) (int, bool) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	return v, err == nil
}
