// Package feed implements the upstream source adapters. Each adapter issues one
// HTTP GET, parses the source's wire format into domain.RawRecord field maps,
// and leaves every semantic decision to domain.Normalize.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
)

const (
	// maxBodyBytes caps how much of an upstream response is read.
	maxBodyBytes = 32 << 20

	userAgent = "hazard-ingest-service/1.0"

	// DefaultTimeout bounds a single upstream request.
	DefaultTimeout = 30 * time.Second
)

var defaultURLs = map[domain.SourceID]string{
	domain.SourceKandilli:  "http://www.koeri.boun.edu.tr/scripts/lst0.asp",
	domain.SourceEMSC:      "https://www.seismicportal.eu/fdsnws/event/1/query",
	domain.SourceNASAMODIS: "https://firms.modaps.eosdis.nasa.gov/api/active_fire/csv",
	domain.SourceNASAVIIRS: "https://firms.modaps.eosdis.nasa.gov/api/active_fire/csv",
	domain.SourceUSGS:      "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/significant_hour.geojson",
	domain.SourceNOAA:      "https://www.tsunami.gov/json/web_tsu.json",
}

// DefaultURL returns the production endpoint for a source.
func DefaultURL(id domain.SourceID) string {
	return defaultURLs[id]
}

// Options configures one adapter.
type Options struct {
	URL     string        // endpoint; empty uses DefaultURL
	Timeout time.Duration // per request; zero uses DefaultTimeout
	MapKey  string        // NASA FIRMS map key

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

type (
	urlBuilder func(base string, opts Options, p domain.FetchParams) (string, error)
	parseFunc  func(body []byte, logger *slog.Logger) (domain.FetchResult, error)
)

// Adapter fetches and parses one upstream source.
type Adapter struct {
	source   domain.Source
	opts     Options
	client   *http.Client
	buildURL urlBuilder
	parse    parseFunc
	logger   *slog.Logger
}

// New creates the adapter for source id.
func New(id domain.SourceID, opts Options, logger *slog.Logger) (*Adapter, error) {
	src, ok := domain.LookupSource(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSource, id)
	}
	if opts.URL == "" {
		opts.URL = DefaultURL(id)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	a := &Adapter{
		source: src,
		opts:   opts,
		client: client,
		logger: logger.With("source", string(id)),
	}

	switch id {
	case domain.SourceKandilli:
		a.buildURL, a.parse = plainURL, parseKandilli
	case domain.SourceEMSC:
		a.buildURL, a.parse = emscURL, parseEMSC
	case domain.SourceNASAMODIS:
		a.buildURL, a.parse = firmsURL(modisProduct), firmsParser(modisProduct)
	case domain.SourceNASAVIIRS:
		a.buildURL, a.parse = firmsURL(viirsProduct), firmsParser(viirsProduct)
	case domain.SourceUSGS:
		a.buildURL, a.parse = plainURL, parseUSGS
	case domain.SourceNOAA:
		a.buildURL, a.parse = plainURL, parseNOAA
	}
	return a, nil
}

// Source returns the adapter's source id.
func (a *Adapter) Source() domain.SourceID { return a.source.ID }

// Timeout returns the per-request timeout.
func (a *Adapter) Timeout() time.Duration { return a.opts.Timeout }

// Fetch retrieves and parses the current upstream payload. A transport failure
// or non-2xx status is returned as a *domain.SourceError of kind
// domain.ErrTransport; an unparseable document as domain.ErrParse. A response
// that parses to zero records is not an error.
func (a *Adapter) Fetch(ctx context.Context, params domain.FetchParams) (domain.FetchResult, error) {
	u, err := a.buildURL(a.opts.URL, a.opts, params)
	if err != nil {
		return domain.FetchResult{}, domain.NewSourceError(a.source.ID, domain.ErrTransport, err)
	}

	body, err := a.get(ctx, u)
	if err != nil {
		return domain.FetchResult{}, domain.NewSourceError(a.source.ID, domain.ErrTransport, err)
	}

	res, err := a.Parse(body)
	res.Payload = body
	return res, err
}

// Parse parses a captured payload without any network access.
func (a *Adapter) Parse(body []byte) (domain.FetchResult, error) {
	res, err := a.parse(body, a.logger)
	if err != nil {
		return domain.FetchResult{}, domain.NewSourceError(a.source.ID, domain.ErrParse, err)
	}
	for i := range res.Records {
		res.Records[i].Source = a.source.ID
	}
	return res, nil
}

func (a *Adapter) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", a.source.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func plainURL(base string, _ Options, _ domain.FetchParams) (string, error) {
	return base, nil
}

// malformed logs and counts a record the parser could not read.
func malformed(res *domain.FetchResult, logger *slog.Logger, line int, reason string) {
	res.Malformed++
	logger.Warn("skipping malformed record", "line", line, "reason", reason)
}
