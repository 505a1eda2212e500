package feed

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
)

// firmsProduct is a FIRMS NRT product and the fixed instrument metadata of its rows.
type firmsProduct struct {
	Name       string
	Instrument string
	Satellite  string // fixed satellite; empty reads the satellite column
}

var (
	modisProduct = firmsProduct{Name: "MODIS_NRT", Instrument: "MODIS"}
	viirsProduct = firmsProduct{Name: "VIIRS_SNPP_NRT", Instrument: "VIIRS", Satellite: "NPP"}
)

// FIRMS area API accepts a day range of 1 to 10.
const firmsMaxDays = 10

func firmsURL(product firmsProduct) urlBuilder {
	return func(base string, opts Options, p domain.FetchParams) (string, error) {
		region := strings.TrimSpace(p.Region)
		if region == "" {
			region = domain.DefaultFetchParams().Region
		}
		days := min(max(p.Days, 1), firmsMaxDays)
		return strings.Join([]string{
			strings.TrimRight(base, "/"),
			url.PathEscape(opts.MapKey),
			product.Name,
			url.PathEscape(region),
			strconv.Itoa(days),
		}, "/"), nil
	}
}

// firmsColumns maps CSV header names to raw fields. Positions are the
// fallback for headerless exports.
var firmsColumns = []struct {
	field    string
	names    []string
	position int
	required bool
}{
	{domain.FieldLatitude, []string{"latitude"}, 0, true},
	{domain.FieldLongitude, []string{"longitude"}, 1, true},
	{domain.FieldBrightness, []string{"brightness", "bright_ti4"}, 2, false},
	{domain.FieldScan, []string{"scan"}, 3, false},
	{domain.FieldTrack, []string{"track"}, 4, false},
	{domain.FieldDate, []string{"acq_date"}, 5, true},
	{domain.FieldClock, []string{"acq_time"}, 6, true},
	{domain.FieldSatellite, []string{"satellite"}, 7, false},
	{domain.FieldConfidence, []string{"confidence"}, 8, false},
	{domain.FieldFRP, []string{"frp"}, 9, false},
}

func firmsParser(product firmsProduct) parseFunc {
	return func(body []byte, logger *slog.Logger) (domain.FetchResult, error) {
		return parseFIRMS(body, product, logger)
	}
}

func parseFIRMS(body []byte, product firmsProduct, logger *slog.Logger) (domain.FetchResult, error) {
	var res domain.FetchResult

	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	first, err := r.Read()
	if errors.Is(err, io.EOF) {
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("read csv header: %w", err)
	}

	index, hasHeader, err := resolveFIRMSColumns(first)
	if err != nil {
		return res, err
	}

	need := 0
	for _, pos := range index {
		need = max(need, pos+1)
	}

	line := 1
	row := first
	if hasHeader {
		row = nil
	}
	for {
		if row == nil {
			line++
			row, err = r.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				malformed(&res, logger, line, perr.Error())
				row = nil
				continue
			}
			if err != nil {
				return res, fmt.Errorf("read csv: %w", err)
			}
		}

		if len(row) < need {
			malformed(&res, logger, line, fmt.Sprintf("expected %d columns, got %d", need, len(row)))
			row = nil
			continue
		}

		fields := make(map[string]string, len(index)+1)
		for field, pos := range index {
			fields[field] = strings.TrimSpace(row[pos])
		}
		fields[domain.FieldInstrument] = product.Instrument
		if product.Satellite != "" {
			fields[domain.FieldSatellite] = product.Satellite
		}
		res.Records = append(res.Records, domain.RawRecord{Line: line, Fields: fields})
		row = nil
	}
	return res, nil
}

// resolveFIRMSColumns returns field positions. A first row whose first cell is
// numeric is data, and positional indices apply.
func resolveFIRMSColumns(first []string) (map[string]int, bool, error) {
	index := make(map[string]int, len(firmsColumns))

	if _, err := strconv.ParseFloat(strings.TrimSpace(first[0]), 64); err == nil {
		for _, c := range firmsColumns {
			index[c.field] = c.position
		}
		return index, false, nil
	}

	header := make(map[string]int, len(first))
	for i, name := range first {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, c := range firmsColumns {
		for _, name := range c.names {
			if pos, ok := header[name]; ok {
				index[c.field] = pos
				break
			}
		}
		if _, ok := index[c.field]; !ok && c.required {
			return nil, true, fmt.Errorf("csv header missing %q", c.names[0])
		}
	}
	return index, true, nil
}
