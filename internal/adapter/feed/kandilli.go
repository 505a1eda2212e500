package feed

import (
	"html"
	"log/slog"
	"strings"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
)

// The Kandilli list page wraps a fixed-width table in <pre>. The first six
// lines are the banner and column headings.
const (
	kandilliHeaderLines = 6
	kandilliMinColumns  = 9
	kandilliNoValue     = "-.-"
)

// Kandilli columns: date, time, lat, lon, depth(km), MD, ML, Mw, place..., quality.
func parseKandilli(body []byte, logger *slog.Logger) (domain.FetchResult, error) {
	var res domain.FetchResult

	text := preBlock(string(body))
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) <= kandilliHeaderLines {
		return res, nil
	}

	for i, line := range lines[kandilliHeaderLines:] {
		lineNo := i + kandilliHeaderLines + 1
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		if len(parts) < kandilliMinColumns {
			malformed(&res, logger, lineNo, "too few columns")
			continue
		}

		res.Records = append(res.Records, domain.RawRecord{
			Line: lineNo,
			Fields: map[string]string{
				domain.FieldTime:      parts[0] + " " + parts[1],
				domain.FieldLatitude:  parts[2],
				domain.FieldLongitude: parts[3],
				domain.FieldDepth:     parts[4],
				domain.FieldMagnitude: kandilliMagnitude(parts[5], parts[6], parts[7]),
				domain.FieldPlace:     kandilliPlace(parts[8:]),
			},
		})
	}
	return res, nil
}

// kandilliMagnitude prefers ML, then Mw, then MD.
func kandilliMagnitude(md, ml, mw string) string {
	for _, m := range []string{ml, mw, md} {
		if m != kandilliNoValue {
			return m
		}
	}
	return ""
}

// kandilliPlace joins the place tokens, dropping the trailing solution quality
// marker ("İlksel", or "REVIZE01 (date time)").
func kandilliPlace(tokens []string) string {
	for i, tok := range tokens {
		if strings.HasPrefix(tok, "REVIZE") {
			tokens = tokens[:i]
			break
		}
	}
	if n := len(tokens); n > 0 && isPreliminary(tokens[n-1]) {
		tokens = tokens[:n-1]
	}
	return strings.Join(tokens, " ")
}

func isPreliminary(tok string) bool {
	return tok == "İlksel" || strings.EqualFold(tok, "Ilksel")
}

// preBlock returns the unescaped contents of the first <pre> element, or the
// whole document when there is none.
func preBlock(doc string) string {
	start := indexFold(doc, "<pre>")
	if start < 0 {
		return html.UnescapeString(doc)
	}
	doc = doc[start+len("<pre>"):]
	if end := indexFold(doc, "</pre>"); end >= 0 {
		doc = doc[:end]
	}
	return html.UnescapeString(doc)
}

// indexFold is strings.Index with ASCII case folding. It keeps byte offsets
// valid for the original string, which strings.ToLower does not for Turkish text.
func indexFold(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}
