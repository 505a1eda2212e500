package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
)

const kandilliPayload = `<HTML><HEAD><TITLE>Son Depremler</TITLE></HEAD><BODY>
<pre>
RECENT EARTHQUAKES IN TURKEY
KOERI REGIONAL EARTHQUAKE-TSUNAMI MONITORING CENTER
(QUICK EPICENTER DETERMINATIONS)

 Date       Time      Latit(N)  Long(E)   Depth(km)     MD   ML   Mw    Region
---------- --------  --------  -------   ----------    ------------    --------------
2024.04.26 15:10:00  38.1234   27.5678        7.0      -.-  4.2  -.-   SEFERIHISAR (IZMIR)                               İlksel
2024.04.26 14:02:11  39.0000   28.0000       10.2      -.-  -.-  3.1   SINDIRGI (BALIKESIR)                              REVIZE01 (2024.04.26 14:10:00)

2024.04.26 13:00:00  40.0
</pre>
</BODY></HTML>`

func TestParseKandilli(t *testing.T) {
	a := newAdapter(t, domain.SourceKandilli, Options{})

	res, err := a.Parse([]byte(kandilliPayload))
	require.NoError(t, err)

	require.Len(t, res.Records, 2)
	assert.Equal(t, 1, res.Malformed)

	first := res.Records[0]
	assert.Equal(t, 7, first.Line)
	assert.Equal(t, map[string]string{
		domain.FieldTime:      "2024.04.26 15:10:00",
		domain.FieldLatitude:  "38.1234",
		domain.FieldLongitude: "27.5678",
		domain.FieldDepth:     "7.0",
		domain.FieldMagnitude: "4.2",
		domain.FieldPlace:     "SEFERIHISAR (IZMIR)",
	}, first.Fields)

	second := res.Records[1].Fields
	assert.Equal(t, "3.1", second[domain.FieldMagnitude])
	assert.Equal(t, "SINDIRGI (BALIKESIR)", second[domain.FieldPlace])
}

func TestParseKandilli_Normalizes(t *testing.T) {
	a := newAdapter(t, domain.SourceKandilli, Options{})
	res, err := a.Parse([]byte(kandilliPayload))
	require.NoError(t, err)

	rec, err := domain.Normalize(res.Records[0])
	require.NoError(t, err)

	ev := rec.(domain.SeismicEvent)
	assert.Equal(t, "Kandilli", ev.Source)
	assert.Equal(t, time.Date(2024, 4, 26, 12, 10, 0, 0, time.UTC), ev.OccurredAt)
	assert.Equal(t, "kandilli_1714133400", ev.ID)
}

func TestParseKandilli_HeaderOnly(t *testing.T) {
	a := newAdapter(t, domain.SourceKandilli, Options{})

	res, err := a.Parse([]byte("<pre>\na\nb\nc\nd\ne\nf\n</pre>"))

	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Zero(t, res.Malformed)
}

func TestKandilliMagnitude(t *testing.T) {
	assert.Equal(t, "4.2", kandilliMagnitude("3.9", "4.2", "4.4"))
	assert.Equal(t, "4.4", kandilliMagnitude("3.9", "-.-", "4.4"))
	assert.Equal(t, "3.9", kandilliMagnitude("3.9", "-.-", "-.-"))
	assert.Empty(t, kandilliMagnitude("-.-", "-.-", "-.-"))
}

func TestKandilliPlace(t *testing.T) {
	assert.Equal(t, "AKDENIZ", kandilliPlace([]string{"AKDENIZ", "İlksel"}))
	assert.Equal(t, "EGE DENIZI", kandilliPlace([]string{"EGE", "DENIZI", "REVIZE02", "(2024.04.26", "14:10:00)"}))
	assert.Equal(t, "KARADENIZ", kandilliPlace([]string{"KARADENIZ"}))
}
