package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(src SourceID, fields map[string]string) RawRecord {
	return RawRecord{Source: src, Fields: fields, Line: 1}
}

func TestNormalize_Kandilli(t *testing.T) {
	rec, err := Normalize(raw(SourceKandilli, map[string]string{
		FieldTime:      "2024.04.26 15:10:00",
		FieldLatitude:  "38.1234",
		FieldLongitude: "27.5678",
		FieldDepth:     "7.0",
		FieldMagnitude: "4.2",
		FieldPlace:     "SEFERIHISAR (IZMIR)",
	}))
	require.NoError(t, err)

	want := SeismicEvent{
		ID:         "kandilli_1714133400",
		Source:     "Kandilli",
		OccurredAt: time.Date(2024, 4, 26, 12, 10, 0, 0, time.UTC),
		Latitude:   38.1234,
		Longitude:  27.5678,
		DepthKm:    7.0,
		Magnitude:  4.2,
		Place:      "SEFERIHISAR (IZMIR)",
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_EMSC(t *testing.T) {
	t.Run("epoch milliseconds", func(t *testing.T) {
		rec, err := Normalize(raw(SourceEMSC, map[string]string{
			FieldEventID:    "20240426_0000123",
			FieldTimeMillis: "1714133400000",
			FieldLatitude:   "38.1",
			FieldLongitude:  "27.5",
		}))
		require.NoError(t, err)

		ev := rec.(SeismicEvent)
		assert.Equal(t, "emsc_20240426_0000123", ev.ID)
		assert.Equal(t, "EMSC", ev.Source)
		assert.Equal(t, time.Date(2024, 4, 26, 12, 10, 0, 0, time.UTC), ev.OccurredAt)
		assert.Equal(t, 0.0, ev.Magnitude)
		assert.Equal(t, 0.0, ev.DepthKm)
		assert.Equal(t, Unknown, ev.Place)
	})

	t.Run("ISO time", func(t *testing.T) {
		rec, err := Normalize(raw(SourceEMSC, map[string]string{
			FieldEventID:   "abc",
			FieldTime:      "2024-04-26T12:10:00.5Z",
			FieldLatitude:  "38.1",
			FieldLongitude: "27.5",
		}))
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 4, 26, 12, 10, 0, 500_000_000, time.UTC), rec.Timestamp())
	})

	t.Run("ISO time without zone is UTC", func(t *testing.T) {
		rec, err := Normalize(raw(SourceEMSC, map[string]string{
			FieldEventID:   "abc",
			FieldTime:      "2024-04-26T12:10:00.1",
			FieldLatitude:  "38.1",
			FieldLongitude: "27.5",
		}))
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 4, 26, 12, 10, 0, 100_000_000, time.UTC), rec.Timestamp())
	})

	t.Run("missing event id", func(t *testing.T) {
		_, err := Normalize(raw(SourceEMSC, map[string]string{
			FieldTimeMillis: "1714133400000",
			FieldLatitude:   "38.1",
			FieldLongitude:  "27.5",
		}))
		require.ErrorIs(t, err, ErrMissingField)
	})
}

func TestNormalize_Fire(t *testing.T) {
	rec, err := Normalize(raw(SourceNASAMODIS, map[string]string{
		FieldLatitude:   "36.91000",
		FieldLongitude:  "30.70000",
		FieldDate:       "2024-04-26",
		FieldClock:      "130",
		FieldBrightness: "320.5",
		FieldConfidence: "85",
		FieldFRP:        "12.3",
		FieldScan:       "1.1",
		FieldTrack:      "1.0",
		FieldSatellite:  "Terra",
		FieldInstrument: "MODIS",
	}))
	require.NoError(t, err)

	want := FireDetection{
		ID:                 "nasa_modis_36.91000_30.70000_2024-04-26_0130",
		Source:             "NASA_FIRMS_MODIS",
		DetectedAt:         time.Date(2024, 4, 26, 1, 30, 0, 0, time.UTC),
		Latitude:           36.91,
		Longitude:          30.7,
		Brightness:         320.5,
		Confidence:         85,
		FireRadiativePower: 12.3,
		ScanAngle:          1.1,
		TrackAngle:         1.0,
		Satellite:          "Terra",
		Instrument:         "MODIS",
		Place:              "Lat: 36.91000, Lon: 30.70000",
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_FireConfidence(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"l", 30},
		{"n", 60},
		{"h", 90},
		{"nominal", 60},
		{"42", 42},
		{"150", 100},
		{"-3", 0},
		{"", 0},
		{"??", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			rec, err := Normalize(raw(SourceNASAVIIRS, map[string]string{
				FieldLatitude:   "1.0",
				FieldLongitude:  "2.0",
				FieldDate:       "2024-04-26",
				FieldClock:      "0005",
				FieldConfidence: tt.in,
			}))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.(FireDetection).Confidence)
		})
	}
}

func TestNormalize_TsunamiClassification(t *testing.T) {
	tests := []struct {
		name      string
		magnitude string
		flag      string
		wantLevel AlertLevel
		wantErr   error
	}{
		{"watch", "6.5", "0", AlertWatch, nil},
		{"warning", "7.2", "0", AlertWarning, nil},
		{"major warning", "8.1", "0", AlertMajorWarning, nil},
		{"boundary warning", "7.0", "0", AlertWarning, nil},
		{"boundary major", "8.0", "0", AlertMajorWarning, nil},
		{"boundary candidate", "6.0", "0", AlertWatch, nil},
		{"below threshold unflagged", "5.9", "0", "", ErrNotCandidate},
		{"below threshold flagged", "5.9", "1", AlertWatch, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Normalize(raw(SourceUSGS, map[string]string{
				FieldEventID:    "us7000abcd",
				FieldTimeMillis: "1714133400000",
				FieldLatitude:   "38.1",
				FieldLongitude:  "142.3",
				FieldMagnitude:  tt.magnitude,
				FieldTsunami:    tt.flag,
			}))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, rec)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, rec.(TsunamiAlert).AlertLevel)
		})
	}
}

func TestNormalize_USGSStatusAndMessage(t *testing.T) {
	fields := map[string]string{
		FieldEventID:    "us7000abcd",
		FieldTimeMillis: "1714133400000",
		FieldLatitude:   "38.1",
		FieldLongitude:  "142.3",
		FieldDepth:      "10",
		FieldMagnitude:  "6.5",
		FieldTsunami:    "0",
		FieldPlace:      "near the east coast of Honshu",
	}

	rec, err := Normalize(raw(SourceUSGS, fields))
	require.NoError(t, err)
	alert := rec.(TsunamiAlert)
	assert.Equal(t, "usgs_tsunami_us7000abcd", alert.ID)
	assert.Equal(t, "USGS", alert.Source)
	assert.Equal(t, StatusPotential, alert.Status)
	assert.Equal(t, "Magnitude 6.5 earthquake detected. Tsunami potential.", alert.Message)
	assert.Equal(t, 10.0, alert.RelatedDepthKm)
	assert.Nil(t, alert.ExpiresAt)

	fields[FieldTsunami] = "1"
	rec, err = Normalize(raw(SourceUSGS, fields))
	require.NoError(t, err)
	assert.Equal(t, StatusActive, rec.(TsunamiAlert).Status)
	assert.Equal(t, "Magnitude 6.5 earthquake detected. Tsunami active.", rec.(TsunamiAlert).Message)

	fields[FieldMagnitude] = "7"
	rec, err = Normalize(raw(SourceUSGS, fields))
	require.NoError(t, err)
	assert.Equal(t, "Magnitude 7.0 earthquake detected. Tsunami active.", rec.(TsunamiAlert).Message)
}

func TestFormatMagnitude(t *testing.T) {
	tests := map[float64]string{7: "7.0", 6.5: "6.5", 6.55: "6.55", 0: "0.0", -0.4: "-0.4"}
	for m, want := range tests {
		assert.Equal(t, want, formatMagnitude(m), m)
	}
}

func TestNormalize_NOAA(t *testing.T) {
	rec, err := Normalize(raw(SourceNOAA, map[string]string{
		FieldEventID:  "PAAQ-2024-001",
		FieldTime:     "2024-04-26 12:10:00",
		FieldTsunami:  "1",
		FieldStatus:   "Cancelled",
		FieldSeverity: "Warning",
		FieldExpires:  "2024-04-27 00:00:00",
		FieldMessage:  "Tsunami warning cancelled",
		FieldAffected: "Alaska, Aleutians",
	}))
	require.NoError(t, err)

	expires := time.Date(2024, 4, 27, 0, 0, 0, 0, time.UTC)
	want := TsunamiAlert{
		ID:              "noaa_PAAQ-2024-001",
		Source:          "NOAA",
		IssuedAt:        time.Date(2024, 4, 26, 12, 10, 0, 0, time.UTC),
		AlertLevel:      AlertWarning,
		Status:          StatusCancelled,
		AffectedRegions: "Alaska, Aleutians",
		Message:         "Tsunami warning cancelled",
		ExpiresAt:       &expires,
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_NOAASeverityFallback(t *testing.T) {
	tests := map[string]AlertLevel{
		"Major Warning": AlertMajorWarning,
		"Warning":       AlertWarning,
		"Watch":         AlertWatch,
		"Advisory":      AlertWatch,
		"Information":   AlertUnknown,
		"":              AlertUnknown,
	}
	for severity, want := range tests {
		t.Run(severity, func(t *testing.T) {
			rec, err := Normalize(raw(SourceNOAA, map[string]string{
				FieldEventID:  "a1",
				FieldTime:     "2024-04-26 12:10:00",
				FieldTsunami:  "1",
				FieldSeverity: severity,
			}))
			require.NoError(t, err)
			assert.Equal(t, want, rec.(TsunamiAlert).AlertLevel)
		})
	}
}

func TestNormalize_Coordinates(t *testing.T) {
	base := func(lat, lon string) RawRecord {
		return raw(SourceEMSC, map[string]string{
			FieldEventID:    "x",
			FieldTimeMillis: "1714133400000",
			FieldLatitude:   lat,
			FieldLongitude:  lon,
		})
	}

	t.Run("longitude wrapped", func(t *testing.T) {
		rec, err := Normalize(base("10", "190"))
		require.NoError(t, err)
		assert.InDelta(t, -170.0, rec.(SeismicEvent).Longitude, 1e-9)
	})

	t.Run("latitude out of range", func(t *testing.T) {
		_, err := Normalize(base("95", "10"))
		require.ErrorIs(t, err, ErrInvalidField)
	})

	t.Run("missing latitude", func(t *testing.T) {
		_, err := Normalize(base("", "10"))
		require.ErrorIs(t, err, ErrMissingField)
	})

	t.Run("bad float", func(t *testing.T) {
		_, err := Normalize(base("abc", "10"))
		require.ErrorIs(t, err, ErrInvalidField)
	})
}

func TestNormalize_MissingTimestamp(t *testing.T) {
	_, err := Normalize(raw(SourceKandilli, map[string]string{
		FieldLatitude:  "38.1",
		FieldLongitude: "27.5",
	}))
	require.ErrorIs(t, err, ErrMissingField)

	_, err = Normalize(raw(SourceKandilli, map[string]string{
		FieldTime:      "26/04/2024",
		FieldLatitude:  "38.1",
		FieldLongitude: "27.5",
	}))
	require.ErrorIs(t, err, ErrInvalidField)
}

func TestNormalize_UnknownSource(t *testing.T) {
	_, err := Normalize(raw("bogus", map[string]string{}))
	require.ErrorIs(t, err, ErrUnknownSource)
}

func TestNormalize_DeterministicID(t *testing.T) {
	in := raw(SourceNASAVIIRS, map[string]string{
		FieldLatitude:  "-12.34567",
		FieldLongitude: "130.1",
		FieldDate:      "2024-04-26",
		FieldClock:     "2359",
	})

	first, err := Normalize(in)
	require.NoError(t, err)
	second, err := Normalize(in)
	require.NoError(t, err)

	assert.Equal(t, first.NaturalID(), second.NaturalID())
	assert.Equal(t, "nasa_viirs_-12.34567_130.1_2024-04-26_2359", first.NaturalID())
}

func TestNormalize_SourceQualifiedIDs(t *testing.T) {
	fields := map[string]string{
		FieldEventID:    "shared",
		FieldTime:       "2024.04.26 15:10:00",
		FieldTimeMillis: "1714133400000",
		FieldLatitude:   "38.1",
		FieldLongitude:  "27.5",
		FieldMagnitude:  "4.0",
	}

	a, err := Normalize(raw(SourceKandilli, fields))
	require.NoError(t, err)
	b, err := Normalize(raw(SourceEMSC, fields))
	require.NoError(t, err)

	assert.Equal(t, a.Timestamp(), b.Timestamp())
	assert.NotEqual(t, a.NaturalID(), b.NaturalID())
}
