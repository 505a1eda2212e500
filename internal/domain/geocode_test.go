package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- mock geocoder ---

type mockGeocoder struct {
	result GeocodingResult
	err    error
	calls  int
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (GeocodingResult, error) {
	m.calls++
	return m.result, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestEnrichPlace_NilGeocoder(t *testing.T) {
	fire := FireDetection{ID: "nasa_modis_1_2_2024-04-26_0130", Place: "Lat: 1, Lon: 2"}

	result := EnrichPlace(context.Background(), fire, nil, discardLogger())

	assert.Equal(t, fire, result)
}

func TestEnrichPlace_FireDetection(t *testing.T) {
	geo := &mockGeocoder{result: GeocodingResult{
		FormattedAddress: "Antalya, Türkiye",
		PlaceName:        "Antalya",
		Relevance:        0.9,
	}}
	fire := FireDetection{ID: "f1", Latitude: 36.9, Longitude: 30.7, Place: "Lat: 36.9, Lon: 30.7"}

	result := EnrichPlace(context.Background(), fire, geo, discardLogger())

	got, ok := result.(FireDetection)
	assert.True(t, ok)
	assert.Equal(t, "Antalya, Türkiye", got.Place)
	assert.Equal(t, 1, geo.calls)
}

func TestEnrichPlace_FallsBackToPlaceName(t *testing.T) {
	geo := &mockGeocoder{result: GeocodingResult{PlaceName: "Antalya"}}
	fire := FireDetection{ID: "f1", Latitude: 36.9, Longitude: 30.7}

	result := EnrichPlace(context.Background(), fire, geo, discardLogger())

	assert.Equal(t, "Antalya", result.(FireDetection).Place)
}

func TestEnrichPlace_SeismicOnlyWhenUnknown(t *testing.T) {
	geo := &mockGeocoder{result: GeocodingResult{FormattedAddress: "Izmir, Türkiye"}}

	named := SeismicEvent{ID: "emsc_1", Place: "WESTERN TURKEY"}
	result := EnrichPlace(context.Background(), named, geo, discardLogger())
	assert.Equal(t, "WESTERN TURKEY", result.(SeismicEvent).Place)
	assert.Equal(t, 0, geo.calls)

	unnamed := SeismicEvent{ID: "emsc_2", Place: Unknown}
	result = EnrichPlace(context.Background(), unnamed, geo, discardLogger())
	assert.Equal(t, "Izmir, Türkiye", result.(SeismicEvent).Place)
	assert.Equal(t, 1, geo.calls)
}

func TestEnrichPlace_TsunamiSkipped(t *testing.T) {
	geo := &mockGeocoder{result: GeocodingResult{FormattedAddress: "x"}}

	result := EnrichPlace(context.Background(), TsunamiAlert{ID: "noaa_1"}, geo, discardLogger())

	assert.Equal(t, TsunamiAlert{ID: "noaa_1"}, result)
	assert.Equal(t, 0, geo.calls)
}

func TestEnrichPlace_Error_GracefulDegradation(t *testing.T) {
	geo := &mockGeocoder{err: errors.New("rate limited")}
	fire := FireDetection{ID: "f1", Latitude: 36.9, Longitude: 30.7, Place: "Lat: 36.9, Lon: 30.7"}

	result := EnrichPlace(context.Background(), fire, geo, discardLogger())

	assert.Equal(t, fire, result)
}

func TestEnrichPlace_EmptyResult(t *testing.T) {
	geo := &mockGeocoder{}
	fire := FireDetection{ID: "f1", Place: "Lat: 0, Lon: 0"}

	result := EnrichPlace(context.Background(), fire, geo, discardLogger())

	assert.Equal(t, "Lat: 0, Lon: 0", result.(FireDetection).Place)
}
