package archive_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-ingest-service/internal/adapter/archive"
	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
)

type mockS3 struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.inputs = append(m.inputs, in)
	m.bodies = append(m.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fetchedAt = time.Date(2024, 4, 26, 15, 4, 5, 250_000_000, time.UTC)

func TestKey(t *testing.T) {
	assert.Equal(t, "raw/nasa-viirs/2024/04/26/20240426T150405.250Z.raw",
		archive.Key("raw/", domain.SourceNASAVIIRS, fetchedAt))

	// Keys are always in UTC.
	local := fetchedAt.In(time.FixedZone("TRT", 3*60*60))
	assert.Equal(t, "kandilli/2024/04/26/20240426T150405.250Z.raw",
		archive.Key("", domain.SourceKandilli, local))
}

func TestArchive(t *testing.T) {
	client := &mockS3{}
	a := archive.NewWithClient(client, "hazard-raw", "raw/", discardLogger())
	payload := []byte(`{"type":"FeatureCollection","features":[]}`)

	require.NoError(t, a.Archive(context.Background(), domain.SourceUSGS, fetchedAt, payload))

	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "hazard-raw", aws.ToString(in.Bucket))
	assert.Equal(t, "raw/usgs/2024/04/26/20240426T150405.250Z.raw", aws.ToString(in.Key))
	assert.Equal(t, "application/geo+json", aws.ToString(in.ContentType))
	assert.Equal(t, int64(len(payload)), aws.ToInt64(in.ContentLength))
	assert.Equal(t, payload, client.bodies[0])
}

func TestArchive_NOAAIsJSON(t *testing.T) {
	client := &mockS3{}
	a := archive.NewWithClient(client, "hazard-raw", "raw/", discardLogger())

	require.NoError(t, a.Archive(context.Background(), domain.SourceNOAA, fetchedAt, []byte(`[]`)))

	require.Len(t, client.inputs, 1)
	assert.Equal(t, "application/json", aws.ToString(client.inputs[0].ContentType))
}

func TestArchiveError(t *testing.T) {
	client := &mockS3{err: errors.New("AccessDenied")}
	a := archive.NewWithClient(client, "hazard-raw", "raw/", discardLogger())

	err := a.Archive(context.Background(), domain.SourceNOAA, fetchedAt, []byte(`[]`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://hazard-raw/raw/noaa/")
	assert.Contains(t, err.Error(), "AccessDenied")
}
