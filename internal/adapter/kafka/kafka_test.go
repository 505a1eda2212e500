package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-ingest-service/internal/config"
	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	storedAt := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	alert := domain.TsunamiAlert{
		ID:               "usgs_tsunami_us7000m9g4",
		Source:           "USGS",
		IssuedAt:         time.Date(2024, 4, 26, 15, 0, 0, 0, time.UTC),
		RelatedMagnitude: 7.4,
		AlertLevel:       domain.AlertWarning,
		Status:           domain.StatusActive,
	}

	msg, err := serializeToMessage(alert, storedAt)
	require.NoError(t, err)

	assert.Equal(t, []byte("usgs_tsunami_us7000m9g4"), msg.Key)
	assert.Contains(t, string(msg.Value), `"alert_level":"Warning"`)
	assert.Contains(t, string(msg.Value), `"magnitude":7.4`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "kind", msg.Headers[0].Key)
	assert.Equal(t, []byte("tsunami"), msg.Headers[0].Value)
	assert.Equal(t, "source", msg.Headers[1].Key)
	assert.Equal(t, []byte("USGS"), msg.Headers[1].Value)
	assert.Equal(t, "stored_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(storedAt.Format(time.RFC3339)), msg.Headers[2].Value)
}

func TestPublishEmptyBatchIsNoop(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"127.0.0.1:1"}, KafkaTopic: "hazard-records"}
	p := NewPublisher(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = p.Close() })

	require.NoError(t, p.Publish(context.Background(), nil))
}
