// Package archive stores raw upstream payloads in S3-compatible object storage
// so a parse failure can be replayed offline with hazardctl parse.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/couchcryptid/hazard-ingest-service/internal/config"
	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
)

// PutObjectAPI is the subset of the S3 client the archiver needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var contentTypes = map[domain.SourceID]string{
	domain.SourceKandilli:  "text/html; charset=utf-8",
	domain.SourceEMSC:      "application/json",
	domain.SourceNASAMODIS: "text/csv",
	domain.SourceNASAVIIRS: "text/csv",
	domain.SourceUSGS:      "application/geo+json",
	domain.SourceNOAA:      "application/json",
}

// Archiver writes one object per fetched payload. It implements pipeline.Archiver.
type Archiver struct {
	client PutObjectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

// New builds an archiver from the default AWS credential chain. A non-empty
// ArchiveEndpoint targets an S3-compatible store such as MinIO, with
// path-style addressing.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.ArchiveEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.ArchiveEndpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg.ArchiveBucket, cfg.ArchivePrefix, logger), nil
}

// NewWithClient creates an archiver over an existing client.
func NewWithClient(client PutObjectAPI, bucket, prefix string, logger *slog.Logger) *Archiver {
	return &Archiver{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

// Archive uploads payload under Key(prefix, source, fetchedAt).
func (a *Archiver) Archive(ctx context.Context, source domain.SourceID, fetchedAt time.Time, payload []byte) error {
	key := Key(a.prefix, source, fetchedAt)
	in := &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentLength: aws.Int64(int64(len(payload))),
	}
	if ct, ok := contentTypes[source]; ok {
		in.ContentType = aws.String(ct)
	}
	if _, err := a.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("archive %s payload to s3://%s/%s: %w", source, a.bucket, key, err)
	}
	a.logger.Debug("payload archived", "source", string(source), "key", key, "bytes", len(payload))
	return nil
}

// Key returns the object key for a payload: {prefix}{source}/YYYY/MM/DD/{timestamp}.raw.
func Key(prefix string, source domain.SourceID, fetchedAt time.Time) string {
	t := fetchedAt.UTC()
	return fmt.Sprintf("%s%s/%s/%s.raw", prefix, source, t.Format("2006/01/02"), t.Format("20060102T150405.000Z"))
}
