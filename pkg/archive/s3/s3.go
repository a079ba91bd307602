package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/BYEONGJUJO/CCTV-Guardian/pkg/archive"
	"github.com/BYEONGJUJO/CCTV-Guardian/pkg/tail"
)

// Backend implements S3 archival of rotated log files
type Backend struct {
	config    archive.Config
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// NewBackend creates a new S3 archive backend
func NewBackend(cfg archive.Config, awsCfg aws.Config) (*Backend, error) {
	client := s3.NewFromConfig(awsCfg)

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid S3 URL: %w", err)
	}

	bucket := ""
	keyPrefix := cfg.PathPrefix

	if strings.Contains(u.Host, ".s3.") || strings.Contains(u.Host, ".s3-") {
		// Virtual-hosted-style URL: bucket.s3.region.amazonaws.com
		parts := strings.Split(u.Host, ".")
		if len(parts) > 0 {
			bucket = parts[0]
		}
		if keyPrefix == "" {
			keyPrefix = strings.Trim(u.Path, "/")
		}
	} else {
		// Path-style URL: s3.region.amazonaws.com/bucket
		pathParts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
		if len(pathParts) > 0 {
			bucket = pathParts[0]
		}
		if keyPrefix == "" && len(pathParts) > 1 {
			keyPrefix = pathParts[1]
		}
	}

	if bucket == "" {
		return nil, fmt.Errorf("could not parse bucket name from URL: %s", cfg.URL)
	}

	return &Backend{
		config:    cfg,
		client:    client,
		bucket:    bucket,
		keyPrefix: keyPrefix,
	}, nil
}

// Store gzips one rotated file and uploads it under
// prefix/channel/year/month/day/hour/timestamp-uuid.jsonl.gz.
func (b *Backend) Store(ctx context.Context, channel, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open rotated file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	gz, _ := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if _, err := io.Copy(gz, f); err != nil {
		gz.Close()
		return fmt.Errorf("compress %s: %w", filepath.Base(path), err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("compress %s: %w", filepath.Base(path), err)
	}

	now := time.Now()
	key := fmt.Sprintf("%s/%s/%d/%02d/%02d/%02d/%s-%s.jsonl.gz",
		b.keyPrefix,
		channel,
		now.Year(),
		now.Month(),
		now.Day(),
		now.Hour(),
		now.Format("2006-01-02T15:04:05.000Z"),
		uuid.New().String(),
	)
	key = strings.TrimPrefix(key, "/")

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	// Record count is informational only; a torn final line does not fail
	// the archival.
	count, _ := tail.CountRecords(path)
	log.Printf("Archived %d records from %s to S3: %s/%s", count, filepath.Base(path), b.bucket, key)
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}
