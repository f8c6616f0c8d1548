package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"

	appconfig "github.com/jmylchreest/vocalis-api/internal/config"
)

// ObjectStore is the subset of the S3 client used for the webhook archive.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	s3.ListObjectsV2APIClient
}

const webhookArchivePrefix = "webhooks/"

// StorageService archives inbound webhook payloads to S3-compatible storage
// (Tigris, MinIO). When no bucket is configured every call is a no-op.
type StorageService struct {
	client  *s3.Client
	store   ObjectStore
	bucket  string
	enabled bool
	logger  *slog.Logger
}

// NewStorageService creates a new storage service.
func NewStorageService(cfg *appconfig.Config, logger *slog.Logger) (*StorageService, error) {
	logger = logger.With("component", "storage")
	if !cfg.StorageEnabled {
		logger.Info("storage disabled, webhook archive off")
		return &StorageService{logger: logger}, nil
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.StorageRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		o.UsePathStyle = true
	})

	logger.Info("storage initialized", "bucket", cfg.StorageBucket, "endpoint", cfg.StorageEndpoint)
	svc := NewStorageServiceWithClient(client, cfg.StorageBucket, logger)
	svc.client = client
	return svc, nil
}

// NewStorageServiceWithClient wraps an existing object store.
func NewStorageServiceWithClient(store ObjectStore, bucket string, logger *slog.Logger) *StorageService {
	return &StorageService{
		store:   store,
		bucket:  bucket,
		enabled: store != nil && bucket != "",
		logger:  logger,
	}
}

// IsEnabled returns whether storage is configured.
func (s *StorageService) IsEnabled() bool {
	return s.enabled
}

// Client returns the underlying S3 client, nil when disabled.
func (s *StorageService) Client() *s3.Client {
	return s.client
}

// Bucket returns the configured bucket name.
func (s *StorageService) Bucket() string {
	return s.bucket
}

// WebhookArchiveKey builds webhooks/<yyyy/mm/dd>/<type>/<ulid>.json.
func WebhookArchiveKey(eventType string, receivedAt time.Time) string {
	t := receivedAt.UTC()
	return path.Join(
		strings.TrimSuffix(webhookArchivePrefix, "/"),
		t.Format("2006/01/02"),
		archiveSegment(eventType),
		ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()+".json",
	)
}

// ArchiveWebhook stores a raw webhook body and returns its key. Returns ""
// without error when storage is disabled.
func (s *StorageService) ArchiveWebhook(ctx context.Context, eventType string, body []byte, receivedAt time.Time) (string, error) {
	if !s.enabled {
		return "", nil
	}

	key := WebhookArchiveKey(eventType, receivedAt)
	_, err := s.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive webhook: %w", err)
	}

	s.logger.Debug("webhook archived", "key", key, "size_bytes", len(body))
	return key, nil
}

// DeleteArchivedWebhooks removes archived payloads last modified before
// cutoff. Individual delete failures are logged and skipped; a listing
// failure stops the sweep.
func (s *StorageService) DeleteArchivedWebhooks(ctx context.Context, cutoff time.Time) (int, error) {
	if !s.enabled {
		return 0, nil
	}

	deleted := 0
	paginator := s3.NewListObjectsV2Paginator(s.store, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(webhookArchivePrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("failed to list archived webhooks: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
				continue
			}
			if _, err := s.store.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			}); err != nil {
				s.logger.Warn("failed to delete archived webhook", "key", aws.ToString(obj.Key), "error", err)
				continue
			}
			deleted++
		}
	}
	return deleted, nil
}

// archiveSegment makes an event type safe as a single key segment.
func archiveSegment(eventType string) string {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, eventType)
}
