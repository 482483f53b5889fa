package stage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/boothworks/leadcore/internal/config"
)

// StoredObject describes a durably archived capture.
type StoredObject struct {
	Key string
	URL string
}

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Archive uploads capture media to S3-compatible object storage and yields
// publicly resolvable URLs.
type Archive struct {
	client   objectAPI
	bucket   string
	region   string
	prefix   string
	endpoint string
	log      *slog.Logger
	clock    func() time.Time
}

// NewArchive builds an archive from object store configuration. A custom
// endpoint switches the client to path-style addressing for S3-compatible
// stores.
func NewArchive(cfg config.ObjectStoreConfig, log *slog.Logger) *Archive {
	awsCfg := aws.Config{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newArchive(client, cfg, log)
}

func newArchive(client objectAPI, cfg config.ObjectStoreConfig, log *slog.Logger) *Archive {
	return &Archive{
		client:   client,
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		prefix:   cfg.KeyPrefix,
		endpoint: cfg.Endpoint,
		log:      log.With(slog.String("component", "archive")),
		clock:    time.Now,
	}
}

// Put uploads payload under a sanitized, timestamp-prefixed key with the
// given content type and a public-read policy.
func (a *Archive) Put(ctx context.Context, payload []byte, filename, mimeType string) (StoredObject, error) {
	key := fmt.Sprintf("%d_%s", a.clock().UnixMilli(), SanitizeFilename(filename))
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}

	a.log.Info("uploading capture to object storage",
		slog.String("key", key),
		slog.Int("size", len(payload)),
		slog.String("content_type", mimeType))

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(mimeType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return StoredObject{}, fmt.Errorf("upload capture object: %w", err)
	}

	return StoredObject{Key: key, URL: a.objectURL(key)}, nil
}

// Delete removes an archived object. Used as compensation when lead
// persistence fails after an upload succeeded.
func (a *Archive) Delete(ctx context.Context, key string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete capture object: %w", err)
	}
	return nil
}

func (a *Archive) objectURL(key string) string {
	if a.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(a.endpoint, "/"), a.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", a.bucket, a.region, key)
}

var unsafeKeyRunes = regexp.MustCompile(`[^a-zA-Z0-9.-]+`)

// SanitizeFilename normalizes a filename into a safe object key segment:
// runs of characters outside [a-zA-Z0-9.-] collapse into a single
// underscore and the result is lower-cased.
func SanitizeFilename(filename string) string {
	return strings.ToLower(unsafeKeyRunes.ReplaceAllString(filename, "_"))
}
