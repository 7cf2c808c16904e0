// ABOUTME: S3-compatible image store used for chat uploads and request photos
// ABOUTME: Path-style addressing with static credentials and a custom endpoint

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrEmptyKey is returned for operations on an empty object key.
var ErrEmptyKey = errors.New("object key is empty")

// Config configures an ImageStore.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PublicURL string

	HTTPClient *http.Client
}

// Object is one stored image.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	URL          string    `json:"url"`
}

// ImageStore reads and writes images in a single bucket.
type ImageStore struct {
	client    *s3.Client
	bucket    string
	publicURL string
	logger    *slog.Logger
}

// NewImageStore creates an ImageStore for cfg.
func NewImageStore(cfg Config) (*ImageStore, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("storage endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	opts := s3.Options{
		Region:                     cfg.Region,
		BaseEndpoint:               aws.String(cfg.Endpoint),
		UsePathStyle:               true,
		Credentials:                credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	}
	if cfg.HTTPClient != nil {
		opts.HTTPClient = cfg.HTTPClient
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = cfg.Endpoint
	}

	return &ImageStore{
		client:    s3.New(opts),
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    slog.Default().With("component", "storage"),
	}, nil
}

// PublicURL returns the URL under which key is served.
func (s *ImageStore) PublicURL(key string) string {
	return s.publicURL + "/" + s.bucket + "/" + strings.TrimLeft(key, "/")
}

// Upload stores data under key and returns its public URL.
func (s *ImageStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}

	s.logger.Info("uploaded image", "key", key, "bytes", len(data))
	return s.PublicURL(key), nil
}

// List returns every object whose key starts with prefix, newest first.
func (s *ImageStore) List(ctx context.Context, prefix string) ([]Object, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var objects []Object
	pages := s3.NewListObjectsV2Paginator(s.client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing %q: %w", prefix, err)
		}
		for _, o := range page.Contents {
			key := aws.ToString(o.Key)
			objects = append(objects, Object{
				Key:          key,
				Size:         aws.ToInt64(o.Size),
				LastModified: aws.ToTime(o.LastModified),
				URL:          s.PublicURL(key),
			})
		}
	}

	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	return objects, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *ImageStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	s.logger.Info("deleted image", "key", key)
	return nil
}

// RequestPrefix is the key prefix for photos attached to a request.
func RequestPrefix(id int64) string {
	return fmt.Sprintf("request_%d/", id)
}

// ImagesForRequest lists the photos attached to request id.
func (s *ImageStore) ImagesForRequest(ctx context.Context, id int64) ([]Object, error) {
	return s.List(ctx, RequestPrefix(id))
}

// ChatUploadKey names a chat upload made at t.
func ChatUploadKey(t time.Time, filename string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, filename)
	if name == "" {
		name = "image"
	}
	return fmt.Sprintf("chat_upload_%d_%s", t.UnixMilli(), name)
}
