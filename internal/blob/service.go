// Package blob stores chat attachments in S3-compatible object storage.
package blob

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"teamhub/api/internal/util"
)

// Config holds object storage settings. An empty Endpoint disables
// uploads.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// Service uploads attachments and hands back stable public URLs.
type Service struct {
	client *minio.Client
	config Config
}

// NewService connects to the object store and ensures the bucket exists.
func NewService(ctx context.Context, config Config) (*Service, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		log.Printf("blob: created bucket %s", config.Bucket)
	}

	return &Service{client: client, config: config}, nil
}

// Upload stores a file under a random key and returns its public URL.
func (s *Service) Upload(ctx context.Context, projectID, fileName, contentType string, size int64, r io.Reader) (string, error) {
	key := fmt.Sprintf("%s/%s%s", projectID, util.NewID("att"), sanitizeExt(fileName))

	_, err := s.client.PutObject(ctx, s.config.Bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	return s.objectURL(key), nil
}

// PresignedGet returns a short-lived direct download link.
func (s *Service) PresignedGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.config.Bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return u.String(), nil
}

func (s *Service) objectURL(key string) string {
	base := strings.TrimSuffix(s.config.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if s.config.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, s.config.Endpoint, s.config.Bucket)
	}
	return base + "/" + key
}

func sanitizeExt(fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if len(ext) > 10 {
		return ""
	}
	for _, r := range ext {
		if r != '.' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
