// Package report publishes analysis reports and delivers compliance alerts.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ahrav/go-covenant/internal/ports"
)

// Object store defaults.
const (
	DefaultRegion     = "us-east-1"
	DefaultLinkExpiry = 72 * time.Hour

	// maxLinkExpiry is the longest presign lifetime S3 accepts.
	maxLinkExpiry = 7 * 24 * time.Hour
)

// ObjectStoreConfig describes an S3-compatible bucket.
type ObjectStoreConfig struct {
	Endpoint   string
	Region     string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
	LinkExpiry time.Duration
}

var _ ports.ReportStore = (*ObjectStore)(nil)

// ObjectStore uploads reports to a bucket under <run_id>/<name> and hands
// back presigned download links.
type ObjectStore struct {
	client *minio.Client
	bucket string
	region string
	expiry time.Duration

	initOnce sync.Once
	initErr  error
}

// NewObjectStore validates cfg and builds the client. No request is made
// until the first Publish.
func NewObjectStore(cfg ObjectStoreConfig) (*ObjectStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("object store endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, errors.New("object store access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("object store bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = DefaultRegion
	}
	expiry := cfg.LinkExpiry
	if expiry <= 0 {
		expiry = DefaultLinkExpiry
	}
	if expiry > maxLinkExpiry {
		expiry = maxLinkExpiry
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store client: %w", err)
	}

	return &ObjectStore{client: client, bucket: bucket, region: region, expiry: expiry}, nil
}

func (s *ObjectStore) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Publish uploads content and returns a presigned GET link to it.
func (s *ObjectStore) Publish(ctx context.Context, runID, name string, content []byte, contentType string) (string, error) {
	runID = strings.TrimSpace(runID)
	name = strings.TrimSpace(name)
	if runID == "" {
		return "", ports.NewStoreError("s3", "publish", errors.New("run_id is required"))
	}
	if name == "" {
		return "", ports.NewStoreError("s3", "publish", errors.New("name is required"))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", ports.NewStoreError("s3", "ensure_bucket", err)
	}

	key := objectKey(runID, name)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", ports.NewStoreError("s3", "put", err)
	}

	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", name))
	link, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, params)
	if err != nil {
		return "", ports.NewStoreError("s3", "presign", err)
	}
	return link.String(), nil
}

func objectKey(runID, name string) string {
	return strings.Trim(runID, "/") + "/" + strings.TrimLeft(name, "/")
}
