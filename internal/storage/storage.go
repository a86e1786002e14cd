package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/config"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/logging"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/metrics"
)

// ObjectRef addresses one object in an S3-compatible store
type ObjectRef struct {
	Bucket string
	Key    string
}

// String renders the ref as an s3:// URL
func (r ObjectRef) String() string {
	return fmt.Sprintf("s3://%s/%s", r.Bucket, r.Key)
}

// IsObjectRef reports whether ref uses the s3 scheme
func IsObjectRef(ref string) bool {
	return strings.HasPrefix(strings.ToLower(ref), "s3://")
}

// ParseObjectRef parses "s3://bucket/key"
func ParseObjectRef(ref string) (ObjectRef, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return ObjectRef{}, fmt.Errorf("invalid object ref %q: %w", ref, err)
	}
	if !strings.EqualFold(u.Scheme, "s3") {
		return ObjectRef{}, fmt.Errorf("invalid object ref %q: scheme must be s3", ref)
	}

	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return ObjectRef{}, fmt.Errorf("invalid object ref %q: bucket and key are required", ref)
	}
	return ObjectRef{Bucket: u.Host, Key: key}, nil
}

// Storage provides object storage operations
type Storage struct {
	client     *minio.Client
	bucketName string
	logger     *logging.Logger
}

// New creates a new storage client
func New(cfg config.StorageConfig, logger *logging.Logger) (*Storage, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	// Ensure bucket exists
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Storage{
		client:     client,
		bucketName: cfg.BucketName,
		logger:     logger.WithComponent("storage"),
	}, nil
}

// Bucket returns the default bucket name
func (s *Storage) Bucket() string {
	return s.bucketName
}

// UploadFile uploads a local file into the default bucket
func (s *Storage) UploadFile(ctx context.Context, objectName, filePath string) (ObjectRef, error) {
	start := time.Now()
	contentType := getContentType(filePath)

	info, err := s.client.FPutObject(ctx, s.bucketName, objectName, filePath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	s.record("upload", s.bucketName, objectName, info.Size, start, err)
	if err != nil {
		return ObjectRef{}, fmt.Errorf("failed to upload file: %w", err)
	}

	return ObjectRef{Bucket: s.bucketName, Key: objectName}, nil
}

// DownloadFile downloads the object to a local file
func (s *Storage) DownloadFile(ctx context.Context, ref ObjectRef, filePath string) error {
	start := time.Now()
	if ref.Bucket == "" {
		ref.Bucket = s.bucketName
	}

	err := s.client.FGetObject(ctx, ref.Bucket, ref.Key, filePath, minio.GetObjectOptions{})

	var size int64
	if err == nil {
		if st, statErr := os.Stat(filePath); statErr == nil {
			size = st.Size()
		}
	}
	s.record("download", ref.Bucket, ref.Key, size, start, err)

	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	return nil
}

// GetURL returns a presigned URL for an object in the default bucket
func (s *Storage) GetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = time.Hour
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucketName, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate URL: %w", err)
	}

	return u.String(), nil
}

func (s *Storage) record(operation, bucket, key string, size int64, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordStorageOperation(operation, status, size)
	s.logger.LogStorageOperation(operation, bucket, key, size, time.Since(start), err)
}

// getContentType returns the content type based on file extension
func getContentType(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".srt":
		return "application/x-subrip"
	case ".mp3":
		return "audio/mpeg"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
