package storage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cinemate/client/internal/config"
)

// Uploader is the subset of the S3 upload manager used to store photos.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3PhotoStore stores profile photos in an S3-compatible bucket.
type S3PhotoStore struct {
	uploader Uploader
	bucket   string
	baseURL  string
	now      func() time.Time
}

// NewS3PhotoStore configures an uploader targeting the provided object store.
func NewS3PhotoStore(ctx context.Context, cfg config.ObjectStoreConfig) (*S3PhotoStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
		u.LeavePartsOnError = false
	})

	return NewPhotoStore(uploader, cfg.Bucket, cfg.PublicBaseURL), nil
}

// NewPhotoStore wraps an existing uploader.
func NewPhotoStore(uploader Uploader, bucket, publicBaseURL string) *S3PhotoStore {
	return &S3PhotoStore{
		uploader: uploader,
		bucket:   bucket,
		baseURL:  strings.TrimSuffix(publicBaseURL, "/"),
		now:      time.Now,
	}
}

// SaveProfilePhoto uploads a user's photo and returns its public URL. Each
// upload is stored under a new key.
func (s *S3PhotoStore) SaveProfilePhoto(ctx context.Context, userID, name string, r io.Reader) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("s3 storage: empty user id")
	}

	br := bufio.NewReader(r)
	head, _ := br.Peek(512)
	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("s3 storage: %s is not an image (%s)", name, contentType)
	}

	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		ext = extensionFor(contentType)
	}
	key := fmt.Sprintf("avatars/%s/%d%s", userID, s.now().UnixNano(), ext)

	return s.Save(ctx, key, contentType, br)
}

// Save uploads the provided content under key and returns a public location.
func (s *S3PhotoStore) Save(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", fmt.Errorf("s3 storage: empty key")
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   manager.ReadSeekCloser(r),
		ACL:    s3types.ObjectCannedACLPublicRead,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("s3 storage upload %s: %w", key, err)
	}

	if s.baseURL == "" {
		return key, nil
	}
	return fmt.Sprintf("%s/%s", s.baseURL, key), nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
