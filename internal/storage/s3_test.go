package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/cinemate/client/internal/config"
)

type uploaderStub struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (u *uploaderStub) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if u.err != nil {
		return nil, u.err
	}
	u.input = input
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	u.body = data
	return &manager.UploadOutput{}, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestSaveProfilePhoto(t *testing.T) {
	uploader := &uploaderStub{}
	store := NewPhotoStore(uploader, "photos", "https://cdn.example.com/")
	store.now = func() time.Time { return time.Unix(0, 42) }

	data := pngBytes(t)
	url, err := store.SaveProfilePhoto(context.Background(), "u1", "me", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if url != "https://cdn.example.com/avatars/u1/42.png" {
		t.Fatalf("unexpected url %q", url)
	}
	if aws.ToString(uploader.input.Bucket) != "photos" {
		t.Fatalf("unexpected bucket %q", aws.ToString(uploader.input.Bucket))
	}
	if aws.ToString(uploader.input.ContentType) != "image/png" {
		t.Fatalf("unexpected content type %q", aws.ToString(uploader.input.ContentType))
	}
	if !bytes.Equal(uploader.body, data) {
		t.Fatal("expected full photo uploaded after content sniffing")
	}
}

func TestSaveProfilePhotoRejectsNonImages(t *testing.T) {
	store := NewPhotoStore(&uploaderStub{}, "photos", "")
	if _, err := store.SaveProfilePhoto(context.Background(), "u1", "notes.txt", strings.NewReader("hello")); err == nil {
		t.Fatal("expected non-image rejected")
	}
	if _, err := store.SaveProfilePhoto(context.Background(), "", "a.png", bytes.NewReader(pngBytes(t))); err == nil {
		t.Fatal("expected empty user rejected")
	}
}

func TestSaveWithoutPublicURLReturnsKey(t *testing.T) {
	store := NewPhotoStore(&uploaderStub{}, "photos", "")
	loc, err := store.Save(context.Background(), "/avatars/u1/a.png", "image/png", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if loc != "avatars/u1/a.png" {
		t.Fatalf("unexpected location %q", loc)
	}
}

func TestSaveUploadError(t *testing.T) {
	store := NewPhotoStore(&uploaderStub{err: errors.New("denied")}, "photos", "")
	if _, err := store.Save(context.Background(), "k", "", strings.NewReader("x")); err == nil {
		t.Fatal("expected upload error")
	}
	if _, err := store.Save(context.Background(), "", "", strings.NewReader("x")); err == nil {
		t.Fatal("expected empty key error")
	}
}

func TestNewS3PhotoStoreRequiresBucket(t *testing.T) {
	if _, err := NewS3PhotoStore(context.Background(), config.ObjectStoreConfig{}); err == nil {
		t.Fatal("expected bucket error")
	}

	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	store, err := NewS3PhotoStore(context.Background(), config.ObjectStoreConfig{
		Bucket:   "photos",
		Region:   "us-east-1",
		Endpoint: "http://localhost:9000",
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if store.bucket != "photos" {
		t.Fatalf("unexpected bucket %q", store.bucket)
	}
}
