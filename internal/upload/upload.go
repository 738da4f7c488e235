// Package upload stores task proof images on local disk or in an
// S3-compatible bucket.
package upload

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/CandyToyBox/AllowanceApp/internal/apperr"
	"github.com/google/uuid"
)

// DefaultMaxBytes is the largest accepted image.
const DefaultMaxBytes int64 = 5 << 20

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Storage persists uploaded objects and maps them to public URLs.
type Storage interface {
	Save(ctx context.Context, name, contentType string, data []byte) (url string, err error)
	Delete(ctx context.Context, url string) error
	// Owns reports whether url points at an object this storage created.
	Owns(url string) bool
}

type Uploader struct {
	storage  Storage
	maxBytes int64
}

func NewUploader(storage Storage, maxBytes int64) *Uploader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Uploader{storage: storage, maxBytes: maxBytes}
}

func (u *Uploader) MaxBytes() int64 {
	return u.maxBytes
}

// Upload validates the image and stores it under a random name, returning its
// public URL.
func (u *Uploader) Upload(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, u.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", apperr.Validation("no file uploaded", map[string]string{"image": "is required"})
	}
	if int64(len(data)) > u.maxBytes {
		msg := fmt.Sprintf("must be at most %d bytes", u.maxBytes)
		return "", apperr.Validation("image too large", map[string]string{"image": msg})
	}

	contentType, ext, ok := Sniff(data)
	if !ok {
		return "", apperr.Validation("only image files are allowed",
			map[string]string{"image": "must be a JPEG, PNG, GIF or WebP image"})
	}

	url, err := u.storage.Save(ctx, uuid.NewString()+ext, contentType, data)
	if err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return url, nil
}

// Remove deletes the object behind url if this uploader's storage created it.
// Foreign URLs are left alone.
func (u *Uploader) Remove(ctx context.Context, url string) error {
	if url == "" || !u.storage.Owns(url) {
		return nil
	}
	return u.storage.Delete(ctx, url)
}

// Sniff detects the image type from content. ok is false for anything but
// JPEG, PNG, GIF or WebP.
func Sniff(data []byte) (contentType, ext string, ok bool) {
	contentType = http.DetectContentType(data)
	ext, ok = allowedTypes[contentType]
	return contentType, ext, ok
}
