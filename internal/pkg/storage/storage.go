package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Scheme prefixes object references that live in a storage bucket.
const Scheme = "storage://"

var (
	// ErrMissingSigner indicates signed URL support is not configured.
	ErrMissingSigner = errors.New("storage: signed url signer not configured")

	// ErrInvalidURI indicates a reference that is not storage://<bucket>/<key>.
	ErrInvalidURI = errors.New("storage: invalid object uri")
)

// Storage defines the object operations used for templates and previews.
type Storage interface {
	io.Closer

	// PutObject stores data and returns object metadata.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error)
	// GetObject retrieves data and metadata for the object.
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error)
	// DeleteObject removes the object.
	DeleteObject(ctx context.Context, bucket, key string) error
	// PresignGet returns a signed URL for downloading.
	PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}

// PutOptions configures upload behavior.
type PutOptions struct {
	// Size is the expected content length.
	Size int64
	// ContentType is the MIME type for the object.
	ContentType string
	// Metadata includes custom key/value metadata.
	Metadata map[string]string
}

// ObjectInfo describes object metadata.
type ObjectInfo struct {
	// Bucket is the bucket name.
	Bucket string
	// Key is the object key.
	Key string
	// Size is the object size in bytes.
	Size int64
	// ETag is the object ETag when provided.
	ETag string
	// ContentType is the object MIME type.
	ContentType string
	// Metadata is user-defined metadata.
	Metadata map[string]string
	// UpdatedAt is the last modified time.
	UpdatedAt time.Time
}

// IsURI reports whether ref uses the storage:// scheme.
func IsURI(ref string) bool {
	return strings.HasPrefix(ref, Scheme)
}

// ParseURI splits storage://<bucket>/<key> into its parts.
func ParseURI(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(ref, Scheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURI, ref)
	}

	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || strings.Trim(key, "/") == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURI, ref)
	}

	return bucket, key, nil
}

// ReadAll downloads the object referenced by a storage:// URI.
func ReadAll(ctx context.Context, s Storage, ref string) ([]byte, error) {
	bucket, key, err := ParseURI(ref)
	if err != nil {
		return nil, err
	}

	rc, _, err := s.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	return io.ReadAll(rc)
}
