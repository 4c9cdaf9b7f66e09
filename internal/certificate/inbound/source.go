package inbound

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/shandysiswandi/certsend/internal/pkg/storage"
)

// Source reads local files or storage:// objects.
type Source struct {
	storage storage.Storage
}

func NewSource(s storage.Storage) *Source {
	return &Source{storage: s}
}

// ReadFile returns the content behind ref.
func (s *Source) ReadFile(ctx context.Context, ref string) ([]byte, error) {
	if !storage.IsURI(ref) {
		return os.ReadFile(ref)
	}

	if s.storage == nil {
		return nil, fmt.Errorf("read %s: object storage is not configured", ref)
	}

	return storage.ReadAll(ctx, s.storage, ref)
}

// WriteFile stores data at ref and returns a link to it when the backend can
// sign one.
func (s *Source) WriteFile(ctx context.Context, ref, contentType string, data []byte) (string, error) {
	if !storage.IsURI(ref) {
		return ref, os.WriteFile(ref, data, 0o644)
	}

	if s.storage == nil {
		return "", fmt.Errorf("write %s: object storage is not configured", ref)
	}

	bucket, key, err := storage.ParseURI(ref)
	if err != nil {
		return "", err
	}

	if _, err := s.storage.PutObject(ctx, bucket, key, bytes.NewReader(data), storage.PutOptions{
		Size:        int64(len(data)),
		ContentType: contentType,
	}); err != nil {
		return "", err
	}

	link, err := s.storage.PresignGet(ctx, bucket, key, previewLinkExpiry)
	if err != nil {
		if !errors.Is(err, storage.ErrMissingSigner) {
			slog.WarnContext(ctx, "failed to sign object link", "ref", ref, "error", err)
		}
		return ref, nil
	}

	return link, nil
}
