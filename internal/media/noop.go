// internal/media/noop.go
// Local fallback media store used when no S3 credentials are configured
// (SPEC_FULL.md §6.3): content is never persisted anywhere, keys are echoed
// back unresolved. Suitable for local development only.

package media

import (
	"context"
	"io"
	"mime/multipart"

	"github.com/google/uuid"
)

type noopStore struct{}

// NewNoopStore returns a Store that assigns a random opaque key to every
// upload without persisting bytes anywhere, and resolves any key to itself.
func NewNoopStore() Store {
	return &noopStore{}
}

func (n *noopStore) Upload(ctx context.Context, file io.Reader, filename, contentType string) (string, error) {
	io.Copy(io.Discard, file)
	return "local:" + uuid.New().String(), nil
}

func (n *noopStore) UploadMultipart(ctx context.Context, file multipart.File, header *multipart.FileHeader) (string, error) {
	defer file.Close()
	io.Copy(io.Discard, file)
	return "local:" + uuid.New().String(), nil
}

func (n *noopStore) ResolveURL(key string) string {
	return key
}

func (n *noopStore) Delete(ctx context.Context, key string) error {
	return nil
}
