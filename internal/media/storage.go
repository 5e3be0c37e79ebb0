// internal/media/storage.go
// S3-backed media storage (SPEC_FULL.md C11), adapted from the teacher's
// internal/messaging/storage.go: uploads go to S3 under a random key
// (date prefix plus UUID), and the store only ever persists that key,
// never a resolved URL.

package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

// maxUploadSize caps a single attachment, matching the teacher's default.
const maxUploadSize = 25 << 20 // 25 MiB

var allowedContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"video/mp4":       true,
	"video/quicktime": true,
	"video/webm":      true,
	"audio/mpeg":      true,
	"audio/wav":       true,
	"audio/ogg":       true,
	"application/pdf": true,
}

// Store is what chathub/conversation need from media storage: upload
// new content and resolve a stored key back into a fetchable URL.
type Store interface {
	Upload(ctx context.Context, file io.Reader, filename, contentType string) (key string, err error)
	UploadMultipart(ctx context.Context, file multipart.File, header *multipart.FileHeader) (key string, err error)
	ResolveURL(key string) string
	Delete(ctx context.Context, key string) error
}

type s3Store struct {
	client     *s3.S3
	bucket     string
	cdnBaseURL string
}

// NewS3Store wraps an S3 client as the media Store. cdnBaseURL is prefixed
// onto stored keys to build a fetchable URL; pass the bucket's public
// endpoint when no CDN sits in front of it.
func NewS3Store(sess *session.Session, bucket, cdnBaseURL string) Store {
	return &s3Store{client: s3.New(sess), bucket: bucket, cdnBaseURL: cdnBaseURL}
}

// NewAWSSession builds the shared AWS session media storage signs requests
// with, from explicit credentials (SPEC_FULL.md §6.3's static-credential
// configuration path).
func NewAWSSession(region, accessKeyID, secretAccessKey string) (*session.Session, error) {
	return session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewStaticCredentials(accessKeyID, secretAccessKey, ""),
	})
}

func (s *s3Store) Upload(ctx context.Context, file io.Reader, filename, contentType string) (string, error) {
	if !allowedContentTypes[contentType] {
		return "", fmt.Errorf("content type %s not allowed", contentType)
	}

	buf := new(bytes.Buffer)
	size, err := io.Copy(buf, file)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if size > maxUploadSize {
		return "", fmt.Errorf("file size %d exceeds maximum allowed size %d", size, maxUploadSize)
	}

	key := fmt.Sprintf("messages/%s/%s%s", time.Now().Format("2006/01/02"), uuid.New().String(), filepath.Ext(filename))

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
		Metadata: map[string]*string{
			"uploaded-at": aws.String(time.Now().Format(time.RFC3339)),
			"file-name":   aws.String(filename),
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}

	return key, nil
}

func (s *s3Store) UploadMultipart(ctx context.Context, file multipart.File, header *multipart.FileHeader) (string, error) {
	defer file.Close()

	buffer := make([]byte, 512)
	if _, err := file.Read(buffer); err != nil && err != io.EOF {
		return "", err
	}
	contentType := http.DetectContentType(buffer)

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	return s.Upload(ctx, file, header.Filename, contentType)
}

func (s *s3Store) ResolveURL(key string) string {
	if key == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s", s.cdnBaseURL, key)
}

func (s *s3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}
