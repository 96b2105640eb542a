package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

const publicStorageHost = "https://storage.googleapis.com"

// NewStorageClient creates a Cloud Storage client using the given service-account file.
func NewStorageClient(ctx context.Context, credentialsFile string) (*storage.Client, error) {
	client, err := storage.NewClient(ctx, ClientOptions(credentialsFile)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return client, nil
}

// ImageStore uploads local image files to a bucket and publishes them.
type ImageStore struct {
	bucket     *storage.BucketHandle
	bucketName string
}

func NewImageStore(client *storage.Client, bucketName string) *ImageStore {
	return &ImageStore{
		bucket:     client.Bucket(bucketName),
		bucketName: bucketName,
	}
}

// Upload copies the local file to objectName, overwriting any existing object.
func (s *ImageStore) Upload(ctx context.Context, localPath, objectName string) error {
	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("could not open local file %s: %w", localPath, err)
	}
	defer localFile.Close()

	writer := s.bucket.Object(objectName).NewWriter(ctx)
	writer.ContentType = "image/png"

	if _, err := io.Copy(writer, localFile); err != nil {
		_ = writer.Close()
		return fmt.Errorf("io.Copy to GCS failed: %w", err)
	}

	if err := writer.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			slog.Error("GCS rejected upload", "gcsBucket", s.bucketName, "gcsObject", objectName, "code", gerr.Code, "message", gerr.Message)
		}
		return fmt.Errorf("failed to finalize GCS upload: %w", err)
	}
	return nil
}

// MakePublic grants allUsers read access to the object.
func (s *ImageStore) MakePublic(ctx context.Context, objectName string) error {
	if err := s.bucket.Object(objectName).ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return fmt.Errorf("failed to make gs://%s/%s public: %w", s.bucketName, objectName, err)
	}
	return nil
}

func (s *ImageStore) PublicURL(objectName string) string {
	return PublicURL(s.bucketName, objectName)
}

// PublicURL returns the unauthenticated download URL of an object.
func PublicURL(bucket, objectName string) string {
	return fmt.Sprintf("%s/%s/%s", publicStorageHost, bucket, escapeObjectName(objectName))
}

// escapeObjectName percent-encodes everything except unreserved characters and '/'.
func escapeObjectName(name string) string {
	const upperhex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isUnreserved(c) || c == '/' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
