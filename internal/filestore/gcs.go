package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
)

const uploadTimeout = 2 * time.Minute

// GCSArchive stores raw messages in a Cloud Storage bucket.
// It assumes Application Default Credentials are configured.
type GCSArchive struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSArchive creates a storage client for bucket. Objects are written under prefix.
func NewGCSArchive(ctx context.Context, bucket, prefix string) (*GCSArchive, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSArchive{client: client, bucket: bucket, prefix: prefix}, nil
}

// Archive uploads raw and returns its gs:// URI
func (a *GCSArchive) Archive(ctx context.Context, raw []byte, receivedAt time.Time) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	name := path.Join(a.prefix, objectName(receivedAt))
	w := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "message/rfc822"

	if _, err := io.Copy(w, bytes.NewReader(raw)); err != nil {
		w.Close()
		return "", fmt.Errorf("copy message to GCS writer: %w", err)
	}
	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, name), nil
}

// Close releases the storage client
func (a *GCSArchive) Close() error {
	return a.client.Close()
}
