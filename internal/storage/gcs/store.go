// Package gcs provides a storage Provider backed by Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// Store reads and writes gs://bucket/object locations.
type Store struct {
	client *storage.Client
}

// New creates a GCS-backed store.
func New(client *storage.Client) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	return &Store{client: client}, nil
}

// OpenReader streams the object at location.
func (s *Store) OpenReader(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, object, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", location, err)
	}
	return r, nil
}

// OpenWriter returns a writer that uploads to location. The object is
// committed when the writer is closed.
func (s *Store) OpenWriter(ctx context.Context, location string) (io.WriteCloser, error) {
	bucket, object, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/x-ndjson"
	return w, nil
}

// ParseLocation splits gs://bucket/object into its parts.
func ParseLocation(location string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(location, "gs://")
	if !ok {
		return "", "", fmt.Errorf("location %q is not a gs:// URI", location)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("location %q has no bucket", location)
	}
	if strings.TrimSpace(object) == "" {
		return "", "", fmt.Errorf("location %q has no object", location)
	}
	return bucket, object, nil
}
