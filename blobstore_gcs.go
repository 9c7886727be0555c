package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// gcsBlobStore keeps the same write-once contract as the disk store but
// persists into a GCS bucket, one object per blob under a namespace prefix.
type gcsBlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

func newGCSBlobStore(client *storage.Client, bucket, prefix string) *gcsBlobStore {
	return &gcsBlobStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *gcsBlobStore) objectName(name string) string {
	return s.prefix + "/" + name
}

func (s *gcsBlobStore) canonicalPath(name string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.objectName(name))
}

func (s *gcsBlobStore) Put(ctx context.Context, name string, data []byte) (string, bool, error) {
	obj := s.client.Bucket(s.bucket).Object(s.objectName(name)).
		If(storage.Conditions{DoesNotExist: true})

	w := obj.NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", false, fmt.Errorf("write gcs blob %s: %w", s.canonicalPath(name), err)
	}
	if err := w.Close(); err != nil {
		// The DoesNotExist precondition failing means another ingest already
		// claimed this key; that is the write-once no-op case.
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			return s.canonicalPath(name), false, nil
		}
		return "", false, fmt.Errorf("close gcs blob %s: %w", s.canonicalPath(name), err)
	}

	return s.canonicalPath(name), true, nil
}

func (s *gcsBlobStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(s.objectName(name)).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat gcs blob %s: %w", s.canonicalPath(name), err)
	}
	return true, nil
}
