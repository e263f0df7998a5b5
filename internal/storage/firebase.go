package storage

import (
	"context"
	"errors"
	"fmt"

	gcs "cloud.google.com/go/storage"
	"github.com/anonto42/threadboard/backend/internal/media"
)

// FirebaseStorage stores uploads in a Firebase (Cloud Storage) bucket
type FirebaseStorage struct {
	bucket    *gcs.BucketHandle
	publicURL string
}

// NewFirebaseStorage creates a FirebaseStorage for bucket. publicURL
// defaults to https://storage.googleapis.com/<bucketName>.
func NewFirebaseStorage(bucket *gcs.BucketHandle, bucketName, publicURL string) *FirebaseStorage {
	if publicURL == "" {
		publicURL = "https://storage.googleapis.com/" + bucketName
	}
	return &FirebaseStorage{bucket: bucket, publicURL: publicURL}
}

// Save writes the object
func (s *FirebaseStorage) Save(ctx context.Context, name string, upload *media.Upload) error {
	w := s.bucket.Object(name).NewWriter(ctx)
	w.ContentType = upload.ContentType
	if _, err := w.Write(upload.Content); err != nil {
		w.Close()
		return fmt.Errorf("failed to upload file to firebase: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to upload file to firebase: %w", err)
	}
	return nil
}

// Delete removes the object; a missing object is not an error
func (s *FirebaseStorage) Delete(ctx context.Context, name string) error {
	err := s.bucket.Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete file from firebase: %w", err)
	}
	return nil
}

// URL returns the public object URL
func (s *FirebaseStorage) URL(name string) string {
	return joinURL(s.publicURL, name)
}
