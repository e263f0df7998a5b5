package storage

import (
	"context"
	"fmt"

	"github.com/anonto42/threadboard/backend/internal/media"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the part of *s3.Client used by S3Storage
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage stores uploads as public-read objects in a bucket
type S3Storage struct {
	client     S3API
	bucketName string
	publicURL  string
}

// NewS3Storage creates an S3Storage. publicURL defaults to the bucket's
// virtual-hosted endpoint.
func NewS3Storage(client S3API, bucketName, region, publicURL string) *S3Storage {
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucketName, region)
	}
	return &S3Storage{client: client, bucketName: bucketName, publicURL: publicURL}
}

// Save uploads the object
func (s *S3Storage) Save(ctx context.Context, name string, upload *media.Upload) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(name),
		Body:          upload.Reader(),
		ContentLength: aws.Int64(upload.Size()),
		ACL:           s3types.ObjectCannedACLPublicRead,
	}
	if upload.ContentType != "" {
		input.ContentType = aws.String(upload.ContentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload file to s3: %w", err)
	}
	return nil
}

// Delete removes the object
func (s *S3Storage) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from s3: %w", err)
	}
	return nil
}

// URL returns the public object URL
func (s *S3Storage) URL(name string) string {
	return joinURL(s.publicURL, name)
}
