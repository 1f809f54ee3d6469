package pipeline

import (
	"context"

	"finrag-go/pkg/storage"
)

// minioSource adapts the MinIO helpers to the BucketSource interface.
type minioSource struct {
	bucket string
}

// NewMinioSource creates a BucketSource over the named MinIO bucket.
// storage.InitMinIO must have run first.
func NewMinioSource(bucket string) BucketSource {
	return &minioSource{bucket: bucket}
}

func (s *minioSource) List(ctx context.Context, extension string) ([]string, error) {
	return storage.ListDocuments(ctx, s.bucket, extension)
}

func (s *minioSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	return storage.FetchObject(ctx, s.bucket, name)
}
