// Package storage provides access to the MinIO bucket that serves as an
// alternative document source for ingestion.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"finrag-go/internal/config"
	"finrag-go/pkg/log"
)

// MinioClient is the global MinIO client instance.
var MinioClient *minio.Client

// InitMinIO initialises the client and makes sure the configured bucket
// exists.
func InitMinIO(cfg config.MinIOConfig) {
	var err error

	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("failed to initialise MinIO client", err)
	}
	log.Info("MinIO client initialised successfully")

	ctx := context.Background()
	exists, err := MinioClient.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		log.Fatal("failed to check MinIO bucket", err)
	}
	if !exists {
		log.Infof("bucket '%s' does not exist, creating", cfg.BucketName)
		if err := MinioClient.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			log.Fatal("failed to create MinIO bucket", err)
		}
		log.Infof("bucket '%s' created", cfg.BucketName)
	}
}

// ListDocuments returns the object names in bucket that carry the given
// extension (case-insensitive).
func ListDocuments(ctx context.Context, bucket, extension string) ([]string, error) {
	var names []string
	for object := range MinioClient.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list bucket '%s': %w", bucket, object.Err)
		}
		if strings.HasSuffix(strings.ToLower(object.Key), strings.ToLower(extension)) {
			names = append(names, object.Key)
		}
	}
	return names, nil
}

// FetchObject downloads one object into memory.
func FetchObject(ctx context.Context, bucket, objectName string) ([]byte, error) {
	object, err := MinioClient.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch object '%s': %w", objectName, err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, object); err != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", objectName, err)
	}
	return buf.Bytes(), nil
}
