package services

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioService holds the backing bytes of file references. Objects are
// written once on register and read (seekably) during transfers.
type MinioService struct {
	Client     *minio.Client
	BucketName string
}

func NewMinioService(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	// Create bucket if it doesn't exist
	exists, err := client.BucketExists(context.Background(), bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(context.Background(), bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Printf("Created bucket: %s", bucket)
	}

	log.Println("Connected to MinIO successfully")
	return &MinioService{Client: client, BucketName: bucket}, nil
}

// CheckConnection is used by health checks.
func (m *MinioService) CheckConnection() error {
	if m == nil || m.Client == nil {
		return fmt.Errorf("minio service not initialized")
	}
	_, err := m.Client.BucketExists(context.Background(), m.BucketName)
	return err
}

func (m *MinioService) PutObject(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := m.Client.PutObject(ctx, m.BucketName, objectName, reader, size,
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

// GetObject returns a seekable reader over the object. Seeking matters:
// resumed transfers re-read from the last confirmed offset.
func (m *MinioService) GetObject(ctx context.Context, objectName string) (io.ReadSeekCloser, error) {
	obj, err := m.Client.GetObject(ctx, m.BucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (m *MinioService) DownloadFile(ctx context.Context, objectName, localFilePath string) error {
	return m.Client.FGetObject(ctx, m.BucketName, objectName, localFilePath, minio.GetObjectOptions{})
}

func (m *MinioService) RemoveObject(ctx context.Context, objectName string) error {
	return m.Client.RemoveObject(ctx, m.BucketName, objectName, minio.RemoveObjectOptions{})
}
