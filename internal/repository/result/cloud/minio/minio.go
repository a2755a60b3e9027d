package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"medtech-planner/internal/config"
	"medtech-planner/internal/domain"
	"medtech-planner/internal/repository/result"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/zlog"
)

type FileRepository struct {
	client *minio.Client
	bucket string
	logger *zlog.Zerolog
}

func NewMinIORepository(ctx context.Context, cfg *config.Config, logger *zlog.Zerolog) (*FileRepository, error) {
	mc := cfg.Storage.MinIO

	client, err := minio.New(mc.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(mc.AccessKey, mc.SecretKey, ""),
		Secure: mc.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	repo := &FileRepository{
		client: client,
		bucket: mc.Bucket,
		logger: logger,
	}

	if err := repo.ensureBucket(ctx); err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *FileRepository) ensureBucket(ctx context.Context) error {
	exists, err := r.client.BucketExists(ctx, r.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", r.bucket, err)
	}
	if exists {
		return nil
	}

	if err := r.client.MakeBucket(ctx, r.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", r.bucket, err)
	}

	r.logger.Info().Str("bucket", r.bucket).Msg("Bucket created")
	return nil
}

func (r *FileRepository) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", result.ErrEmptyBlob
	}

	key := uuid.New().String()

	_, err := r.client.PutObject(ctx, r.bucket, objectName(key), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		r.logger.Error().Err(err).Str("key", key).Msg("Failed to upload processed image")
		return "", fmt.Errorf("%w: failed to put object: %v", result.ErrStorageError, err)
	}

	return key, nil
}

func (r *FileRepository) Get(ctx context.Context, key string) (*domain.Blob, error) {
	obj, err := r.client.GetObject(ctx, r.bucket, objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, r.translate(err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, r.translate(err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}

	return &domain.Blob{
		Key:         key,
		ContentType: info.ContentType,
		Size:        info.Size,
		Data:        data,
		CreatedAt:   info.LastModified,
	}, nil
}

func (r *FileRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.RemoveObject(ctx, r.bucket, objectName(key), minio.RemoveObjectOptions{}); err != nil {
		return r.translate(err)
	}
	return nil
}

func (r *FileRepository) translate(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return result.ErrBlobNotFound
	}
	return fmt.Errorf("%w: %v", result.ErrStorageError, err)
}

func objectName(key string) string {
	return domain.ObjectPrefixResult + key
}
