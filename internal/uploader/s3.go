// Package uploader кладет аудио записей в S3-совместимое хранилище.
package uploader

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

const (
	headTimeout          = 30 * time.Second
	defaultUploadTimeout = 10 * time.Minute
)

type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string        // база публичных ссылок на загруженные объекты
	UploadTimeout   time.Duration // потолок на один PutObject, по умолчанию 10 минут
}

// Client предоставляет методы для работы с S3-совместимым хранилищем.
type Client struct {
	client        *s3.Client
	bucket        string
	baseURL       string
	uploadTimeout time.Duration
	logger        zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("missing required configuration: accessKeyID, secretAccessKey, and bucket are required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, fmt.Errorf("public base url is required")
	}

	creds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		cfg.AccessKeyID,
		cfg.SecretAccessKey,
		"",
	))

	client := s3.New(s3.Options{
		BaseEndpoint:     aws.String(cfg.Endpoint),
		Region:           cfg.Region,
		Credentials:      creds,
		RetryMode:        aws.RetryModeAdaptive,
		RetryMaxAttempts: 3,
	})

	uploadTimeout := cfg.UploadTimeout
	if uploadTimeout <= 0 {
		uploadTimeout = defaultUploadTimeout
	}

	c := &Client{
		client:        client,
		bucket:        cfg.Bucket,
		baseURL:       strings.TrimRight(cfg.PublicBaseURL, "/"),
		uploadTimeout: uploadTimeout,
		logger:        logger.With().Str("component", "s3_uploader").Logger(),
	}

	// Проверяем подключение к бакету
	ctx, cancel := context.WithTimeout(context.Background(), headTimeout)
	defer cancel()

	if _, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		return nil, fmt.Errorf("unable to access bucket %s: %w", cfg.Bucket, err)
	}

	return c, nil
}

// Upload загружает объект и возвращает его публичный URL.
func (c *Client) Upload(ctx context.Context, key string, data []byte) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object to S3: %w", err)
	}

	c.logger.Debug().Str("key", key).Int("size", len(data)).Msg("object uploaded")

	return c.baseURL + "/" + strings.TrimLeft(key, "/"), nil
}
