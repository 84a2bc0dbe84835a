// Package storage uploads product images to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	appconfig "marketplace-service/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// S3ObjectStorage uploads objects to any S3-compatible backend (AWS S3, MinIO, ...)
type S3ObjectStorage struct {
	client        *s3.Client
	endpoint      string
	publicBaseURL string
	accessKey     string
	secretKey     string
	logger        *zap.Logger
}

// NewS3ObjectStorage creates a new S3ObjectStorage from configuration
func NewS3ObjectStorage(ctx context.Context, cfg appconfig.StorageConfig, logger *zap.Logger) (*S3ObjectStorage, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage access key and secret key are required")
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = "http://localhost:9000"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	publicBaseURL := strings.TrimRight(cfg.PublicBaseURL, "/")
	if publicBaseURL == "" {
		publicBaseURL = endpoint
	}

	return &S3ObjectStorage{
		client:        client,
		endpoint:      endpoint,
		publicBaseURL: publicBaseURL,
		accessKey:     cfg.AccessKey,
		secretKey:     cfg.SecretKey,
		logger:        logger,
	}, nil
}

// Upload stores data under bucket/key and returns its public URL.
// A non-empty credential is the caller's provider session token and scopes the request to that caller.
func (s *S3ObjectStorage) Upload(ctx context.Context, credential, bucket, key string, data []byte, contentType string) (string, error) {
	if bucket == "" || key == "" {
		return "", errors.New("bucket and key are required")
	}

	var optFns []func(*s3.Options)
	if credential != "" {
		optFns = append(optFns, func(o *s3.Options) {
			o.Credentials = credentials.NewStaticCredentialsProvider(s.accessKey, s.secretKey, credential)
		})
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	}, optFns...)
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s/%s: %w", bucket, key, err)
	}

	s.logger.Debug("Object uploaded", zap.String("bucket", bucket), zap.String("key", key), zap.Int("size", len(data)))
	return PublicURL(s.publicBaseURL, bucket, key), nil
}

// Delete removes bucket/key. Missing objects are not an error.
func (s *S3ObjectStorage) Delete(ctx context.Context, credential, bucket, key string) error {
	var optFns []func(*s3.Options)
	if credential != "" {
		optFns = append(optFns, func(o *s3.Options) {
			o.Credentials = credentials.NewStaticCredentialsProvider(s.accessKey, s.secretKey, credential)
		})
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, optFns...)
	if err != nil {
		return fmt.Errorf("failed to delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}
