package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore stores and retrieves invoice PDFs. Implemented by Client;
// tests and disabled deployments use a no-op fake.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	PresignGet(ctx context.Context, key string) (string, error)
}

// Client wraps the S3 client for invoice PDF storage.
type Client struct {
	s3Client *s3.Client
	presign  *s3.PresignClient
	config   *Config
}

// NewClient creates an object-storage client from the given configuration.
func NewClient(cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("S3 storage is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	client := &Client{
		s3Client: s3Client,
		presign:  s3.NewPresignClient(s3Client),
		config:   cfg,
	}

	if err := client.testConnection(); err != nil {
		return nil, fmt.Errorf("failed to connect to S3: %w", err)
	}

	log.Printf("[Storage] Initialized S3 client for bucket: %s", cfg.BucketName)
	return client, nil
}

func (c *Client) testConnection() error {
	_, err := c.s3Client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(c.config.BucketName),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", c.config.BucketName, err)
	}
	return nil
}

// PutObject uploads rendered invoice bytes under the given key.
func (c *Client) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", c.config.BucketName, key, err)
	}
	return nil
}

// PresignGet returns a time-limited download URL for an object.
func (c *Client) PresignGet(ctx context.Context, key string) (string, error) {
	out, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.config.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign s3://%s/%s: %w", c.config.BucketName, key, err)
	}
	return out.URL, nil
}

// NoopStore satisfies ObjectStore when object storage is disabled.
type NoopStore struct{}

func (NoopStore) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	log.Printf("[Storage] disabled, dropping object %s (%d bytes)", key, len(body))
	return nil
}

func (NoopStore) PresignGet(ctx context.Context, key string) (string, error) {
	return "", fmt.Errorf("object storage is disabled")
}
