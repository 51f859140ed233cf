package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/invisifeed/invisifeed/internal/pkg/env"
)

// Config holds object-storage configuration for invoice PDFs.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // optional, for S3-compatible services
	Enabled         bool
}

// LoadConfig loads object-storage configuration from environment variables.
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "ap-south-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("S3_STORAGE_ENABLED", "false") == "true",
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when S3 storage is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when S3 storage is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when S3 storage is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if object storage is configured.
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// InvoiceObjectKey generates the object key for an invoice PDF.
// Format: invoices/YYYY/MM/INV-....pdf
func (c *Config) InvoiceObjectKey(invoiceNumber string, issuedAt time.Time) string {
	return fmt.Sprintf("invoices/%04d/%02d/%s.pdf", issuedAt.Year(), int(issuedAt.Month()), invoiceNumber)
}
