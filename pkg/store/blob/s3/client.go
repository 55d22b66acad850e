package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig holds the connection settings for an S3 client.
type ClientConfig struct {
	// Endpoint overrides the AWS endpoint (MinIO, Localstack, ...)
	Endpoint string

	// Region is the bucket region
	Region string

	// AccessKeyID and SecretAccessKey select static credentials. When either
	// is empty the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle addresses buckets as endpoint/bucket instead of
	// bucket.endpoint. Required by most S3-compatible services.
	ForcePathStyle bool

	// MaxRetries is the maximum number of attempts per request (default: 10)
	MaxRetries int
}

// NewClient builds an S3 client from cfg.
//
// Parameters:
//   - ctx: Context used while loading the shared AWS configuration
//   - cfg: Connection settings
//
// Returns:
//   - *s3.Client: Ready to use client
//   - error: Error if the AWS configuration cannot be loaded
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("S3 region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}), nil
}
