package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig describes how to reach the S3 service.
type ClientConfig struct {
	// Endpoint overrides the AWS endpoint (MinIO, Localstack, ...)
	Endpoint string `mapstructure:"endpoint"`

	Region string `mapstructure:"region"`

	// AccessKeyID and SecretAccessKey select static credentials. When
	// both are empty the default AWS credential chain is used.
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	// ForcePathStyle addresses buckets as endpoint/bucket/key. Always on
	// when Endpoint is set.
	ForcePathStyle bool `mapstructure:"force_path_style"`
}

// NewClient builds an S3 client from cfg.
//
// Parameters:
//   - ctx: Context used while loading the shared AWS configuration
//   - cfg: endpoint, region and credentials
//
// Returns:
//   - *s3.Client: configured client
//   - error: if the AWS configuration cannot be loaded
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	var opts []func(*awsConfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsConfig.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	}), nil
}
