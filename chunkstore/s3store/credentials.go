package s3store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bitrise-io/go-utils/v2/log"
)

// LoadAWSConfig uses static credentials when both keys are given, and the default
// credential chain (env, shared config, instance role) otherwise.
func LoadAWSConfig(ctx context.Context, region, accessKeyID, secretKey string, logger log.Logger) (*aws.Config, error) {
	if region == "" {
		return nil, fmt.Errorf("region must not be empty")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if accessKeyID != "" && secretKey != "" {
		logger.Debugf("Using static AWS credentials")
		opts = append(opts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretKey, "")))
	} else {
		logger.Debugf("AWS credentials not defined, using the default credential chain")
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &cfg, nil
}

// NewFromAWSConfig builds a Store on an S3 client created from cfg.
func NewFromAWSConfig(cfg aws.Config, storeConfig Config, logger log.Logger) (*Store, error) {
	return New(s3.NewFromConfig(cfg), storeConfig, logger)
}
