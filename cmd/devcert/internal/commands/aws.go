package commands

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/wolfeidau/devcert/internal/pki"
	"github.com/wolfeidau/devcert/internal/ssmcerts"
)

// Client constructors, replaced in tests.
var (
	newKMSClient = func(ctx context.Context, flags AWSFlags) (pki.KMSAPI, error) {
		awsConfig, err := loadAWSConfig(ctx, flags)
		if err != nil {
			return nil, err
		}
		return pki.NewKMSClient(awsConfig), nil
	}

	newSSMClient = func(ctx context.Context, flags AWSFlags) (ssmcerts.SSMAPI, error) {
		awsConfig, err := loadAWSConfig(ctx, flags)
		if err != nil {
			return nil, err
		}
		return ssmcerts.NewClient(awsConfig), nil
	}
)

// loadAWSConfig loads AWS configuration with optional region and endpoint overrides
func loadAWSConfig(ctx context.Context, flags AWSFlags) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if flags.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(flags.AWSRegion))
	}

	if flags.AWSEndpoint != "" {
		// Use BaseEndpoint for LocalStack support
		opts = append(opts, awsconfig.WithBaseEndpoint(flags.AWSEndpoint))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return awsConfig, nil
}
