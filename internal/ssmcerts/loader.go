// Package ssmcerts reads base64 certificate and container text from AWS SSM
// Parameter Store.
package ssmcerts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/devcert/internal/pki"
)

// Scheme prefixes a source string that names an SSM parameter.
const Scheme = "ssm://"

// SSMAPI is the subset of the SSM client used to read parameters.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// NewClient creates an SSM client from an AWS configuration.
func NewClient(awsConfig aws.Config) *ssm.Client {
	return ssm.NewFromConfig(awsConfig)
}

// IsParameter reports whether source uses the ssm:// scheme.
func IsParameter(source string) bool {
	return strings.HasPrefix(source, Scheme)
}

// ParameterName strips the ssm:// scheme from source.
func ParameterName(source string) string {
	return strings.TrimPrefix(source, Scheme)
}

// Load fetches a parameter, decrypting SecureString values, and returns its text.
// A missing parameter is reported as pki.ErrFileNotFound.
func Load(ctx context.Context, client SSMAPI, name string) ([]byte, error) {
	name = ParameterName(name)
	if client == nil || name == "" {
		return nil, fmt.Errorf("%w: SSM client and parameter name are required", pki.ErrArgument)
	}

	output, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: SSM parameter %s", pki.ErrFileNotFound, name)
		}
		return nil, fmt.Errorf("failed to get SSM parameter %s: %w", name, err)
	}
	if output.Parameter == nil || output.Parameter.Value == nil {
		return nil, fmt.Errorf("%w: parameter %s has no value", pki.ErrParse, name)
	}

	log.Debug().Str("parameter", name).Msg("loaded SSM parameter")

	return []byte(*output.Parameter.Value), nil
}
