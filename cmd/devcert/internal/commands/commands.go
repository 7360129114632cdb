package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/devcert/internal/config"
	"github.com/wolfeidau/devcert/internal/container"
	"github.com/wolfeidau/devcert/internal/logger"
	"github.com/wolfeidau/devcert/internal/ssmcerts"
)

type Globals struct {
	Debug   bool
	Version string
	Config  string

	// Stdout receives command output, os.Stdout when nil.
	Stdout io.Writer
}

func (g *Globals) stdout() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

// setup configures the global logger, attaches it to ctx and loads the policy file.
func (g *Globals) setup(ctx context.Context) (context.Context, config.Config, error) {
	log.Logger = logger.Setup(g.Debug)
	ctx = log.Logger.WithContext(ctx)

	if g.Config == "" {
		return ctx, config.DefaultConfig(), nil
	}

	cfg, err := config.Load(g.Config)
	if err != nil {
		return ctx, config.Config{}, fmt.Errorf("failed to load config file: %w", err)
	}

	log.Debug().Str("path", g.Config).Msg("loaded config file")

	return ctx, cfg, nil
}

// AWSFlags select the AWS account used for KMS signing and SSM sources.
type AWSFlags struct {
	AWSRegion   string `help:"AWS region" env:"AWS_REGION"`
	AWSEndpoint string `help:"AWS endpoint (for LocalStack)" env:"AWS_ENDPOINT" default:""`
}

// readSource resolves a file path, inline base64 text or ssm:// parameter to raw content.
func readSource(ctx context.Context, flags AWSFlags, source string) ([]byte, error) {
	if !ssmcerts.IsParameter(source) {
		return container.ReadSource(source)
	}

	client, err := newSSMClient(ctx, flags)
	if err != nil {
		return nil, err
	}

	return ssmcerts.Load(ctx, client, source)
}

// override returns flag when set, otherwise the configured value.
func override[T comparable](flag, configured T) T {
	var zero T
	if flag != zero {
		return flag
	}
	return configured
}
