package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/devcert/cmd/devcert/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Generate commands.GenerateCmd `cmd:"" help:"Generate an issuer and a subject certificate"`
		View     commands.ViewCmd     `cmd:"" help:"Show a certificate or the certificate in a container"`
		Issue    commands.IssueCmd    `cmd:"" help:"Issue a certificate from an existing issuer"`
		List     commands.ListCmd     `cmd:"" help:"List generated bundles"`
		Debug    bool                 `help:"Enable debug mode."`
		Config   string               `help:"YAML policy file" type:"existingfile" env:"DEVCERT_CONFIG"`
		Version  kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("devcert"),
		kong.Description("Development certificate authority toolkit."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version, Config: cli.Config})
	cmd.FatalIfErrorf(err)
}
