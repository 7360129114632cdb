package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/devcert/internal/container"
	"github.com/wolfeidau/devcert/internal/viewer"
)

// ViewCmd prints a certificate or the certificate held in a container.
type ViewCmd struct {
	Source     string `arg:"" help:"Certificate or container: file path, base64 text or ssm://parameter"`
	Alias      string `help:"Read the source as a PKCS#12 container and select this alias"`
	Passphrase string `help:"Container passphrase" env:"DEVCERT_PASSPHRASE"`
	ShowKey    bool   `help:"Print the private exponent of the container key (debug only)" default:"false"`

	AWSFlags `embed:""`
}

func (cmd *ViewCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, cfg, err := globals.setup(ctx)
	if err != nil {
		return err
	}

	data, err := readSource(ctx, cmd.AWSFlags, cmd.Source)
	if err != nil {
		return err
	}

	var info *viewer.CertificateInfo

	if cmd.Alias != "" {
		packager := container.Packager{Passphrase: override(cmd.Passphrase, cfg.Passphrase)}

		entry, err := packager.Open(data, cmd.Alias)
		if err != nil {
			return err
		}

		info = viewer.FromCertificate(entry.Certificate)
		if cmd.ShowKey {
			info = info.WithPrivateKey(entry.KeyPair)
		}
	} else {
		der, err := container.Decode(data)
		if err != nil {
			return err
		}

		info, err = viewer.Parse(der)
		if err != nil {
			return err
		}
	}

	fmt.Fprint(globals.stdout(), viewer.Format(info))

	return nil
}
