package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/devcert/cmd/devcert/internal/artifacts"
	"github.com/wolfeidau/devcert/internal/config"
	"github.com/wolfeidau/devcert/internal/container"
	"github.com/wolfeidau/devcert/internal/pki"
	"github.com/wolfeidau/devcert/internal/viewer"
)

// IssueCmd signs a new subject certificate with an existing issuer, either one read
// from a container or one whose key is held in AWS KMS.
type IssueCmd struct {
	SubjectName  string `help:"Subject distinguished name" short:"s"`
	CAContainer  string `help:"Issuer container: file path, base64 text or ssm://parameter" xor:"ca"`
	Alias        string `help:"Alias of the issuer entry (default: the configured issuer name)"`
	CACert       string `help:"Issuer certificate when the issuer key is held in AWS KMS" xor:"ca"`
	KMSKeyID     string `help:"AWS KMS key ID, ARN or alias of the issuer key" env:"DEVCERT_KMS_KEY_ID"`
	KeyBits      int    `help:"RSA key size: 2048, 4096 or 8192"`
	ValidityDays int    `help:"Certificate lifetime in days"`
	Passphrase   string `help:"Container passphrase (empty for development)" env:"DEVCERT_PASSPHRASE"`
	OutputDir    string `help:"Output directory for certificates" short:"o"`
	Name         string `help:"Bundle name used as file prefix" default:"issued"`
	Force        bool   `help:"Replace an existing bundle with the same name" default:"false"`

	AWSFlags `embed:""`
}

func (cmd *IssueCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, cfg, err := globals.setup(ctx)
	if err != nil {
		return err
	}

	cfg.SubjectName = override(cmd.SubjectName, cfg.SubjectName)
	cfg.KeyBits = override(cmd.KeyBits, cfg.KeyBits)
	cfg.ValidityDays = override(cmd.ValidityDays, cfg.ValidityDays)
	cfg.Passphrase = override(cmd.Passphrase, cfg.Passphrase)
	cfg.OutputDir = override(cmd.OutputDir, cfg.OutputDir)
	cfg.KMSKeyID = override(cmd.KMSKeyID, cfg.KMSKeyID)

	if err := cfg.Validate(); err != nil {
		return err
	}

	signer, err := cmd.signer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to load issuer: %w", err)
	}

	name := override(cmd.Name, "issued")

	store, err := artifacts.NewStore(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	replace, err := checkBundle(store, name, cmd.Force)
	if err != nil {
		return err
	}

	keyPair, err := pki.KeyGenerator{}.Generate(cfg.KeyBits)
	if err != nil {
		return fmt.Errorf("failed to generate subject key: %w", err)
	}

	factory := pki.Factory{ValidityDays: cfg.ValidityDays}

	cert, err := factory.IssueFrom(signer, cfg.SubjectName, keyPair)
	if err != nil {
		return fmt.Errorf("failed to issue certificate: %w", err)
	}

	log.Info().
		Str("issuer", cert.IssuerDN).
		Str("subject", cert.SubjectDN).
		Str("serial", cert.SerialNumber.String()).
		Msg("issued certificate")

	if err := replaceBundle(store, name, replace); err != nil {
		return err
	}

	bundle, err := store.Save(name, artifacts.Contents{
		Issuer:     signer.CACertificate(),
		Subject:    cert,
		SubjectKey: keyPair,
	}, container.Packager{Passphrase: cfg.Passphrase})
	if err != nil {
		return fmt.Errorf("failed to save bundle: %w", err)
	}

	out := globals.stdout()

	fmt.Fprintf(out, "Issued bundle:   %s\n", bundle.Name)
	fmt.Fprintf(out, "Container alias: %s\n", bundle.Alias)
	fmt.Fprintln(out)
	fmt.Fprint(out, viewer.Format(viewer.FromCertificate(cert)))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Files:")
	for _, file := range bundle.Files {
		fmt.Fprintf(out, "  %s\n", filepath.Join(store.Dir(), file))
	}

	return nil
}

// signer resolves the issuer from a container or from a certificate plus KMS key.
func (cmd *IssueCmd) signer(ctx context.Context, cfg config.Config) (pki.CASigner, error) {
	switch {
	case cmd.CAContainer != "":
		alias := cmd.Alias
		if alias == "" {
			canonical, err := pki.CanonicalName(cfg.IssuerName)
			if err != nil {
				return nil, err
			}
			alias = canonical
		}

		data, err := readSource(ctx, cmd.AWSFlags, cmd.CAContainer)
		if err != nil {
			return nil, err
		}

		entry, err := container.Packager{Passphrase: cfg.Passphrase}.Open(data, alias)
		if err != nil {
			return nil, err
		}

		log.Debug().Str("alias", alias).Str("issuer", entry.Certificate.SubjectDN).Msg("using container issuer")

		return pki.NewLocalSigner(entry.Certificate, entry.KeyPair)

	case cmd.CACert != "":
		if cfg.KMSKeyID == "" {
			return nil, fmt.Errorf("%w: --kms-key-id is required with --ca-cert", pki.ErrArgument)
		}

		data, err := readSource(ctx, cmd.AWSFlags, cmd.CACert)
		if err != nil {
			return nil, err
		}

		der, err := container.Decode(data)
		if err != nil {
			return nil, err
		}

		caCert, err := pki.ParseCertificate(der)
		if err != nil {
			return nil, err
		}

		client, err := newKMSClient(ctx, cmd.AWSFlags)
		if err != nil {
			return nil, err
		}

		log.Debug().Str("kms_key_id", cfg.KMSKeyID).Str("issuer", caCert.SubjectDN).Msg("using KMS issuer")

		return pki.NewKMSSigner(ctx, client, cfg.KMSKeyID, caCert)

	default:
		return nil, fmt.Errorf("%w: either --ca-container or --ca-cert with --kms-key-id is required", pki.ErrArgument)
	}
}
