package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/devcert/cmd/devcert/internal/artifacts"
	"github.com/wolfeidau/devcert/internal/authority"
	"github.com/wolfeidau/devcert/internal/container"
	"github.com/wolfeidau/devcert/internal/pki"
	"github.com/wolfeidau/devcert/internal/viewer"
)

const defaultBundleName = "devcert"

// GenerateCmd creates a self-signed issuer and a subject certificate signed by it.
type GenerateCmd struct {
	IssuerName   string `help:"Issuer distinguished name (default: CN=Unnamed Issuer)" short:"i"`
	SubjectName  string `help:"Subject distinguished name (default: CN=Unnamed Development Certificate)" short:"s"`
	KeyBits      int    `help:"RSA key size: 2048, 4096 or 8192"`
	ValidityDays int    `help:"Certificate lifetime in days"`
	Passphrase   string `help:"Container passphrase (empty for development)" env:"DEVCERT_PASSPHRASE"`
	OutputDir    string `help:"Output directory for certificates" short:"o"`
	Name         string `help:"Bundle name used as file prefix" default:"devcert"`
	Force        bool   `help:"Replace an existing bundle with the same name" default:"false"`
	ShowKeys     bool   `help:"Print the key exponents of both key pairs (debug only)" default:"false"`
}

func (cmd *GenerateCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, cfg, err := globals.setup(ctx)
	if err != nil {
		return err
	}

	cfg.IssuerName = override(cmd.IssuerName, cfg.IssuerName)
	cfg.SubjectName = override(cmd.SubjectName, cfg.SubjectName)
	cfg.KeyBits = override(cmd.KeyBits, cfg.KeyBits)
	cfg.ValidityDays = override(cmd.ValidityDays, cfg.ValidityDays)
	cfg.Passphrase = override(cmd.Passphrase, cfg.Passphrase)
	cfg.OutputDir = override(cmd.OutputDir, cfg.OutputDir)

	if err := cfg.Validate(); err != nil {
		return err
	}

	name := override(cmd.Name, defaultBundleName)

	store, err := artifacts.NewStore(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	replace, err := checkBundle(store, name, cmd.Force)
	if err != nil {
		return err
	}

	log.Info().
		Str("issuer", cfg.IssuerName).
		Str("subject", cfg.SubjectName).
		Int("key_bits", cfg.KeyBits).
		Msg("generating authority")

	builder := authority.Builder{
		KeyBits: cfg.KeyBits,
		Factory: pki.Factory{ValidityDays: cfg.ValidityDays},
	}

	a, err := builder.Build(ctx, cfg.IssuerName, cfg.SubjectName)
	if err != nil {
		return err
	}

	if err := replaceBundle(store, name, replace); err != nil {
		return err
	}

	bundle, err := store.Save(name, artifacts.Contents{
		Issuer:     a.IssuerCertificate,
		IssuerKey:  a.IssuerKeyPair,
		Subject:    a.SubjectCertificate,
		SubjectKey: a.SubjectKeyPair,
	}, container.Packager{Passphrase: cfg.Passphrase})
	if err != nil {
		return fmt.Errorf("failed to save bundle: %w", err)
	}

	out := globals.stdout()

	fmt.Fprintf(out, "Generated bundle: %s\n", bundle.Name)
	fmt.Fprintf(out, "Container alias:  %s\n", bundle.Alias)
	fmt.Fprintln(out)
	if cmd.ShowKeys {
		fmt.Fprint(out, viewer.FormatAuthority(a))
	} else {
		fmt.Fprint(out, viewer.Format(viewer.FromCertificate(a.SubjectCertificate)))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Files:")
	for _, file := range bundle.Files {
		fmt.Fprintf(out, "  %s\n", filepath.Join(store.Dir(), file))
	}

	return nil
}

// checkBundle fails when name already exists unless force is set. It reports
// whether an existing bundle has to be replaced.
func checkBundle(store *artifacts.Store, name string, force bool) (bool, error) {
	if _, err := store.Get(name); err != nil {
		if errors.Is(err, artifacts.ErrBundleNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read manifest: %w", err)
	}

	if !force {
		return false, fmt.Errorf("bundle %q already exists in %s\n\nUse --force to replace it or --name to pick another name", name, store.Dir())
	}

	return true, nil
}

// replaceBundle deletes the existing bundle once its replacement has been built.
func replaceBundle(store *artifacts.Store, name string, replace bool) error {
	if !replace {
		return nil
	}

	log.Info().Str("name", name).Msg("force flag set, replacing existing bundle")

	if err := store.Delete(name); err != nil {
		return fmt.Errorf("failed to replace bundle: %w", err)
	}
	return nil
}
