package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/wolfeidau/devcert/cmd/devcert/internal/artifacts"
)

// ListCmd lists the bundles recorded in an output directory.
type ListCmd struct {
	OutputDir string `help:"Output directory for certificates" short:"o"`
	Expired   bool   `help:"Only show expired bundles" default:"false"`
}

func (cmd *ListCmd) Run(ctx context.Context, globals *Globals) error {
	_, cfg, err := globals.setup(ctx)
	if err != nil {
		return err
	}

	store, err := artifacts.NewStore(override(cmd.OutputDir, cfg.OutputDir))
	if err != nil {
		return fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	bundles, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list bundles: %w", err)
	}

	out := globals.stdout()

	if len(bundles) == 0 {
		fmt.Fprintln(out, "No bundles found.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "To generate a new bundle:")
		fmt.Fprintln(out, "  devcert generate --issuer-name <DN> --subject-name <DN>")
		return nil
	}

	now := time.Now()

	// Print as table
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSUBJECT\tISSUER\tEXPIRES\tSTATUS\tFINGERPRINT")

	for _, b := range bundles {
		if cmd.Expired && !b.Expired(now) {
			continue
		}

		status := fmt.Sprintf("%d days left", b.DaysRemaining(now))
		if b.Expired(now) {
			status = "expired"
		}

		// Truncate fingerprint for display
		fp := b.SubjectFingerprint
		if len(fp) > 12 {
			fp = fp[:12] + "..."
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			b.Name, b.SubjectDN, b.IssuerDN, b.NotAfter.Format("2006-01-02"), status, fp)
	}

	return w.Flush()
}
