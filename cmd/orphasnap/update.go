package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func updateCmd(g *globalFlags) *cobra.Command {
	var (
		codes   []string
		formats []string
		skipNet bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Download, filter and publish a new snapshot",
		Long: `Update runs the full pipeline: load the code set, fetch every configured
source into a temporary directory, extract and merge the Orphadata feeds,
filter the HGNC table, write the dated output files, refresh latest/ and
the version file, then mirror and announce the snapshot when configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if len(codes) > 0 {
				cfg.Codes.Paths = codes
			}
			if len(formats) > 0 {
				cfg.Output.Formats = formats
			}
			if skipNet {
				cfg.Mirror.Endpoint = ""
				cfg.Notify.NATSURL = ""
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			runner, closeFn, err := newRunner(cfg, slog.Default())
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Update complete!")
			fmt.Fprintf(out, "Version: %s\n", res.Manifest.Version)
			fmt.Fprintf(out, "Records: %d disorders, %d genes\n", len(res.Records), res.Genes)
			fmt.Fprintf(out, "Processed files saved to %s\n", cfg.Output.ProcessedDir)
			fmt.Fprintf(out, "Latest symlinks updated in %s\n", cfg.Output.LatestDir)
			if len(res.Objects) > 0 {
				fmt.Fprintf(out, "Mirrored %d objects to %s\n", len(res.Objects), cfg.Mirror.Bucket)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&codes, "codes", nil, "Code list files or globs (overrides codes.paths)")
	cmd.Flags().StringSliceVar(&formats, "format", nil, "Orphadata output formats (overrides output.formats)")
	cmd.Flags().BoolVar(&skipNet, "local-only", false, "Skip mirror upload and NATS notification")
	return cmd
}
