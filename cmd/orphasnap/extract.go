package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/c360studio/orphasnap/pipeline"
	"github.com/c360studio/orphasnap/tabular"
)

func extractCmd(g *globalFlags) *cobra.Command {
	var (
		codes       []string
		definitions string
		phenotypes  string
		prevalence  string
		omim        string
		frequency   string
		format      string
		output      string
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract merged Orphadata records without publishing",
		Long: `Extract fetches the Orphadata feeds (URLs or local XML files), merges
the records for the code set and writes one table to stdout or --output.
Nothing under the processed or latest directories is touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if len(codes) > 0 {
				cfg.Codes.Paths = codes
			}
			for dst, v := range map[*string]string{
				&cfg.Sources.Definitions:     definitions,
				&cfg.Sources.Phenotypes:      phenotypes,
				&cfg.Sources.Prevalence:      prevalence,
				&cfg.Sources.OMIM:            omim,
				&cfg.Extract.TargetFrequency: frequency,
			} {
				if v != "" {
					*dst = v
				}
			}

			f, err := tabular.ParseFormat(format)
			if err != nil {
				return err
			}
			opts, err := pipelineOptions(cfg)
			if err != nil {
				return err
			}

			logger := slog.Default()
			runner := pipeline.New(opts, newFetcher(cfg, logger), newCodeLoader(cfg, logger), nil,
				pipeline.WithLogger(logger))
			records, err := runner.Extract(cmd.Context())
			if err != nil {
				return err
			}

			return writeTable(cmd.OutOrStdout(), output, f, pipeline.RecordsTable(records))
		},
	}

	cmd.Flags().StringSliceVar(&codes, "codes", nil, "Code list files or globs (overrides codes.paths)")
	cmd.Flags().StringVar(&definitions, "definitions", "", "Definitions feed location (product1)")
	cmd.Flags().StringVar(&phenotypes, "phenotypes", "", "Phenotypes feed location (product4)")
	cmd.Flags().StringVar(&prevalence, "prevalence", "", "Prevalence feed location (product9_prev)")
	cmd.Flags().StringVar(&omim, "omim", "", "OMIM cross-reference feed location (product1)")
	cmd.Flags().StringVar(&frequency, "frequency", "", "HPO frequency label to keep")
	cmd.Flags().StringVarP(&format, "format", "f", "tsv", "Output format (tsv, csv, xlsx, parquet)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

// writeTable writes t to path, or to stdout when path is empty.
func writeTable(stdout io.Writer, path string, format tabular.Format, t *tabular.Table) error {
	if path != "" {
		if err := tabular.WriteFile(path, format, t); err != nil {
			return err
		}
		slog.Info("Wrote table", "path", path, "rows", t.Len())
		return nil
	}

	w, err := tabular.NewWriter(format)
	if err != nil {
		return err
	}
	if err := w.Write(stdout, t); err != nil {
		return fmt.Errorf("write %s: %w", format, err)
	}
	return nil
}

