package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/c360studio/orphasnap/hgnc"
	"github.com/c360studio/orphasnap/source"
	"github.com/c360studio/orphasnap/tabular"
)

func hgncCmd(g *globalFlags) *cobra.Command {
	var (
		columns []string
		format  string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "hgnc [location]",
		Short: "Filter the HGNC complete set to the configured columns",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			location := cfg.Sources.HGNC
			if len(args) == 1 {
				location = args[0]
			}
			if len(columns) == 0 {
				columns = cfg.HGNC.Columns
			}
			f, err := tabular.ParseFormat(format)
			if err != nil {
				return err
			}

			workDir, err := os.MkdirTemp("", "orphasnap-hgnc-*")
			if err != nil {
				return fmt.Errorf("create work directory: %w", err)
			}
			defer os.RemoveAll(workDir)

			logger := slog.Default()
			st, err := source.NewStager(workDir, newFetcher(cfg, logger), logger).Stage(cmd.Context(), location)
			if err != nil {
				return fmt.Errorf("fetch hgnc: %w", err)
			}

			table, err := hgnc.FilterFile(st.Path, columns)
			if err != nil {
				return err
			}
			return writeTable(cmd.OutOrStdout(), output, f, table)
		},
	}

	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Columns to keep (overrides hgnc.columns)")
	cmd.Flags().StringVarP(&format, "format", "f", "tsv", "Output format (tsv, csv, xlsx, parquet)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}
