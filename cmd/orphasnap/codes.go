package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func codesCmd(g *globalFlags) *cobra.Command {
	var (
		sheet  string
		column string
		count  bool
	)

	cmd := &cobra.Command{
		Use:   "codes [path or glob...]",
		Short: "Print the resolved code set, one code per line",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Codes.Paths = args
			}
			if sheet != "" {
				cfg.Codes.Sheet = sheet
			}
			if column != "" {
				cfg.Codes.Column = column
			}

			set, err := newCodeLoader(cfg, slog.Default()).Load(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if count {
				fmt.Fprintln(out, set.Len())
				return nil
			}
			for _, code := range set.Codes() {
				fmt.Fprintln(out, code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "Spreadsheet sheet (overrides codes.sheet)")
	cmd.Flags().StringVar(&column, "column", "", "Spreadsheet column header (overrides codes.column)")
	cmd.Flags().BoolVar(&count, "count", false, "Print only the number of codes")
	return cmd
}
