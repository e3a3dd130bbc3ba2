package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/c360studio/orphasnap/snapshot"
)

func mirrorCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mirror <manifest.json>",
		Short: "Upload an already published snapshot to the configured bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.MirrorEnabled() {
				return fmt.Errorf("mirror.endpoint and mirror.bucket must be configured")
			}

			manifest, err := snapshot.ReadManifest(args[0])
			if err != nil {
				return err
			}
			m, err := newMirror(cfg, slog.Default())
			if err != nil {
				return err
			}
			keys, err := m.Upload(cmd.Context(), manifest)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}
