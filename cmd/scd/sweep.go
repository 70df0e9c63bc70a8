package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vantor/schemacraft/internal/admission"
	"github.com/vantor/schemacraft/internal/config"
	"github.com/vantor/schemacraft/internal/db"
)

func newSweepCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reclaim expired admission tickets once",
		Long:  "One-shot lease sweep for operators; the serve command also sweeps on a schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			gormDB, err := db.Connect(cfg.DB)
			if err != nil {
				return err
			}
			store := admission.NewStore(gormDB, cfg.Admission.MaxConcurrent, cfg.Admission.PollInterval())
			n, err := store.Sweep()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reclaimed %d expired ticket(s)\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "schemacraft.yaml", "path to Schemacraft config file")
	return cmd
}
