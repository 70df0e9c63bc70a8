package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vantor/schemacraft/internal/admission"
	"github.com/vantor/schemacraft/internal/batch"
	"github.com/vantor/schemacraft/internal/config"
	"github.com/vantor/schemacraft/internal/conversation"
	"github.com/vantor/schemacraft/internal/db"
	"github.com/vantor/schemacraft/internal/roster"
	"github.com/vantor/schemacraft/internal/server"
	"github.com/vantor/schemacraft/internal/workflow"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Schemacraft API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "schemacraft.yaml", "path to Schemacraft config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}

	store := admission.NewStore(gormDB, cfg.Admission.MaxConcurrent, cfg.Admission.PollInterval())
	sweeper, err := admission.StartSweeper(store, cfg.Admission.SweepCron)
	if err != nil {
		return err
	}
	defer sweeper.Stop()

	wf := workflow.NewClient(cfg.Workflows.BaseURL, cfg.Workflows.Timeout())
	conversations := conversation.NewService(gormDB, wf, wf, wf, wf)

	orch, err := batch.New(batch.Opts{
		DB:             gormDB,
		Controller:     store,
		Evaluator:      wf,
		Roster:         roster.NewGormRoster(gormDB),
		Matcher:        roster.NewMatcher(cfg.Uploads.AllowedExtensions),
		Lease:          cfg.Admission.Lease(),
		AcquireTimeout: cfg.Batch.AcquireTimeout(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Start(ctx, server.StartOpts{
		Deps: server.Deps{
			DB:            gormDB,
			Controller:    store,
			Conversations: conversations,
			Batches:       orch,
		},
		Port: cfg.Server.Port,
		Out:  cmd.OutOrStdout(),
	})
}
