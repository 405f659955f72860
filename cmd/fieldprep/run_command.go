package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fieldprep/internal/config"
	"fieldprep/internal/journal"
	"fieldprep/internal/logging"
	"fieldprep/internal/workflow"
)

func newRunCommand(configFlag *string) *cobra.Command {
	var sceneFlag string
	var extractOnly bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the configured pipeline phases",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(*configFlag)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("no configuration file at %s (create one with 'fieldprep config init')", path)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("prepare directories: %w", err)
			}

			logger, err := logging.New(logging.Options{
				Level:      cfg.Logging.Level,
				Format:     cfg.Logging.Format,
				ProcessLog: cfg.ProcessLogPath(),
				ErrorLog:   cfg.ErrorLogPath(),
			})
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			store, err := journal.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run journal: %w", err)
			}
			defer store.Close()

			orchestrator := workflow.New(cfg, logger, workflow.WithJournal(store))
			report, runErr := orchestrator.Run(cmd.Context(), workflow.RunOptions{
				Scene:       sceneFlag,
				ExtractOnly: extractOnly,
			})

			if report != nil {
				fmt.Fprintln(cmd.OutOrStdout(), renderRunReport(report))
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&sceneFlag, "scene", "", "Process a single scene, matched by name or catalog identifier")
	cmd.Flags().BoolVar(&extractOnly, "extract-only", false, "Skip compute phases and extract statistics from existing outputs")
	cmd.MarkFlagsMutuallyExclusive("scene", "extract-only")

	return cmd
}
