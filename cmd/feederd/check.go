package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"fish-feeder-backend/internal/clock"
	"fish-feeder-backend/internal/notification"
	"fish-feeder-backend/internal/task"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one feeder check and print the outcome",
	Long: `Run a single feeding decision and exit.

Side effects such as history writes and notifications complete before the
command returns, so it is safe to trigger from cron.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	gormDB, appStore := openStore(cfg)
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}

	detach := task.Inline{Timeout: cfg.WorkerPool.TaskTimeout}
	notifier := notification.Inline{Senders: senders(cfg, appStore), Timeout: cfg.Chat.Timeout}
	c := newComponents(cfg, appStore, clock.Real{}, detach, notifier)

	out, checkErr := c.engine.Check(cmd.Context())

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	return checkErr
}
