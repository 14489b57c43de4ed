package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run background ingestion",
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ingestion scheduler in the foreground",
	Long: `Starts the scheduler, which periodically re-ingests every active
poll-mode source. Runs until interrupted.`,
	RunE: runScheduleRun,
}

func init() {
	scheduleCmd.AddCommand(scheduleRunCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func runScheduleRun(cmd *cobra.Command, _ []string) error {
	if schedulerService == nil {
		return errors.New("scheduler not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Println("Scheduler running. Press Ctrl+C to stop.")

	err := schedulerService.Start(ctx)

	// Wait for any in-flight ingest run before exiting.
	if stopErr := schedulerService.Stop(); stopErr != nil {
		return fmt.Errorf("stopping scheduler: %w", stopErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scheduler failed: %w", err)
	}

	cmd.Println("Scheduler stopped.")
	return nil
}
