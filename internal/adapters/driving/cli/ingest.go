package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meridian-labs/safekb-cli/internal/core/ports/driving"
)

var ingestWatch bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [source-id]",
	Short: "Ingest documents from sources",
	Long: `Triggers document ingestion from registered sources.
If a source ID is provided, only that source is ingested.
Otherwise, all active sources are ingested.

With --watch the command keeps running after the initial pass and
re-ingests the source whenever its files change. Watching only works
for local file sources.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "keep running and re-ingest the source on file changes")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestOrchestrator == nil {
		return errors.New("ingest service not configured")
	}

	ctx := context.Background()

	if ingestWatch {
		if len(args) == 0 {
			return errors.New("--watch requires a source ID")
		}
		return runIngestWatch(cmd, args[0])
	}

	if len(args) > 0 {
		sourceID := args[0]
		cmd.Printf("Ingesting source: %s...\n", sourceID)

		if err := ingestWithProgress(ctx, cmd, ingestOrchestrator, sourceID); err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}

		cmd.Printf("Source %s ingested successfully.\n", sourceID)
	} else {
		cmd.Println("Ingesting all active sources...")

		if err := ingestOrchestrator.IngestAll(ctx); err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}

		cmd.Println("All sources ingested successfully.")
	}

	return nil
}

// runIngestWatch blocks re-ingesting the source on file changes until
// interrupted.
func runIngestWatch(cmd *cobra.Command, sourceID string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Printf("Watching source %s. Press Ctrl+C to stop.\n", sourceID)

	err := ingestOrchestrator.Watch(ctx, sourceID)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch failed: %w", err)
	}

	cmd.Println("Watch stopped.")
	return nil
}

// ingestWithProgress runs ingestion while displaying progress updates.
func ingestWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	ingestor driving.IngestOrchestrator,
	sourceID string,
) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- ingestor.Ingest(ctx, sourceID)
	}()

	// Poll status every 500ms
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastCount := 0
	for {
		select {
		case err := <-errCh:
			// Print final status (ignore status error - best effort)
			status, statusErr := ingestor.Status(ctx, sourceID)
			if statusErr == nil && status != nil && status.DocumentsProcessed+status.DocumentsSkipped > 0 {
				cmd.Printf("\rProcessed %d documents (%d unchanged, %d errors)\n",
					status.DocumentsProcessed, status.DocumentsSkipped, status.ErrorCount)
			}
			return err
		case <-ticker.C:
			// Check progress (ignore status error - best effort)
			status, statusErr := ingestor.Status(ctx, sourceID)
			if statusErr == nil && status != nil && status.DocumentsProcessed > lastCount {
				cmd.Printf("\rProcessing... %d documents", status.DocumentsProcessed)
				lastCount = status.DocumentsProcessed
			}
		}
	}
}
