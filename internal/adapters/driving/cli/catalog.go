package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the markdown source catalog",
	Long: `The catalog is a markdown document listing every registered source.
Generate it from the current registrations, or sync registrations from
an edited catalog file.`,
}

var catalogGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render registered sources as a markdown catalog",
	RunE:  runCatalogGenerate,
}

var catalogSyncCmd = &cobra.Command{
	Use:   "sync [file]",
	Short: "Reconcile sources from a catalog file",
	Long: `Parses the catalog file and registers any sources it lists that are
not yet present. Newly registered sources are ingested immediately.`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogSync,
}

// catalogOutput is a flag for the generate command.
var catalogOutput string

func init() {
	catalogGenerateCmd.Flags().StringVarP(&catalogOutput, "output", "o", "", "write the catalog to a file instead of stdout")

	catalogCmd.AddCommand(catalogGenerateCmd)
	catalogCmd.AddCommand(catalogSyncCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogGenerate(cmd *cobra.Command, _ []string) error {
	if catalogService == nil {
		return errors.New("catalog service not configured")
	}

	ctx := context.Background()
	markdown, err := catalogService.Render(ctx)
	if err != nil {
		return fmt.Errorf("failed to render catalog: %w", err)
	}

	if catalogOutput == "" {
		cmd.Println(markdown)
		return nil
	}

	if err := os.WriteFile(catalogOutput, []byte(markdown), 0644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	cmd.Printf("Catalog written to %s\n", catalogOutput)
	return nil
}

func runCatalogSync(cmd *cobra.Command, args []string) error {
	if catalogService == nil {
		return errors.New("catalog service not configured")
	}

	path := args[0]
	markdown, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}

	ctx := context.Background()
	report, err := catalogService.Sync(ctx, string(markdown))
	if err != nil {
		return fmt.Errorf("catalog sync failed: %w", err)
	}

	cmd.Printf("Parsed %d entries: %d sources created, %d updated, %d documents ingested.\n",
		report.EntriesParsed, report.SourcesCreated, report.SourcesUpdated, report.DocumentsIngested)

	if len(report.Errors) > 0 {
		cmd.Printf("\n%d entries failed:\n", len(report.Errors))
		for _, e := range report.Errors {
			cmd.Printf("  %s\n", e)
		}
		return errors.New("catalog sync completed with errors")
	}

	return nil
}
