package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/core/services"
)

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage knowledge base sources",
	Long:  `Register, list, activate, or remove ingestion sources.`,
}

var sourceAddCmd = &cobra.Command{
	Use:   "add [kind]",
	Short: "Register a new source",
	Long: `Registers a source of the given kind.

Available kinds:
  website         - A single web page fetched and converted to markdown
  arxiv           - AI safety papers from the arXiv Atom feed
  alignmentforum  - Posts from the Alignment Forum GraphQL API
  incidents       - Entries from the AI Incident Database
  file            - Local text, markdown, HTML, or PDF files`,
	Args: cobra.ExactArgs(1),
	RunE: runSourceAdd,
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sources",
	RunE:  runSourceList,
}

var sourceRemoveCmd = &cobra.Command{
	Use:   "remove [source-id]",
	Short: "Remove a source and its documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceRemove,
}

var sourceActivateCmd = &cobra.Command{
	Use:   "activate [source-id]",
	Short: "Enable ingestion for a source",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceSetActive(true),
}

var sourceDeactivateCmd = &cobra.Command{
	Use:   "deactivate [source-id]",
	Short: "Disable ingestion for a source",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceSetActive(false),
}

// Flags for source add.
var (
	addName string
	addURL  string
	addMode string
	addPath string
)

func init() {
	sourceAddCmd.Flags().StringVarP(&addName, "name", "N", "", "human-readable source name (required)")
	sourceAddCmd.Flags().StringVarP(&addURL, "url", "u", "", "canonical URL of the source")
	sourceAddCmd.Flags().StringVarP(&addMode, "mode", "m", domain.ModeManual, "ingestion mode (poll, snapshot, manual)")
	sourceAddCmd.Flags().StringVarP(&addPath, "path", "p", "", "local directory for file sources")

	sourceCmd.AddCommand(sourceAddCmd)
	sourceCmd.AddCommand(sourceListCmd)
	sourceCmd.AddCommand(sourceRemoveCmd)
	sourceCmd.AddCommand(sourceActivateCmd)
	sourceCmd.AddCommand(sourceDeactivateCmd)
	rootCmd.AddCommand(sourceCmd)
}

func runSourceAdd(cmd *cobra.Command, args []string) error {
	if sourceService == nil {
		return errors.New("source service not configured")
	}
	if addName == "" {
		return errors.New("--name is required")
	}

	kind := args[0]
	source := domain.Source{
		Name:          addName,
		Kind:          kind,
		CanonicalURL:  addURL,
		IngestionMode: addMode,
		IsActive:      true,
	}
	if addPath != "" {
		source.Metadata = map[string]any{"local_path": addPath}
	}

	ctx := context.Background()
	if err := sourceService.Add(ctx, source); err != nil {
		return fmt.Errorf("failed to add source: %w", err)
	}

	cmd.Printf("Source registered: %s\n", services.SourceID(addName, kind))
	return nil
}

func runSourceList(cmd *cobra.Command, _ []string) error {
	if sourceService == nil {
		return errors.New("source service not configured")
	}

	ctx := context.Background()
	sourceList, err := sourceService.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	if len(sourceList) == 0 {
		cmd.Println("No sources registered.")
		return nil
	}

	cmd.Println("Sources:")
	cmd.Println()
	for i := range sourceList {
		s := &sourceList[i]
		state := "active"
		if !s.IsActive {
			state = "inactive"
		}
		cmd.Printf("  %s\n", s.ID)
		cmd.Printf("    Name:   %s\n", s.Name)
		cmd.Printf("    Kind:   %s (%s, %s)\n", s.Kind, s.IngestionMode, state)
		if s.CanonicalURL != "" {
			cmd.Printf("    URL:    %s\n", s.CanonicalURL)
		}
		cmd.Printf("    Docs:   %d\n", s.DocCount)
		if !s.LastIngestedAt.IsZero() {
			cmd.Printf("    Last:   %s (%s)\n",
				s.LastIngestedAt.Format("2006-01-02 15:04:05"), s.LastIngestionStatus)
		}
		if s.LastErrorMessage != "" {
			cmd.Printf("    Error:  %s\n", s.LastErrorMessage)
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d sources\n", len(sourceList))
	return nil
}

func runSourceRemove(cmd *cobra.Command, args []string) error {
	if sourceService == nil {
		return errors.New("source service not configured")
	}

	sourceID := args[0]
	ctx := context.Background()

	if err := sourceService.Remove(ctx, sourceID); err != nil {
		return fmt.Errorf("failed to remove source: %w", err)
	}

	cmd.Printf("Source %s removed.\n", sourceID)
	return nil
}

func runSourceSetActive(active bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if sourceService == nil {
			return errors.New("source service not configured")
		}

		sourceID := args[0]
		ctx := context.Background()

		if err := sourceService.SetActive(ctx, sourceID, active); err != nil {
			return fmt.Errorf("failed to update source: %w", err)
		}

		if active {
			cmd.Printf("Source %s activated.\n", sourceID)
		} else {
			cmd.Printf("Source %s deactivated.\n", sourceID)
		}
		return nil
	}
}
