package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Inspect ingested documents",
	Long:  `View ingested documents and their chunked content.`,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print document content",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentChunksCmd = &cobra.Command{
	Use:   "chunks [doc-id]",
	Short: "List document chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentChunks,
}

func init() {
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentChunksCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	docID := args[0]
	ctx := context.Background()

	doc, err := retrievalService.GetDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Title:    %s\n", doc.Title)
	cmd.Printf("  Source:   %s\n", doc.Source)
	if doc.URL != "" {
		cmd.Printf("  URL:      %s\n", doc.URL)
	}
	if len(doc.Authors) > 0 {
		cmd.Printf("  Authors:  %s\n", strings.Join(doc.Authors, ", "))
	}
	if !doc.PublishedAt.IsZero() {
		cmd.Printf("  Published: %s\n", doc.PublishedAt.Format("2006-01-02"))
	}
	cmd.Printf("  Added:    %s\n", doc.AddedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Version:  %d\n", doc.Version)
	if len(doc.Topics) > 0 {
		cmd.Printf("  Topics:   %s\n", strings.Join(doc.Topics, ", "))
	}
	if len(doc.RiskAreas) > 0 {
		cmd.Printf("  Risks:    %s\n", strings.Join(doc.RiskAreas, ", "))
	}
	if doc.Abstract != "" {
		cmd.Printf("\n  %s\n", doc.Abstract)
	}

	if len(doc.Metadata) > 0 {
		cmd.Println("\n  Metadata:")
		for k, v := range doc.Metadata {
			cmd.Printf("    %s: %v\n", k, v)
		}
	}

	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	docID := args[0]
	ctx := context.Background()

	doc, err := retrievalService.GetDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Println(doc.Text)
	return nil
}

func runDocumentChunks(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	docID := args[0]
	ctx := context.Background()

	chunks, err := retrievalService.GetChunks(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to get chunks: %w", err)
	}

	if len(chunks) == 0 {
		cmd.Printf("No chunks found for document: %s\n", docID)
		return nil
	}

	for i := range chunks {
		embedded := "no"
		if len(chunks[i].Embedding) > 0 {
			embedded = fmt.Sprintf("yes (%d dims)", len(chunks[i].Embedding))
		}
		cmd.Printf("  [%d] %s (embedded: %s)\n", chunks[i].Index, chunks[i].ID, embedded)
		cmd.Printf("      %s\n\n", chunkPreview(chunks[i].Text))
	}

	cmd.Printf("Total: %d chunks\n", len(chunks))
	return nil
}

func chunkPreview(text string) string {
	const previewLen = 120
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= previewLen {
		return text
	}
	return text[:previewLen] + "..."
}
