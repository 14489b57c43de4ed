package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
)

var (
	searchLimit     int
	searchJSON      bool
	searchTopic     string
	searchSources   []string
	searchRiskAreas []string
	searchYearFrom  int
	searchYearTo    int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the knowledge base",
	Long: `Ranks chunked document content by semantic similarity to the query
and returns the best matching chunks. Results can be narrowed by topic,
source, risk area, or publication year.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List topics present in the knowledge base",
	RunE:  runTopics,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default 8)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringVarP(&searchTopic, "topic", "t", "", "restrict results to a topic")
	searchCmd.Flags().StringSliceVarP(&searchSources, "source", "s", nil, "restrict results to the named sources")
	searchCmd.Flags().StringSliceVar(&searchRiskAreas, "risk-area", nil, "restrict results to the named risk areas")
	searchCmd.Flags().IntVar(&searchYearFrom, "year-from", 0, "earliest publication year")
	searchCmd.Flags().IntVar(&searchYearTo, "year-to", 0, "latest publication year")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(topicsCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	ctx := context.Background()
	filters := domain.SearchFilters{
		Sources:   searchSources,
		RiskAreas: searchRiskAreas,
		YearMin:   searchYearFrom,
		YearMax:   searchYearTo,
	}

	var (
		results []domain.SearchResult
		err     error
	)
	if searchTopic != "" && filters.Empty() {
		results, err = retrievalService.SearchByTopic(ctx, searchTopic, query, searchLimit)
	} else {
		if searchTopic != "" {
			filters.Topics = []string{searchTopic}
		}
		results, err = retrievalService.Search(ctx, query, searchLimit, filters)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

func runTopics(cmd *cobra.Command, _ []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	ctx := context.Background()
	topics, err := retrievalService.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("failed to list topics: %w", err)
	}

	if len(topics) == 0 {
		cmd.Println("No topics found.")
		return nil
	}

	for _, topic := range topics {
		cmd.Println(topic)
	}
	return nil
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		title := results[i].Title
		if title == "" {
			title = results[i].DocID
		}

		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, results[i].Score)
		if results[i].Source != "" {
			cmd.Printf("      Source: %s\n", results[i].Source)
		}
		if results[i].URL != "" {
			cmd.Printf("      URL: %s\n", results[i].URL)
		}
		if len(results[i].Topics) > 0 {
			cmd.Printf("      Topics: %s\n", strings.Join(results[i].Topics, ", "))
		}
		if results[i].Snippet != "" {
			cmd.Printf("      %s\n", results[i].Snippet)
		}
		cmd.Println()
	}

	return nil
}
