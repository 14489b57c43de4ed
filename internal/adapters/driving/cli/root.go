// Package cli implements the safekb command-line interface. Commands
// talk to the core services exclusively through the driving ports so
// tests can substitute mocks for the package-level service variables.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meridian-labs/safekb-cli/internal/core/ports/driving"
	"github.com/meridian-labs/safekb-cli/internal/logger"
)

// version is overridden at build time via -ldflags.
var version = "0.1.0-dev"

var (
	verbose bool
	dataDir string
)

// Services the commands depend on. Nil until Execute wires them, so
// every RunE guards against an unconfigured service.
var (
	sourceService      driving.SourceService
	ingestOrchestrator driving.IngestOrchestrator
	retrievalService   driving.RetrievalService
	catalogService     driving.CatalogService
	schedulerService   driving.Scheduler
)

// autoWire is set by Execute. Tests run rootCmd directly with the
// service variables swapped for mocks and skip the real wiring.
var autoWire bool

var rootCmd = &cobra.Command{
	Use:   "safekb",
	Short: "Curate and search an AI safety knowledge base",
	Long: `safekb ingests AI safety content from papers, forums, incident
databases, websites and local files into a searchable knowledge base.

Register sources, ingest their documents, then search the chunked and
embedded content by semantic similarity.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		if !autoWire {
			return nil
		}
		return initApp()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.safekb)")
}

// Execute wires the services and runs the root command. It is the
// entrypoint used by main.
func Execute() int {
	autoWire = true
	defer closeApp()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
