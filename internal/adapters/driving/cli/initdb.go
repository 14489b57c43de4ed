package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialise the database",
	Long: `Creates the data directory, opens the database, and applies any
pending schema migrations. Running it on an existing database is safe.`,
	RunE: runInitDB,
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}

func runInitDB(cmd *cobra.Command, _ []string) error {
	// Wiring already opened the store and ran migrations.
	if application == nil {
		return errors.New("database not configured")
	}

	cmd.Printf("Database ready at %s\n", application.store.Path())
	return nil
}
