package main

import (
	"os"

	"github.com/meridian-labs/safekb-cli/internal/adapters/driving/cli"
)

func main() {
	os.Exit(cli.Execute())
}
