// Package logger prints ingestion pipeline progress to stderr.
//
// Debug output is gated behind the --verbose flag and traces the
// discover-fetch-embed-store steps. Warnings always print. State is
// package level: the root command toggles verbosity once at startup
// and every layer below shares it.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	out     io.Writer = os.Stderr
)

// SetVerbose toggles debug output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose reports whether debug output is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput redirects log output away from stderr, primarily for
// tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Debug traces a pipeline step when verbose output is enabled.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if !verbose {
		return
	}
	fmt.Fprintf(out, "debug: "+format+"\n", args...)
}

// Section marks the start of a pipeline phase in verbose output, such
// as an ingestion run for one source.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if !verbose {
		return
	}
	fmt.Fprintf(out, "\n--- %s ---\n", name)
}

// Warn reports a recoverable problem, such as a fetch failure or a
// ledger write that did not stick. Warnings print regardless of the
// verbose setting.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	fmt.Fprintf(out, "warning: "+format+"\n", args...)
}
