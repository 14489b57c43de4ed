// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): persistence, embedding generation and
// ingestion sources.
package driven
