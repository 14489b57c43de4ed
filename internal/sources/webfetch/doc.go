// Package webfetch provides hardened HTTP fetching for ingestion sources.
//
// All outbound requests go through URL validation (HTTPS only, no
// localhost, no private or reserved IP ranges) and a dialer that
// re-validates resolved addresses to prevent DNS rebinding. Responses
// are size-capped and requests are rate limited per fetcher.
package webfetch
