// Package provider contains audio identification and metadata enrichment
// clients (ACRCloud, AudD, Spotify, Deezer).
//
// The Provider and Enricher interfaces are defined in internal/identify,
// following the Go convention of defining interfaces where they are consumed.
// Each sub-package here implements one of them for a specific service.
package provider
