// Package types defines the shared domain types for the studysearch retrieval
// engine: search results, content type tags, provenance markers, and the
// sentinel errors used across package boundaries.
package types
