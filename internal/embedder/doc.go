// Package embedder generates vector embeddings for indexing and querying.
// It supports OpenAI and Jina AI as hosted providers plus a deterministic
// local fallback, with an optional LRU cache layered on top so repeated
// queries and re-ingested content avoid redundant API calls.
package embedder
