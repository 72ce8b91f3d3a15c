// Package mcp exposes the retrieval engine as a Model Context Protocol
// server over stdio. Tools cover the full content lifecycle: ingesting
// materials and notes, searching them, deleting materials, repairing missing
// embeddings, and inspecting index health.
package mcp
