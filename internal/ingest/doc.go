// Package ingest converts raw study content into searchable units. Text is
// split at sentence boundaries into overlapping chunks, audio transcripts are
// grouped by duration, and notes are indexed whole. Chunks are embedded in
// parallel batches; content ingested during an embedding-provider outage is
// stored unembedded and repaired later by Backfill.
package ingest
