// Package storage persists indexed study content in SQLite and serves the
// three query shapes the retrieval engine needs: nearest-neighbor search over
// material chunk embeddings, nearest-neighbor search over note embeddings, and
// case-insensitive substring search ordered by recency.
//
// Two build modes are supported. With the sqlite_vec tag, similarity is
// computed inside SQLite by the sqlite-vec extension (github.com/mattn/go-sqlite3
// driver). Without it, embeddings are loaded and cosine similarity is computed
// in Go (modernc.org/sqlite driver, no CGO required).
//
// All queries are parameterized; user-supplied values are never interpolated
// into SQL text.
package storage
