package storage

import (
	"context"
	"time"

	"github.com/velorahq/studysearch/pkg/types"
)

// Store defines the interface for persisting and querying indexed study content
type Store interface {
	// Chunk operations (uploaded material content)
	InsertChunk(ctx context.Context, chunk *Chunk) error
	GetChunk(ctx context.Context, chunkID string) (*Chunk, error)
	UpdateChunkEmbedding(ctx context.Context, chunkID string, vector []float32) error
	ListChunksByMaterial(ctx context.Context, materialID string) ([]*Chunk, error)
	ListChunksWithoutEmbedding(ctx context.Context, limit int) ([]*Chunk, error)
	DeleteChunksByMaterial(ctx context.Context, materialID string) error

	// Note operations (a logically distinct, second vector-searchable collection)
	InsertNote(ctx context.Context, note *Note) error
	GetNote(ctx context.Context, noteID string) (*Note, error)
	UpdateNoteEmbedding(ctx context.Context, noteID string, vector []float32) error
	DeleteNote(ctx context.Context, noteID string) error

	// Search operations
	SearchChunkVectors(ctx context.Context, scope Scope, queryVector []float32, limit int) ([]VectorRow, error)
	SearchNoteVectors(ctx context.Context, scope Scope, queryVector []float32, limit int) ([]VectorRow, error)
	SearchLexical(ctx context.Context, scope Scope, query string, limit int) ([]LexicalRow, error)

	// GetChunkTimestamps resolves creation timestamps for the given chunk IDs.
	// IDs that do not resolve (deleted chunks, note IDs) are absent from the map.
	GetChunkTimestamps(ctx context.Context, chunkIDs []string) (map[string]time.Time, error)

	// Status operations
	GetStatus(ctx context.Context, userID string) (*CorpusStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Store // Embed Store interface for transaction operations
}

// Chunk is the atomic retrievable unit produced by ingesting a material.
// Immutable once created except for embedding backfill.
type Chunk struct {
	ID          string
	UserID      string
	ClassID     string // Empty for user-level content
	MaterialID  string
	Title       string // Source label shown in results
	Content     string
	ContentType types.ContentType
	Vector      []float32 // nil until embedded
	Dimension   int
	Seq         int // Position of the chunk within its material
	CreatedAt   time.Time
}

// Note is a user note indexed as a single retrievable unit
type Note struct {
	ID        string
	UserID    string
	ClassID   string // Empty for user-level notes
	Title     string
	Content   string
	Vector    []float32
	Dimension int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Scope restricts a search to an owning user and, optionally, one class
type Scope struct {
	UserID  string
	ClassID string // Empty means all of the user's content
}

// VectorRow is a row returned by nearest-neighbor search, ordered by
// descending similarity with ties broken by ID
type VectorRow struct {
	ID          string
	Content     string
	ClassID     string
	Title       string
	ContentType types.ContentType
	MaterialID  string
	Similarity  float64 // 1 - cosine distance
}

// LexicalRow is a row returned by substring search, ordered by recency
type LexicalRow struct {
	ID          string
	Content     string
	ClassID     string
	Title       string
	ContentType types.ContentType
	MaterialID  string
	CreatedAt   time.Time
}

// CorpusStatus contains statistics about a user's indexed content
type CorpusStatus struct {
	ChunkCount     int
	NoteCount      int
	EmbeddedChunks int
	EmbeddedNotes  int
	IndexSizeMB    float64
	Health         HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
}
