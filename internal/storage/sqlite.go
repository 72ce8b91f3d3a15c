package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/velorahq/studysearch/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, store: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx    *sql.Tx
	store *SQLiteStore
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStore) querier() querier {
	return s.db
}

// nullable converts an empty string to a NULL-able value
func nullable(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

// Chunk operations

func (s *SQLiteStore) insertChunkWithQuerier(ctx context.Context, q querier, chunk *Chunk) error {
	query := `
		INSERT INTO chunks (id, user_id, class_id, material_id, title, content, content_type, embedding, dimension, seq, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	if !chunk.CreatedAt.IsZero() {
		now = chunk.CreatedAt
	}

	var blob interface{}
	if chunk.Vector != nil {
		blob = serializeVector(chunk.Vector)
		chunk.Dimension = len(chunk.Vector)
	}

	_, err := q.ExecContext(ctx, query,
		chunk.ID, chunk.UserID, nullable(chunk.ClassID), chunk.MaterialID,
		chunk.Title, chunk.Content, string(chunk.ContentType),
		blob, chunk.Dimension, chunk.Seq, now)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	chunk.CreatedAt = now
	return nil
}

func (s *SQLiteStore) InsertChunk(ctx context.Context, chunk *Chunk) error {
	return s.insertChunkWithQuerier(ctx, s.querier(), chunk)
}

func (s *SQLiteStore) getChunkWithQuerier(ctx context.Context, q querier, chunkID string) (*Chunk, error) {
	query := `
		SELECT id, user_id, class_id, material_id, title, content, content_type,
		       embedding, dimension, seq, created_at
		FROM chunks
		WHERE id = ?
	`
	var chunk Chunk
	var classID sql.NullString
	var blob []byte
	var contentType string

	err := q.QueryRowContext(ctx, query, chunkID).Scan(
		&chunk.ID, &chunk.UserID, &classID, &chunk.MaterialID,
		&chunk.Title, &chunk.Content, &contentType,
		&blob, &chunk.Dimension, &chunk.Seq, &chunk.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	chunk.ClassID = classID.String
	chunk.ContentType = contentTypeFromString(contentType)
	if blob != nil {
		chunk.Vector = deserializeVector(blob)
	}
	return &chunk, nil
}

func (s *SQLiteStore) GetChunk(ctx context.Context, chunkID string) (*Chunk, error) {
	return s.getChunkWithQuerier(ctx, s.querier(), chunkID)
}

func (s *SQLiteStore) updateChunkEmbeddingWithQuerier(ctx context.Context, q querier, chunkID string, vector []float32) error {
	query := `UPDATE chunks SET embedding = ?, dimension = ? WHERE id = ?`
	result, err := q.ExecContext(ctx, query, serializeVector(vector), len(vector), chunkID)
	if err != nil {
		return fmt.Errorf("failed to update chunk embedding: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) UpdateChunkEmbedding(ctx context.Context, chunkID string, vector []float32) error {
	return s.updateChunkEmbeddingWithQuerier(ctx, s.querier(), chunkID, vector)
}

func (s *SQLiteStore) listChunksByMaterialWithQuerier(ctx context.Context, q querier, materialID string) ([]*Chunk, error) {
	query := `
		SELECT id, user_id, class_id, material_id, title, content, content_type,
		       embedding, dimension, seq, created_at
		FROM chunks
		WHERE material_id = ?
		ORDER BY seq
	`
	rows, err := q.QueryContext(ctx, query, materialID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanChunks(rows)
}

func (s *SQLiteStore) ListChunksByMaterial(ctx context.Context, materialID string) ([]*Chunk, error) {
	return s.listChunksByMaterialWithQuerier(ctx, s.querier(), materialID)
}

func (s *SQLiteStore) listChunksWithoutEmbeddingWithQuerier(ctx context.Context, q querier, limit int) ([]*Chunk, error) {
	query := `
		SELECT id, user_id, class_id, material_id, title, content, content_type,
		       embedding, dimension, seq, created_at
		FROM chunks
		WHERE embedding IS NULL
		ORDER BY created_at
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanChunks(rows)
}

func (s *SQLiteStore) ListChunksWithoutEmbedding(ctx context.Context, limit int) ([]*Chunk, error) {
	return s.listChunksWithoutEmbeddingWithQuerier(ctx, s.querier(), limit)
}

func (s *SQLiteStore) deleteChunksByMaterialWithQuerier(ctx context.Context, q querier, materialID string) error {
	query := `DELETE FROM chunks WHERE material_id = ?`
	_, err := q.ExecContext(ctx, query, materialID)
	return err
}

func (s *SQLiteStore) DeleteChunksByMaterial(ctx context.Context, materialID string) error {
	return s.deleteChunksByMaterialWithQuerier(ctx, s.querier(), materialID)
}

// scanChunks collects chunk rows
func scanChunks(rows *sql.Rows) ([]*Chunk, error) {
	chunks := make([]*Chunk, 0)
	for rows.Next() {
		var chunk Chunk
		var classID sql.NullString
		var blob []byte
		var contentType string

		err := rows.Scan(
			&chunk.ID, &chunk.UserID, &classID, &chunk.MaterialID,
			&chunk.Title, &chunk.Content, &contentType,
			&blob, &chunk.Dimension, &chunk.Seq, &chunk.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		chunk.ClassID = classID.String
		chunk.ContentType = contentTypeFromString(contentType)
		if blob != nil {
			chunk.Vector = deserializeVector(blob)
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// Note operations

func (s *SQLiteStore) insertNoteWithQuerier(ctx context.Context, q querier, note *Note) error {
	query := `
		INSERT INTO notes (id, user_id, class_id, title, content, embedding, dimension, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	if !note.CreatedAt.IsZero() {
		now = note.CreatedAt
	}

	var blob interface{}
	if note.Vector != nil {
		blob = serializeVector(note.Vector)
		note.Dimension = len(note.Vector)
	}

	_, err := q.ExecContext(ctx, query,
		note.ID, note.UserID, nullable(note.ClassID),
		note.Title, note.Content, blob, note.Dimension, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}

	note.CreatedAt = now
	note.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) InsertNote(ctx context.Context, note *Note) error {
	return s.insertNoteWithQuerier(ctx, s.querier(), note)
}

func (s *SQLiteStore) getNoteWithQuerier(ctx context.Context, q querier, noteID string) (*Note, error) {
	query := `
		SELECT id, user_id, class_id, title, content, embedding, dimension, created_at, updated_at
		FROM notes
		WHERE id = ?
	`
	var note Note
	var classID sql.NullString
	var blob []byte

	err := q.QueryRowContext(ctx, query, noteID).Scan(
		&note.ID, &note.UserID, &classID, &note.Title, &note.Content,
		&blob, &note.Dimension, &note.CreatedAt, &note.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	note.ClassID = classID.String
	if blob != nil {
		note.Vector = deserializeVector(blob)
	}
	return &note, nil
}

func (s *SQLiteStore) GetNote(ctx context.Context, noteID string) (*Note, error) {
	return s.getNoteWithQuerier(ctx, s.querier(), noteID)
}

func (s *SQLiteStore) updateNoteEmbeddingWithQuerier(ctx context.Context, q querier, noteID string, vector []float32) error {
	query := `UPDATE notes SET embedding = ?, dimension = ?, updated_at = ? WHERE id = ?`
	result, err := q.ExecContext(ctx, query, serializeVector(vector), len(vector), time.Now(), noteID)
	if err != nil {
		return fmt.Errorf("failed to update note embedding: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) UpdateNoteEmbedding(ctx context.Context, noteID string, vector []float32) error {
	return s.updateNoteEmbeddingWithQuerier(ctx, s.querier(), noteID, vector)
}

func (s *SQLiteStore) deleteNoteWithQuerier(ctx context.Context, q querier, noteID string) error {
	query := `DELETE FROM notes WHERE id = ?`
	_, err := q.ExecContext(ctx, query, noteID)
	return err
}

func (s *SQLiteStore) DeleteNote(ctx context.Context, noteID string) error {
	return s.deleteNoteWithQuerier(ctx, s.querier(), noteID)
}

// Search operations

func (s *SQLiteStore) SearchChunkVectors(ctx context.Context, scope Scope, queryVector []float32, limit int) ([]VectorRow, error) {
	return searchChunkVectors(ctx, s.db, scope, queryVector, limit)
}

func (s *SQLiteStore) SearchNoteVectors(ctx context.Context, scope Scope, queryVector []float32, limit int) ([]VectorRow, error) {
	return searchNoteVectors(ctx, s.db, scope, queryVector, limit)
}

func (s *SQLiteStore) SearchLexical(ctx context.Context, scope Scope, query string, limit int) ([]LexicalRow, error) {
	return searchLexical(ctx, s.db, scope, query, limit)
}

// GetChunkTimestamps resolves creation timestamps for the given chunk IDs.
// IDs that do not resolve are absent from the returned map.
func (s *SQLiteStore) GetChunkTimestamps(ctx context.Context, chunkIDs []string) (map[string]time.Time, error) {
	return s.getChunkTimestampsWithQuerier(ctx, s.querier(), chunkIDs)
}

func (s *SQLiteStore) getChunkTimestampsWithQuerier(ctx context.Context, q querier, chunkIDs []string) (map[string]time.Time, error) {
	timestamps := make(map[string]time.Time, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return timestamps, nil
	}

	// Build parameterized IN clause
	placeholders := make([]string, len(chunkIDs))
	args := make([]interface{}, len(chunkIDs))
	for i, id := range chunkIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `SELECT id, created_at FROM chunks WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id string
		var createdAt time.Time
		if err := rows.Scan(&id, &createdAt); err != nil {
			return nil, err
		}
		timestamps[id] = createdAt
	}
	return timestamps, rows.Err()
}

// Status operations

func (s *SQLiteStore) GetStatus(ctx context.Context, userID string) (*CorpusStatus, error) {
	status := &CorpusStatus{}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE user_id = ?", userID).Scan(&status.ChunkCount)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE user_id = ? AND embedding IS NOT NULL", userID).Scan(&status.EmbeddedChunks)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes WHERE user_id = ?", userID).Scan(&status.NoteCount)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes WHERE user_id = ? AND embedding IS NOT NULL", userID).Scan(&status.EmbeddedNotes)
	if err != nil {
		return nil, err
	}

	// Calculate database size
	var pageCount, pageSize int
	err = s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	if err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddedChunks > 0 || status.EmbeddedNotes > 0,
	}

	return status, nil
}

// contentTypeFromString maps a stored tag back to the typed constant
func contentTypeFromString(s string) types.ContentType {
	return types.ContentType(s)
}

// Transaction implementations delegate to the internal helpers that accept a querier

func (t *sqliteTx) InsertChunk(ctx context.Context, chunk *Chunk) error {
	return t.store.insertChunkWithQuerier(ctx, t.querier(), chunk)
}

func (t *sqliteTx) GetChunk(ctx context.Context, chunkID string) (*Chunk, error) {
	return t.store.getChunkWithQuerier(ctx, t.querier(), chunkID)
}

func (t *sqliteTx) UpdateChunkEmbedding(ctx context.Context, chunkID string, vector []float32) error {
	return t.store.updateChunkEmbeddingWithQuerier(ctx, t.querier(), chunkID, vector)
}

func (t *sqliteTx) ListChunksByMaterial(ctx context.Context, materialID string) ([]*Chunk, error) {
	return t.store.listChunksByMaterialWithQuerier(ctx, t.querier(), materialID)
}

func (t *sqliteTx) ListChunksWithoutEmbedding(ctx context.Context, limit int) ([]*Chunk, error) {
	return t.store.listChunksWithoutEmbeddingWithQuerier(ctx, t.querier(), limit)
}

func (t *sqliteTx) DeleteChunksByMaterial(ctx context.Context, materialID string) error {
	return t.store.deleteChunksByMaterialWithQuerier(ctx, t.querier(), materialID)
}

func (t *sqliteTx) InsertNote(ctx context.Context, note *Note) error {
	return t.store.insertNoteWithQuerier(ctx, t.querier(), note)
}

func (t *sqliteTx) GetNote(ctx context.Context, noteID string) (*Note, error) {
	return t.store.getNoteWithQuerier(ctx, t.querier(), noteID)
}

func (t *sqliteTx) UpdateNoteEmbedding(ctx context.Context, noteID string, vector []float32) error {
	return t.store.updateNoteEmbeddingWithQuerier(ctx, t.querier(), noteID, vector)
}

func (t *sqliteTx) DeleteNote(ctx context.Context, noteID string) error {
	return t.store.deleteNoteWithQuerier(ctx, t.querier(), noteID)
}

func (t *sqliteTx) SearchChunkVectors(ctx context.Context, scope Scope, queryVector []float32, limit int) ([]VectorRow, error) {
	return t.store.SearchChunkVectors(ctx, scope, queryVector, limit)
}

func (t *sqliteTx) SearchNoteVectors(ctx context.Context, scope Scope, queryVector []float32, limit int) ([]VectorRow, error) {
	return t.store.SearchNoteVectors(ctx, scope, queryVector, limit)
}

func (t *sqliteTx) SearchLexical(ctx context.Context, scope Scope, query string, limit int) ([]LexicalRow, error) {
	return t.store.SearchLexical(ctx, scope, query, limit)
}

func (t *sqliteTx) GetChunkTimestamps(ctx context.Context, chunkIDs []string) (map[string]time.Time, error) {
	return t.store.getChunkTimestampsWithQuerier(ctx, t.querier(), chunkIDs)
}

func (t *sqliteTx) GetStatus(ctx context.Context, userID string) (*CorpusStatus, error) {
	return t.store.GetStatus(ctx, userID)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
