package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
)

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 for mismatched dimensions or zero-magnitude vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// escapeLike escapes LIKE wildcard characters in a user-supplied pattern
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// scopeClause builds the WHERE fragment restricting rows to a search scope.
// Always filters by user; adds a class filter when the scope names one.
func scopeClause(scope Scope, args []interface{}) (string, []interface{}) {
	clause := "user_id = ?"
	args = append(args, scope.UserID)
	if scope.ClassID != "" {
		clause += " AND class_id = ?"
		args = append(args, scope.ClassID)
	}
	return clause, args
}

func searchChunkVectors(ctx context.Context, db *sql.DB, scope Scope, queryVector []float32, limit int) ([]VectorRow, error) {
	return searchVectors(ctx, db, "chunks", true, scope, queryVector, limit)
}

func searchNoteVectors(ctx context.Context, db *sql.DB, scope Scope, queryVector []float32, limit int) ([]VectorRow, error) {
	return searchVectors(ctx, db, "notes", false, scope, queryVector, limit)
}

// searchVectors runs nearest-neighbor search over a table's embedding column.
// With the sqlite-vec extension the distance is computed inside SQLite;
// otherwise embeddings are loaded and ranked in Go. Results are ordered by
// descending similarity with ties broken by ascending ID so ranking is
// deterministic across both paths.
func searchVectors(ctx context.Context, db *sql.DB, table string, hasMaterial bool, scope Scope, queryVector []float32, limit int) ([]VectorRow, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}
	if limit <= 0 {
		return []VectorRow{}, nil
	}

	if VectorExtensionAvailable {
		return searchVectorsOptimized(ctx, db, table, hasMaterial, scope, queryVector, limit)
	}
	return searchVectorsFallback(ctx, db, table, hasMaterial, scope, queryVector, limit)
}

// searchVectorsOptimized delegates distance computation to sqlite-vec
func searchVectorsOptimized(ctx context.Context, db *sql.DB, table string, hasMaterial bool, scope Scope, queryVector []float32, limit int) ([]VectorRow, error) {
	materialCol := "''"
	contentTypeCol := "'note'"
	if hasMaterial {
		materialCol = "material_id"
		contentTypeCol = "content_type"
	}

	args := []interface{}{serializeVector(queryVector)}
	where, args := scopeClause(scope, args)

	// vec_distance_cosine returns distance; similarity = 1 - distance
	query := fmt.Sprintf(`
		SELECT id, content, COALESCE(class_id, ''), title, %s, %s,
		       1.0 - vec_distance_cosine(embedding, ?) AS similarity
		FROM %s
		WHERE %s AND embedding IS NOT NULL AND dimension = ?
		ORDER BY similarity DESC, id ASC
		LIMIT ?
	`, contentTypeCol, materialCol, table, where)

	args = append(args, len(queryVector), limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorRow, 0, limit)
	for rows.Next() {
		var row VectorRow
		var contentType string
		if err := rows.Scan(&row.ID, &row.Content, &row.ClassID, &row.Title, &contentType, &row.MaterialID, &row.Similarity); err != nil {
			return nil, err
		}
		row.ContentType = contentTypeFromString(contentType)
		results = append(results, row)
	}
	return results, rows.Err()
}

// searchVectorsFallback loads candidate embeddings and ranks them in Go
func searchVectorsFallback(ctx context.Context, db *sql.DB, table string, hasMaterial bool, scope Scope, queryVector []float32, limit int) ([]VectorRow, error) {
	materialCol := "''"
	contentTypeCol := "'note'"
	if hasMaterial {
		materialCol = "material_id"
		contentTypeCol = "content_type"
	}

	var args []interface{}
	where, args := scopeClause(scope, args)

	query := fmt.Sprintf(`
		SELECT id, content, COALESCE(class_id, ''), title, %s, %s, embedding
		FROM %s
		WHERE %s AND embedding IS NOT NULL AND dimension = ?
	`, contentTypeCol, materialCol, table, where)

	args = append(args, len(queryVector))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []VectorRow
	for rows.Next() {
		var row VectorRow
		var contentType string
		var blob []byte
		if err := rows.Scan(&row.ID, &row.Content, &row.ClassID, &row.Title, &contentType, &row.MaterialID, &blob); err != nil {
			return nil, err
		}
		row.ContentType = contentTypeFromString(contentType)
		row.Similarity = cosineSimilarity(queryVector, deserializeVector(blob))
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// searchLexical matches the query as a case-insensitive substring of title or
// content, most recent first. The pattern is escaped so user input cannot
// introduce wildcards.
func searchLexical(ctx context.Context, db *sql.DB, scope Scope, queryText string, limit int) ([]LexicalRow, error) {
	if limit <= 0 {
		return []LexicalRow{}, nil
	}

	pattern := "%" + escapeLike(queryText) + "%"

	var args []interface{}
	where, args := scopeClause(scope, args)

	query := fmt.Sprintf(`
		SELECT id, content, COALESCE(class_id, ''), title, content_type, material_id, created_at
		FROM chunks
		WHERE %s AND (content LIKE ? ESCAPE '\' OR title LIKE ? ESCAPE '\')
		ORDER BY created_at DESC, id ASC
		LIMIT ?
	`, where)

	args = append(args, pattern, pattern, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]LexicalRow, 0, limit)
	for rows.Next() {
		var row LexicalRow
		var contentType string
		if err := rows.Scan(&row.ID, &row.Content, &row.ClassID, &row.Title, &contentType, &row.MaterialID, &row.CreatedAt); err != nil {
			return nil, err
		}
		row.ContentType = contentTypeFromString(contentType)
		results = append(results, row)
	}
	return results, rows.Err()
}
