package search

import (
	"context"
	"fmt"

	"github.com/velorahq/studysearch/internal/embedder"
	"github.com/velorahq/studysearch/internal/storage"
	"github.com/velorahq/studysearch/pkg/types"
)

// LexicalScore is the flat score assigned to substring matches. Lexical hits
// carry no similarity signal; position within the list is what matters to
// fusion, and the flat score keeps direct callers' output shaped like the
// vector matchers'.
const LexicalScore = 0.5

// VectorMatcher ranks material chunks by embedding similarity to the query
type VectorMatcher struct {
	store    storage.Store
	embedder embedder.Embedder
}

// NewVectorMatcher creates a vector matcher over material chunks
func NewVectorMatcher(store storage.Store, emb embedder.Embedder) *VectorMatcher {
	return &VectorMatcher{store: store, embedder: emb}
}

// Search embeds the query and returns the closest material chunks
func (m *VectorMatcher) Search(ctx context.Context, scope storage.Scope, query string, limit int) ([]types.SearchResult, error) {
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrEmbeddingUnavailable, err)
	}
	return m.SearchVector(ctx, scope, vec, limit)
}

// SearchVector returns the closest material chunks to an already-embedded query
func (m *VectorMatcher) SearchVector(ctx context.Context, scope storage.Scope, queryVector []float32, limit int) ([]types.SearchResult, error) {
	rows, err := m.store.SearchChunkVectors(ctx, scope, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}

	results := make([]types.SearchResult, len(rows))
	for i, row := range rows {
		results[i] = types.SearchResult{
			ID:      row.ID,
			Content: row.Content,
			Score:   row.Similarity,
			Rank:    i + 1,
			Metadata: types.ResultMetadata{
				ClassID:    row.ClassID,
				MaterialID: row.MaterialID,
				Source:     row.Title,
				Type:       row.ContentType,
			},
			Provenance: types.ProvenanceMaterial,
		}
	}
	return results, nil
}

// NoteMatcher ranks user notes by embedding similarity to the query
type NoteMatcher struct {
	store    storage.Store
	embedder embedder.Embedder
}

// NewNoteMatcher creates a vector matcher over notes
func NewNoteMatcher(store storage.Store, emb embedder.Embedder) *NoteMatcher {
	return &NoteMatcher{store: store, embedder: emb}
}

// Search embeds the query and returns the closest notes
func (m *NoteMatcher) Search(ctx context.Context, scope storage.Scope, query string, limit int) ([]types.SearchResult, error) {
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrEmbeddingUnavailable, err)
	}
	return m.SearchVector(ctx, scope, vec, limit)
}

// SearchVector returns the closest notes to an already-embedded query
func (m *NoteMatcher) SearchVector(ctx context.Context, scope storage.Scope, queryVector []float32, limit int) ([]types.SearchResult, error) {
	rows, err := m.store.SearchNoteVectors(ctx, scope, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}

	results := make([]types.SearchResult, len(rows))
	for i, row := range rows {
		results[i] = types.SearchResult{
			ID:      row.ID,
			Content: row.Content,
			Score:   row.Similarity,
			Rank:    i + 1,
			Metadata: types.ResultMetadata{
				ClassID: row.ClassID,
				Source:  row.Title,
				Type:    types.ContentNote,
			},
			Provenance: types.ProvenanceNote,
		}
	}
	return results, nil
}

// LexicalMatcher finds material chunks containing the query as a literal,
// case-insensitive substring, most recent first
type LexicalMatcher struct {
	store storage.Store
}

// NewLexicalMatcher creates a lexical matcher over material chunks
func NewLexicalMatcher(store storage.Store) *LexicalMatcher {
	return &LexicalMatcher{store: store}
}

func (m *LexicalMatcher) Search(ctx context.Context, scope storage.Scope, query string, limit int) ([]types.SearchResult, error) {
	rows, err := m.store.SearchLexical(ctx, scope, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}

	results := make([]types.SearchResult, len(rows))
	for i, row := range rows {
		results[i] = types.SearchResult{
			ID:      row.ID,
			Content: row.Content,
			Score:   LexicalScore,
			Rank:    i + 1,
			Metadata: types.ResultMetadata{
				ClassID:    row.ClassID,
				MaterialID: row.MaterialID,
				Source:     row.Title,
				Type:       row.ContentType,
			},
			Provenance: types.ProvenanceMaterial,
		}
	}
	return results, nil
}
