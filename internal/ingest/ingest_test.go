package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velorahq/studysearch/internal/embedder"
	"github.com/velorahq/studysearch/internal/storage"
	"github.com/velorahq/studysearch/pkg/types"
)

func newTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestIngestor(t *testing.T, store storage.Store) *Ingestor {
	t.Helper()
	local, err := embedder.NewLocalProvider()
	require.NoError(t, err)
	return NewIngestor(store, local, Options{})
}

// downEmbedder simulates a provider outage
type downEmbedder struct{}

func (downEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("provider down")
}

func (downEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("provider down")
}

func (downEmbedder) Dimension() int   { return 384 }
func (downEmbedder) Provider() string { return "down" }
func (downEmbedder) Model() string    { return "down-v1" }
func (downEmbedder) Close() error     { return nil }

func TestIngestMaterial(t *testing.T) {
	store := newTestStore(t)
	ing := newTestIngestor(t, store)
	ctx := context.Background()

	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("The citric acid cycle is a series of chemical reactions in cells. ")
	}

	result, err := ing.IngestMaterial(ctx, MaterialInput{
		UserID:  "user-1",
		ClassID: "class-1",
		Title:   "Bio Lecture 4",
		Content: b.String(),
		Type:    types.ContentText,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.MaterialID)
	assert.Greater(t, result.ChunkCount, 1)
	assert.Equal(t, result.ChunkCount, result.Embedded)
	assert.Zero(t, result.Pending)

	chunks, err := store.ListChunksByMaterial(ctx, result.MaterialID)
	require.NoError(t, err)
	require.Len(t, chunks, result.ChunkCount)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Seq)
		assert.Equal(t, "user-1", chunk.UserID)
		assert.Equal(t, "class-1", chunk.ClassID)
		assert.Equal(t, "Bio Lecture 4", chunk.Title)
		assert.Equal(t, types.ContentText, chunk.ContentType)
		assert.Len(t, chunk.Vector, embedder.LocalDimension)
	}
}

func TestIngestMaterialValidation(t *testing.T) {
	ing := newTestIngestor(t, newTestStore(t))
	ctx := context.Background()

	_, err := ing.IngestMaterial(ctx, MaterialInput{
		UserID: "user-1", Title: "t", Content: "   ", Type: types.ContentText,
	})
	assert.ErrorIs(t, err, types.ErrEmptyContent)

	_, err = ing.IngestMaterial(ctx, MaterialInput{
		Title: "t", Content: "text", Type: types.ContentText,
	})
	assert.Error(t, err)

	_, err = ing.IngestMaterial(ctx, MaterialInput{
		UserID: "user-1", Title: "t", Content: "text", Type: "spreadsheet",
	})
	assert.Error(t, err)
}

func TestIngestMaterialSurvivesEmbedderOutage(t *testing.T) {
	store := newTestStore(t)
	ing := NewIngestor(store, downEmbedder{}, Options{})
	ctx := context.Background()

	result, err := ing.IngestMaterial(ctx, MaterialInput{
		UserID: "user-1", Title: "notes", Content: "Important exam content.", Type: types.ContentText,
	})
	require.NoError(t, err)

	// Content is preserved; embedding is owed
	assert.Zero(t, result.Embedded)
	assert.Equal(t, result.ChunkCount, result.Pending)

	pending, err := store.ListChunksWithoutEmbedding(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, result.ChunkCount)
}

func TestBackfillEmbedsPendingChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Ingest during an outage, then recover
	broken := NewIngestor(store, downEmbedder{}, Options{})
	result, err := broken.IngestMaterial(ctx, MaterialInput{
		UserID: "user-1", Title: "t", Content: "Recovered content.", Type: types.ContentText,
	})
	require.NoError(t, err)
	require.Positive(t, result.Pending)

	healthy := newTestIngestor(t, store)
	embedded, err := healthy.Backfill(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, result.Pending, embedded)

	pending, err := store.ListChunksWithoutEmbedding(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Nothing left to do
	embedded, err = healthy.Backfill(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, embedded)
}

func TestIngestNote(t *testing.T) {
	store := newTestStore(t)
	ing := newTestIngestor(t, store)
	ctx := context.Background()

	noteID, err := ing.IngestNote(ctx, NoteInput{
		UserID:  "user-1",
		ClassID: "class-1",
		Title:   "Midterm review",
		Content: "Focus on chapters 3 through 5.",
	})
	require.NoError(t, err)
	require.NotEmpty(t, noteID)

	note, err := store.GetNote(ctx, noteID)
	require.NoError(t, err)
	assert.Equal(t, "Midterm review", note.Title)
	assert.Len(t, note.Vector, embedder.LocalDimension)
}

func TestIngestNoteWithoutEmbedder(t *testing.T) {
	store := newTestStore(t)
	ing := NewIngestor(store, downEmbedder{}, Options{})

	noteID, err := ing.IngestNote(context.Background(), NoteInput{
		UserID: "user-1", Title: "t", Content: "still stored",
	})
	require.NoError(t, err)

	note, err := store.GetNote(context.Background(), noteID)
	require.NoError(t, err)
	assert.Nil(t, note.Vector)
}

func TestIngestNoteValidation(t *testing.T) {
	ing := newTestIngestor(t, newTestStore(t))
	ctx := context.Background()

	_, err := ing.IngestNote(ctx, NoteInput{UserID: "user-1", Content: "  "})
	assert.ErrorIs(t, err, types.ErrEmptyContent)

	_, err = ing.IngestNote(ctx, NoteInput{Content: "text"})
	assert.Error(t, err)
}

func TestDeleteMaterial(t *testing.T) {
	store := newTestStore(t)
	ing := newTestIngestor(t, store)
	ctx := context.Background()

	result, err := ing.IngestMaterial(ctx, MaterialInput{
		UserID: "user-1", Title: "t", Content: "To be removed.", Type: types.ContentText,
	})
	require.NoError(t, err)

	require.NoError(t, ing.DeleteMaterial(ctx, result.MaterialID))

	chunks, err := store.ListChunksByMaterial(ctx, result.MaterialID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestIngestTranscript(t *testing.T) {
	store := newTestStore(t)
	ing := newTestIngestor(t, store)
	ctx := context.Background()

	segments := []TranscriptSegment{
		{Text: "Today we cover the Krebs cycle.", Start: 0, End: 25},
		{Text: "It takes place in the mitochondria.", Start: 25, End: 50},
		{Text: "Each turn produces ATP and NADH.", Start: 50, End: 75},
	}

	result, err := ing.IngestTranscript(ctx, MaterialInput{
		UserID: "user-1", ClassID: "class-1", Title: "Lecture recording",
	}, segments)
	require.NoError(t, err)
	assert.Greater(t, result.ChunkCount, 1)

	chunks, err := store.ListChunksByMaterial(ctx, result.MaterialID)
	require.NoError(t, err)
	for _, chunk := range chunks {
		assert.Equal(t, types.ContentAudio, chunk.ContentType)
	}
}

func TestIngestTranscriptNoSegmentsFallsBackToText(t *testing.T) {
	store := newTestStore(t)
	ing := newTestIngestor(t, store)

	result, err := ing.IngestTranscript(context.Background(), MaterialInput{
		UserID: "user-1", Title: "t", Content: "Plain transcription text.", Type: types.ContentAudio,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunkCount)
}
