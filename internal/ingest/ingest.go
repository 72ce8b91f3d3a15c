package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/velorahq/studysearch/internal/embedder"
	"github.com/velorahq/studysearch/internal/logger"
	"github.com/velorahq/studysearch/internal/storage"
	"github.com/velorahq/studysearch/pkg/types"
)

// Worker pool defaults
const (
	DefaultConcurrency = 4
	DefaultBatchSize   = 50
)

// Ingestor turns raw materials and notes into embedded, searchable units
type Ingestor struct {
	store       storage.Store
	emb         embedder.Embedder
	chunker     *Chunker
	concurrency int
	batchSize   int
}

// Options tunes the ingestion pipeline. The zero value uses defaults.
type Options struct {
	ChunkSize   int
	Overlap     int
	Concurrency int // parallel embedding batches
	BatchSize   int // texts per embedding call
}

// NewIngestor creates an ingestor over the given store and embedder
func NewIngestor(store storage.Store, emb embedder.Embedder, opts Options) *Ingestor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.BatchSize <= 0 || opts.BatchSize > embedder.MaxBatchSize {
		opts.BatchSize = DefaultBatchSize
	}
	return &Ingestor{
		store:       store,
		emb:         emb,
		chunker:     NewChunker(opts.ChunkSize, opts.Overlap),
		concurrency: opts.Concurrency,
		batchSize:   opts.BatchSize,
	}
}

// MaterialInput describes a material to ingest
type MaterialInput struct {
	UserID  string
	ClassID string // Empty for user-level material
	Title   string
	Content string
	Type    types.ContentType
}

func (in *MaterialInput) validate() error {
	if in.UserID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}
	if strings.TrimSpace(in.Content) == "" {
		return types.ErrEmptyContent
	}
	if !types.ValidContentType(in.Type) {
		return fmt.Errorf("unknown content type %q", in.Type)
	}
	return nil
}

// Result summarizes one ingestion run
type Result struct {
	MaterialID string
	ChunkCount int
	Embedded   int // chunks stored with a vector
	Pending    int // chunks stored without one, awaiting backfill
}

// IngestMaterial chunks the content, embeds the chunks, and stores them under
// a fresh material ID. If the embedding provider is down the chunks are
// stored unembedded and picked up later by Backfill, so ingestion never loses
// content to a provider outage.
func (ing *Ingestor) IngestMaterial(ctx context.Context, in MaterialInput) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	texts := ing.chunker.Chunk(in.Content)
	if len(texts) == 0 {
		return nil, types.ErrEmptyContent
	}

	materialID := uuid.NewString()
	logger.Debug("ingesting material %s (%q): %d chunks", materialID, in.Title, len(texts))

	return ing.storeChunks(ctx, in, materialID, texts)
}

// storeChunks embeds the chunk texts and writes them in one transaction
func (ing *Ingestor) storeChunks(ctx context.Context, in MaterialInput, materialID string, texts []string) (*Result, error) {
	vectors, embErr := ing.embedAll(ctx, texts)
	if embErr != nil {
		logger.Warn("embedding failed for material %s, storing chunks for backfill: %v", materialID, embErr)
		vectors = make([][]float32, len(texts))
	}

	result := &Result{MaterialID: materialID, ChunkCount: len(texts)}

	tx, err := ing.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, text := range texts {
		chunk := &storage.Chunk{
			ID:          uuid.NewString(),
			UserID:      in.UserID,
			ClassID:     in.ClassID,
			MaterialID:  materialID,
			Title:       in.Title,
			Content:     text,
			ContentType: in.Type,
			Vector:      vectors[i],
			Seq:         i,
		}
		if err := tx.InsertChunk(ctx, chunk); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
		}
		if vectors[i] != nil {
			result.Embedded++
		} else {
			result.Pending++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}

	return result, nil
}

// IngestTranscript ingests timed audio transcription segments, chunked by
// duration instead of character count
func (ing *Ingestor) IngestTranscript(ctx context.Context, in MaterialInput, segments []TranscriptSegment) (*Result, error) {
	if len(segments) == 0 {
		return ing.IngestMaterial(ctx, in)
	}

	chunks := ChunkTranscript(segments, DefaultChunkDuration)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	// Duration chunking defines the units; validate against the joined text
	in.Content = strings.Join(texts, " ")
	in.Type = types.ContentAudio
	if err := in.validate(); err != nil {
		return nil, err
	}

	materialID := uuid.NewString()
	logger.Debug("ingesting transcript %s (%q): %d chunks", materialID, in.Title, len(texts))

	return ing.storeChunks(ctx, in, materialID, texts)
}

// NoteInput describes a note to index
type NoteInput struct {
	UserID  string
	ClassID string
	Title   string
	Content string
}

// IngestNote indexes a note as a single retrievable unit. Notes are short
// enough that they are never chunked.
func (ing *Ingestor) IngestNote(ctx context.Context, in NoteInput) (string, error) {
	if in.UserID == "" {
		return "", fmt.Errorf("user ID cannot be empty")
	}
	if strings.TrimSpace(in.Content) == "" {
		return "", types.ErrEmptyContent
	}

	var vector []float32
	vec, err := ing.emb.Embed(ctx, in.Content)
	if err != nil {
		logger.Warn("embedding failed for note, storing without vector: %v", err)
	} else {
		vector = vec
	}

	note := &storage.Note{
		ID:      uuid.NewString(),
		UserID:  in.UserID,
		ClassID: in.ClassID,
		Title:   in.Title,
		Content: in.Content,
		Vector:  vector,
	}
	if err := ing.store.InsertNote(ctx, note); err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}

	return note.ID, nil
}

// DeleteMaterial removes a material and all its chunks from the index
func (ing *Ingestor) DeleteMaterial(ctx context.Context, materialID string) error {
	if err := ing.store.DeleteChunksByMaterial(ctx, materialID); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}
	return nil
}

// Backfill embeds up to limit chunks that were stored without vectors during
// a provider outage. Returns the number of chunks embedded.
func (ing *Ingestor) Backfill(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	chunks, err := ing.store.ListChunksWithoutEmbedding(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := ing.embedAll(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrEmbeddingUnavailable, err)
	}

	embedded := 0
	for i, chunk := range chunks {
		if err := ing.store.UpdateChunkEmbedding(ctx, chunk.ID, vectors[i]); err != nil {
			return embedded, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
		}
		embedded++
	}

	logger.Info("backfilled embeddings for %d chunks", embedded)
	return embedded, nil
}

// embedAll embeds texts in batches, running up to concurrency batches in
// parallel. The returned slice is index-aligned with texts.
func (ing *Ingestor) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.concurrency)

	for start := 0; start < len(texts); start += ing.batchSize {
		end := start + ing.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end

		g.Go(func() error {
			batch, err := ing.emb.EmbedBatch(ctx, texts[start:end])
			if err != nil {
				return err
			}
			// Disjoint ranges, no locking needed
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
