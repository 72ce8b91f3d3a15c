package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/velorahq/studysearch/internal/config"
	"github.com/velorahq/studysearch/internal/embedder"
	"github.com/velorahq/studysearch/internal/ingest"
	"github.com/velorahq/studysearch/internal/search"
	"github.com/velorahq/studysearch/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "studysearch"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp          *server.MCPServer
	store        storage.Store
	ingestor     *ingest.Ingestor
	searcher     *search.Searcher
	embedderName string
}

// NewServer builds the full stack from configuration: storage, embedder,
// ingestor, searcher, and the MCP tool surface.
func NewServer(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var emb embedder.Embedder
	if cfg.EmbeddingProvider != "" {
		emb, err = embedder.New(embedder.Config{
			Provider:  cfg.EmbeddingProvider,
			APIKey:    cfg.EmbeddingAPIKey,
			CacheSize: cfg.CacheSize,
		})
	} else {
		emb, err = embedder.NewFromEnv()
	}
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	ing := ingest.NewIngestor(store, emb, ingest.Options{
		ChunkSize:   cfg.Ingest.ChunkSize,
		Overlap:     cfg.Ingest.Overlap,
		Concurrency: cfg.Ingest.Concurrency,
		BatchSize:   cfg.Ingest.BatchSize,
	})

	srch := search.NewSearcher(store, emb, search.Params{
		FusionK:     cfg.Search.FusionK,
		BoostWeight: cfg.Search.BoostWeight,
		DecayRate:   cfg.Search.DecayRate,
	})

	return newServer(store, ing, srch, emb.Provider()), nil
}

// newServer wires already-constructed dependencies; used directly by tests
func newServer(store storage.Store, ing *ingest.Ingestor, srch *search.Searcher, embedderName string) *Server {
	s := &Server{
		mcp:          server.NewMCPServer(ServerName, ServerVersion),
		store:        store,
		ingestor:     ing,
		searcher:     srch,
		embedderName: embedderName,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.store.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchMaterialsTool(), s.handleSearchMaterials)
	s.mcp.AddTool(ingestMaterialTool(), s.handleIngestMaterial)
	s.mcp.AddTool(ingestNoteTool(), s.handleIngestNote)
	s.mcp.AddTool(deleteMaterialTool(), s.handleDeleteMaterial)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(backfillEmbeddingsTool(), s.handleBackfillEmbeddings)
}
