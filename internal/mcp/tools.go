package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/velorahq/studysearch/internal/ingest"
	"github.com/velorahq/studysearch/internal/search"
	"github.com/velorahq/studysearch/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery    = -32001 // Query parameter is empty
	ErrorCodeEmptyContent  = -32002 // Content parameter is empty
)

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

func missingParam(name string) error {
	return newMCPError(ErrorCodeInvalidParams, name+" parameter is required", map[string]interface{}{
		"param":  name,
		"reason": "missing or empty",
	})
}

// handleSearchMaterials handles the search_materials tool invocation
func (s *Server) handleSearchMaterials(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	userID, ok := args["user_id"].(string)
	if !ok || userID == "" {
		return nil, missingParam("user_id")
	}

	limit := getIntDefault(args, "limit", search.DefaultLimit)
	if limit < 1 || limit > search.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", search.MaxLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	resp, err := s.searcher.Search(ctx, search.Request{
		Query:    query,
		UserID:   userID,
		ClassID:  getStringDefault(args, "class_id", ""),
		Limit:    limit,
		UseCache: getBoolDefault(args, "use_cache", true),
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = map[string]interface{}{
			"id":         r.ID,
			"content":    r.Content,
			"score":      r.Score,
			"rank":       r.Rank,
			"provenance": string(r.Provenance),
			"metadata": map[string]interface{}{
				"class_id":    r.Metadata.ClassID,
				"material_id": r.Metadata.MaterialID,
				"source":      r.Metadata.Source,
				"type":        string(r.Metadata.Type),
			},
		}
	}

	response := map[string]interface{}{
		"results":       results,
		"total_results": len(results),
		"cache_hit":     resp.CacheHit,
		"duration_ms":   resp.Duration.Milliseconds(),
		"sources": map[string]interface{}{
			"vector_hits":  resp.VectorHits,
			"note_hits":    resp.NoteHits,
			"lexical_hits": resp.LexicalHits,
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIngestMaterial handles the ingest_material tool invocation
func (s *Server) handleIngestMaterial(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	userID, ok := args["user_id"].(string)
	if !ok || userID == "" {
		return nil, missingParam("user_id")
	}

	title, ok := args["title"].(string)
	if !ok || title == "" {
		return nil, missingParam("title")
	}

	content, ok := args["content"].(string)
	if !ok || content == "" {
		return nil, newMCPError(ErrorCodeEmptyContent, "content parameter is required and cannot be empty", map[string]interface{}{
			"param":  "content",
			"reason": "missing or empty",
		})
	}

	contentType := types.ContentType(getStringDefault(args, "content_type", string(types.ContentText)))
	if !types.ValidContentType(contentType) || contentType == types.ContentNote {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid content_type", map[string]interface{}{
			"param":   "content_type",
			"value":   string(contentType),
			"allowed": []string{"audio", "text", "pdf", "image", "link"},
		})
	}

	result, err := s.ingestor.IngestMaterial(ctx, ingest.MaterialInput{
		UserID:  userID,
		ClassID: getStringDefault(args, "class_id", ""),
		Title:   title,
		Content: content,
		Type:    contentType,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "ingestion failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.searcher.InvalidateCache()

	response := map[string]interface{}{
		"material_id":    result.MaterialID,
		"chunks_created": result.ChunkCount,
		"embedded":       result.Embedded,
		"pending":        result.Pending,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIngestNote handles the ingest_note tool invocation
func (s *Server) handleIngestNote(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	userID, ok := args["user_id"].(string)
	if !ok || userID == "" {
		return nil, missingParam("user_id")
	}

	content, ok := args["content"].(string)
	if !ok || content == "" {
		return nil, newMCPError(ErrorCodeEmptyContent, "content parameter is required and cannot be empty", map[string]interface{}{
			"param":  "content",
			"reason": "missing or empty",
		})
	}

	noteID, err := s.ingestor.IngestNote(ctx, ingest.NoteInput{
		UserID:  userID,
		ClassID: getStringDefault(args, "class_id", ""),
		Title:   getStringDefault(args, "title", ""),
		Content: content,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "note ingestion failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.searcher.InvalidateCache()

	response := map[string]interface{}{
		"note_id": noteID,
		"indexed": true,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDeleteMaterial handles the delete_material tool invocation
func (s *Server) handleDeleteMaterial(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	materialID, ok := args["material_id"].(string)
	if !ok || materialID == "" {
		return nil, missingParam("material_id")
	}

	if err := s.ingestor.DeleteMaterial(ctx, materialID); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "deletion failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.searcher.InvalidateCache()

	response := map[string]interface{}{
		"material_id": materialID,
		"deleted":     true,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	userID, ok := args["user_id"].(string)
	if !ok || userID == "" {
		return nil, missingParam("user_id")
	}

	status, err := s.store.GetStatus(ctx, userID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"statistics": map[string]interface{}{
			"chunk_count":     status.ChunkCount,
			"note_count":      status.NoteCount,
			"embedded_chunks": status.EmbeddedChunks,
			"embedded_notes":  status.EmbeddedNotes,
			"index_size_mb":   fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
		},
		"embedding_provider": s.embedderName,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleBackfillEmbeddings handles the backfill_embeddings tool invocation
func (s *Server) handleBackfillEmbeddings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	limit := getIntDefault(args, "limit", ingest.DefaultBatchSize)
	if limit < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be positive", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	embedded, err := s.ingestor.Backfill(ctx, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "backfill failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if embedded > 0 {
		s.searcher.InvalidateCache()
	}

	response := map[string]interface{}{
		"embedded": embedded,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
