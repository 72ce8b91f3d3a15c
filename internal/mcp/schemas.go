package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchMaterialsTool returns the tool definition for search_materials
func searchMaterialsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_materials",
		Description: "Search a student's indexed materials and notes with hybrid semantic and keyword retrieval",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language or keyword query",
				},
				"user_id": map[string]interface{}{
					"type":        "string",
					"description": "Owner of the content to search",
				},
				"class_id": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to one class; omit to search everything",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum results to return (1-50)",
					"default":     5,
				},
				"use_cache": map[string]interface{}{
					"type":        "boolean",
					"description": "Serve repeated queries from the short-lived result cache",
					"default":     true,
				},
			},
			Required: []string{"query", "user_id"},
		},
	}
}

// ingestMaterialTool returns the tool definition for ingest_material
func ingestMaterialTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_material",
		Description: "Chunk, embed, and index a study material so it becomes searchable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id": map[string]interface{}{
					"type":        "string",
					"description": "Owner of the material",
				},
				"class_id": map[string]interface{}{
					"type":        "string",
					"description": "Class the material belongs to; omit for user-level content",
				},
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Display title, shown as the source of search results",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Full text content of the material",
				},
				"content_type": map[string]interface{}{
					"type":        "string",
					"description": "One of: audio, text, pdf, image, link",
					"default":     "text",
				},
			},
			Required: []string{"user_id", "title", "content"},
		},
	}
}

// ingestNoteTool returns the tool definition for ingest_note
func ingestNoteTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_note",
		Description: "Index a user note as a single searchable unit",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id": map[string]interface{}{
					"type":        "string",
					"description": "Owner of the note",
				},
				"class_id": map[string]interface{}{
					"type":        "string",
					"description": "Class the note belongs to; omit for user-level notes",
				},
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Note title",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Note body",
				},
			},
			Required: []string{"user_id", "content"},
		},
	}
}

// deleteMaterialTool returns the tool definition for delete_material
func deleteMaterialTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_material",
		Description: "Remove a material and all its indexed chunks",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"material_id": map[string]interface{}{
					"type":        "string",
					"description": "ID returned by ingest_material",
				},
			},
			Required: []string{"material_id"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index statistics and health for a user",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id": map[string]interface{}{
					"type":        "string",
					"description": "User whose corpus to inspect",
				},
			},
			Required: []string{"user_id"},
		},
	}
}

// backfillEmbeddingsTool returns the tool definition for backfill_embeddings
func backfillEmbeddingsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "backfill_embeddings",
		Description: "Embed chunks that were indexed while the embedding provider was unavailable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum chunks to embed in this pass",
					"default":     50,
				},
			},
		},
	}
}
