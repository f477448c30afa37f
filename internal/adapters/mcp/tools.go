// Package mcpadapter exposes the course corpus to MCP clients over
// stdio: question answering, raw retrieval and index introspection.
package mcpadapter

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/tbocquet/course-rag-assistant/internal/core/ports"
)

// NewServer builds the MCP server with every course tool registered.
func NewServer(version string, chat ports.ChatService, searcher ports.CorpusSearcher, registry ports.FileRegistry, subjects []string) *mcpserver.MCPServer {
	server := mcpserver.NewMCPServer("course-rag-assistant", version)
	RegisterTools(server, chat, searcher, registry, subjects)
	return server
}

// RegisterTools wires the tool schemas to their handlers.
func RegisterTools(server *mcpserver.MCPServer, chat ports.ChatService, searcher ports.CorpusSearcher, registry ports.FileRegistry, subjects []string) *Handlers {
	handlers := &Handlers{
		chat:     chat,
		searcher: searcher,
		registry: registry,
		subjects: subjects,
	}

	server.AddTool(mcp.Tool{
		Name:        "course_question",
		Description: "Answer a question from the indexed course material, citing the source documents. Optionally restrict retrieval to specific subjects.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "The question to answer",
				},
				"subjects": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Subject display names to restrict retrieval to",
				},
				"nb_sources": map[string]interface{}{
					"type":        "number",
					"description": "How many passages to ground the answer on (default: 10)",
					"default":     10,
				},
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Conversation id, for follow-up questions",
				},
			},
			Required: []string{"question"},
		},
	}, handlers.CourseQuestion)

	server.AddTool(mcp.Tool{
		Name:        "search_corpus",
		Description: "Retrieve the most relevant course passages for a query, without generating an answer.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"max_results": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of passages to return (default: 5)",
					"default":     5,
				},
				"subjects": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Subject display names to restrict retrieval to",
				},
			},
			Required: []string{"query"},
		},
	}, handlers.SearchCorpus)

	server.AddTool(mcp.Tool{
		Name:        "list_subjects",
		Description: "List the subjects available in the indexed corpus.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.ListSubjects)

	server.AddTool(mcp.Tool{
		Name:        "index_stats",
		Description: "Report how many files and chunks are indexed, per subject.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.IndexStats)

	return handlers
}
