package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
)

const (
	toolAskManual  = "ask_manual"
	toolCiteChunks = "cite_chunks"
)

// Tools exposes the answer and citation services as MCP tools.
type Tools struct {
	answers   ports.ManualQueryService
	citations ports.CitationService
}

func NewTools(answers ports.ManualQueryService, citations ports.CitationService) *Tools {
	return &Tools{answers: answers, citations: citations}
}

func NewServer(version string, tools *Tools) *server.MCPServer {
	s := server.NewMCPServer("manual-assistant", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool(toolAskManual,
		mcp.WithDescription("Answer a troubleshooting question from the indexed equipment manuals. "+
			"Returns the answer with page citations, figure thumbnails and redacted sources."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Question in natural language")),
		mcp.WithString("manual_id", mcp.Description("Restrict retrieval to one manual")),
		mcp.WithString("tenant_id", mcp.Description("Restrict retrieval to one tenant")),
	), tools.AskManual)

	s.AddTool(mcp.NewTool(toolCiteChunks,
		mcp.WithDescription("Rebuild page citations and thumbnails for chunk ids used in an answer."),
		mcp.WithArray("chunk_ids", mcp.Required(), mcp.Description("Chunk ids"), mcp.Items(map[string]any{"type": "string"})),
	), tools.CiteChunks)

	return s
}

// ServeStdio blocks until stdin closes.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func (t *Tools) AskManual(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := t.answers.Answer(ctx, domain.QueryRequest{
		Query:    query,
		ManualID: request.GetString("manual_id", ""),
		TenantID: request.GetString("tenant_id", ""),
	})
	if err != nil {
		return toolError(ctx, toolAskManual, err), nil
	}
	return jsonResult(resp)
}

func (t *Tools) CiteChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := request.RequireStringSlice("chunk_ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	set, err := t.citations.Build(ctx, ids)
	if err != nil {
		return toolError(ctx, toolCiteChunks, err), nil
	}
	return jsonResult(set)
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func toolError(ctx context.Context, tool string, err error) *mcp.CallToolResult {
	slog.ErrorContext(ctx, "mcp_tool_failed", "tool", tool, "error", err)
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return mcp.NewToolResultError(err.Error())
	case domain.IsKind(err, domain.ErrRetrieval):
		return mcp.NewToolResultError("retrieval failed")
	case domain.IsKind(err, domain.ErrGeneration):
		return mcp.NewToolResultError("answer generation failed")
	default:
		return mcp.NewToolResultError("internal error")
	}
}
