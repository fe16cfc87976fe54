// Package transport exposes the dispatcher to clients: an MCP server
// over stdio or streamable HTTP, and a plain JSON API for callers that
// do not speak the protocol.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"docmcp/internal/domain"
	"docmcp/internal/infra/dispatch"
)

const serverName = "docmcp"

type MCPServer struct {
	dispatcher *dispatch.Dispatcher
	server     *mcp.Server
	logger     *zap.Logger
}

type MCPOptions struct {
	Version string
	Logger  *zap.Logger
}

func NewMCPServer(dispatcher *dispatch.Dispatcher, opts MCPOptions) (*MCPServer, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	s := &MCPServer{
		dispatcher: dispatcher,
		logger:     logger.Named("mcp"),
	}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: version,
	}, &mcp.ServerOptions{
		HasTools: true,
	})

	for _, def := range dispatcher.ListTools() {
		schema, ok := def.InputSchema.(*jsonschema.Schema)
		if !ok {
			return nil, fmt.Errorf("tool %q: input schema is not a JSON schema", def.Name)
		}
		s.server.AddTool(&mcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema,
		}, s.toolHandler(def.Name))
	}
	return s, nil
}

func (s *MCPServer) toolHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := s.dispatcher.Dispatch(ctx, domain.ToolCallRequest{
			Name:       name,
			Parameters: json.RawMessage(req.Params.Arguments),
			RequestID:  uuid.NewString(),
		})
		return toCallToolResult(result)
	}
}

// toCallToolResult renders a dispatch outcome for MCP clients. Tool
// failures travel as IsError results, never as protocol errors, so a
// stale handle does not tear down the session.
func toCallToolResult(result domain.ToolCallResult) (*mcp.CallToolResult, error) {
	if !result.Success {
		msg := "tool call failed"
		if result.Error != nil {
			msg = fmt.Sprintf("%s: %s", result.Error.Code, result.Error.Message)
		}
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		}, nil
	}

	text, err := json.Marshal(result.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return &mcp.CallToolResult{
		StructuredContent: result.Payload,
		Content:           []mcp.Content{&mcp.TextContent{Text: string(text)}},
	}, nil
}

// ServeStdio runs the MCP session over stdin/stdout until ctx ends.
func (s *MCPServer) ServeStdio(ctx context.Context) error {
	s.logger.Info("mcp server starting (stdio transport)")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the streamable HTTP endpoint for the same server.
func (s *MCPServer) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}
