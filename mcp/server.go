// Package mcp provides the MCP (Model Context Protocol) server for Prism.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rHedBull/prism/internal/logging"
)

const protocolVersion = "2024-11-05"

// Server represents the MCP server.
type Server struct {
	version string
	logger  *slog.Logger
	graphs  *graphCache
	server  *mcp.Server
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server. A nil logger discards output.
func NewServer(version string, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	graphs, err := newGraphCache(DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	s := &Server{
		version: version,
		logger:  logger,
		graphs:  graphs,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "prism",
		Version: version,
	}, nil)
	s.registerTools()
	s.registerResources()

	return s, nil
}

// SDK returns the go-sdk server with the same tools and resources, for
// use with the SDK's own transports.
func (s *Server) SDK() *mcp.Server {
	return s.server
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        toolSummary,
			Description: "Summarize an architecture graph: node and edge counts by type, abstraction levels and the largest files.",
			InputSchema: schemaFor[SummaryArgs](),
		},
		{
			Name:        toolDiff,
			Description: "Compute the structural diff between two graphs: added, removed, moved and modified nodes plus edge changes.",
			InputSchema: schemaFor[DiffArgs](),
		},
		{
			Name:        toolPlan,
			Description: "Preview an architecture plan (add/remove/move operations) against a graph and return the resulting diff.",
			InputSchema: schemaFor[PlanArgs](),
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         schemaURI,
			Name:        "Graph Schema",
			Description: "Node, edge and diff formats of Prism graphs",
			MimeType:    "text/markdown",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case toolSummary:
		var in SummaryArgs
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		return s.summarize(in)
	case toolDiff:
		var in DiffArgs
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		return s.diffGraphs(in)
	case toolPlan:
		var in PlanArgs
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		return s.previewPlan(in)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case schemaURI:
		return getSchema(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run serves newline-delimited JSON-RPC over stdin and stdout until EOF
// or cancellation.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// Note: Do NOT use SetIndent - MCP protocol requires compact JSON (one line per message)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("mcp.bad_request", "err", err)
			continue
		}

		resp := s.handleRequest(ctx, req)
		if resp == nil {
			continue
		}
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

// handleRequest returns nil for notifications, which get no response.
func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id, hasID := req["id"]
	if !hasID && strings.HasPrefix(method, "notifications/") {
		return nil
	}
	s.logger.Debug("mcp.request", "method", method)

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "ping":
		return result(id, map[string]any{})
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return result(id, map[string]any{
		"protocolVersion": protocolVersion,
		"serverInfo": map[string]any{
			"name":    "prism",
			"version": s.version,
		},
		"capabilities": map[string]any{
			"tools": map[string]any{
				"listChanged": false,
			},
			"resources": map[string]any{
				"listChanged": false,
			},
		},
	})
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		var schemaMap map[string]any
		_ = json.Unmarshal(schema, &schemaMap)

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}
	return result(id, map[string]any{"tools": toolList})
}

// handleToolsCall reports tool failures as an isError result, like the
// SDK does, rather than as a protocol error.
func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	text, err := s.CallTool(ctx, name, args)
	if err != nil {
		s.logger.Info("mcp.tool_failed", "tool", name, "err", err)
		return result(id, map[string]any{
			"content": []map[string]any{{"type": "text", "text": err.Error()}},
			"isError": true,
		})
	}
	return result(id, map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
	})
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}
	return result(id, map[string]any{"resources": resourceList})
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)
	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32002, err.Error())
	}
	return result(id, map[string]any{
		"contents": []map[string]any{
			{
				"uri":      uri,
				"mimeType": "text/markdown",
				"text":     content,
			},
		},
	})
}

// Helper functions

func result(id any, res map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  res,
	}
}

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

// decodeArgs converts loosely typed JSON-RPC arguments into a tool's
// argument struct.
func decodeArgs(args map[string]any, dst any) error {
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func schemaFor[T any]() *jsonschema.Schema {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return &jsonschema.Schema{Type: "object"}
	}
	return schema
}
