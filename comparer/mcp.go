package comparer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers the domdiff tools on an MCP server.
func RegisterMCP(srv *mcp.Server, c *Comparer) {
	registerCompareTool(srv, c)
	registerHistoryTool(srv, c)
	registerGetTool(srv, c)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// registerTool adapts a typed endpoint to an MCP tool handler. Decode and
// endpoint errors become tool errors; the result is returned as JSON text.
// An endpoint may return a partial result with its error: the tool error
// then carries that result as a second text block.
func registerTool[T any](srv *mcp.Server, tool *mcp.Tool, endpoint func(context.Context, *T) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var in T
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &in); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}

		out, err := endpoint(ctx, &in)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			if out != nil {
				if data, merr := json.Marshal(out); merr == nil {
					res.Content = append(res.Content, &mcp.TextContent{Text: string(data)})
				}
			}
			return &res, nil
		}

		data, err := json.Marshal(out)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func registerCompareTool(srv *mcp.Server, c *Comparer) {
	tool := &mcp.Tool{
		Name: "domdiff_compare",
		Description: "Compare two HTML documents (URLs, file paths or inline HTML) and list their " +
			"structural differences by position. Optionally ask the configured model for a semantic evaluation.",
		InputSchema: inputSchema(map[string]any{
			"source_a": map[string]any{"type": "string", "description": "Old document: URL or file path"},
			"source_b": map[string]any{"type": "string", "description": "New document: URL or file path"},
			"html_a":   map[string]any{"type": "string", "description": "Old document as inline HTML (overrides source_a)"},
			"html_b":   map[string]any{"type": "string", "description": "New document as inline HTML (overrides source_b)"},
			"selector": map[string]any{"type": "string", "description": "CSS selector scoping both documents"},
			"xpath":    map[string]any{"type": "string", "description": "XPath expression scoping both documents"},
			"sanitize": map[string]any{"type": "boolean", "description": "Strip scripts and unsafe attributes before comparing"},
			"evaluate": map[string]any{"type": "boolean", "description": "Request a semantic evaluation of the differences"},
			"model":    map[string]any{"type": "string", "description": "Model hint for the evaluation"},
			"context":  map[string]any{"type": "boolean", "description": "Include a Markdown excerpt of the new document in the evaluation input"},
		}, nil),
	}
	registerTool(srv, tool, func(ctx context.Context, req *Request) (any, error) {
		rep, err := c.Compare(ctx, *req)
		if rep == nil {
			return nil, err
		}
		return rep, err
	})
}

type historyReq struct {
	Limit int `json:"limit"`
}

func registerHistoryTool(srv *mcp.Server, c *Comparer) {
	tool := &mcp.Tool{
		Name:        "domdiff_history",
		Description: "List past comparisons, newest first, without their change records.",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Maximum entries (default 50)"},
		}, nil),
	}
	registerTool(srv, tool, func(ctx context.Context, req *historyReq) (any, error) {
		entries, err := c.History(ctx, req.Limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"comparisons": entries, "count": len(entries)}, nil
	})
}

type getReq struct {
	ID string `json:"id"`
}

func registerGetTool(srv *mcp.Server, c *Comparer) {
	tool := &mcp.Tool{
		Name:        "domdiff_get",
		Description: "Fetch one past comparison report, change records included.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Comparison id"},
		}, []string{"id"}),
	}
	registerTool(srv, tool, func(ctx context.Context, req *getReq) (any, error) {
		rep, err := c.Lookup(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		if rep == nil {
			return nil, fmt.Errorf("comparison %q not found", req.ID)
		}
		return rep, nil
	})
}
