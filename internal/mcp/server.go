// Package mcp exposes a device link as Model Context Protocol tools over
// stdio, so an assistant can drive a bench recorder.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/codewiresh/h1link/internal/client"
)

const defaultReadLimit = 64 * 1024

// ---------------------------------------------------------------------------
// JSON-RPC 2.0 types
// ---------------------------------------------------------------------------

type jsonRpcRequest struct {
	Jsonrpc string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method"`
	Params  json.RawMessage  `json:"params,omitempty"`
}

type jsonRpcResponse struct {
	Jsonrpc string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Result  any              `json:"result,omitempty"`
	Error   *jsonRpcError    `json:"error,omitempty"`
}

type jsonRpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

// Caller is the part of *client.Client the tools use.
type Caller interface {
	Call(ctx context.Context, command string, fields map[string]any) (client.Reply, error)
	ReadFile(ctx context.Context, name string, dst io.Writer) (client.Reply, int64, error)
}

// ---------------------------------------------------------------------------
// MCP Server
// ---------------------------------------------------------------------------

// Serve reads JSON-RPC requests line by line from in and writes responses
// to out, forwarding tool calls to c. Notifications (requests without an
// id) get no response.
func Serve(ctx context.Context, in io.Reader, out io.Writer, c Caller, version string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var req jsonRpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			logger.Warn("invalid JSON-RPC", "error", err)
			continue
		}
		if req.ID == nil {
			continue
		}

		resp := jsonRpcResponse{Jsonrpc: "2.0", ID: req.ID}
		switch req.Method {
		case "initialize":
			resp.Result = map[string]any{
				"protocolVersion": "2024-11-05",
				"capabilities":    map[string]any{"tools": map[string]any{}},
				"serverInfo":      map[string]any{"name": "h1", "version": version},
			}
		case "ping":
			resp.Result = map[string]any{}
		case "tools/list":
			resp.Result = map[string]any{"tools": tools()}
		case "tools/call":
			text, err := callTool(ctx, c, req.Params)
			if err != nil {
				resp.Error = &jsonRpcError{Code: -32603, Message: err.Error()}
			} else {
				resp.Result = map[string]any{
					"content": []map[string]any{{"type": "text", "text": text}},
				}
			}
		default:
			resp.Error = &jsonRpcError{Code: -32601, Message: fmt.Sprintf("method not found: %s", req.Method)}
		}

		b, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "%s\n", b); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// ---------------------------------------------------------------------------
// Tool definitions
// ---------------------------------------------------------------------------

func tools() []tool {
	return []tool{
		{
			Name:        "h1_send",
			Description: "Send one link command to the recorder and return its JSON reply",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command": map[string]any{"type": "string", "description": "Command name, e.g. record or getevent"},
					"fields":  map[string]any{"type": "object", "description": "Additional request fields"},
				},
				"required": []string{"command"},
			},
		},
		{
			Name:        "h1_status",
			Description: "Return the recorder's status report",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		},
		{
			Name:        "h1_events",
			Description: "List recorded events, or only those not yet uploaded",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pending": map[string]any{"type": "boolean", "description": "Only events waiting for upload"},
				},
			},
		},
		{
			Name:        "h1_get_event",
			Description: "Return the metadata of one event",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{"type": "string", "description": "Event name"},
				},
				"required": []string{"name"},
			},
		},
		{
			Name:        "h1_read_file",
			Description: "Read a text file from the recorder's event directory",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"filename":  map[string]any{"type": "string", "description": "File name relative to the event directory"},
					"max_bytes": map[string]any{"type": "integer", "description": "Truncate after this many bytes (default 65536)"},
				},
				"required": []string{"filename"},
			},
		},
	}
}

// ---------------------------------------------------------------------------
// Tool dispatch
// ---------------------------------------------------------------------------

func callTool(ctx context.Context, c Caller, params json.RawMessage) (string, error) {
	var p struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return "", fmt.Errorf("invalid params: %w", err)
	}
	args := p.Arguments

	switch p.Name {
	case "h1_send":
		command, ok := args["command"].(string)
		if !ok || command == "" {
			return "", fmt.Errorf("command is required")
		}
		fields, _ := args["fields"].(map[string]any)
		return call(ctx, c, command, fields)
	case "h1_status":
		return call(ctx, c, "status", nil)
	case "h1_events":
		if pending, _ := args["pending"].(bool); pending {
			return call(ctx, c, "pendingeventlist", nil)
		}
		return call(ctx, c, "eventlist", nil)
	case "h1_get_event":
		name, ok := args["name"].(string)
		if !ok || name == "" {
			return "", fmt.Errorf("name is required")
		}
		return call(ctx, c, "getevent", map[string]any{"eventname": name})
	case "h1_read_file":
		return readFile(ctx, c, args)
	default:
		return "", fmt.Errorf("unknown tool: %s", p.Name)
	}
}

func call(ctx context.Context, c Caller, command string, fields map[string]any) (string, error) {
	reply, err := c.Call(ctx, command, fields)
	if err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(reply, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readFile(ctx context.Context, c Caller, args map[string]any) (string, error) {
	name, ok := args["filename"].(string)
	if !ok || name == "" {
		return "", fmt.Errorf("filename is required")
	}
	limit := defaultReadLimit
	if v, ok := args["max_bytes"].(float64); ok && v > 0 {
		limit = int(v)
	}

	buf := &limitBuffer{limit: limit}
	reply, n, err := c.ReadFile(ctx, name, buf)
	if err != nil {
		return "", err
	}
	if st := reply.Status(); !st.OK() {
		return "", fmt.Errorf("readfile %s: device returned %s", name, st)
	}
	if !utf8.Valid(buf.Bytes()) {
		return fmt.Sprintf("%s is binary (%d bytes)", name, n), nil
	}
	text := buf.String()
	if n > int64(limit) {
		text += fmt.Sprintf("\n[truncated: showing %d of %d bytes]", limit, n)
	}
	return text, nil
}

// limitBuffer keeps the first limit bytes written and discards the rest
// while still reporting full writes, so the transfer drains completely.
type limitBuffer struct {
	bytes.Buffer
	limit int
}

func (b *limitBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.Len(); room > 0 {
		b.Buffer.Write(p[:min(room, len(p))])
	}
	return len(p), nil
}
