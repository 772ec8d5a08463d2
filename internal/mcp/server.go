package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"

	"github.com/namelens/coinbridge/internal/metrics"
	"github.com/namelens/coinbridge/internal/observability"
	"github.com/namelens/coinbridge/internal/upstream"
)

// ArgumentError reports tool arguments that are missing or cannot be decoded.
// It surfaces as a JSON-RPC internal error rather than a tool result.
type ArgumentError struct {
	Tool string
	Err  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %v", e.Tool, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// Server dispatches JSON-RPC requests to a fixed set of tools.
type Server struct {
	name    string
	version string
	tools   []Tool
	index   map[string]int
}

// NewServer creates a server. Later tools with a duplicate name replace
// earlier ones.
func NewServer(name, version string, tools ...Tool) *Server {
	s := &Server{name: name, version: version, index: make(map[string]int, len(tools))}
	for _, tool := range tools {
		if i, ok := s.index[tool.Name]; ok {
			s.tools[i] = tool
			continue
		}
		s.index[tool.Name] = len(s.tools)
		s.tools = append(s.tools, tool)
	}
	return s
}

// Name returns the server name reported by initialize.
func (s *Server) Name() string { return s.name }

// Version returns the server version reported by initialize.
func (s *Server) Version() string { return s.version }

// Tools returns the registry in registration order.
func (s *Server) Tools() []Tool {
	return append([]Tool(nil), s.tools...)
}

// Handle answers one request. It returns nil for notifications.
func (s *Server) Handle(ctx context.Context, req Request) (resp *Response) {
	if req.IsNotification() {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.RecordPanic()
			if observability.ServerLogger != nil {
				observability.ServerLogger.Error("Panic while handling MCP request",
					zap.String("server", s.name),
					zap.String("method", req.Method),
					zap.Any("panic", r))
			}
			resp = errorResponse(req.ID, CodeInternalError, fmt.Sprintf("Internal error: %v", r))
		}
	}()

	result, rpcErr := s.dispatch(ctx, req)
	if rpcErr != nil {
		return errorResponse(req.ID, rpcErr.Code, rpcErr.Message)
	}
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) dispatch(ctx context.Context, req Request) (any, *RPCError) {
	switch req.Method {
	case "initialize":
		return initializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      serverInfo{Name: s.name, Version: s.version},
		}, nil
	case "tools/list":
		tools := s.tools
		if tools == nil {
			tools = []Tool{}
		}
		return listResult{Tools: tools}, nil
	case "tools/call":
		var params callParams
		if len(bytes.TrimSpace(req.Params)) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				return nil, &RPCError{Code: CodeInternalError, Message: "Internal error: " + err.Error()}
			}
		}
		result, err := s.Call(ctx, params.Name, params.Arguments)
		if err != nil {
			return nil, &RPCError{Code: CodeInternalError, Message: "Internal error: " + err.Error()}
		}
		return result, nil
	default:
		return nil, &RPCError{Code: CodeMethodNotFound, Message: "Method not found: " + req.Method}
	}
}

// Call runs a tool and wraps its output as text content. Tool failures are
// reported inside the content; only argument errors are returned.
func (s *Server) Call(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	i, ok := s.index[name]
	if !ok {
		return textResult(map[string]any{"error": "Unknown tool: " + name})
	}
	tool := s.tools[i]
	if args == nil {
		args = map[string]any{}
	}
	for _, key := range tool.InputSchema.Required {
		if missing(args[key]) {
			return nil, &ArgumentError{Tool: name, Err: fmt.Errorf("missing required argument %q", key)}
		}
	}

	start := time.Now()
	out, err := tool.Handler(ctx, args)
	metrics.RecordOperation("mcp."+name, err == nil)

	var argErr *ArgumentError
	if errors.As(err, &argErr) {
		if argErr.Tool == "" {
			argErr.Tool = name
		}
		return nil, argErr
	}
	if err != nil {
		logToolError(s.name, name, err, time.Since(start))
		metrics.RecordToolError(s.name, name, err)
		return textResult(toolError(err, args))
	}
	return textResult(out)
}

// toolError is the payload for a failed tool call. Network failures carry
// extra flags telling the client to stop retrying.
func toolError(err error, args map[string]any) map[string]any {
	payload := map[string]any{"error": err.Error()}
	if !upstream.IsUnreachable(err) {
		return payload
	}
	payload["network_error"] = true
	payload["stop_execution"] = true
	payload["user_action_required"] = upstream.UserAction
	if symbol, ok := args["symbol"]; ok {
		payload["symbol"] = symbol
	}
	return payload
}

func textResult(v any) (*CallResult, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	text := strings.TrimRight(buf.String(), "\n")
	return &CallResult{Content: []Content{{Type: "text", Text: text}}}, nil
}

func errorResponse(id json.RawMessage, code int, msg string) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: msg}}
}

func missing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	}
	return false
}

func logToolError(server, tool string, err error, elapsed time.Duration) {
	if observability.ServerLogger == nil {
		return
	}
	observability.ServerLogger.Warn("MCP tool failed",
		zap.String("server", server),
		zap.String("tool", tool),
		zap.Duration("elapsed", elapsed),
		zap.Error(err))
}

// Bind adapts a typed tool function to a Handler. Arguments are decoded onto
// a copy of defaults, so absent keys keep their default values. Numbers
// given as strings and similar loose input are accepted.
func Bind[T any](defaults T, fn func(ctx context.Context, args T) (any, error)) Handler {
	return func(ctx context.Context, raw map[string]any) (any, error) {
		args := defaults
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &args,
			TagName:          "json",
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(raw); err != nil {
			return nil, &ArgumentError{Err: err}
		}
		return fn(ctx, args)
	}
}

// NoArgs adapts a function that takes no arguments.
func NoArgs(fn func(ctx context.Context) (any, error)) Handler {
	return func(ctx context.Context, _ map[string]any) (any, error) {
		return fn(ctx)
	}
}
