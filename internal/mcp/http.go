package mcp

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/namelens/coinbridge/internal/observability"
)

const maxBodySize = 1 << 20

// ServeHTTP handles one JSON-RPC request per POST. Notifications get 204 and
// an undecodable body gets a 500 carrying a JSON-RPC error.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeRPC(w, http.StatusInternalServerError, errorResponse(nil, CodeInternalError, "Internal error: "+err.Error()))
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		if observability.ServerLogger != nil {
			observability.ServerLogger.Warn("Rejecting undecodable MCP request",
				zap.String("server", s.name),
				zap.Error(err))
		}
		writeRPC(w, http.StatusInternalServerError, errorResponse(nil, CodeInternalError, "Internal error: "+err.Error()))
		return
	}

	resp := s.Handle(r.Context(), req)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeRPC(w, http.StatusOK, resp)
}

func writeRPC(w http.ResponseWriter, status int, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(resp)
}
