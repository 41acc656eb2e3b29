// File: internal/mcp/handlers.go
package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jamf-mcp/api/schemas"
)

// maxCommandBytes bounds a command request body.
const maxCommandBytes = 1 << 20

// Handlers manages the HTTP request handling for the MCP server.
type Handlers struct {
	log   *zap.Logger
	tools *ToolService
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(logger *zap.Logger, tools *ToolService) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		log:   logger.Named("mcp_handlers"),
		tools: tools,
	}
}

// RegisterRoutes sets up the routing for the MCP server.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.HandleHealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/command", h.HandleCommand)
		r.Get("/tools", h.HandleListTools)
	})
}

// HandleHealthCheck is a simple handler to confirm the server is responsive.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// HandleListTools returns the registered tools and their parameters.
func (h *Handlers) HandleListTools(w http.ResponseWriter, r *http.Request) {
	tools := h.tools.Tools()
	h.respond(w, http.StatusOK, CommandResponse{
		Status:    "success",
		RequestID: middleware.GetReqID(r.Context()),
		Data:      map[string]interface{}{"count": len(tools), "tools": tools},
	})
}

// HandleCommand is the entry point for tool invocations.
func (h *Handlers) HandleCommand(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	var req CommandRequest
	body := io.LimitReader(r.Body, maxCommandBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, CommandResponse{
			Status:    "error",
			RequestID: requestID,
			Error:     fmt.Sprintf("Invalid request body: %v", err),
		})
		return
	}

	h.log.Info("Received command", zap.String("command", req.Command), zap.String("request_id", requestID))
	status, resp := h.execute(r.Context(), req)
	resp.RequestID = requestID
	h.respond(w, status, resp)
}

// execute runs one command and builds its response envelope. It is shared by
// the HTTP and websocket transports.
func (h *Handlers) execute(ctx context.Context, req CommandRequest) (int, CommandResponse) {
	name := strings.ToLower(strings.TrimSpace(req.Command))
	result, err := h.tools.Call(ctx, name, req.Params)
	switch {
	case errors.Is(err, ErrUnknownTool):
		return http.StatusBadRequest, CommandResponse{Status: "error", Error: fmt.Sprintf("Unknown command: %s", req.Command)}
	case errors.Is(err, ErrInvalidParams):
		return http.StatusBadRequest, CommandResponse{Status: "error", Error: fmt.Sprintf("Invalid parameters for %s: %v", name, err)}
	case err != nil:
		h.log.Error("Command failed", zap.String("command", name), zap.Error(err))
		return http.StatusInternalServerError, CommandResponse{Status: "error", Error: "Internal error."}
	}

	if payload, ok := result.(*schemas.ErrorPayload); ok {
		return http.StatusOK, CommandResponse{Status: "error", Data: payload}
	}
	return http.StatusOK, CommandResponse{Status: "success", Data: result}
}

func (h *Handlers) respond(w http.ResponseWriter, statusCode int, resp CommandResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}

// requestIDMiddleware assigns a UUID to each request, honouring an inbound
// X-Request-Id, and stores it where middleware.GetReqID finds it.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(middleware.RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
