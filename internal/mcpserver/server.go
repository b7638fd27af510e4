// Package mcpserver exposes the broker's operations as MCP tools over an
// SSE transport. Every handler goes through the same instrumentation
// wrapper, so each call lands in the audit trail and the metrics.
package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/mipsou/mcp-linux-infra/internal/ansible"
	"github.com/mipsou/mcp-linux-infra/internal/audit"
	"github.com/mipsou/mcp-linux-infra/internal/diag"
	"github.com/mipsou/mcp-linux-infra/internal/executor"
	"github.com/mipsou/mcp-linux-infra/internal/learning"
	"github.com/mipsou/mcp-linux-infra/internal/metrics"
	"github.com/mipsou/mcp-linux-infra/internal/policy"
	"github.com/mipsou/mcp-linux-infra/internal/remediation"
	"github.com/mipsou/mcp-linux-infra/internal/telemetry"
)

// Version is injected from the build metadata.
var Version = "dev"

// MCPServer wires the broker subsystems into one MCP tool surface.
type MCPServer struct {
	server    *mcp.Server
	handler   http.Handler
	exec      *executor.Executor
	diag      *diag.Client
	rem       *remediation.Manager
	ansible   *ansible.Runner
	collector *learning.Collector
	catalog   *policy.Catalog
	aud       *audit.Logger
	logger    *zap.Logger
}

// New creates and wires the MCP server surface.
func New(
	exec *executor.Executor,
	diagClient *diag.Client,
	rem *remediation.Manager,
	ans *ansible.Runner,
	collector *learning.Collector,
	catalog *policy.Catalog,
	aud *audit.Logger,
	logger *zap.Logger,
) *MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if catalog == nil {
		catalog = policy.Default()
	}

	implVersion := Version
	if implVersion == "" {
		implVersion = "dev"
	}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "mcp-linux-infra",
		Version: implVersion,
	}, nil)

	s := &MCPServer{
		server:    srv,
		exec:      exec,
		diag:      diagClient,
		rem:       rem,
		ansible:   ans,
		collector: collector,
		catalog:   catalog,
		aud:       aud,
		logger:    logger.Named("mcp"),
	}

	s.registerDiagTools()
	s.registerExecTools()
	s.registerAnsibleTools()
	s.registerIntrospectionTools()
	s.handler = mcp.NewSSEHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	return s
}

// Handler returns the HTTP SSE transport handler mounted at /mcp.
func (s *MCPServer) Handler() http.Handler {
	if s == nil {
		return http.NotFoundHandler()
	}
	return s.handler
}

// instrumented wraps a tool handler with the tool span, the per-tool
// counter, and an audit event carrying the sanitized input.
func instrumented[T any](s *MCPServer, name string, h func(context.Context, *mcp.CallToolRequest, T) (*mcp.CallToolResult, any, error)) func(context.Context, *mcp.CallToolRequest, T) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input T) (*mcp.CallToolResult, any, error) {
		ctx, span := telemetry.StartToolSpan(ctx, name)
		defer span.End()
		start := time.Now()

		res, out, err := h(ctx, req, input)

		status := "success"
		auditStatus := audit.StatusSuccess
		errMsg := ""
		if err != nil {
			status = "error"
			auditStatus = audit.StatusFailure
			errMsg = err.Error()
		}
		metrics.RecordToolCall(name, status)
		if s.aud != nil {
			s.aud.ToolCall(name, toParams(input), auditStatus,
				float64(time.Since(start).Milliseconds()), errMsg)
		}
		return res, out, err
	}
}

// toParams converts a tool input struct into the audit detail map. The
// sink redacts sensitive keys on its side.
func toParams(input any) map[string]any {
	data, err := json.Marshal(input)
	if err != nil {
		return nil
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return nil
	}
	return params
}

func jsonToolResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	return textToolResult(string(data)), nil, nil
}

func textToolResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
