package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mipsou/mcp-linux-infra/internal/diag"
)

type hostInput struct {
	Host string `json:"host" jsonschema:"target host name or address"`
}

type serviceInput struct {
	Host    string `json:"host" jsonschema:"target host name or address"`
	Service string `json:"service" jsonschema:"systemd service name, with or without .service"`
}

type serviceLogsInput struct {
	Host    string `json:"host" jsonschema:"target host name or address"`
	Service string `json:"service" jsonschema:"systemd service name"`
	Lines   int    `json:"lines,omitempty" jsonschema:"number of log lines (default from config)"`
}

type connectivityInput struct {
	Host   string `json:"host" jsonschema:"source host for the ping"`
	Target string `json:"target" jsonschema:"hostname or IP to ping"`
	Count  int    `json:"count,omitempty" jsonschema:"number of ping packets (default 4)"`
}

type journalLogsInput struct {
	Host     string `json:"host" jsonschema:"target host name or address"`
	Lines    int    `json:"lines,omitempty" jsonschema:"number of log lines"`
	Priority string `json:"priority,omitempty" jsonschema:"journal priority filter, e.g. err"`
	Since    string `json:"since,omitempty" jsonschema:"time filter, relative or absolute"`
	Unit     string `json:"unit,omitempty" jsonschema:"systemd unit filter"`
}

type readLogFileInput struct {
	Host  string `json:"host" jsonschema:"target host name or address"`
	Path  string `json:"path" jsonschema:"log file path, must be in the allowed list"`
	Lines int    `json:"lines,omitempty" jsonschema:"number of lines from end"`
}

type searchLogsInput struct {
	Host    string `json:"host" jsonschema:"target host name or address"`
	Pattern string `json:"pattern" jsonschema:"regex pattern to search"`
	LogPath string `json:"log_path,omitempty" jsonschema:"log file path, empty searches the journal"`
	Lines   int    `json:"lines,omitempty" jsonschema:"max matching lines"`
	Context int    `json:"context,omitempty" jsonschema:"lines of context around each match"`
}

type analyzeErrorsInput struct {
	Host    string `json:"host" jsonschema:"target host name or address"`
	Service string `json:"service,omitempty" jsonschema:"service name, empty for system-wide"`
	Since   string `json:"since,omitempty" jsonschema:"time window (default 1h)"`
}

// hostOnly adapts a one-argument diag wrapper into a tool handler.
func (s *MCPServer) hostOnly(fn func(context.Context, string) (string, error)) func(context.Context, *mcp.CallToolRequest, hostInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input hostInput) (*mcp.CallToolResult, any, error) {
		host := strings.TrimSpace(input.Host)
		if host == "" {
			return nil, nil, fmt.Errorf("host is required")
		}
		out, err := fn(ctx, host)
		if err != nil {
			return nil, nil, err
		}
		return textToolResult(out), nil, nil
	}
}

func (s *MCPServer) registerDiagTools() {
	hostTools := []struct {
		name, desc string
		fn         func(context.Context, string) (string, error)
	}{
		{"get_system_info", "Get OS, kernel, uptime, load and hostname for a host", s.diag.SystemInfo},
		{"get_cpu_info", "Get CPU model, core count and load average", s.diag.CPUInfo},
		{"get_memory_info", "Get RAM and swap usage", s.diag.MemoryInfo},
		{"get_disk_usage", "Get disk usage for all real mount points", s.diag.DiskUsage},
		{"get_block_devices", "List block devices with size and mount points", s.diag.BlockDevices},
		{"list_services", "List all systemd services with their status", s.diag.ListServices},
		{"get_network_interfaces", "Get network interface configuration", s.diag.NetworkInterfaces},
		{"get_routing_table", "Get the kernel routing table", s.diag.RoutingTable},
		{"get_listening_ports", "List listening TCP/UDP ports with processes", s.diag.ListeningPorts},
		{"get_active_connections", "List active network connections", s.diag.ActiveConnections},
		{"get_dns_config", "Show resolv.conf and systemd-resolved status", s.diag.DNSConfig},
	}
	for _, t := range hostTools {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        t.name,
			Description: t.desc,
		}, instrumented(s, t.name, s.hostOnly(t.fn)))
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_service_status",
		Description: "Get detailed status of a systemd service",
	}, instrumented(s, "get_service_status", s.handleServiceStatus))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_service_logs",
		Description: "Get recent journal lines for a systemd service",
	}, instrumented(s, "get_service_logs", s.handleServiceLogs))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "check_service_health",
		Description: "Combined health check: unit state, PID, memory and recent errors",
	}, instrumented(s, "check_service_health", s.handleServiceHealth))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "test_connectivity",
		Description: "Ping a target from the remote host",
	}, instrumented(s, "test_connectivity", s.handleConnectivity))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_journal_logs",
		Description: "Get systemd journal logs with priority/time/unit filters",
	}, instrumented(s, "get_journal_logs", s.handleJournalLogs))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "read_log_file",
		Description: "Tail a log file; the path must match the allowed list",
	}, instrumented(s, "read_log_file", s.handleReadLogFile))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_logs",
		Description: "Search a pattern in a log file or the journal",
	}, instrumented(s, "search_logs", s.handleSearchLogs))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_errors",
		Description: "Summarise error-priority journal entries over a time window",
	}, instrumented(s, "analyze_errors", s.handleAnalyzeErrors))
}

func (s *MCPServer) handleServiceStatus(ctx context.Context, _ *mcp.CallToolRequest, input serviceInput) (*mcp.CallToolResult, any, error) {
	if input.Host == "" || input.Service == "" {
		return nil, nil, fmt.Errorf("host and service are required")
	}
	out, err := s.diag.ServiceStatus(ctx, input.Host, input.Service)
	if err != nil {
		return nil, nil, err
	}
	return textToolResult(out), nil, nil
}

func (s *MCPServer) handleServiceLogs(ctx context.Context, _ *mcp.CallToolRequest, input serviceLogsInput) (*mcp.CallToolResult, any, error) {
	if input.Host == "" || input.Service == "" {
		return nil, nil, fmt.Errorf("host and service are required")
	}
	out, err := s.diag.ServiceLogs(ctx, input.Host, input.Service, input.Lines)
	if err != nil {
		return nil, nil, err
	}
	return textToolResult(out), nil, nil
}

func (s *MCPServer) handleServiceHealth(ctx context.Context, _ *mcp.CallToolRequest, input serviceInput) (*mcp.CallToolResult, any, error) {
	if input.Host == "" || input.Service == "" {
		return nil, nil, fmt.Errorf("host and service are required")
	}
	out, err := s.diag.ServiceHealth(ctx, input.Host, input.Service)
	if err != nil {
		return nil, nil, err
	}
	return textToolResult(out), nil, nil
}

func (s *MCPServer) handleConnectivity(ctx context.Context, _ *mcp.CallToolRequest, input connectivityInput) (*mcp.CallToolResult, any, error) {
	if input.Host == "" || input.Target == "" {
		return nil, nil, fmt.Errorf("host and target are required")
	}
	out, err := s.diag.TestConnectivity(ctx, input.Host, input.Target, input.Count)
	if err != nil {
		return nil, nil, err
	}
	return textToolResult(out), nil, nil
}

func (s *MCPServer) handleJournalLogs(ctx context.Context, _ *mcp.CallToolRequest, input journalLogsInput) (*mcp.CallToolResult, any, error) {
	if input.Host == "" {
		return nil, nil, fmt.Errorf("host is required")
	}
	out, err := s.diag.JournalLogs(ctx, input.Host, diag.JournalOptions{
		Lines:    input.Lines,
		Priority: input.Priority,
		Since:    input.Since,
		Unit:     input.Unit,
	})
	if err != nil {
		return nil, nil, err
	}
	return textToolResult(out), nil, nil
}

func (s *MCPServer) handleReadLogFile(ctx context.Context, _ *mcp.CallToolRequest, input readLogFileInput) (*mcp.CallToolResult, any, error) {
	if input.Host == "" || input.Path == "" {
		return nil, nil, fmt.Errorf("host and path are required")
	}
	out, err := s.diag.ReadLogFile(ctx, input.Host, input.Path, input.Lines)
	if err != nil {
		return nil, nil, err
	}
	return textToolResult(out), nil, nil
}

func (s *MCPServer) handleSearchLogs(ctx context.Context, _ *mcp.CallToolRequest, input searchLogsInput) (*mcp.CallToolResult, any, error) {
	if input.Host == "" || input.Pattern == "" {
		return nil, nil, fmt.Errorf("host and pattern are required")
	}
	out, err := s.diag.SearchLogs(ctx, input.Host, input.Pattern, input.LogPath, input.Lines, input.Context)
	if err != nil {
		return nil, nil, err
	}
	return textToolResult(out), nil, nil
}

func (s *MCPServer) handleAnalyzeErrors(ctx context.Context, _ *mcp.CallToolRequest, input analyzeErrorsInput) (*mcp.CallToolResult, any, error) {
	if input.Host == "" {
		return nil, nil, fmt.Errorf("host is required")
	}
	out, err := s.diag.AnalyzeErrors(ctx, input.Host, input.Service, input.Since)
	if err != nil {
		return nil, nil, err
	}
	return textToolResult(out), nil, nil
}
