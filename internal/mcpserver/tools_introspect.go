package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mipsou/mcp-linux-infra/internal/policy"
)

type commandInput struct {
	Command string `json:"command" jsonschema:"command line to analyze"`
}

type suggestionsInput struct {
	MinCount    int `json:"min_count,omitempty" jsonschema:"minimum denial count (default 3)"`
	MinAgeHours int `json:"min_age_hours,omitempty" jsonschema:"minimum age of the first denial in hours"`
}

type pluginInput struct {
	Name string `json:"name" jsonschema:"plugin name"`
}

type searchInput struct {
	Query string `json:"query" jsonschema:"substring to search in command keys and descriptions"`
}

func (s *MCPServer) registerIntrospectionTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_command",
		Description: "Classify a command: risk level, category and whitelist recommendation",
	}, instrumented(s, "analyze_command", s.handleAnalyzeCommand))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_learning_suggestions",
		Description: "Rank repeatedly denied commands as whitelist candidates (low risk only)",
	}, instrumented(s, "get_learning_suggestions", s.handleLearningSuggestions))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_learning_stats",
		Description: "Aggregate statistics over recorded command denials",
	}, instrumented(s, "get_learning_stats", s.handleLearningStats))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_command_plugins",
		Description: "List command classification plugins with category and size",
	}, instrumented(s, "list_command_plugins", s.handleListPlugins))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_plugin_details",
		Description: "Show every command spec registered by one plugin",
	}, instrumented(s, "get_plugin_details", s.handlePluginDetails))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_commands",
		Description: "Search catalog command specs by key, description or rationale",
	}, instrumented(s, "search_commands", s.handleSearchCommands))
}

func (s *MCPServer) handleAnalyzeCommand(_ context.Context, _ *mcp.CallToolRequest, input commandInput) (*mcp.CallToolResult, any, error) {
	cmd := strings.TrimSpace(input.Command)
	if cmd == "" {
		return nil, nil, fmt.Errorf("command is required")
	}
	return jsonToolResult(policy.Classify(s.catalog, cmd))
}

func (s *MCPServer) handleLearningSuggestions(_ context.Context, _ *mcp.CallToolRequest, input suggestionsInput) (*mcp.CallToolResult, any, error) {
	minCount := input.MinCount
	if minCount <= 0 {
		minCount = 3
	}
	minAge := time.Duration(input.MinAgeHours) * time.Hour
	// Only LOW risk commands are ever suggested for whitelisting.
	suggestions := s.collector.Suggestions(minCount, minAge, policy.RiskLow)
	return jsonToolResult(map[string]any{
		"count":       len(suggestions),
		"suggestions": suggestions,
	})
}

func (s *MCPServer) handleLearningStats(_ context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	return jsonToolResult(map[string]any{
		"summary":     s.collector.Summarize(),
		"top_blocked": s.collector.TopBlocked(10),
	})
}

type pluginSummary struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Commands    int    `json:"commands"`
}

func (s *MCPServer) handleListPlugins(_ context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	plugins := s.catalog.Plugins()
	out := make([]pluginSummary, 0, len(plugins))
	for _, p := range plugins {
		out = append(out, pluginSummary{
			Name:        p.Name,
			Category:    p.Category,
			Description: p.Description,
			Commands:    len(p.Keys()),
		})
	}
	return jsonToolResult(out)
}

type specView struct {
	Key         string   `json:"command"`
	Pattern     string   `json:"pattern"`
	Risk        string   `json:"risk_level"`
	Level       string   `json:"auth_level"`
	Role        string   `json:"ssh_role"`
	Description string   `json:"description"`
	Rationale   string   `json:"rationale,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

func viewOf(key string, spec *policy.CommandSpec) specView {
	return specView{
		Key:         key,
		Pattern:     spec.Pattern.String(),
		Risk:        string(spec.Risk),
		Level:       string(spec.Level),
		Role:        string(spec.Role),
		Description: spec.Description,
		Rationale:   spec.Rationale,
		Examples:    spec.Examples,
	}
}

func (s *MCPServer) handlePluginDetails(_ context.Context, _ *mcp.CallToolRequest, input pluginInput) (*mcp.CallToolResult, any, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, nil, fmt.Errorf("name is required")
	}
	p, ok := s.catalog.Plugin(name)
	if !ok {
		return nil, nil, fmt.Errorf("plugin not found: %s", name)
	}

	specs := make([]specView, 0, len(p.Keys()))
	for _, key := range p.Keys() {
		spec, _ := p.Get(key)
		specs = append(specs, viewOf(key, spec))
	}
	return jsonToolResult(map[string]any{
		"name":        p.Name,
		"category":    p.Category,
		"description": p.Description,
		"specs":       specs,
	})
}

func (s *MCPServer) handleSearchCommands(_ context.Context, _ *mcp.CallToolRequest, input searchInput) (*mcp.CallToolResult, any, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, nil, fmt.Errorf("query is required")
	}

	hits := s.catalog.Search(query)
	type hit struct {
		Plugin string   `json:"plugin"`
		Spec   specView `json:"spec"`
	}
	out := make([]hit, 0, len(hits))
	for _, h := range hits {
		out = append(out, hit{Plugin: h.Plugin.Name, Spec: viewOf(h.Key, h.Spec)})
	}
	return jsonToolResult(out)
}
