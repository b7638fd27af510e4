package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mipsou/mcp-linux-infra/internal/ansible"
)

type runPlaybookInput struct {
	Host      string            `json:"host" jsonschema:"host where ansible-playbook runs"`
	Playbook  string            `json:"playbook" jsonschema:"path to the playbook on the remote host"`
	Inventory string            `json:"inventory,omitempty" jsonschema:"ansible inventory (default localhost,)"`
	CheckMode bool              `json:"check_mode,omitempty" jsonschema:"dry run, auto-approved"`
	ExtraVars map[string]string `json:"extra_vars,omitempty" jsonschema:"extra variables passed to ansible"`
	User      string            `json:"user,omitempty" jsonschema:"requesting user for the audit trail"`
	// AutoApprove bypasses the approval gate for non-check runs.
	AutoApprove bool `json:"auto_approve,omitempty" jsonschema:"bypass approval for real runs (audited)"`
}

type checkPlaybookInput struct {
	Host      string            `json:"host" jsonschema:"host where ansible-playbook runs"`
	Playbook  string            `json:"playbook" jsonschema:"path to the playbook on the remote host"`
	Inventory string            `json:"inventory,omitempty" jsonschema:"ansible inventory (default localhost,)"`
	ExtraVars map[string]string `json:"extra_vars,omitempty" jsonschema:"extra variables passed to ansible"`
	User      string            `json:"user,omitempty" jsonschema:"requesting user for the audit trail"`
}

type listPlaybooksInput struct {
	Host string `json:"host" jsonschema:"target host name or address"`
	Dir  string `json:"dir,omitempty" jsonschema:"playbooks directory (default /opt/infra/playbooks)"`
}

type showInventoryInput struct {
	Host string `json:"host" jsonschema:"target host name or address"`
	Path string `json:"path,omitempty" jsonschema:"inventory path (default /opt/infra/inventory)"`
}

func (s *MCPServer) registerAnsibleTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "run_ansible_playbook",
		Description: "Run an Ansible playbook; real runs need approval, check mode is auto-approved",
	}, instrumented(s, "run_ansible_playbook", s.handleRunPlaybook))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "check_ansible_playbook",
		Description: "Dry-run an Ansible playbook (always auto-approved)",
	}, instrumented(s, "check_ansible_playbook", s.handleCheckPlaybook))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_ansible_playbooks",
		Description: "List playbook files on the remote host",
	}, instrumented(s, "list_ansible_playbooks", s.handleListPlaybooks))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "show_ansible_inventory",
		Description: "Show the Ansible inventory on the remote host",
	}, instrumented(s, "show_ansible_inventory", s.handleShowInventory))
}

func (s *MCPServer) handleRunPlaybook(ctx context.Context, _ *mcp.CallToolRequest, input runPlaybookInput) (*mcp.CallToolResult, any, error) {
	if input.Host == "" || input.Playbook == "" {
		return nil, nil, fmt.Errorf("host and playbook are required")
	}
	out := s.ansible.RunPlaybook(ctx, input.Host, input.Playbook, input.User, ansible.PlaybookOptions{
		Inventory:   input.Inventory,
		CheckMode:   input.CheckMode,
		ExtraVars:   input.ExtraVars,
		AutoApprove: input.AutoApprove,
	})
	return jsonToolResult(out)
}

func (s *MCPServer) handleCheckPlaybook(ctx context.Context, _ *mcp.CallToolRequest, input checkPlaybookInput) (*mcp.CallToolResult, any, error) {
	if input.Host == "" || input.Playbook == "" {
		return nil, nil, fmt.Errorf("host and playbook are required")
	}
	out := s.ansible.CheckPlaybook(ctx, input.Host, input.Playbook, input.User, ansible.PlaybookOptions{
		Inventory: input.Inventory,
		ExtraVars: input.ExtraVars,
	})
	return jsonToolResult(out)
}

func (s *MCPServer) handleListPlaybooks(ctx context.Context, _ *mcp.CallToolRequest, input listPlaybooksInput) (*mcp.CallToolResult, any, error) {
	if input.Host == "" {
		return nil, nil, fmt.Errorf("host is required")
	}
	out, err := s.ansible.ListPlaybooks(ctx, input.Host, input.Dir)
	if err != nil {
		return nil, nil, err
	}
	return textToolResult(out), nil, nil
}

func (s *MCPServer) handleShowInventory(ctx context.Context, _ *mcp.CallToolRequest, input showInventoryInput) (*mcp.CallToolResult, any, error) {
	if input.Host == "" {
		return nil, nil, fmt.Errorf("host is required")
	}
	out, err := s.ansible.ShowInventory(ctx, input.Host, input.Path)
	if err != nil {
		return nil, nil, err
	}
	return textToolResult(out), nil, nil
}
