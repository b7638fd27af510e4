package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mipsou/mcp-linux-infra/internal/remediation"
)

type executeCommandInput struct {
	Host    string `json:"host" jsonschema:"target host name or address"`
	Command string `json:"command" jsonschema:"shell command to run"`
	User    string `json:"user,omitempty" jsonschema:"requesting user for the audit trail"`
	// ForceApproval bypasses the approval gate. Audited as a security
	// violation.
	ForceApproval bool `json:"force_approval,omitempty" jsonschema:"bypass the approval gate (audited)"`
}

type approveCommandInput struct {
	ApprovalID string `json:"approval_id" jsonschema:"pending command identifier (cmd_xxxxxxxx)"`
	Approver   string `json:"approver,omitempty" jsonschema:"who approves, for the audit trail"`
}

type rejectCommandInput struct {
	ApprovalID string `json:"approval_id" jsonschema:"pending command identifier"`
	Approver   string `json:"approver,omitempty" jsonschema:"who rejects, for the audit trail"`
}

type proposeActionInput struct {
	Action      string `json:"action" jsonschema:"remediation action name from the catalog"`
	Host        string `json:"host" jsonschema:"target host name or address"`
	Target      string `json:"target,omitempty" jsonschema:"action parameter, e.g. container name"`
	Rationale   string `json:"rationale" jsonschema:"why this action is needed"`
	AutoApprove bool   `json:"auto_approve,omitempty" jsonschema:"auto-approve low impact actions"`
}

type decideActionInput struct {
	ID       string `json:"id" jsonschema:"remediation action identifier"`
	Approved bool   `json:"approved" jsonschema:"true to approve, false to reject"`
	Approver string `json:"approver,omitempty" jsonschema:"who decides, for the audit trail"`
}

type actionIDInput struct {
	ID string `json:"id" jsonschema:"remediation action identifier"`
}

type emptyInput struct{}

func (s *MCPServer) registerExecTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "execute_ssh_command",
		Description: "Run a command on a host through the authorization whitelist",
	}, instrumented(s, "execute_ssh_command", s.handleExecuteCommand))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "approve_command",
		Description: "Approve a pending command and execute it over the executor channel",
	}, instrumented(s, "approve_command", s.handleApproveCommand))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reject_command",
		Description: "Reject a pending command",
	}, instrumented(s, "reject_command", s.handleRejectCommand))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_pending_approvals",
		Description: "List commands waiting for a decision",
	}, instrumented(s, "list_pending_approvals", s.handleListPendingApprovals))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "show_command_whitelist",
		Description: "Show the active whitelist rules grouped by authorization level",
	}, instrumented(s, "show_command_whitelist", s.handleShowWhitelist))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "propose_remote_execution",
		Description: "Propose a remediation action from the curated catalog",
	}, instrumented(s, "propose_remote_execution", s.handleProposeAction))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "approve_remote_execution",
		Description: "Approve or reject a proposed remediation action",
	}, instrumented(s, "approve_remote_execution", s.handleDecideAction))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "execute_remote_execution",
		Description: "Execute an approved remediation action",
	}, instrumented(s, "execute_remote_execution", s.handleExecuteAction))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_pending_actions",
		Description: "List remediation actions still in flight",
	}, instrumented(s, "list_pending_actions", s.handleListPendingActions))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_remediation_actions",
		Description: "Show the remediation action catalog with impact levels",
	}, instrumented(s, "list_remediation_actions", s.handleActionCatalog))
}

func (s *MCPServer) handleExecuteCommand(ctx context.Context, _ *mcp.CallToolRequest, input executeCommandInput) (*mcp.CallToolResult, any, error) {
	host := strings.TrimSpace(input.Host)
	command := strings.TrimSpace(input.Command)
	if host == "" {
		return nil, nil, fmt.Errorf("host is required")
	}
	if command == "" {
		return nil, nil, fmt.Errorf("command is required")
	}
	user := strings.TrimSpace(input.User)
	if user == "" {
		user = "mcp-user"
	}

	out := s.exec.Execute(ctx, host, command, user, input.ForceApproval)
	return jsonToolResult(out)
}

func (s *MCPServer) handleApproveCommand(ctx context.Context, _ *mcp.CallToolRequest, input approveCommandInput) (*mcp.CallToolResult, any, error) {
	id := strings.TrimSpace(input.ApprovalID)
	if id == "" {
		return nil, nil, fmt.Errorf("approval_id is required")
	}
	out := s.exec.ApproveAndRun(ctx, id, input.Approver)
	return jsonToolResult(out)
}

func (s *MCPServer) handleRejectCommand(_ context.Context, _ *mcp.CallToolRequest, input rejectCommandInput) (*mcp.CallToolResult, any, error) {
	id := strings.TrimSpace(input.ApprovalID)
	if id == "" {
		return nil, nil, fmt.Errorf("approval_id is required")
	}
	entry, err := s.exec.Reject(id, input.Approver)
	if err != nil {
		return nil, nil, err
	}
	return jsonToolResult(entry)
}

func (s *MCPServer) handleListPendingApprovals(_ context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	return jsonToolResult(s.exec.Pending())
}

type whitelistRule struct {
	Pattern     string `json:"pattern"`
	SSHUser     string `json:"ssh_user"`
	Description string `json:"description"`
	Rationale   string `json:"rationale,omitempty"`
}

func (s *MCPServer) handleShowWhitelist(_ context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	grouped := s.exec.Engine().WhitelistSummary()
	out := make(map[string][]whitelistRule, len(grouped))
	for level, rules := range grouped {
		view := make([]whitelistRule, 0, len(rules))
		for _, r := range rules {
			view = append(view, whitelistRule{
				Pattern:     r.Pattern,
				SSHUser:     string(r.SSHUser),
				Description: r.Description,
				Rationale:   r.Rationale,
			})
		}
		out[level] = view
	}
	return jsonToolResult(out)
}

func (s *MCPServer) handleProposeAction(_ context.Context, _ *mcp.CallToolRequest, input proposeActionInput) (*mcp.CallToolResult, any, error) {
	if input.Action == "" || input.Host == "" {
		return nil, nil, fmt.Errorf("action and host are required")
	}
	entry, err := s.rem.Propose(input.Action, input.Host, input.Target, input.Rationale, input.AutoApprove)
	if err != nil {
		return nil, nil, err
	}
	return jsonToolResult(entry)
}

func (s *MCPServer) handleDecideAction(_ context.Context, _ *mcp.CallToolRequest, input decideActionInput) (*mcp.CallToolResult, any, error) {
	if input.ID == "" {
		return nil, nil, fmt.Errorf("id is required")
	}
	entry, err := s.rem.Decide(input.ID, input.Approved, input.Approver)
	if err != nil {
		return nil, nil, err
	}
	return jsonToolResult(entry)
}

func (s *MCPServer) handleExecuteAction(ctx context.Context, _ *mcp.CallToolRequest, input actionIDInput) (*mcp.CallToolResult, any, error) {
	if input.ID == "" {
		return nil, nil, fmt.Errorf("id is required")
	}
	entry, res, err := s.rem.Execute(ctx, input.ID)
	if err != nil {
		return nil, nil, err
	}
	return jsonToolResult(map[string]any{
		"action": entry.Payload,
		"status": entry.Status,
		"result": res,
	})
}

func (s *MCPServer) handleListPendingActions(_ context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	return jsonToolResult(s.rem.ListPending())
}

func (s *MCPServer) handleActionCatalog(_ context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	return jsonToolResult(remediation.Catalog())
}
