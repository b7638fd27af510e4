package authz

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mipsou/mcp-linux-infra/internal/approval"
	"github.com/mipsou/mcp-linux-infra/internal/policy"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed       bool             `json:"allowed"`
	Level         policy.AuthLevel `json:"auth_level"`
	SSHUser       policy.SSHRole   `json:"ssh_user,omitempty"`
	NeedsApproval bool             `json:"needs_approval"`
	ApprovalID    string           `json:"approval_id,omitempty"`
	Reason        string           `json:"reason"`

	// Rule is the matched rule, nil on default deny.
	Rule *Rule `json:"-"`
}

// PendingCommand is the payload retained while a MANUAL command waits for a
// decision.
type PendingCommand struct {
	Host        string         `json:"host"`
	Command     string         `json:"command"`
	SSHUser     policy.SSHRole `json:"ssh_user"`
	Description string         `json:"description"`
}

// Recorder receives commands the engine denied, so repeated denials can be
// surfaced as whitelist suggestions.
type Recorder interface {
	Record(command, user, host string)
}

// Engine evaluates commands against an ordered rule list and owns the
// pending-approval registry for MANUAL commands. Decisions are deterministic:
// the rule list alone decides, never the advisory classifier.
type Engine struct {
	rules    []Rule
	pending  *approval.Registry[PendingCommand]
	recorder Recorder
	log      *zap.Logger
}

// NewEngine builds an engine over the given rule list. recorder may be nil.
func NewEngine(rules []Rule, recorder Recorder, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		rules: rules,
		pending: approval.NewRegistry[PendingCommand](approval.Options{
			IDPrefix: "cmd_",
		}),
		recorder: recorder,
		log:      log.Named("authz"),
	}
}

// Check evaluates a command for a host. First matching rule wins; no match
// is a deny. Denied commands are reported to the recorder on a best-effort
// basis and never affect the decision.
func (e *Engine) Check(host, command, user string) Decision {
	command = strings.TrimSpace(command)
	if user == "" {
		// Matches the identity the MCP tool layer reports for callers that
		// do not name one, so learning records stay consistent.
		user = "mcp-user"
	}

	for i := range e.rules {
		rule := &e.rules[i]
		if !rule.Matches(command) {
			continue
		}
		switch rule.Level {
		case policy.AuthBlocked:
			e.record(command, user, host)
			return Decision{
				Allowed: false,
				Level:   policy.AuthBlocked,
				Reason:  "BLOCKED: " + rule.Rationale,
				Rule:    rule,
			}
		case policy.AuthAuto:
			return Decision{
				Allowed: true,
				Level:   policy.AuthAuto,
				SSHUser: rule.SSHUser,
				Reason:  "Auto-approved: " + rule.Description,
				Rule:    rule,
			}
		case policy.AuthManual:
			entry := e.pending.Propose(PendingCommand{
				Host:        host,
				Command:     command,
				SSHUser:     rule.SSHUser,
				Description: rule.Description,
			})
			e.log.Info("approval required",
				zap.String("approval_id", entry.ID),
				zap.String("host", host),
				zap.String("command", command))
			return Decision{
				Allowed:       false,
				Level:         policy.AuthManual,
				SSHUser:       rule.SSHUser,
				NeedsApproval: true,
				ApprovalID:    entry.ID,
				Reason:        "Approval required: " + rule.Description,
				Rule:          rule,
			}
		}
	}

	e.record(command, user, host)
	return Decision{
		Allowed: false,
		Level:   policy.AuthBlocked,
		Reason:  "Command not in whitelist (default deny policy)",
	}
}

func (e *Engine) record(command, user, host string) {
	if e.recorder == nil {
		return
	}
	e.recorder.Record(command, user, host)
}

// Approve marks a pending command approved. Re-approving is a no-op success;
// approving an executed or rejected command fails.
func (e *Engine) Approve(approvalID, approver string) (*approval.Entry[PendingCommand], error) {
	return e.pending.Approve(approvalID, approver)
}

// Reject refuses a pending command. The entry is retained for audit.
func (e *Engine) Reject(approvalID, approver string) (*approval.Entry[PendingCommand], error) {
	return e.pending.Reject(approvalID, approver)
}

// Begin transitions an approved command into execution.
func (e *Engine) Begin(approvalID string) (*approval.Entry[PendingCommand], error) {
	return e.pending.Begin(approvalID)
}

// MarkExecuted records the outcome of an executing command.
func (e *Engine) MarkExecuted(approvalID string, ok bool, errMsg string) (*approval.Entry[PendingCommand], error) {
	return e.pending.Finish(approvalID, ok, errMsg)
}

// Rollback returns an executing command to approved so it can be retried.
func (e *Engine) Rollback(approvalID string) (*approval.Entry[PendingCommand], error) {
	return e.pending.Rollback(approvalID)
}

// Pending returns one pending command by approval id.
func (e *Engine) Pending(approvalID string) (*approval.Entry[PendingCommand], bool) {
	return e.pending.Get(approvalID)
}

// AllPending returns every command still awaiting a decision or execution,
// oldest first.
func (e *Engine) AllPending() []*approval.Entry[PendingCommand] {
	return e.pending.Pending()
}

// Cleanup drops approvals older than maxAge and returns how many were removed.
func (e *Engine) Cleanup(maxAge time.Duration) int {
	n := e.pending.Purge(maxAge)
	if n > 0 {
		e.log.Info("purged stale approvals", zap.Int("count", n))
	}
	return n
}

// StartReaper sweeps stale approvals in the background until stop closes.
func (e *Engine) StartReaper(interval time.Duration, stop <-chan struct{}) {
	e.pending.StartReaper(interval, stop)
}

// WhitelistSummary groups the rule list by authorization level, preserving
// declaration order within each group.
func (e *Engine) WhitelistSummary() map[string][]Rule {
	summary := map[string][]Rule{
		"auto":    nil,
		"manual":  nil,
		"blocked": nil,
	}
	for _, r := range e.rules {
		switch r.Level {
		case policy.AuthAuto:
			summary["auto"] = append(summary["auto"], r)
		case policy.AuthManual:
			summary["manual"] = append(summary["manual"], r)
		case policy.AuthBlocked:
			summary["blocked"] = append(summary["blocked"], r)
		}
	}
	return summary
}

// Rules exposes the active rule list.
func (e *Engine) Rules() []Rule {
	return e.rules
}
