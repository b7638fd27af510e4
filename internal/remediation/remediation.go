// Package remediation implements the curated catalog of recovery actions
// and their propose/approve/execute workflow. Actions are not shell
// commands: the executor identity on the remote host maps each action name
// to a locked-down script, so the broker can never be talked into running
// anything outside the catalog.
package remediation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mipsou/mcp-linux-infra/internal/approval"
	"github.com/mipsou/mcp-linux-infra/internal/audit"
	"github.com/mipsou/mcp-linux-infra/internal/metrics"
	"github.com/mipsou/mcp-linux-infra/internal/sshx"
	"github.com/mipsou/mcp-linux-infra/internal/telemetry"
)

// Impact grades the blast radius of an action.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

func (i Impact) rank() int {
	switch i {
	case ImpactLow:
		return 0
	case ImpactMedium:
		return 1
	case ImpactHigh:
		return 2
	}
	return 3
}

// AtMost reports whether i is within the ceiling.
func (i Impact) AtMost(max Impact) bool {
	return i.rank() <= max.rank()
}

// ParseImpact maps a config string to an Impact, defaulting to medium.
func ParseImpact(s string) Impact {
	switch strings.ToLower(s) {
	case "low":
		return ImpactLow
	case "high":
		return ImpactHigh
	default:
		return ImpactMedium
	}
}

// Action is one catalog entry.
type Action struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Impact      Impact `json:"impact"`
	// Command is the token the executor identity resolves remotely.
	Command string `json:"command"`
	// NeedsTarget marks actions that require a parameter, like a
	// container name.
	NeedsTarget bool `json:"needs_target,omitempty"`
}

// Catalog returns the available actions in a stable order.
func Catalog() []Action {
	return []Action{
		{Name: "restart_unbound", Description: "Restart Unbound DNS service", Impact: ImpactLow, Command: "restart_unbound"},
		{Name: "reload_caddy", Description: "Reload Caddy reverse proxy configuration", Impact: ImpactLow, Command: "reload_caddy"},
		{Name: "flush_dns_cache", Description: "Flush DNS cache (systemd-resolved)", Impact: ImpactLow, Command: "flush_dns_cache"},
		{Name: "restart_container", Description: "Restart a Podman container", Impact: ImpactMedium, Command: "restart_container", NeedsTarget: true},
		{Name: "rotate_logs", Description: "Force log rotation", Impact: ImpactLow, Command: "rotate_logs"},
	}
}

// Lookup finds a catalog action by name.
func Lookup(name string) (Action, bool) {
	for _, a := range Catalog() {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}

func availableNames() string {
	names := make([]string, 0, len(Catalog()))
	for _, a := range Catalog() {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// Proposal is the payload retained while an action moves through the
// lifecycle.
type Proposal struct {
	Action    string `json:"action"`
	Host      string `json:"host"`
	Target    string `json:"target,omitempty"`
	Impact    Impact `json:"impact"`
	Rationale string `json:"rationale"`
	Command   string `json:"command"`
}

// Transport dispatches approved actions over the executor channel.
type Transport interface {
	ExecuteAction(ctx context.Context, host, action, username string) (sshx.Result, error)
}

// Manager drives the remediation workflow. Completed and rejected actions
// leave the registry; failed ones are retained for debugging.
type Manager struct {
	reg             *approval.Registry[Proposal]
	transport       Transport
	aud             *audit.Logger
	log             *zap.Logger
	maxImpact       Impact
	requireApproval bool
}

// NewManager builds a manager with the given impact ceiling.
func NewManager(transport Transport, aud *audit.Logger, log *zap.Logger, maxImpact Impact, requireApproval bool) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		reg: approval.NewRegistry[Proposal](approval.Options{
			DeleteOnComplete: true,
			DeleteOnReject:   true,
		}),
		transport:       transport,
		aud:             aud,
		log:             log.Named("remediation"),
		maxImpact:       maxImpact,
		requireApproval: requireApproval,
	}
}

// Propose registers an action for validation. autoApprove short-circuits
// the human step, but only for LOW impact actions; anything heavier keeps
// the gate regardless of the flag.
func (m *Manager) Propose(action, host, target, rationale string, autoApprove bool) (*approval.Entry[Proposal], error) {
	def, ok := Lookup(action)
	if !ok {
		return nil, fmt.Errorf("unknown remediation action %q, available: %s", action, availableNames())
	}
	if !def.Impact.AtMost(m.maxImpact) {
		return nil, fmt.Errorf("action %s has impact %s, above the configured maximum %s", action, def.Impact, m.maxImpact)
	}
	if def.NeedsTarget && target == "" {
		return nil, fmt.Errorf("action %s requires a target", action)
	}

	command := def.Command
	if target != "" {
		command += " " + target
	}
	entry := m.reg.Propose(Proposal{
		Action:    action,
		Host:      host,
		Target:    target,
		Impact:    def.Impact,
		Rationale: rationale,
		Command:   command,
	})
	if m.aud != nil {
		m.aud.ExecAction(audit.EventExecProposed, audit.StatusPending, action, host, "", rationale, "")
	}
	metrics.RecordRemediation(action, "proposed")

	if autoApprove && def.Impact == ImpactLow || !m.requireApproval {
		if _, err := m.reg.Approve(entry.ID, "auto"); err != nil {
			return entry, err
		}
		if m.aud != nil {
			m.aud.ExecAction(audit.EventExecApproved, audit.StatusSuccess, action, host, "auto", rationale, "")
		}
		m.log.Info("remediation auto-approved",
			zap.String("action", action),
			zap.String("host", host),
			zap.String("id", entry.ID))
	}
	return entry, nil
}

// Decide approves or rejects a proposed action.
func (m *Manager) Decide(id string, approved bool, approver string) (*approval.Entry[Proposal], error) {
	if approved {
		entry, err := m.reg.Approve(id, approver)
		if err != nil {
			return nil, err
		}
		if m.aud != nil {
			m.aud.ExecAction(audit.EventExecApproved, audit.StatusSuccess,
				entry.Payload.Action, entry.Payload.Host, approver, entry.Payload.Rationale, "")
		}
		return entry, nil
	}

	entry, err := m.reg.Reject(id, approver)
	if err != nil {
		return nil, err
	}
	if m.aud != nil {
		m.aud.ExecAction(audit.EventExecRejected, audit.StatusDenied,
			entry.Payload.Action, entry.Payload.Host, approver, entry.Payload.Rationale, "")
	}
	metrics.RecordRemediation(entry.Payload.Action, "rejected")
	return entry, nil
}

// Execute runs an approved action over the executor channel. A zero exit
// completes and removes the entry; a non-zero exit or transport failure
// marks it failed and keeps it for debugging.
func (m *Manager) Execute(ctx context.Context, id string) (*approval.Entry[Proposal], sshx.Result, error) {
	entry, err := m.reg.Begin(id)
	if err != nil {
		return nil, sshx.Result{}, err
	}
	p := entry.Payload

	ctx, span := telemetry.StartRemediationSpan(ctx, p.Action, p.Host)
	defer span.End()

	res, err := m.transport.ExecuteAction(ctx, p.Host, p.Command, "")

	switch {
	case err != nil:
		m.reg.Finish(id, false, err.Error())
		metrics.RecordRemediation(p.Action, "failed")
		if m.aud != nil {
			m.aud.ExecAction(audit.EventExecFailed, audit.StatusFailure,
				p.Action, p.Host, entry.ApprovedBy, p.Rationale, err.Error())
		}
		return entry, res, err

	case res.ExitCode != 0:
		errMsg := res.Stderr
		if errMsg == "" {
			errMsg = fmt.Sprintf("exit code %d", res.ExitCode)
		}
		m.reg.Finish(id, false, errMsg)
		metrics.RecordRemediation(p.Action, "failed")
		if m.aud != nil {
			m.aud.ExecAction(audit.EventExecFailed, audit.StatusFailure,
				p.Action, p.Host, entry.ApprovedBy, p.Rationale, errMsg)
		}
		return entry, res, nil

	default:
		m.reg.Finish(id, true, "")
		metrics.RecordRemediation(p.Action, "completed")
		if m.aud != nil {
			m.aud.ExecAction(audit.EventExecExecuted, audit.StatusSuccess,
				p.Action, p.Host, entry.ApprovedBy, p.Rationale, "")
		}
		return entry, res, nil
	}
}

// Get returns one entry by id.
func (m *Manager) Get(id string) (*approval.Entry[Proposal], bool) {
	return m.reg.Get(id)
}

// ListPending returns actions still in flight, oldest first.
func (m *Manager) ListPending() []*approval.Entry[Proposal] {
	return m.reg.Pending()
}

// StartReaper sweeps stale proposals in the background.
func (m *Manager) StartReaper(interval time.Duration, stop <-chan struct{}) {
	m.reg.StartReaper(interval, stop)
}

// Cleanup drops proposals older than maxAge and returns how many.
func (m *Manager) Cleanup(maxAge time.Duration) int {
	return m.reg.Purge(maxAge)
}
