// Package executor is the facade that turns a requested remote command into
// an authorized execution: it consults the policy engine, dispatches over
// the right SSH channel, and drives the approval workflow for commands that
// need a human decision.
package executor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mipsou/mcp-linux-infra/internal/approval"
	"github.com/mipsou/mcp-linux-infra/internal/audit"
	"github.com/mipsou/mcp-linux-infra/internal/authz"
	"github.com/mipsou/mcp-linux-infra/internal/metrics"
	"github.com/mipsou/mcp-linux-infra/internal/policy"
	"github.com/mipsou/mcp-linux-infra/internal/sshx"
	"github.com/mipsou/mcp-linux-infra/internal/telemetry"
)

// Transport dispatches commands over the dual-channel SSH layer.
type Transport interface {
	ExecuteRead(ctx context.Context, host string, argv []string, username string) (sshx.Result, error)
	ExecuteAction(ctx context.Context, host, action, username string) (sshx.Result, error)
}

// Status is the outcome class of an execution request.
type Status string

const (
	StatusExecuted        Status = "executed"
	StatusPendingApproval Status = "pending_approval"
	StatusBlocked         Status = "blocked"
	StatusError           Status = "error"
)

// Outcome is the structured result of Execute. The classifier verdict is
// attached only on blocked commands, to explain the denial and point at
// the closest whitelist candidate.
type Outcome struct {
	Status     Status          `json:"status"`
	Host       string          `json:"host"`
	Command    string          `json:"command"`
	AuthLevel  string          `json:"auth_level"`
	Reason     string          `json:"reason"`
	ApprovalID string          `json:"approval_id,omitempty"`
	Result     *sshx.Result    `json:"result,omitempty"`
	Verdict    *policy.Verdict `json:"analysis,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Executor coordinates authorization and dispatch.
type Executor struct {
	engine    *authz.Engine
	catalog   *policy.Catalog
	transport Transport
	aud       *audit.Logger
	log       *zap.Logger
}

// New wires the facade. All dependencies are explicit; nothing reaches for
// globals.
func New(engine *authz.Engine, catalog *policy.Catalog, transport Transport, aud *audit.Logger, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	if catalog == nil {
		catalog = policy.Default()
	}
	return &Executor{
		engine:    engine,
		catalog:   catalog,
		transport: transport,
		aud:       aud,
		log:       log.Named("executor"),
	}
}

// Execute checks a command against policy and runs it when authorized.
// forceApproval skips the human decision on MANUAL commands only; BLOCKED
// and unlisted commands deny regardless of the flag. The bypass itself is
// recorded as a security violation so it can never happen silently.
func (e *Executor) Execute(ctx context.Context, host, command, user string, forceApproval bool) Outcome {
	ctx, span := telemetry.StartExecuteSpan(ctx, host, command)

	d := e.engine.Check(host, command, user)
	metrics.RecordDecision(string(d.Level), d.Allowed)
	if !d.Allowed && !d.NeedsApproval {
		metrics.LearningRecordsTotal.Inc()
	}

	switch {
	case d.Allowed:
		out := e.dispatch(ctx, sshx.ChannelRead, host, command)
		out.AuthLevel = string(d.Level)
		out.Reason = d.Reason
		telemetry.EndExecuteSpan(span, out.AuthLevel, out.Status == StatusExecuted, false)
		return out

	case d.NeedsApproval:
		if forceApproval {
			return e.forceRun(ctx, span, d, host, command, user)
		}
		metrics.PendingApprovals.Inc()
		if e.aud != nil {
			e.aud.ExecAction(audit.EventExecProposed, audit.StatusPending, command, host, "", d.Reason, "")
		}
		telemetry.EndExecuteSpan(span, string(d.Level), false, true)
		return Outcome{
			Status:     StatusPendingApproval,
			Host:       host,
			Command:    command,
			AuthLevel:  string(d.Level),
			Reason:     d.Reason,
			ApprovalID: d.ApprovalID,
		}

	default:
		// Enrich the denial with the advisory classification. The verdict
		// never changes the decision, it only explains it.
		v := policy.Classify(e.catalog, command)
		telemetry.EndExecuteSpan(span, string(d.Level), false, false)
		return Outcome{
			Status:    StatusBlocked,
			Host:      host,
			Command:   command,
			AuthLevel: string(d.Level),
			Reason:    d.Reason,
			Verdict:   &v,
		}
	}
}

// forceRun drives a MANUAL command through the approval lifecycle without a
// human decision. The pending entry is approved as "force" so the audit trail
// shows who never looked at it.
func (e *Executor) forceRun(ctx context.Context, span trace.Span, d authz.Decision, host, command, user string) Outcome {
	e.log.Warn("approval gate bypassed",
		zap.String("host", host),
		zap.String("command", command),
		zap.String("user", user))
	if e.aud != nil {
		e.aud.SecurityViolation("force_approval_bypass", host, map[string]any{
			"command": command,
			"user":    user,
		})
	}

	e.engine.Approve(d.ApprovalID, "force")
	e.engine.Begin(d.ApprovalID)

	out := e.dispatch(ctx, sshx.ChannelExec, host, command)
	e.engine.MarkExecuted(d.ApprovalID, out.Status == StatusExecuted, out.Error)

	out.AuthLevel = string(policy.AuthManual)
	out.Reason = "Approval bypassed by operator"
	out.ApprovalID = d.ApprovalID
	telemetry.EndExecuteSpan(span, out.AuthLevel, out.Status == StatusExecuted, false)
	return out
}

func (e *Executor) dispatch(ctx context.Context, ch sshx.Channel, host, command string) Outcome {
	ctx, span := telemetry.StartSSHSpan(ctx, host, string(ch))
	start := time.Now()

	var res sshx.Result
	var err error
	if ch == sshx.ChannelExec {
		res, err = e.transport.ExecuteAction(ctx, host, command, "")
	} else {
		res, err = e.transport.ExecuteRead(ctx, host, []string{command}, "")
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordSSHCommand(string(ch), status, time.Since(start))
	telemetry.EndSSHSpan(span, res.ExitCode, err)

	if err != nil {
		return Outcome{
			Status:  StatusError,
			Host:    host,
			Command: command,
			Error:   err.Error(),
		}
	}
	return Outcome{
		Status:  StatusExecuted,
		Host:    host,
		Command: command,
		Result:  &res,
	}
}

// ApproveAndRun approves a pending command and executes it over the
// executor channel. A cancelled dispatch rolls the approval back so the
// command can be retried.
func (e *Executor) ApproveAndRun(ctx context.Context, approvalID, approver string) Outcome {
	entry, err := e.engine.Approve(approvalID, approver)
	if err != nil {
		return Outcome{Status: StatusError, Error: err.Error()}
	}
	if e.aud != nil {
		e.aud.ExecAction(audit.EventExecApproved, audit.StatusSuccess,
			entry.Payload.Command, entry.Payload.Host, approver, "", "")
	}

	if _, err := e.engine.Begin(approvalID); err != nil {
		return Outcome{Status: StatusError, Error: err.Error()}
	}
	metrics.PendingApprovals.Dec()

	host, command := entry.Payload.Host, entry.Payload.Command
	out := e.dispatch(ctx, sshx.ChannelExec, host, command)

	switch {
	case out.Status == StatusExecuted:
		e.engine.MarkExecuted(approvalID, true, "")
		if e.aud != nil {
			e.aud.ExecAction(audit.EventExecExecuted, audit.StatusSuccess, command, host, approver, "", "")
		}
	case ctx.Err() != nil:
		// Never reached the host; leave the approval usable.
		e.engine.Rollback(approvalID)
		metrics.PendingApprovals.Inc()
	default:
		e.engine.MarkExecuted(approvalID, false, out.Error)
		if e.aud != nil {
			e.aud.ExecAction(audit.EventExecFailed, audit.StatusFailure, command, host, approver, "", out.Error)
		}
	}

	out.ApprovalID = approvalID
	out.AuthLevel = string(policy.AuthManual)
	return out
}

// Reject refuses a pending command.
func (e *Executor) Reject(approvalID, approver string) (*approval.Entry[authz.PendingCommand], error) {
	entry, err := e.engine.Reject(approvalID, approver)
	if err != nil {
		return nil, err
	}
	metrics.PendingApprovals.Dec()
	if e.aud != nil {
		e.aud.ExecAction(audit.EventExecRejected, audit.StatusDenied,
			entry.Payload.Command, entry.Payload.Host, approver, "", "")
	}
	return entry, nil
}

// Pending lists commands awaiting a decision.
func (e *Executor) Pending() []*approval.Entry[authz.PendingCommand] {
	return e.engine.AllPending()
}

// Engine exposes the underlying policy engine for introspection tools.
func (e *Executor) Engine() *authz.Engine {
	return e.engine
}
