// Package audit provides a structured audit trail for every SSH connection,
// command, approval decision, and tool call the broker handles. Events go to
// the process logger and, when a log directory is configured, to a JSON
// lines file. A bounded in-memory ring keeps recent events queryable.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType classifies audit events.
type EventType string

const (
	EventSSHConnect    EventType = "ssh_connect"
	EventSSHDisconnect EventType = "ssh_disconnect"
	EventSSHCommand    EventType = "ssh_command"

	EventExecProposed EventType = "exec_proposed"
	EventExecApproved EventType = "exec_approved"
	EventExecRejected EventType = "exec_rejected"
	EventExecExecuted EventType = "exec_executed"
	EventExecFailed   EventType = "exec_failed"

	EventToolCall    EventType = "tool_call"
	EventToolSuccess EventType = "tool_success"
	EventToolError   EventType = "tool_error"

	EventSecurityViolation EventType = "security_violation"
)

// Status is the outcome recorded with an event.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusPending Status = "pending"
	StatusDenied  Status = "denied"
)

// Event is one audit record.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"event_type"`
	Status    Status         `json:"status"`
	Details   map[string]any `json:"details,omitempty"`
}

// sensitiveKeys flags detail keys whose values must never reach the log.
// Matching is by substring on the lowercased key.
var sensitiveKeys = []string{
	"password",
	"passphrase",
	"token",
	"secret",
	"key",
	"api_key",
	"private_key",
}

const redacted = "***REDACTED***"

// Sanitize returns a copy of details with sensitive values replaced.
// Nested maps are sanitized recursively.
func Sanitize(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		if isSensitive(k) {
			out[k] = redacted
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = Sanitize(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Logger records audit events. Safe for concurrent use.
type Logger struct {
	log    *zap.Logger
	mu     sync.RWMutex
	events []Event
	maxLen int
	file   *os.File
}

// NewLogger creates an audit logger. dir is the optional directory for the
// JSON lines sink; empty disables the file. maxLen bounds the in-memory
// ring, 0 means unbounded.
func NewLogger(log *zap.Logger, dir string, maxLen int) (*Logger, error) {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Logger{
		log:    log.Named("audit"),
		events: make([]Event, 0, 1024),
		maxLen: maxLen,
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
		name := fmt.Sprintf("mcp-audit-%s.json", time.Now().UTC().Format("20060102"))
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("open audit file: %w", err)
		}
		l.file = f
	}
	return l, nil
}

// Close releases the file sink, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Record sanitizes and stores an event, emitting it to the process logger
// and the file sink.
func (l *Logger) Record(typ EventType, status Status, details map[string]any) Event {
	evt := Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Type:      typ,
		Status:    status,
		Details:   Sanitize(details),
	}

	l.mu.Lock()
	l.events = append(l.events, evt)
	if l.maxLen > 0 && len(l.events) > l.maxLen {
		l.events = l.events[len(l.events)-l.maxLen:]
	}
	file := l.file
	l.mu.Unlock()

	fields := []zap.Field{
		zap.String("event_type", string(typ)),
		zap.String("status", string(status)),
		zap.Any("details", evt.Details),
	}
	switch {
	case typ == EventSecurityViolation:
		l.log.Error("security violation", fields...)
	case status == StatusFailure:
		l.log.Warn("audit event", fields...)
	default:
		l.log.Info("audit event", fields...)
	}

	if file != nil {
		if data, err := json.Marshal(evt); err == nil {
			// Best effort, a full disk must not break the decision path.
			_, _ = file.Write(append(data, '\n'))
		}
	}
	return evt
}

// Filter selects events for Query.
type Filter struct {
	Type  EventType
	Since time.Time
	Limit int
}

// Query returns matching events, newest first. Limit 0 means all.
func (l *Logger) Query(f Filter) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Event
	for i := len(l.events) - 1; i >= 0; i-- {
		evt := l.events[i]
		if f.Type != "" && evt.Type != f.Type {
			continue
		}
		if !f.Since.IsZero() && evt.Timestamp.Before(f.Since) {
			continue
		}
		out = append(out, evt)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

// Recent returns the n most recent events.
func (l *Logger) Recent(n int) []Event {
	return l.Query(Filter{Limit: n})
}

// Count returns the number of retained events.
func (l *Logger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// SSHConnect records a connection attempt.
func (l *Logger) SSHConnect(host, username string, status Status, reused bool, errMsg string) {
	l.Record(EventSSHConnect, status, map[string]any{
		"host":     host,
		"username": username,
		"reused":   reused,
		"error":    errMsg,
	})
}

// SSHDisconnect records a connection teardown.
func (l *Logger) SSHDisconnect(host, username string) {
	l.Record(EventSSHDisconnect, StatusSuccess, map[string]any{
		"host":     host,
		"username": username,
	})
}

// SSHCommand records a remote command execution.
func (l *Logger) SSHCommand(host, username, command string, status Status, returncode int, errMsg string) {
	l.Record(EventSSHCommand, status, map[string]any{
		"host":       host,
		"username":   username,
		"command":    command,
		"returncode": returncode,
		"error":      errMsg,
	})
}

// ExecAction records one step of the remediation or approval lifecycle.
func (l *Logger) ExecAction(typ EventType, status Status, action, host, approver, rationale, errMsg string) {
	l.Record(typ, status, map[string]any{
		"action":    action,
		"host":      host,
		"approver":  approver,
		"rationale": rationale,
		"error":     errMsg,
	})
}

// ToolCall records an MCP tool invocation and its outcome.
func (l *Logger) ToolCall(tool string, params map[string]any, status Status, durationMS float64, errMsg string) {
	typ := EventToolSuccess
	if status != StatusSuccess {
		typ = EventToolError
	}
	l.Record(typ, status, map[string]any{
		"tool":        tool,
		"parameters":  params,
		"duration_ms": durationMS,
		"error":       errMsg,
	})
}

// SecurityViolation records a denied or bypassed control. Always logged at
// error level.
func (l *Logger) SecurityViolation(violationType, host string, details map[string]any) {
	merged := map[string]any{
		"violation_type": violationType,
		"host":           host,
	}
	for k, v := range details {
		merged[k] = v
	}
	l.Record(EventSecurityViolation, StatusDenied, merged)
}
