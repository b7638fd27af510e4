package sshx

import (
	"errors"
	"fmt"
)

// ErrNoAuthMethod means neither an SSH agent nor direct keys are available.
var ErrNoAuthMethod = errors.New(
	"no SSH authentication method available; either start an SSH agent and " +
		"load keys with ssh-add, or configure LINUX_MCP_SSH_KEY_PATH and " +
		"LINUX_MCP_EXEC_KEY_PATH")

// AgentKeyMissingError means the agent is running but does not hold the key
// for the requested channel. The message carries the exact remediation.
type AgentKeyMissingError struct {
	Role    string
	KeyPath string
}

func (e *AgentKeyMissingError) Error() string {
	path := e.KeyPath
	if path == "" {
		path = "/path/to/" + e.Role + ".key"
	}
	return fmt.Sprintf("SSH agent active but %s key not loaded. Fix: ssh-add %s", e.Role, path)
}

// ExecKeyNotConfiguredError means direct-key mode is active but no key is
// configured for the executor channel.
type ExecKeyNotConfiguredError struct{}

func (e *ExecKeyNotConfiguredError) Error() string {
	return "executor channel has no key configured; set LINUX_MCP_EXEC_KEY_PATH"
}

// HostNotAllowedError means the target host is outside the allowlist.
type HostNotAllowedError struct {
	Host string
}

func (e *HostNotAllowedError) Error() string {
	return fmt.Sprintf("host %s not in allowed list", e.Host)
}

// TransportError wraps a connection or execution failure with its target.
type TransportError struct {
	Host string
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s on %s: %v", e.Op, e.Host, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
