// Package diag wraps the read-only diagnostic commands exposed as MCP
// tools. Every wrapper goes through the reader channel, so even a
// compromised client can only observe the host, never change it.
package diag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mipsou/mcp-linux-infra/internal/sshx"
)

// Transport is the read-only slice of the SSH layer the wrappers need.
type Transport interface {
	ExecuteRead(ctx context.Context, host string, argv []string, username string) (sshx.Result, error)
}

// Client runs diagnostic commands against remote hosts.
type Client struct {
	transport    Transport
	log          *zap.Logger
	allowedPaths []string
	defaultLines int
}

// New builds a diagnostics client. allowedLogPaths is the comma separated
// glob list guarding file reads; defaultLines bounds log output when the
// caller does not say otherwise.
func New(transport Transport, log *zap.Logger, allowedLogPaths string, defaultLines int) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if defaultLines <= 0 {
		defaultLines = 100
	}
	var globs []string
	for _, p := range strings.Split(allowedLogPaths, ",") {
		if p = strings.TrimSpace(p); p != "" {
			globs = append(globs, p)
		}
	}
	return &Client{
		transport:    transport,
		log:          log.Named("diag"),
		allowedPaths: globs,
		defaultLines: defaultLines,
	}
}

// run executes one argv on the reader channel and returns its result.
// Transport failures come back as errors; a non-zero exit is a normal
// result the caller formats.
func (c *Client) run(ctx context.Context, host string, argv ...string) (sshx.Result, error) {
	return c.transport.ExecuteRead(ctx, host, argv, "")
}

// section formats one labelled command output the way every wrapper
// renders it.
func section(label string, res sshx.Result) string {
	if res.ExitCode != 0 {
		return fmt.Sprintf("## %s\nError: %s\n", label, strings.TrimSpace(res.Stderr))
	}
	return fmt.Sprintf("## %s\n%s\n", label, strings.TrimSpace(res.Stdout))
}

// PathAllowed reports whether a log file path matches the configured glob
// allowlist. A trailing * in a pattern matches across directory
// separators, so the default /var/log/* covers nested logs.
func (c *Client) PathAllowed(path string) bool {
	for _, pattern := range c.allowedPaths {
		if globMatch(pattern, path) {
			return true
		}
	}
	return false
}

// globMatch matches shell-style patterns where * spans any characters,
// including slashes.
func globMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(s, parts[i])
		if idx < 0 {
			return false
		}
		s = s[idx+len(parts[i]):]
	}
	return strings.HasSuffix(s, parts[len(parts)-1])
}

func (c *Client) lines(n int) int {
	if n <= 0 {
		return c.defaultLines
	}
	return n
}
