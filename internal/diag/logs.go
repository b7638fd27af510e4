package diag

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// JournalOptions filters a journal query. Zero values mean no filter.
type JournalOptions struct {
	Lines    int
	Priority string
	Since    string
	Unit     string
}

// JournalLogs fetches systemd journal lines with optional filters.
func (c *Client) JournalLogs(ctx context.Context, host string, opts JournalOptions) (string, error) {
	n := c.lines(opts.Lines)
	argv := []string{"journalctl", "-n", strconv.Itoa(n), "--no-pager"}

	var filters []string
	if opts.Priority != "" {
		argv = append(argv, "-p", opts.Priority)
		filters = append(filters, "priority="+opts.Priority)
	}
	if opts.Since != "" {
		argv = append(argv, "--since", opts.Since)
		filters = append(filters, "since="+opts.Since)
	}
	if opts.Unit != "" {
		argv = append(argv, "-u", opts.Unit)
		filters = append(filters, "unit="+opts.Unit)
	}

	res, err := c.run(ctx, host, argv...)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("Error reading journal logs: %s", res.Stderr), nil
	}

	header := "## Journal Logs"
	if len(filters) > 0 {
		header += " (" + strings.Join(filters, ", ") + ")"
	}
	return header + "\n\n" + strings.TrimSpace(res.Stdout) + "\n", nil
}

// ReadLogFile tails a log file. The path must match the configured glob
// allowlist; anything outside it is refused before touching the host.
func (c *Client) ReadLogFile(ctx context.Context, host, path string, lines int) (string, error) {
	if !c.PathAllowed(path) {
		return "", fmt.Errorf("log path %s not in allowed list", path)
	}
	n := c.lines(lines)

	res, err := c.run(ctx, host, "tail", "-n", strconv.Itoa(n), path)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("Error reading log file %s: %s", path, res.Stderr), nil
	}
	return fmt.Sprintf("## Log File: %s (last %d lines)\n\n%s\n", path, n, strings.TrimSpace(res.Stdout)), nil
}

// SearchLogs greps a log file, or the journal when no path is given. File
// searches honour the same allowlist as ReadLogFile.
func (c *Client) SearchLogs(ctx context.Context, host, pattern, logPath string, lines, contextLines int) (string, error) {
	if contextLines < 0 {
		contextLines = 2
	}

	if logPath != "" {
		if !c.PathAllowed(logPath) {
			return "", fmt.Errorf("log path %s not in allowed list", logPath)
		}
		res, err := c.run(ctx, host, "grep", "-E", "-n", "-i",
			fmt.Sprintf("-C%d", contextLines), pattern, logPath)
		if err != nil {
			return "", err
		}
		switch res.ExitCode {
		case 0:
			return fmt.Sprintf("## Search Results in %s\n\nPattern: `%s`\nContext: %d lines\n\n%s\n",
				logPath, pattern, contextLines, strings.TrimSpace(res.Stdout)), nil
		case 1:
			return fmt.Sprintf("No matches found for pattern '%s' in %s", pattern, logPath), nil
		default:
			return fmt.Sprintf("Error searching %s: %s", logPath, res.Stderr), nil
		}
	}

	n := c.lines(lines)
	res, err := c.run(ctx, host, "journalctl", "-g", pattern, "-n", strconv.Itoa(n), "--no-pager")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("Error searching journal: %s", res.Stderr), nil
	}
	return fmt.Sprintf("## Journal Search Results\n\nPattern: `%s`\nMax results: %d\n\n%s\n",
		pattern, n, strings.TrimSpace(res.Stdout)), nil
}

// AnalyzeErrors summarises error-priority journal entries for one service
// or the whole system over a time window.
func (c *Client) AnalyzeErrors(ctx context.Context, host, service, since string) (string, error) {
	if since == "" {
		since = "1h"
	}
	argv := []string{"journalctl", "-p", "err", "--since", since, "--no-pager"}

	scope := "system-wide"
	if service != "" {
		unit := unitName(service)
		argv = append(argv, "-u", unit)
		scope = "service " + unit
	}

	res, err := c.run(ctx, host, argv...)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("Error analyzing errors: %s", res.Stderr), nil
	}

	count := 0
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}

	body := "No errors found in this time window."
	if count > 0 {
		body = strings.TrimSpace(res.Stdout)
	}
	return fmt.Sprintf("## Error Analysis (%s)\n\n**Time Window:** %s\n**Total Errors:** %d\n\n### Recent Errors\n%s\n",
		scope, since, count, body), nil
}
