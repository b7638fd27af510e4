package diag

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

func unitName(service string) string {
	if !strings.HasSuffix(service, ".service") {
		return service + ".service"
	}
	return service
}

// ListServices lists every systemd service unit and its state.
func (c *Client) ListServices(ctx context.Context, host string) (string, error) {
	res, err := c.run(ctx, host, "systemctl", "list-units", "--type=service", "--all", "--no-pager")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("Error listing services: %s", res.Stderr), nil
	}
	return section("Systemd Services", res), nil
}

// ServiceStatus shows the detailed status of one unit. systemctl status
// exits non-zero for inactive units, so the output is returned either way.
func (c *Client) ServiceStatus(ctx context.Context, host, service string) (string, error) {
	unit := unitName(service)
	res, err := c.run(ctx, host, "systemctl", "status", unit, "--no-pager", "-l")
	if err != nil {
		return "", err
	}

	out := fmt.Sprintf("## Service Status: %s\n\n%s\n", unit, strings.TrimSpace(res.Stdout))
	if res.Stderr != "" {
		out += "\nStderr: " + strings.TrimSpace(res.Stderr) + "\n"
	}
	return out, nil
}

// ServiceLogs fetches recent journal lines for one unit.
func (c *Client) ServiceLogs(ctx context.Context, host, service string, lines int) (string, error) {
	unit := unitName(service)
	n := c.lines(lines)

	res, err := c.run(ctx, host, "journalctl", "-u", unit, "-n", strconv.Itoa(n), "--no-pager")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("Error fetching logs for %s: %s", unit, res.Stderr), nil
	}
	return fmt.Sprintf("## Recent Logs: %s (last %d lines)\n\n%s\n", unit, n, strings.TrimSpace(res.Stdout)), nil
}

// ServiceHealth combines unit state, main PID, memory and recent errors
// into one report.
func (c *Client) ServiceHealth(ctx context.Context, host, service string) (string, error) {
	unit := unitName(service)

	res, err := c.run(ctx, host, "systemctl", "show", unit,
		"--property=ActiveState,SubState,ExecMainPID,MemoryCurrent,LoadState")
	if err != nil {
		return "", err
	}

	props := map[string]string{}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			props[k] = v
		}
	}
	get := func(key string) string {
		if v, ok := props[key]; ok && v != "" {
			return v
		}
		return "unknown"
	}

	errors := "Unable to fetch errors"
	if lr, err := c.run(ctx, host, "journalctl", "-u", unit, "-p", "err", "-n", "20", "--no-pager"); err == nil && lr.ExitCode == 0 {
		errors = strings.TrimSpace(lr.Stdout)
	}

	health := "UNHEALTHY"
	if get("ActiveState") == "active" {
		health = "HEALTHY"
	}

	return fmt.Sprintf(`## Health Check: %s

**Status:** %s

**Details:**
- Load State: %s
- Active State: %s
- Sub State: %s
- PID: %s
- Memory: %s

**Recent Errors (last 20):**
%s
`, unit, health, get("LoadState"), get("ActiveState"), get("SubState"),
		get("ExecMainPID"), get("MemoryCurrent"), errors), nil
}
