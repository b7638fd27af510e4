package diag

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// NetworkInterfaces lists interface addresses and state.
func (c *Client) NetworkInterfaces(ctx context.Context, host string) (string, error) {
	res, err := c.run(ctx, host, "ip", "addr", "show")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("Error reading network interfaces: %s", res.Stderr), nil
	}
	return section("Network Interfaces", res), nil
}

// RoutingTable shows the kernel routing table.
func (c *Client) RoutingTable(ctx context.Context, host string) (string, error) {
	res, err := c.run(ctx, host, "ip", "route", "show")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("Error reading routing table: %s", res.Stderr), nil
	}
	return section("Routing Table", res), nil
}

// ListeningPorts lists listening TCP/UDP sockets with owning processes.
func (c *Client) ListeningPorts(ctx context.Context, host string) (string, error) {
	res, err := c.run(ctx, host, "ss", "-lntup")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("Error reading listening ports: %s", res.Stderr), nil
	}
	return section("Listening Ports", res), nil
}

// ActiveConnections lists established network connections.
func (c *Client) ActiveConnections(ctx context.Context, host string) (string, error) {
	res, err := c.run(ctx, host, "ss", "-antup")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("Error reading active connections: %s", res.Stderr), nil
	}
	return section("Active Network Connections", res), nil
}

// DNSConfig shows resolv.conf and, when present, the systemd-resolved view.
func (c *Client) DNSConfig(ctx context.Context, host string) (string, error) {
	resolv, err := c.run(ctx, host, "cat", "/etc/resolv.conf")
	if err != nil {
		return "", err
	}
	resolvOut := "Unable to read"
	if resolv.ExitCode == 0 {
		resolvOut = strings.TrimSpace(resolv.Stdout)
	}

	resolvedOut := "systemd-resolved not available or not running"
	if resolved, err := c.run(ctx, host, "resolvectl", "status"); err == nil && resolved.ExitCode == 0 {
		resolvedOut = strings.TrimSpace(resolved.Stdout)
	}

	return fmt.Sprintf("## DNS Configuration\n\n### /etc/resolv.conf\n%s\n\n### systemd-resolved Status\n%s\n",
		resolvOut, resolvedOut), nil
}

// TestConnectivity pings a target from the remote host.
func (c *Client) TestConnectivity(ctx context.Context, host, target string, count int) (string, error) {
	if count <= 0 {
		count = 4
	}
	res, err := c.run(ctx, host, "ping", "-c", strconv.Itoa(count), "-W", "2", target)
	if err != nil {
		return "", err
	}

	status := "UNREACHABLE"
	if res.ExitCode == 0 {
		status = "REACHABLE"
	}

	out := fmt.Sprintf("## Connectivity Test: %s\n\n**Status:** %s\n\n%s\n", target, status, strings.TrimSpace(res.Stdout))
	if res.Stderr != "" {
		out += "\nErrors: " + strings.TrimSpace(res.Stderr) + "\n"
	}
	return out, nil
}
