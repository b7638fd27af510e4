package diag

import (
	"context"
	"fmt"
	"strings"
)

// SystemInfo collects OS, kernel, uptime, load and hostname in one report.
func (c *Client) SystemInfo(ctx context.Context, host string) (string, error) {
	probes := []struct {
		label string
		argv  []string
	}{
		{"OS", []string{"cat", "/etc/os-release"}},
		{"Kernel", []string{"uname", "-a"}},
		{"Uptime", []string{"uptime"}},
		{"Load", []string{"cat", "/proc/loadavg"}},
		{"Hostname", []string{"hostname", "-f"}},
	}

	var parts []string
	for _, p := range probes {
		res, err := c.run(ctx, host, p.argv...)
		if err != nil {
			return "", err
		}
		parts = append(parts, section(p.label, res))
	}
	return strings.Join(parts, "\n"), nil
}

// CPUInfo reports the CPU model, core count and load average.
func (c *Client) CPUInfo(ctx context.Context, host string) (string, error) {
	res, err := c.run(ctx, host, "cat", "/proc/cpuinfo")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("Error reading CPU info: %s", res.Stderr), nil
	}

	model := "Unknown"
	cores := 0
	for _, line := range strings.Split(res.Stdout, "\n") {
		if strings.HasPrefix(line, "model name") {
			if _, v, ok := strings.Cut(line, ":"); ok && model == "Unknown" {
				model = strings.TrimSpace(v)
			}
		}
		if strings.HasPrefix(line, "processor") {
			cores++
		}
	}

	load := "Unknown"
	if lr, err := c.run(ctx, host, "cat", "/proc/loadavg"); err == nil && lr.ExitCode == 0 {
		load = strings.TrimSpace(lr.Stdout)
	}

	return fmt.Sprintf("## CPU Information\n\nModel: %s\nPhysical Cores: %d\nLoad Average: %s\n\n## Full Details\n%s",
		model, cores, load, res.Stdout), nil
}

// MemoryInfo reports RAM and swap usage plus the detailed meminfo view.
func (c *Client) MemoryInfo(ctx context.Context, host string) (string, error) {
	res, err := c.run(ctx, host, "free", "-h")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("Error reading memory info: %s", res.Stderr), nil
	}

	out := "## Memory Information\n\n" + strings.TrimSpace(res.Stdout)
	if mr, err := c.run(ctx, host, "cat", "/proc/meminfo"); err == nil && mr.ExitCode == 0 {
		out += "\n\n## Detailed Meminfo\n" + strings.TrimSpace(mr.Stdout)
	}
	return out + "\n", nil
}

// DiskUsage reports usage for real mount points, skipping tmpfs.
func (c *Client) DiskUsage(ctx context.Context, host string) (string, error) {
	res, err := c.run(ctx, host, "df", "-h", "-x", "tmpfs", "-x", "devtmpfs")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("Error reading disk usage: %s", res.Stderr), nil
	}
	return section("Disk Usage", res), nil
}

// BlockDevices lists block devices with size, type and mount point.
func (c *Client) BlockDevices(ctx context.Context, host string) (string, error) {
	res, err := c.run(ctx, host, "lsblk", "-o", "NAME,SIZE,TYPE,MOUNTPOINT,FSTYPE")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("Error listing block devices: %s", res.Stderr), nil
	}
	return section("Block Devices", res), nil
}
