package policy

// monitoringPlugin covers process, CPU, memory, and I/O monitoring tools.
// Everything here is read-only and safe for continuous observation.
func monitoringPlugin() *Plugin {
	return NewPlugin("monitoring", "monitoring",
		"Process, CPU, memory, and I/O monitoring tools (read-only)",
		withFlags(autoRead("htop",
			"Interactive process viewer",
			"Read-only process monitoring with CPU/memory stats",
			"htop", "htop -u www-data", "htop -p 1234"),
			"-u USER: Filter by user", "-p PID: Show specific process", "-t: Tree view"),
		withFlags(autoRead("top",
			"Process monitor",
			"Standard read-only process viewer",
			"top", "top -b -n 1", "top -u nginx"),
			"-b: Batch mode", "-n NUM: Number of iterations", "-u USER: Filter by user"),
		autoRead("iotop",
			"I/O monitoring by process",
			"Read-only disk I/O monitoring",
			"iotop", "iotop -b -n 1", "iotop -o"),
		autoRead("iftop",
			"Network bandwidth monitor",
			"Read-only network interface traffic monitoring",
			"iftop", "iftop -i eth0", "iftop -n"),
		autoRead("nethogs",
			"Network traffic monitor per process",
			"Read-only per-process network bandwidth monitoring",
			"nethogs", "nethogs eth0", "nethogs -d 5"),
		autoRead("atop",
			"Advanced system monitor",
			"Read-only comprehensive system and process monitoring",
			"atop", "atop -m", "atop 5"),
		autoRead("vmstat",
			"Virtual memory statistics",
			"Read-only memory, swap, and CPU stats",
			"vmstat", "vmstat 1 10", "vmstat -s"),
		autoRead("iostat",
			"I/O statistics",
			"Read-only CPU and I/O device statistics",
			"iostat", "iostat -x 1", "iostat -p sda"),
		autoRead("mpstat",
			"Per-CPU statistics",
			"Read-only per-processor statistics",
			"mpstat", "mpstat -P ALL", "mpstat 1 5"),
		autoRead("glances",
			"All-in-one system monitor",
			"Read-only comprehensive monitoring dashboard",
			"glances", "glances -1"),
	)
}
