package policy

// systemdPlugin covers service management and journal access. Status and
// listing commands are read-only; anything that changes unit state requires
// approval.
func systemdPlugin() *Plugin {
	return NewPlugin("systemd", "systemd",
		"Systemd service management and journal logs",
		autoRead("systemctl status",
			"Service status",
			"Read-only service state information",
			"systemctl status nginx", "systemctl status"),
		autoRead("systemctl list-units",
			"List active units",
			"Read-only list of systemd units",
			"systemctl list-units", "systemctl list-units --type=service", "systemctl list-units --failed"),
		autoRead("systemctl list-unit-files",
			"List unit files",
			"Show installed unit files and states",
			"systemctl list-unit-files", "systemctl list-unit-files --type=service"),
		autoRead("systemctl show",
			"Show unit properties",
			"Display detailed unit properties",
			"systemctl show nginx", "systemctl show -p ActiveState nginx"),
		autoRead("systemctl is-active",
			"Check if service is active",
			"Simple active state check",
			"systemctl is-active nginx"),
		autoRead("systemctl is-enabled",
			"Check if service is enabled",
			"Simple enabled state check",
			"systemctl is-enabled nginx"),
		autoRead("systemctl cat",
			"Show unit file",
			"Display unit file contents",
			"systemctl cat nginx"),
		autoRead("systemctl list-dependencies",
			"Show unit dependencies",
			"Display dependency tree",
			"systemctl list-dependencies nginx"),
		manualExec("systemctl restart", RiskMedium,
			"Restart service",
			"Service restart, requires approval",
			"systemctl restart nginx", "systemctl restart unbound"),
		manualExec("systemctl reload", RiskMedium,
			"Reload service configuration",
			"Config reload, requires approval",
			"systemctl reload nginx", "systemctl reload caddy"),
		manualExec("systemctl start", RiskMedium,
			"Start service",
			"Service start, requires approval",
			"systemctl start nginx"),
		manualExec("systemctl stop", RiskMedium,
			"Stop service",
			"Service stop, requires approval",
			"systemctl stop nginx"),
		manualExec("systemctl enable", RiskMedium,
			"Enable service at boot",
			"Persistent change, requires approval",
			"systemctl enable nginx"),
		manualExec("systemctl disable", RiskMedium,
			"Disable service at boot",
			"Persistent change, requires approval",
			"systemctl disable nginx"),
		withFlags(autoRead("journalctl",
			"Query systemd journal",
			"Read-only access to system logs",
			"journalctl -u nginx", "journalctl -u nginx -n 100", "journalctl --since '1 hour ago'"),
			"-u UNIT: Show logs for unit", "-n NUM: Number of lines", "--since TIME: Time range", "-p PRIORITY: Log priority"),
	)
}
