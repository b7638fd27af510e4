package policy

// posixSystemPlugin covers identity, environment, and path utilities. All
// read-only; sleep is constrained to a bare numeric duration so it cannot
// smuggle a compound command.
func posixSystemPlugin() *Plugin {
	return NewPlugin("posix-system", "posix",
		"POSIX system information and shell utilities (read-only)",
		autoRead("uname", "System information", "Kernel and architecture details", "uname -a", "uname -r"),
		autoRead("hostname", "Show hostname", "Read-only host identity", "hostname", "hostname -f"),
		autoRead("uptime", "System uptime", "Read-only load and uptime", "uptime"),
		autoRead("who", "Logged-in users", "Read-only session listing", "who"),
		autoRead("w", "User activity", "Read-only session and load summary", "w"),
		withPattern(autoRead("whoami", "Effective user", "Read-only identity check", "whoami"), `^whoami$`),
		autoRead("id", "User and group ids", "Read-only identity details", "id", "id www-data"),
		autoRead("date", "Current date and time", "Read-only clock query", "date", "date -u"),
		autoRead("env", "Environment variables", "Read-only environment dump", "env"),
		autoRead("printenv", "Print environment variable", "Read-only environment query", "printenv PATH"),
		autoRead("echo", "Print arguments", "Side-effect free output", "echo hello"),
		autoRead("printf", "Formatted output", "Side-effect free output", "printf '%s\\n' hello"),
		autoRead("pwd", "Working directory", "Read-only path query", "pwd"),
		autoRead("which", "Locate executable", "Read-only path search", "which nginx"),
		autoRead("whereis", "Locate binary and man pages", "Read-only path search", "whereis nginx"),
		autoRead("type", "Command type", "Read-only shell lookup", "type ls"),
		withPattern(autoRead("sleep", "Pause execution", "Bounded delay, numeric argument only", "sleep 5", "sleep 0.5"),
			`^sleep\s+\d+(\.\d+)?[smhd]?$`),
		withPattern(autoRead("true", "Exit success", "No-op", "true"), `^true$`),
		withPattern(autoRead("false", "Exit failure", "No-op", "false"), `^false$`),
		autoRead("test", "Evaluate expression", "Read-only condition check", "test -f /etc/passwd"),
		autoRead("basename", "Strip directory from path", "Pure string operation", "basename /var/log/syslog"),
		autoRead("dirname", "Strip filename from path", "Pure string operation", "dirname /var/log/syslog"),
		autoRead("expr", "Evaluate expression", "Pure arithmetic", "expr 1 + 2"),
	)
}

// posixProcessPlugin covers process inspection and control. Signal delivery
// is HIGH risk; priority changes and tracing are MEDIUM.
func posixProcessPlugin() *Plugin {
	return NewPlugin("posix-process", "posix",
		"POSIX process inspection and control",
		autoRead("ps", "Process listing", "Read-only process table", "ps aux", "ps -ef"),
		autoRead("pgrep", "Find processes by name", "Read-only process search", "pgrep nginx", "pgrep -u root sshd"),
		autoRead("pstree", "Process tree", "Read-only process hierarchy", "pstree", "pstree -p"),
		autoRead("pidof", "Find process id", "Read-only pid lookup", "pidof nginx"),
		autoRead("lsof", "Open files", "Read-only descriptor listing", "lsof -i :80", "lsof /var/log/syslog"),
		autoRead("fuser", "Processes using a file", "Read-only usage query; the -k kill flag is caught by the denylist layer", "fuser /var/log/syslog"),
		withPattern(autoRead("timeout", "Run with time limit", "Bounds the wrapped command's runtime", "timeout 30 uptime"),
			`^timeout(\s+.*)?$`),
		autoRead("time", "Measure command runtime", "Read-only timing wrapper", "time ls"),
		autoRead("watch", "Repeat command periodically", "Read-only periodic observation", "watch -n 5 uptime"),
		manualExec("kill", RiskHigh,
			"Send signal to process",
			"Terminates processes, requires approval",
			"kill 1234", "kill -9 1234"),
		manualExec("killall", RiskHigh,
			"Kill processes by name",
			"Terminates processes by name, requires approval",
			"killall nginx"),
		manualExec("pkill", RiskHigh,
			"Kill processes by pattern",
			"Terminates matching processes, requires approval",
			"pkill -f worker"),
		manualExec("nice", RiskMedium,
			"Run with adjusted priority",
			"Alters scheduling, requires approval",
			"nice -n 10 tar czf /tmp/backup.tgz /etc"),
		manualExec("renice", RiskMedium,
			"Change process priority",
			"Alters scheduling of a live process, requires approval",
			"renice -n 5 -p 1234"),
		manualExec("nohup", RiskMedium,
			"Run detached from terminal",
			"Launches persistent processes, requires approval",
			"nohup ./job.sh"),
		manualExec("strace", RiskMedium,
			"Trace system calls",
			"Attaches to processes, requires approval",
			"strace -p 1234"),
	)
}

// posixTextPlugin covers text processing filters. tee and xargs mutate or
// run things and need approval; sed -i misuse is noted in the rationale and
// caught by the denylist layer, not by the match.
func posixTextPlugin() *Plugin {
	return NewPlugin("posix-text", "posix",
		"POSIX text processing filters (read-only)",
		autoRead("sed", "Stream editor", "Read-only as a filter; the -i in-place flag mutates files and is caught downstream", "sed -n '1,10p' /var/log/syslog"),
		autoRead("awk", "Pattern scanning", "Read-only text processing", "awk '{print $1}' /var/log/access.log"),
		autoRead("cut", "Column extraction", "Read-only text processing", "cut -d: -f1 /etc/passwd"),
		autoRead("paste", "Merge lines", "Read-only text processing", "paste a.txt b.txt"),
		autoRead("sort", "Sort lines", "Read-only text processing", "sort /etc/passwd"),
		autoRead("uniq", "Filter duplicate lines", "Read-only text processing", "uniq -c sorted.txt"),
		autoRead("tr", "Translate characters", "Read-only text processing", "tr a-z A-Z"),
		autoRead("expand", "Tabs to spaces", "Read-only text processing", "expand file.txt"),
		autoRead("unexpand", "Spaces to tabs", "Read-only text processing", "unexpand file.txt"),
		autoRead("join", "Relational join", "Read-only text processing", "join a.txt b.txt"),
		autoRead("comm", "Compare sorted files", "Read-only text processing", "comm a.txt b.txt"),
		autoRead("fold", "Wrap lines", "Read-only text processing", "fold -w 80 file.txt"),
		autoRead("fmt", "Reformat paragraphs", "Read-only text processing", "fmt file.txt"),
		autoRead("nl", "Number lines", "Read-only text processing", "nl file.txt"),
		autoRead("od", "Octal dump", "Read-only binary inspection", "od -c file.bin"),
		autoRead("hexdump", "Hex dump", "Read-only binary inspection", "hexdump -C file.bin"),
		autoRead("strings", "Printable strings", "Read-only binary inspection", "strings /usr/bin/env"),
		manualExec("tee", RiskMedium,
			"Write input to files",
			"Writes files on the remote host, requires approval",
			"tee /etc/motd"),
		manualExec("xargs", RiskMedium,
			"Build and run command lines",
			"Executes arbitrary commands from input, requires approval",
			"xargs -n 1 echo"),
		autoRead("column", "Columnate lists", "Read-only text formatting", "column -t file.txt"),
		autoRead("rev", "Reverse characters", "Read-only text processing", "rev file.txt"),
		autoRead("tac", "Reverse lines", "Read-only text processing", "tac /var/log/syslog"),
	)
}
