package policy

// filesystemPlugin covers read-only file viewing, searching, and listing.
func filesystemPlugin() *Plugin {
	return NewPlugin("filesystem", "filesystem",
		"File viewing, search, and listing tools (read-only)",
		withFlags(autoRead("ls",
			"List directory contents",
			"Read-only directory listing",
			"ls -la", "ls -lh /var/log", "ls -lt"),
			"-l: Long format", "-a: Show hidden files", "-h: Human-readable sizes"),
		autoRead("cat",
			"Concatenate and display files",
			"Read file contents",
			"cat /etc/hostname", "cat /var/log/syslog"),
		autoRead("head",
			"Show file beginning",
			"Read the first lines of a file",
			"head /var/log/syslog", "head -n 50 /var/log/messages"),
		autoRead("tail",
			"Show file end",
			"Read the last lines of a file",
			"tail /var/log/syslog", "tail -n 100 /var/log/messages"),
		autoRead("less",
			"File pager",
			"Read-only file viewer",
			"less /var/log/syslog"),
		autoRead("more",
			"File pager",
			"Read-only file viewer",
			"more /var/log/syslog"),
		autoRead("grep",
			"Text search",
			"Read-only pattern search in files",
			"grep error /var/log/syslog", "grep -r TODO /etc/nginx"),
		autoRead("find",
			"File search",
			"Locate files by name, size, or age",
			"find /var/log -name '*.log'", "find /tmp -mtime +7"),
		autoRead("du",
			"Disk usage by path",
			"Read-only space accounting",
			"du -sh /var/log", "du -h --max-depth=1 /var"),
		autoRead("df",
			"Filesystem usage",
			"Read-only filesystem capacity report",
			"df -h", "df -i"),
		autoRead("file",
			"File type detection",
			"Identify file contents",
			"file /usr/bin/env"),
		autoRead("stat",
			"File metadata",
			"Display inode and timestamp details",
			"stat /etc/passwd"),
		autoRead("tree",
			"Directory tree listing",
			"Read-only recursive listing",
			"tree /etc/nginx", "tree -L 2 /var"),
		autoRead("wc",
			"Line, word, and byte counts",
			"Read-only content counting",
			"wc -l /etc/passwd"),
		autoRead("diff",
			"Compare files",
			"Read-only file comparison",
			"diff /etc/hosts /etc/hosts.bak"),
		autoRead("md5sum",
			"MD5 checksum",
			"Read-only integrity check",
			"md5sum /etc/passwd"),
		autoRead("sha256sum",
			"SHA-256 checksum",
			"Read-only integrity check",
			"sha256sum /etc/passwd"),
	)
}
