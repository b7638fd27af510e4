package policy

// networkPlugin covers connectivity, routing, and DNS diagnostics. Most
// entries are read-only; wget writes to disk and tcpdump captures traffic,
// so both require approval.
func networkPlugin() *Plugin {
	return NewPlugin("network", "network",
		"Network connectivity, routing, and diagnostic tools",
		withFlags(autoRead("ping",
			"Network connectivity test",
			"ICMP echo test for network reachability",
			"ping google.com", "ping -c 4 8.8.8.8", "ping -I eth0 192.168.1.1"),
			"-c COUNT: Number of packets", "-i INTERVAL: Packet interval", "-I INTERFACE: Source interface"),
		autoRead("traceroute",
			"Network path tracing",
			"Trace network hops to destination",
			"traceroute google.com", "traceroute -n 8.8.8.8"),
		autoRead("netstat",
			"Network connections status",
			"Display active network connections and routing",
			"netstat -tuln", "netstat -anp", "netstat -r"),
		autoRead("ss",
			"Socket statistics",
			"Modern alternative to netstat for socket info",
			"ss -tuln", "ss -anp", "ss -s"),
		autoRead("ip addr",
			"Show IP addresses",
			"Display interface IP configuration",
			"ip addr", "ip addr show eth0", "ip -4 addr show"),
		autoRead("ip route",
			"Show routing table",
			"Display kernel routing table",
			"ip route", "ip route show", "ip route get 8.8.8.8"),
		autoRead("ip link",
			"Show network interfaces",
			"Display link-layer interface status",
			"ip link", "ip link show eth0"),
		autoRead("dig",
			"DNS lookup",
			"Query DNS servers for domain information",
			"dig google.com", "dig @8.8.8.8 example.com", "dig +short example.com"),
		autoRead("nslookup",
			"DNS query",
			"Interactive DNS lookup tool",
			"nslookup google.com", "nslookup example.com 8.8.8.8"),
		autoRead("host",
			"DNS lookup utility",
			"Simple DNS lookup tool",
			"host google.com", "host -t MX example.com"),
		autoRead("curl",
			"HTTP client",
			"Fetch URLs and test HTTP endpoints",
			"curl https://example.com", "curl -I https://example.com", "curl -s https://api.example.com/health"),
		withFlags(manualExec("wget", RiskMedium,
			"Download files",
			"Downloads files to disk, requires approval",
			"wget https://example.com/file.txt", "wget -O /tmp/test.txt https://example.com/file.txt"),
			"-O FILE: Output file", "--spider: Check only", "-q: Quiet mode"),
		autoRead("mtr",
			"Network diagnostic tool",
			"Combined traceroute and ping",
			"mtr google.com", "mtr -n 8.8.8.8", "mtr -r -c 10 example.com"),
		manualExec("tcpdump", RiskHigh,
			"Packet capture",
			"Captures network packets, security sensitive",
			"tcpdump -i eth0", "tcpdump -n port 80", "tcpdump -c 100 -w /tmp/capture.pcap"),
	)
}
