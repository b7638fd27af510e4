package diag

import (
	"context"
	"strings"
	"testing"

	"github.com/mipsou/mcp-linux-infra/internal/sshx"
)

// scriptedTransport returns canned results keyed by the first argv token
// that matches, and records every call.
type scriptedTransport struct {
	results map[string]sshx.Result
	calls   [][]string
}

func (s *scriptedTransport) ExecuteRead(ctx context.Context, host string, argv []string, username string) (sshx.Result, error) {
	s.calls = append(s.calls, argv)
	key := strings.Join(argv, " ")
	for prefix, res := range s.results {
		if strings.HasPrefix(key, prefix) {
			return res, nil
		}
	}
	return sshx.Result{ExitCode: 0, Stdout: "ok"}, nil
}

func newTestClient(tr *scriptedTransport) *Client {
	return New(tr, nil, "/var/log/*", 100)
}

func TestSystemInfoAggregatesProbes(t *testing.T) {
	tr := &scriptedTransport{results: map[string]sshx.Result{
		"uname":  {ExitCode: 0, Stdout: "Linux web01 6.1.0"},
		"uptime": {ExitCode: 1, Stderr: "uptime: boom"},
	}}
	c := newTestClient(tr)

	out, err := c.SystemInfo(context.Background(), "web01")
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.calls) != 5 {
		t.Errorf("probes = %d, want 5", len(tr.calls))
	}
	if !strings.Contains(out, "Linux web01 6.1.0") {
		t.Errorf("missing kernel section:\n%s", out)
	}
	// A failing probe is reported inline, not fatal.
	if !strings.Contains(out, "Error: uptime: boom") {
		t.Errorf("missing error section:\n%s", out)
	}
}

func TestCPUInfoParsesModelAndCores(t *testing.T) {
	cpuinfo := `processor	: 0
model name	: AMD EPYC 7302
processor	: 1
model name	: AMD EPYC 7302
`
	tr := &scriptedTransport{results: map[string]sshx.Result{
		"cat /proc/cpuinfo": {ExitCode: 0, Stdout: cpuinfo},
		"cat /proc/loadavg": {ExitCode: 0, Stdout: "0.52 0.41 0.30 1/420 9999\n"},
	}}
	c := newTestClient(tr)

	out, err := c.CPUInfo(context.Background(), "web01")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Model: AMD EPYC 7302") {
		t.Errorf("model not parsed:\n%s", out)
	}
	if !strings.Contains(out, "Physical Cores: 2") {
		t.Errorf("core count not parsed:\n%s", out)
	}
	if !strings.Contains(out, "Load Average: 0.52 0.41 0.30") {
		t.Errorf("load not included:\n%s", out)
	}
}

func TestServiceNameSuffix(t *testing.T) {
	tr := &scriptedTransport{}
	c := newTestClient(tr)

	if _, err := c.ServiceStatus(context.Background(), "web01", "unbound"); err != nil {
		t.Fatal(err)
	}
	argv := tr.calls[0]
	found := false
	for _, a := range argv {
		if a == "unbound.service" {
			found = true
		}
	}
	if !found {
		t.Errorf("suffix not appended: %v", argv)
	}

	// Already suffixed names pass through unchanged.
	tr.calls = nil
	if _, err := c.ServiceLogs(context.Background(), "web01", "caddy.service", 20); err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(tr.calls[0], " ")
	if !strings.Contains(joined, "caddy.service") || strings.Contains(joined, "caddy.service.service") {
		t.Errorf("argv = %v", tr.calls[0])
	}
}

func TestServiceHealthStates(t *testing.T) {
	show := "ActiveState=active\nSubState=running\nExecMainPID=1234\nMemoryCurrent=52428800\nLoadState=loaded\n"
	tr := &scriptedTransport{results: map[string]sshx.Result{
		"systemctl show": {ExitCode: 0, Stdout: show},
		"journalctl":     {ExitCode: 0, Stdout: "-- No entries --"},
	}}
	c := newTestClient(tr)

	out, err := c.ServiceHealth(context.Background(), "web01", "unbound")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "HEALTHY") || strings.Contains(out, "UNHEALTHY") {
		t.Errorf("active service must be healthy:\n%s", out)
	}
	if !strings.Contains(out, "PID: 1234") {
		t.Errorf("pid missing:\n%s", out)
	}

	tr.results["systemctl show"] = sshx.Result{ExitCode: 0, Stdout: "ActiveState=failed\nLoadState=loaded\n"}
	out, _ = c.ServiceHealth(context.Background(), "web01", "unbound")
	if !strings.Contains(out, "UNHEALTHY") {
		t.Errorf("failed service must be unhealthy:\n%s", out)
	}
}

func TestJournalLogsFilters(t *testing.T) {
	tr := &scriptedTransport{}
	c := newTestClient(tr)

	_, err := c.JournalLogs(context.Background(), "web01", JournalOptions{
		Lines:    50,
		Priority: "err",
		Since:    "2 hours ago",
		Unit:     "caddy",
	})
	if err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(tr.calls[0], " ")
	for _, want := range []string{"-n 50", "-p err", "--since 2 hours ago", "-u caddy"} {
		if !strings.Contains(joined, want) {
			t.Errorf("argv %q missing %q", joined, want)
		}
	}
}

func TestJournalLogsDefaultLines(t *testing.T) {
	tr := &scriptedTransport{}
	c := newTestClient(tr)

	if _, err := c.JournalLogs(context.Background(), "web01", JournalOptions{}); err != nil {
		t.Fatal(err)
	}
	if joined := strings.Join(tr.calls[0], " "); !strings.Contains(joined, "-n 100") {
		t.Errorf("argv = %q", joined)
	}
}

func TestReadLogFileAllowlist(t *testing.T) {
	tr := &scriptedTransport{}
	c := newTestClient(tr)

	if _, err := c.ReadLogFile(context.Background(), "web01", "/etc/shadow", 10); err == nil {
		t.Fatal("path outside allowlist must be refused")
	}
	if len(tr.calls) != 0 {
		t.Error("refused read must not reach the host")
	}

	// Nested paths under the glob are allowed.
	if _, err := c.ReadLogFile(context.Background(), "web01", "/var/log/unbound/unbound.log", 10); err != nil {
		t.Fatal(err)
	}
	if len(tr.calls) != 1 {
		t.Errorf("calls = %d", len(tr.calls))
	}
}

func TestSearchLogsFileAndJournal(t *testing.T) {
	tr := &scriptedTransport{results: map[string]sshx.Result{
		"grep": {ExitCode: 1},
	}}
	c := newTestClient(tr)

	out, err := c.SearchLogs(context.Background(), "web01", "SERVFAIL", "/var/log/unbound.log", 50, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No matches found") {
		t.Errorf("grep exit 1 is no-match, not error:\n%s", out)
	}

	if _, err := c.SearchLogs(context.Background(), "web01", "SERVFAIL", "/etc/passwd", 50, 2); err == nil {
		t.Error("file search must honour the allowlist")
	}

	tr.calls = nil
	if _, err := c.SearchLogs(context.Background(), "web01", "SERVFAIL", "", 50, 2); err != nil {
		t.Fatal(err)
	}
	if joined := strings.Join(tr.calls[0], " "); !strings.HasPrefix(joined, "journalctl -g SERVFAIL") {
		t.Errorf("journal search argv = %q", joined)
	}
}

func TestAnalyzeErrorsCounts(t *testing.T) {
	tr := &scriptedTransport{results: map[string]sshx.Result{
		"journalctl": {ExitCode: 0, Stdout: "line one\nline two\nline three\n"},
	}}
	c := newTestClient(tr)

	out, err := c.AnalyzeErrors(context.Background(), "web01", "unbound", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Total Errors: 3") {
		t.Errorf("count wrong:\n%s", out)
	}
	if !strings.Contains(out, "service unbound.service") {
		t.Errorf("scope wrong:\n%s", out)
	}
	if joined := strings.Join(tr.calls[0], " "); !strings.Contains(joined, "--since 1h") {
		t.Errorf("default window missing: %q", joined)
	}

	tr.results["journalctl"] = sshx.Result{ExitCode: 0, Stdout: ""}
	out, _ = c.AnalyzeErrors(context.Background(), "web01", "", "30m")
	if !strings.Contains(out, "Total Errors: 0") || !strings.Contains(out, "No errors found") {
		t.Errorf("empty window:\n%s", out)
	}
	if !strings.Contains(out, "system-wide") {
		t.Errorf("scope wrong:\n%s", out)
	}
}

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{"/var/log/*", "/var/log/syslog", true},
		{"/var/log/*", "/var/log/unbound/unbound.log", true},
		{"/var/log/*", "/etc/shadow", false},
		{"/var/log/*.log", "/var/log/app.log", true},
		{"/var/log/*.log", "/var/log/app.txt", false},
		{"/opt/*/logs/*", "/opt/caddy/logs/access.log", true},
		{"/var/log/syslog", "/var/log/syslog", true},
		{"/var/log/syslog", "/var/log/syslog.1", false},
	}
	for _, tc := range cases {
		if got := globMatch(tc.pattern, tc.path); got != tc.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}

func TestConnectivityStatus(t *testing.T) {
	tr := &scriptedTransport{results: map[string]sshx.Result{
		"ping": {ExitCode: 1, Stdout: "statistics", Stderr: "100% packet loss"},
	}}
	c := newTestClient(tr)

	out, err := c.TestConnectivity(context.Background(), "web01", "10.0.0.99", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "UNREACHABLE") {
		t.Errorf("status:\n%s", out)
	}
	if joined := strings.Join(tr.calls[0], " "); !strings.Contains(joined, "-c 4") {
		t.Errorf("default count missing: %q", joined)
	}
}
