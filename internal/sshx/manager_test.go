package sshx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mipsou/mcp-linux-infra/internal/config"
)

type fakeRunner struct {
	commands []string
	result   Result
	err      error
	failOnce bool
	closed   bool
}

func (f *fakeRunner) Run(ctx context.Context, command string) (Result, error) {
	f.commands = append(f.commands, command)
	if f.failOnce {
		f.failOnce = false
		return Result{}, errors.New("connection reset")
	}
	return f.result, f.err
}

func (f *fakeRunner) Close() error {
	f.closed = true
	return nil
}

type fakeDialer struct {
	dials   int
	runners []*fakeRunner
	err     error
	lastKey string
}

func (d *fakeDialer) dial(ctx context.Context, host, user string, ch Channel) (runner, error) {
	d.dials++
	d.lastKey = user + "@" + host + "/" + string(ch)
	if d.err != nil {
		return nil, d.err
	}
	r := &fakeRunner{result: Result{ExitCode: 0, Stdout: "ok"}}
	d.runners = append(d.runners, r)
	return r, nil
}

func newTestManager(cfg config.Config, d *fakeDialer) *Manager {
	m := &Manager{
		cfg:       cfg,
		mode:      AuthAgent,
		log:       zap.NewNop(),
		readConns: make(map[string]runner),
		execConns: make(map[string]runner),
	}
	m.dial = d.dial
	return m
}

func TestExecuteReusesPooledConnection(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(config.Default(), d)

	ctx := context.Background()
	if _, err := m.ExecuteRead(ctx, "web01", []string{"uptime"}, "mcp-reader"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.ExecuteRead(ctx, "web01", []string{"df", "-h"}, "mcp-reader"); err != nil {
		t.Fatal(err)
	}
	if d.dials != 1 {
		t.Errorf("dials = %d, want 1", d.dials)
	}
	if got := d.runners[0].commands; len(got) != 2 || got[1] != "df -h" {
		t.Errorf("commands = %v", got)
	}
}

func TestChannelsPoolSeparately(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(config.Default(), d)

	ctx := context.Background()
	m.ExecuteRead(ctx, "web01", []string{"uptime"}, "svc")
	m.ExecuteAction(ctx, "web01", "systemctl restart caddy", "svc")

	if d.dials != 2 {
		t.Errorf("dials = %d, want one per channel", d.dials)
	}
	read, exec := m.PoolSizes()
	if read != 1 || exec != 1 {
		t.Errorf("pools = %d/%d", read, exec)
	}
}

func TestDefaultUsernames(t *testing.T) {
	cfg := config.Default()
	cfg.User = "reader-id"
	cfg.ExecUser = "runner-id"

	d := &fakeDialer{}
	m := newTestManager(cfg, d)
	ctx := context.Background()

	m.ExecuteRead(ctx, "web01", []string{"uptime"}, "")
	if d.lastKey != "reader-id@web01/read" {
		t.Errorf("read dial key = %q", d.lastKey)
	}
	m.ExecuteAction(ctx, "web01", "reboot", "")
	if d.lastKey != "runner-id@web01/exec" {
		t.Errorf("exec dial key = %q", d.lastKey)
	}
}

func TestHostAllowlist(t *testing.T) {
	cfg := config.Default()
	cfg.AllowedHosts = []string{"web01"}

	d := &fakeDialer{}
	m := newTestManager(cfg, d)

	_, err := m.ExecuteRead(context.Background(), "db01", []string{"uptime"}, "")
	var notAllowed *HostNotAllowedError
	if !errors.As(err, &notAllowed) {
		t.Fatalf("err = %v, want HostNotAllowedError", err)
	}
	if d.dials != 0 {
		t.Error("denied host must not be dialed")
	}
}

func TestStaleConnectionRetriedOnce(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(config.Default(), d)
	ctx := context.Background()

	if _, err := m.ExecuteRead(ctx, "web01", []string{"uptime"}, "svc"); err != nil {
		t.Fatal(err)
	}
	// Poison the pooled connection; the next run fails once and must be
	// retried on a fresh dial.
	d.runners[0].failOnce = true

	res, err := m.ExecuteRead(ctx, "web01", []string{"uptime"}, "svc")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if res.Stdout != "ok" {
		t.Errorf("result = %+v", res)
	}
	if d.dials != 2 {
		t.Errorf("dials = %d, want 2", d.dials)
	}
	if !d.runners[0].closed {
		t.Error("stale connection not closed")
	}
}

func TestFreshConnectionFailureIsNotRetried(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(config.Default(), d)

	// First use, connection is fresh, a run failure surfaces directly.
	dial := d.dial
	m.dial = func(ctx context.Context, host, user string, ch Channel) (runner, error) {
		r, err := dial(ctx, host, user, ch)
		if err == nil {
			r.(*fakeRunner).failOnce = true
		}
		return r, err
	}

	_, err := m.ExecuteRead(context.Background(), "web01", []string{"uptime"}, "svc")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TransportError", err)
	}
	if d.dials != 1 {
		t.Errorf("dials = %d, want 1", d.dials)
	}
}

func TestPoolEviction(t *testing.T) {
	cfg := config.Default()
	cfg.SSHMaxConnections = 2

	d := &fakeDialer{}
	m := newTestManager(cfg, d)
	ctx := context.Background()

	m.ExecuteRead(ctx, "h1", []string{"uptime"}, "svc")
	m.ExecuteRead(ctx, "h2", []string{"uptime"}, "svc")
	m.ExecuteRead(ctx, "h3", []string{"uptime"}, "svc")

	read, _ := m.PoolSizes()
	if read != 2 {
		t.Errorf("read pool = %d, want capped at 2", read)
	}
}

func TestCloseAll(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(config.Default(), d)
	ctx := context.Background()

	m.ExecuteRead(ctx, "h1", []string{"uptime"}, "svc")
	m.ExecuteAction(ctx, "h1", "reboot", "svc")
	m.CloseAll()

	read, exec := m.PoolSizes()
	if read != 0 || exec != 0 {
		t.Errorf("pools after close = %d/%d", read, exec)
	}
	for i, r := range d.runners {
		if !r.closed {
			t.Errorf("runner %d not closed", i)
		}
	}
}

func TestDetectAuthMode(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")

	cfg := config.Default()
	cfg.SSHKeyPath = ""
	cfg.ExecKeyPath = ""
	if got := DetectAuthMode(cfg); got != AuthNone {
		t.Errorf("no method: mode = %q", got)
	}

	dir := t.TempDir()
	reader := filepath.Join(dir, "mcp-reader.key")
	exec := filepath.Join(dir, "exec-runner.key")
	os.WriteFile(reader, []byte("k"), 0o600)
	os.WriteFile(exec, []byte("k"), 0o600)
	cfg.SSHKeyPath = reader
	cfg.ExecKeyPath = exec
	if got := DetectAuthMode(cfg); got != AuthDirect {
		t.Errorf("keys on disk: mode = %q", got)
	}

	sock := filepath.Join(dir, "agent.sock")
	os.WriteFile(sock, []byte(""), 0o600)
	t.Setenv("SSH_AUTH_SOCK", sock)
	if got := DetectAuthMode(cfg); got != AuthAgent {
		t.Errorf("agent socket: mode = %q", got)
	}

	cfg.DisableSSHAgent = true
	if got := DetectAuthMode(cfg); got != AuthDirect {
		t.Errorf("agent disabled: mode = %q", got)
	}
}

func TestAgentKeyMissingRemediation(t *testing.T) {
	err := &AgentKeyMissingError{Role: "mcp-reader", KeyPath: "/keys/mcp-reader.key"}
	if !strings.Contains(err.Error(), "ssh-add /keys/mcp-reader.key") {
		t.Errorf("message lacks remediation: %q", err.Error())
	}

	blank := &AgentKeyMissingError{Role: "exec-runner"}
	if !strings.Contains(blank.Error(), "ssh-add /path/to/exec-runner.key") {
		t.Errorf("placeholder remediation wrong: %q", blank.Error())
	}
}

func TestDescribeAuthMode(t *testing.T) {
	if info := DescribeAuthMode(AuthAgent); info.SecurityLevel != "MAXIMUM" {
		t.Errorf("agent info = %+v", info)
	}
	if info := DescribeAuthMode(AuthDirect); info.SecurityLevel != "REDUCED" {
		t.Errorf("direct info = %+v", info)
	}
	if info := DescribeAuthMode(AuthNone); info.SecurityLevel != "NONE" {
		t.Errorf("none info = %+v", info)
	}
}
