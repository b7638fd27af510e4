package ansible

import (
	"context"
	"strings"
	"testing"

	"github.com/mipsou/mcp-linux-infra/internal/audit"
	"github.com/mipsou/mcp-linux-infra/internal/authz"
	"github.com/mipsou/mcp-linux-infra/internal/executor"
	"github.com/mipsou/mcp-linux-infra/internal/policy"
	"github.com/mipsou/mcp-linux-infra/internal/sshx"
)

type fakeTransport struct {
	readCalls   []string
	actionCalls []string
	result      sshx.Result
}

func (f *fakeTransport) ExecuteRead(ctx context.Context, host string, argv []string, username string) (sshx.Result, error) {
	f.readCalls = append(f.readCalls, strings.Join(argv, " "))
	return f.result, nil
}

func (f *fakeTransport) ExecuteAction(ctx context.Context, host, action, username string) (sshx.Result, error) {
	f.actionCalls = append(f.actionCalls, action)
	return f.result, nil
}

func newTestRunner(tr *fakeTransport) *Runner {
	engine := authz.NewEngine(authz.DefaultWhitelist(), nil, nil)
	aud, _ := audit.NewLogger(nil, "", 0)
	exec := executor.New(engine, policy.Default(), tr, aud, nil)
	return NewRunner(exec, tr, nil)
}

func TestBuildCommand(t *testing.T) {
	cases := []struct {
		name string
		path string
		opts PlaybookOptions
		want string
	}{
		{
			name: "defaults",
			path: "/opt/infra/playbooks/deploy.yml",
			want: "ansible-playbook /opt/infra/playbooks/deploy.yml --inventory=localhost,",
		},
		{
			name: "check mode",
			path: "/opt/infra/playbooks/deploy.yml",
			opts: PlaybookOptions{CheckMode: true},
			want: "ansible-playbook /opt/infra/playbooks/deploy.yml --inventory=localhost, --check",
		},
		{
			name: "custom inventory",
			path: "site.yml",
			opts: PlaybookOptions{Inventory: "/opt/infra/inventory/hosts"},
			want: "ansible-playbook site.yml --inventory=/opt/infra/inventory/hosts",
		},
		{
			name: "extra vars sorted",
			path: "deploy.yml",
			opts: PlaybookOptions{ExtraVars: map[string]string{"version": "v6", "enable_ipv6": "true"}},
			want: `ansible-playbook deploy.yml --inventory=localhost, --extra-vars "enable_ipv6=true version=v6"`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := buildCommand(tc.path, tc.opts); got != tc.want {
				t.Errorf("got  %q\nwant %q", got, tc.want)
			}
		})
	}
}

func TestCheckModeAutoApproved(t *testing.T) {
	tr := &fakeTransport{result: sshx.Result{ExitCode: 0, Stdout: "PLAY RECAP"}}
	r := newTestRunner(tr)

	out := r.CheckPlaybook(context.Background(), "coreos-11", "/opt/infra/playbooks/deploy.yml", "alice", PlaybookOptions{})
	if out.Status != executor.StatusExecuted {
		t.Fatalf("outcome = %+v", out)
	}
	if len(tr.readCalls) != 1 {
		t.Errorf("check run must use the reader channel: %v", tr.readCalls)
	}
	if !strings.Contains(tr.readCalls[0], "--check") {
		t.Errorf("command = %q", tr.readCalls[0])
	}
}

func TestRealRunNeedsApproval(t *testing.T) {
	tr := &fakeTransport{}
	r := newTestRunner(tr)

	out := r.RunPlaybook(context.Background(), "coreos-11", "/opt/infra/playbooks/deploy.yml", "alice", PlaybookOptions{})
	if out.Status != executor.StatusPendingApproval {
		t.Fatalf("outcome = %+v", out)
	}
	if out.ApprovalID == "" {
		t.Fatal("missing approval id")
	}
	if len(tr.readCalls)+len(tr.actionCalls) != 0 {
		t.Error("nothing may run before approval")
	}
}

func TestCheckPlaybookForcesFlags(t *testing.T) {
	tr := &fakeTransport{result: sshx.Result{ExitCode: 0}}
	r := newTestRunner(tr)

	// Even if the caller asks for a real auto-approved run, CheckPlaybook
	// downgrades it to a dry run without a bypass.
	out := r.CheckPlaybook(context.Background(), "coreos-11", "deploy.yml", "alice",
		PlaybookOptions{CheckMode: false, AutoApprove: true})
	if out.Status != executor.StatusExecuted {
		t.Fatalf("outcome = %+v", out)
	}
	if len(tr.actionCalls) != 0 {
		t.Error("check run must not use the executor channel")
	}
}

func TestListPlaybooks(t *testing.T) {
	tr := &fakeTransport{result: sshx.Result{ExitCode: 0, Stdout: "-rw-r--r-- deploy.yml"}}
	r := newTestRunner(tr)

	out, err := r.ListPlaybooks(context.Background(), "coreos-11", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "deploy.yml") {
		t.Errorf("output:\n%s", out)
	}
	if !strings.Contains(tr.readCalls[0], DefaultPlaybooksDir) {
		t.Errorf("default dir not used: %q", tr.readCalls[0])
	}
}

func TestShowInventoryFallback(t *testing.T) {
	tr := &fakeTransport{result: sshx.Result{ExitCode: 0, Stdout: "[dns]\ncoreos-11"}}
	r := newTestRunner(tr)

	out, err := r.ShowInventory(context.Background(), "coreos-11", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "coreos-11") {
		t.Errorf("output:\n%s", out)
	}
	if !strings.Contains(tr.readCalls[0], "||") {
		t.Errorf("fallback read missing: %q", tr.readCalls[0])
	}
}
