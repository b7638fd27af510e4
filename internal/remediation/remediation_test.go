package remediation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mipsou/mcp-linux-infra/internal/approval"
	"github.com/mipsou/mcp-linux-infra/internal/sshx"
)

type fakeTransport struct {
	calls  []string
	hosts  []string
	result sshx.Result
	err    error
}

func (f *fakeTransport) ExecuteAction(ctx context.Context, host, action, username string) (sshx.Result, error) {
	f.calls = append(f.calls, action)
	f.hosts = append(f.hosts, host)
	return f.result, f.err
}

func newTestManager(tr *fakeTransport) *Manager {
	return NewManager(tr, nil, nil, ImpactMedium, true)
}

func TestAutoApproveLowImpact(t *testing.T) {
	m := newTestManager(&fakeTransport{})

	entry, err := m.Propose("flush_dns_cache", "dns01", "", "resolver returning stale records", true)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Status != approval.StatusApproved {
		t.Errorf("status = %q, want approved", entry.Status)
	}
	if entry.ApprovedBy != "auto" {
		t.Errorf("approved_by = %q, want auto", entry.ApprovedBy)
	}
}

func TestMediumImpactStaysProposed(t *testing.T) {
	m := newTestManager(&fakeTransport{})

	entry, err := m.Propose("restart_container", "web01", "caddy", "container wedged", true)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Status != approval.StatusProposed {
		t.Errorf("status = %q, auto-approve must not cover medium impact", entry.Status)
	}
	if entry.ApprovedBy != "" {
		t.Errorf("approved_by = %q, want empty", entry.ApprovedBy)
	}
}

func TestProposeWithoutAutoApprove(t *testing.T) {
	m := newTestManager(&fakeTransport{})

	entry, err := m.Propose("reload_caddy", "web01", "", "config change", false)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Status != approval.StatusProposed {
		t.Errorf("status = %q, want proposed", entry.Status)
	}
}

func TestApprovalDisabledApprovesEverything(t *testing.T) {
	m := NewManager(&fakeTransport{}, nil, nil, ImpactMedium, false)

	entry, err := m.Propose("restart_container", "web01", "caddy", "wedged", false)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Status != approval.StatusApproved || entry.ApprovedBy != "auto" {
		t.Errorf("entry = %+v", entry)
	}
}

func TestUnknownActionListsCatalog(t *testing.T) {
	m := newTestManager(&fakeTransport{})

	_, err := m.Propose("format_disk", "web01", "", "", false)
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
	if !strings.Contains(err.Error(), "flush_dns_cache") {
		t.Errorf("error should list available actions: %v", err)
	}
}

func TestImpactCeiling(t *testing.T) {
	m := NewManager(&fakeTransport{}, nil, nil, ImpactLow, true)

	_, err := m.Propose("restart_container", "web01", "caddy", "", false)
	if err == nil {
		t.Fatal("medium action must be refused under a low ceiling")
	}
	if !strings.Contains(err.Error(), "maximum") {
		t.Errorf("error = %v", err)
	}
}

func TestTargetRequired(t *testing.T) {
	m := newTestManager(&fakeTransport{})

	if _, err := m.Propose("restart_container", "web01", "", "", false); err == nil {
		t.Fatal("restart_container without a target must be refused")
	}
}

func TestExecuteRequiresApproval(t *testing.T) {
	m := newTestManager(&fakeTransport{})

	entry, err := m.Propose("rotate_logs", "web01", "", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := m.Execute(context.Background(), entry.ID); err == nil {
		t.Fatal("execute before approval must fail")
	}
}

func TestExecuteCompletedIsDeleted(t *testing.T) {
	tr := &fakeTransport{result: sshx.Result{ExitCode: 0, Stdout: "restarted"}}
	m := newTestManager(tr)

	entry, _ := m.Propose("restart_unbound", "dns01", "", "unbound unresponsive", true)
	_, res, err := m.Execute(context.Background(), entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stdout != "restarted" {
		t.Errorf("result = %+v", res)
	}
	if len(tr.calls) != 1 || tr.calls[0] != "restart_unbound" {
		t.Errorf("dispatched = %v", tr.calls)
	}
	if tr.hosts[0] != "dns01" {
		t.Errorf("host = %q", tr.hosts[0])
	}
	if _, ok := m.Get(entry.ID); ok {
		t.Error("completed action must be removed")
	}
}

func TestExecuteFailureRetained(t *testing.T) {
	tr := &fakeTransport{result: sshx.Result{ExitCode: 1, Stderr: "unit not found"}}
	m := newTestManager(tr)

	entry, _ := m.Propose("reload_caddy", "web01", "", "", true)
	_, res, err := m.Execute(context.Background(), entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 1 {
		t.Errorf("exit code = %d", res.ExitCode)
	}

	kept, ok := m.Get(entry.ID)
	if !ok {
		t.Fatal("failed action must be retained")
	}
	if kept.Status != approval.StatusFailed || kept.Error != "unit not found" {
		t.Errorf("entry = %+v", kept)
	}
}

func TestExecuteTransportErrorRetained(t *testing.T) {
	tr := &fakeTransport{err: errors.New("connection refused")}
	m := newTestManager(tr)

	entry, _ := m.Propose("rotate_logs", "web01", "", "", true)
	if _, _, err := m.Execute(context.Background(), entry.ID); err == nil {
		t.Fatal("transport error must surface")
	}
	kept, ok := m.Get(entry.ID)
	if !ok || kept.Status != approval.StatusFailed {
		t.Errorf("entry = %+v", kept)
	}
}

func TestDecideReject(t *testing.T) {
	m := newTestManager(&fakeTransport{})

	entry, _ := m.Propose("restart_container", "web01", "caddy", "", false)
	rejected, err := m.Decide(entry.ID, false, "ops")
	if err != nil {
		t.Fatal(err)
	}
	if rejected.Status != approval.StatusRejected {
		t.Errorf("status = %q", rejected.Status)
	}
	if _, ok := m.Get(entry.ID); ok {
		t.Error("rejected action must be removed")
	}
}

func TestDecideApproveThenExecute(t *testing.T) {
	tr := &fakeTransport{result: sshx.Result{ExitCode: 0}}
	m := newTestManager(tr)

	entry, _ := m.Propose("restart_container", "web01", "caddy", "wedged", false)
	approved, err := m.Decide(entry.ID, true, "ops")
	if err != nil {
		t.Fatal(err)
	}
	if approved.ApprovedBy != "ops" {
		t.Errorf("approved_by = %q", approved.ApprovedBy)
	}

	ran, _, err := m.Execute(context.Background(), entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.calls) != 1 || tr.calls[0] != "restart_container caddy" {
		t.Errorf("dispatched = %v", tr.calls)
	}
	if ran.Payload.Target != "caddy" {
		t.Errorf("payload = %+v", ran.Payload)
	}
}

func TestListPending(t *testing.T) {
	m := newTestManager(&fakeTransport{})

	m.Propose("rotate_logs", "web01", "", "", false)
	m.Propose("restart_container", "db01", "postgres", "", false)

	if got := m.ListPending(); len(got) != 2 {
		t.Errorf("pending = %d, want 2", len(got))
	}
}

func TestCleanup(t *testing.T) {
	m := newTestManager(&fakeTransport{})

	m.Propose("rotate_logs", "web01", "", "", false)
	if n := m.Cleanup(-time.Second); n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}
	if got := m.ListPending(); len(got) != 0 {
		t.Errorf("pending after purge = %d", len(got))
	}
}

func TestCatalogShape(t *testing.T) {
	cat := Catalog()
	if len(cat) != 5 {
		t.Fatalf("catalog size = %d, want 5", len(cat))
	}
	low := 0
	for _, a := range cat {
		if a.Impact == ImpactLow {
			low++
		}
	}
	if low != 4 {
		t.Errorf("low impact actions = %d, want 4", low)
	}
	if a, ok := Lookup("restart_container"); !ok || !a.NeedsTarget || a.Impact != ImpactMedium {
		t.Errorf("restart_container = %+v", a)
	}
}
