package learning

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mipsou/mcp-linux-infra/internal/policy"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	path := filepath.Join(t.TempDir(), "command_stats.json")
	return NewCollector(path, policy.Default(), nil)
}

func TestRecordAccumulates(t *testing.T) {
	c := newTestCollector(t)

	c.Record("htop", "alice", "web01")
	c.Record("htop", "bob", "web01")
	c.Record("htop", "alice", "db01")

	stats, ok := c.Get("htop")
	if !ok {
		t.Fatal("htop not tracked")
	}
	if stats.Count != 3 {
		t.Errorf("count = %d, want 3", stats.Count)
	}
	if len(stats.Users) != 2 || len(stats.Hosts) != 2 {
		t.Errorf("users = %v, hosts = %v", stats.Users, stats.Hosts)
	}
	if stats.RiskLevel != string(policy.RiskLow) {
		t.Errorf("risk = %q, want LOW", stats.RiskLevel)
	}
}

func TestRecordDefaultsAndBlank(t *testing.T) {
	c := newTestCollector(t)

	c.Record("  ", "alice", "web01")
	if len(c.All()) != 0 {
		t.Error("blank command must not be tracked")
	}

	c.Record("htop", "", "")
	stats, _ := c.Get("htop")
	if len(stats.Users) != 1 || stats.Users[0] != "unknown" {
		t.Errorf("users = %v, want [unknown]", stats.Users)
	}
	if len(stats.Hosts) != 1 || stats.Hosts[0] != "unknown" {
		t.Errorf("hosts = %v, want [unknown]", stats.Hosts)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "command_stats.json")

	c1 := NewCollector(path, policy.Default(), nil)
	c1.Record("htop", "alice", "web01")
	c1.Record("htop", "alice", "web01")

	c2 := NewCollector(path, policy.Default(), nil)
	stats, ok := c2.Get("htop")
	if !ok || stats.Count != 2 {
		t.Fatalf("reloaded stats = %+v, %v", stats, ok)
	}
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "command_stats.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := NewCollector(path, policy.Default(), nil)
	if len(c.All()) != 0 {
		t.Error("corrupt file should start empty")
	}
}

func TestSuggestionsLowRiskOnly(t *testing.T) {
	c := newTestCollector(t)

	for i := 0; i < 5; i++ {
		c.Record("htop", "alice", "web01")
		c.Record("systemctl restart caddy", "alice", "web01")
	}

	got := c.Suggestions(5, 0, policy.RiskLow)
	if len(got) != 1 {
		t.Fatalf("suggestions = %+v, want only htop", got)
	}
	s := got[0]
	if s.Command != "htop" || !s.CanAutoAdd {
		t.Errorf("suggestion = %+v", s)
	}
	if s.SuggestedLevel != policy.AuthAuto || s.SuggestedSSHRole != policy.RoleReader {
		t.Errorf("suggestion binding = %q/%q", s.SuggestedLevel, s.SuggestedSSHRole)
	}
	if s.RecommendedAction != policy.ActionAddAuto {
		t.Errorf("action = %q", s.RecommendedAction)
	}
}

func TestUnknownNeverSuggested(t *testing.T) {
	c := newTestCollector(t)

	for i := 0; i < 5; i++ {
		c.Record("frobnicate --widgets", "alice", "web01")
	}

	if got := c.Suggestions(5, 0, policy.RiskLow); len(got) != 0 {
		t.Errorf("unknown command suggested: %+v", got)
	}
	// Even a CRITICAL ceiling does not admit UNKNOWN.
	if got := c.Suggestions(5, 0, policy.RiskCritical); len(got) != 0 {
		t.Errorf("unknown command suggested at critical ceiling: %+v", got)
	}
}

func TestSuggestionsThresholds(t *testing.T) {
	c := newTestCollector(t)

	for i := 0; i < 4; i++ {
		c.Record("htop", "alice", "web01")
	}
	if got := c.Suggestions(5, 0, policy.RiskLow); len(got) != 0 {
		t.Errorf("below min count, got %+v", got)
	}
	c.Record("htop", "alice", "web01")
	if got := c.Suggestions(5, 0, policy.RiskLow); len(got) != 1 {
		t.Errorf("at min count, got %+v", got)
	}
	if got := c.Suggestions(5, time.Hour, policy.RiskLow); len(got) != 0 {
		t.Errorf("younger than min age, got %+v", got)
	}
}

func TestSuggestionsOrdering(t *testing.T) {
	c := newTestCollector(t)

	for i := 0; i < 3; i++ {
		c.Record("htop", "alice", "web01")
	}
	for i := 0; i < 7; i++ {
		c.Record("vmstat 1 5", "alice", "web01")
	}

	got := c.Suggestions(1, 0, policy.RiskLow)
	if len(got) != 2 {
		t.Fatalf("suggestions = %+v", got)
	}
	if got[0].Command != "vmstat 1 5" || got[1].Command != "htop" {
		t.Errorf("ordering wrong: %q, %q", got[0].Command, got[1].Command)
	}
}

func TestTopBlocked(t *testing.T) {
	c := newTestCollector(t)

	c.Record("htop", "alice", "web01")
	for i := 0; i < 3; i++ {
		c.Record("frobnicate", "alice", "web01")
	}

	top := c.TopBlocked(1)
	if len(top) != 1 || top[0].Command != "frobnicate" {
		t.Fatalf("top = %+v", top)
	}
	if len(c.TopBlocked(10)) != 2 {
		t.Error("limit above size should return all")
	}
}

func TestClear(t *testing.T) {
	c := newTestCollector(t)
	c.Record("htop", "alice", "web01")
	c.Record("frobnicate", "alice", "web01")

	c.Clear("htop")
	if _, ok := c.Get("htop"); ok {
		t.Error("htop should be cleared")
	}
	if _, ok := c.Get("frobnicate"); !ok {
		t.Error("frobnicate should survive")
	}

	c.ClearAll()
	if len(c.All()) != 0 {
		t.Error("ClearAll left entries")
	}
}

func TestSummarize(t *testing.T) {
	c := newTestCollector(t)
	c.Record("htop", "alice", "web01")
	c.Record("htop", "alice", "web01")
	c.Record("frobnicate", "alice", "web01")

	s := c.Summarize()
	if s.UniqueCommands != 2 || s.TotalBlocks != 3 {
		t.Errorf("summary = %+v", s)
	}
	if s.RiskBreakdown[string(policy.RiskLow)] != 1 || s.RiskBreakdown[string(policy.RiskUnknown)] != 1 {
		t.Errorf("risk breakdown = %v", s.RiskBreakdown)
	}
}
