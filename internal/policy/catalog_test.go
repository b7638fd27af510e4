package policy

import (
	"regexp"
	"testing"
)

func TestDefaultCatalogPluginSet(t *testing.T) {
	c := Default()

	want := []string{
		"monitoring", "network", "filesystem", "systemd",
		"containers", "posix-system", "posix-process", "posix-text",
	}
	plugins := c.Plugins()
	if len(plugins) != len(want) {
		t.Fatalf("got %d plugins, want %d", len(plugins), len(want))
	}
	for i, name := range want {
		if plugins[i].Name != name {
			t.Errorf("plugin[%d] = %q, want %q", i, plugins[i].Name, name)
		}
	}
}

func TestRegisterDuplicatePlugin(t *testing.T) {
	c := NewCatalog()
	p := NewPlugin("dup", "test", "first")
	if err := c.Register(p); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := c.Register(NewPlugin("dup", "test", "second")); err == nil {
		t.Fatal("expected duplicate plugin error")
	}
}

func TestFindTokenProbe(t *testing.T) {
	c := Default()

	cases := []struct {
		cmd    string
		plugin string
		level  AuthLevel
		role   SSHRole
	}{
		{"htop", "monitoring", AuthAuto, RoleReader},
		{"systemctl status unbound", "systemd", AuthAuto, RoleReader},
		{"systemctl restart nginx", "systemd", AuthManual, RoleExecutor},
		{"ip addr show eth0", "network", AuthAuto, RoleReader},
		{"wget https://example.com/x", "network", AuthManual, RoleExecutor},
		{"podman rm web", "containers", AuthManual, RoleExecutor},
		{"docker rm web", "containers", AuthManual, RoleExecutor},
		{"docker top web", "containers", AuthAuto, RoleReader},
		{"kill -9 1234", "posix-process", AuthManual, RoleExecutor},
		{"tee /etc/motd", "posix-text", AuthManual, RoleExecutor},
		{"xargs -n 1 echo", "posix-text", AuthManual, RoleExecutor},
		{"whoami", "posix-system", AuthAuto, RoleReader},
	}

	for _, tc := range cases {
		plugin, spec, ok := c.Find(tc.cmd)
		if !ok {
			t.Errorf("Find(%q): no match", tc.cmd)
			continue
		}
		if plugin.Name != tc.plugin {
			t.Errorf("Find(%q) plugin = %q, want %q", tc.cmd, plugin.Name, tc.plugin)
		}
		if spec.Level != tc.level {
			t.Errorf("Find(%q) level = %q, want %q", tc.cmd, spec.Level, tc.level)
		}
		if spec.Role != tc.role {
			t.Errorf("Find(%q) role = %q, want %q", tc.cmd, spec.Role, tc.role)
		}
	}
}

func TestFindMisses(t *testing.T) {
	c := Default()
	for _, cmd := range []string{"", "frobnicate --widgets", "whoami --verbose", "rm -rf /var"} {
		if _, _, ok := c.Find(cmd); ok {
			t.Errorf("Find(%q) matched, want miss", cmd)
		}
	}
}

// Every spec's pattern must match its own examples, and every spec must
// respect the level/role binding: AUTO commands run as the reader, MANUAL
// commands run as the executor.
func TestCatalogSpecConformance(t *testing.T) {
	c := Default()
	for _, p := range c.Plugins() {
		for _, key := range p.Keys() {
			spec, _ := p.Get(key)

			switch spec.Level {
			case AuthAuto:
				if spec.Role != RoleReader {
					t.Errorf("%s/%s: AUTO spec bound to role %q", p.Name, key, spec.Role)
				}
				if spec.Risk != RiskLow {
					t.Errorf("%s/%s: AUTO spec with risk %q", p.Name, key, spec.Risk)
				}
			case AuthManual:
				if spec.Role != RoleExecutor {
					t.Errorf("%s/%s: MANUAL spec bound to role %q", p.Name, key, spec.Role)
				}
			case AuthBlocked:
				if spec.Role != RoleNone {
					t.Errorf("%s/%s: BLOCKED spec bound to role %q", p.Name, key, spec.Role)
				}
			}

			for _, ex := range spec.Examples {
				if !spec.Pattern.MatchString(ex) {
					t.Errorf("%s/%s: example %q does not match pattern %q", p.Name, key, ex, spec.Pattern)
				}
			}
		}
	}
}

// AUTO specs must never legitimize a dangerous shape: the catalog is
// consulted before the denylist, so an AUTO example matching a dangerous
// pattern would silently whitelist it.
func TestNoAutoSpecCoversDangerousExample(t *testing.T) {
	c := Default()
	for _, p := range c.Plugins() {
		for _, key := range p.Keys() {
			spec, _ := p.Get(key)
			if spec.Level != AuthAuto {
				continue
			}
			for _, ex := range spec.Examples {
				for _, dp := range dangerousPatterns {
					if dp.re.MatchString(ex) {
						t.Errorf("%s/%s: AUTO example %q matches dangerous pattern %q", p.Name, key, ex, dp.re)
					}
				}
			}
		}
	}
}

func TestSearch(t *testing.T) {
	c := Default()
	hits := c.Search("packet capture")
	if len(hits) == 0 {
		t.Fatal("no hits for packet capture")
	}
	found := false
	for _, h := range hits {
		if h.Key == "tcpdump" {
			found = true
		}
	}
	if !found {
		t.Error("tcpdump not found in search results")
	}

	if got := c.Search(""); got != nil {
		t.Errorf("empty query returned %d hits", len(got))
	}
}

func TestSummarize(t *testing.T) {
	c := Default()
	s := c.Summarize()
	if s.Plugins != 8 {
		t.Errorf("plugins = %d, want 8", s.Plugins)
	}
	if s.Commands == 0 {
		t.Error("no commands counted")
	}
	if s.ByLevel[string(AuthAuto)] == 0 || s.ByLevel[string(AuthManual)] == 0 {
		t.Errorf("level breakdown incomplete: %+v", s.ByLevel)
	}
}

func TestCategories(t *testing.T) {
	c := Default()
	cats := c.Categories()
	// Three posix plugins share one category.
	want := []string{"monitoring", "network", "filesystem", "systemd", "containers", "posix"}
	if len(cats) != len(want) {
		t.Fatalf("categories = %v, want %v", cats, want)
	}
	for i := range want {
		if cats[i] != want[i] {
			t.Errorf("categories[%d] = %q, want %q", i, cats[i], want[i])
		}
	}
}

func TestArgPattern(t *testing.T) {
	re := argPattern("ip addr")
	for _, ok := range []string{"ip addr", "ip addr show eth0", "ip  addr"} {
		if !re.MatchString(ok) {
			t.Errorf("%q should match %q", ok, re)
		}
	}
	for _, bad := range []string{"ip address", "ip route", "ipaddr"} {
		if re.MatchString(bad) {
			t.Errorf("%q should not match %q", bad, re)
		}
	}
	if _, err := regexp.Compile(re.String()); err != nil {
		t.Fatalf("pattern does not recompile: %v", err)
	}
}
