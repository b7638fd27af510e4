// Package authz decides whether a remote command may run, against an
// ordered rule list with a default-deny fallback, and tracks the approval
// workflow for commands that need a human decision.
package authz

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mipsou/mcp-linux-infra/internal/policy"
)

// Rule binds a command pattern to an authorization level and the SSH
// identity the command must run under. Patterns match from the start of the
// command string; first match in list order wins.
type Rule struct {
	Pattern     string
	Level       policy.AuthLevel
	SSHUser     policy.SSHRole
	Description string
	Rationale   string

	re *regexp.Regexp
	// exempt suppresses a match. Used where the intended semantics need a
	// negative condition that RE2 cannot express in the pattern itself.
	exempt func(cmd string) bool
}

// Matches reports whether the rule applies to the command.
func (r *Rule) Matches(cmd string) bool {
	if !r.re.MatchString(cmd) {
		return false
	}
	if r.exempt != nil && r.exempt(cmd) {
		return false
	}
	return true
}

func mustRule(pattern string, level policy.AuthLevel, user policy.SSHRole, desc, rationale string) Rule {
	return Rule{
		Pattern:     pattern,
		Level:       level,
		SSHUser:     user,
		Description: desc,
		Rationale:   rationale,
		re:          regexp.MustCompile(anchored(pattern)),
	}
}

// anchored pins a pattern to the start of the command unless it already
// carries its own anchor or leading wildcard.
func anchored(pattern string) string {
	if strings.HasPrefix(pattern, "^") || strings.HasPrefix(pattern, ".*") {
		return pattern
	}
	return "^(?:" + pattern + ")"
}

var rmRootTarget = regexp.MustCompile(`rm\s+-rf\s+/(\S*)`)

// rmScratchExempt reports whether an rm -rf targets /tmp or /var/tmp.
// Scratch cleanup is tolerated; everything else under / stays blocked,
// including lookalike segments such as /tmpfoo.
func rmScratchExempt(cmd string) bool {
	m := rmRootTarget.FindStringSubmatch(cmd)
	if m == nil {
		return false
	}
	return policy.ScratchPath(m[1])
}

// DefaultWhitelist returns the built-in rule list: auto-approved read-only
// commands bound to the reader identity, state-changing commands that need
// approval bound to the executor identity, then the hard denylist.
func DefaultWhitelist() []Rule {
	rules := []Rule{
		// AUTO, read-only, reader identity
		mustRule(`^systemctl status\s+`, policy.AuthAuto, policy.RoleReader,
			"Check service status", "Read-only, no system impact"),
		mustRule(`^systemctl list-units`, policy.AuthAuto, policy.RoleReader,
			"List system units", "Read-only, diagnostic"),
		mustRule(`^journalctl\s+`, policy.AuthAuto, policy.RoleReader,
			"Read system logs", "Read-only, diagnostic purpose"),
		mustRule(`^ss\s+-[lntup]+`, policy.AuthAuto, policy.RoleReader,
			"List network connections", "Read-only network diagnostic"),
		mustRule(`^df\s+-h`, policy.AuthAuto, policy.RoleReader,
			"Check disk usage", "Read-only system info"),
		mustRule(`^free\s+-h`, policy.AuthAuto, policy.RoleReader,
			"Check memory usage", "Read-only system info"),
		mustRule(`^uptime`, policy.AuthAuto, policy.RoleReader,
			"Check system uptime", "Read-only system info"),
		mustRule(`^cat\s+/var/log/`, policy.AuthAuto, policy.RoleReader,
			"Read log files", "Read-only, diagnostic"),
		mustRule(`^podman\s+ps`, policy.AuthAuto, policy.RoleReader,
			"List containers", "Read-only container info"),
		mustRule(`^podman\s+inspect\s+`, policy.AuthAuto, policy.RoleReader,
			"Inspect container", "Read-only container info"),
		mustRule(`^ansible-playbook\s+.*--check`, policy.AuthAuto, policy.RoleReader,
			"Ansible dry-run (check mode)", "Read-only, no system changes"),

		// MANUAL, needs approval, executor identity
		mustRule(`^systemctl restart\s+`, policy.AuthManual, policy.RoleExecutor,
			"Restart system service", "Service interruption, needs approval"),
		mustRule(`^systemctl reload\s+`, policy.AuthManual, policy.RoleExecutor,
			"Reload service configuration", "Config change, minimal impact but needs review"),
		mustRule(`^systemctl start\s+`, policy.AuthManual, policy.RoleExecutor,
			"Start system service", "System state change"),
		mustRule(`^systemctl stop\s+`, policy.AuthManual, policy.RoleExecutor,
			"Stop system service", "Service interruption"),
		mustRule(`^podman restart\s+`, policy.AuthManual, policy.RoleExecutor,
			"Restart container", "Service interruption"),
		mustRule(`^podman stop\s+`, policy.AuthManual, policy.RoleExecutor,
			"Stop container", "Service interruption"),
		mustRule(`^podman start\s+`, policy.AuthManual, policy.RoleExecutor,
			"Start container", "System state change"),
		mustRule(`^ansible-playbook\s+`, policy.AuthManual, policy.RoleExecutor,
			"Execute Ansible playbook", "Infrastructure changes, needs approval"),
		mustRule(`^reboot$`, policy.AuthManual, policy.RoleExecutor,
			"Reboot system", "CRITICAL: Full system restart"),
		mustRule(`^shutdown\s+`, policy.AuthManual, policy.RoleExecutor,
			"Shutdown system", "CRITICAL: System shutdown"),

		// BLOCKED, matched anywhere in the command line
		mustRule(`.*rm\s+-rf\s+/`, policy.AuthBlocked, policy.RoleNone,
			"Recursive delete from root", "DANGEROUS: Could destroy system"),
		mustRule(`.*dd\s+.*of=/dev/[sv]d`, policy.AuthBlocked, policy.RoleNone,
			"Direct disk write", "DANGEROUS: Could corrupt filesystem"),
		mustRule(`.*mkfs\.`, policy.AuthBlocked, policy.RoleNone,
			"Format filesystem", "DANGEROUS: Data loss"),
		mustRule(`.*fdisk\s+`, policy.AuthBlocked, policy.RoleNone,
			"Partition disk", "DANGEROUS: Could corrupt partitions"),
		mustRule(`.*:\(\)\{.*:\|:.*\};:`, policy.AuthBlocked, policy.RoleNone,
			"Fork bomb", "DANGEROUS: DoS attack"),
	}

	// The dry-run rule above already claims ansible-playbook commands that
	// carry --check, so the manual rule only sees the mutating invocations.
	// The scratch exemption for rm -rf needs code: when it applies, the
	// blocked rule stands down and the command falls through to default deny.
	for i := range rules {
		if rules[i].Pattern == `.*rm\s+-rf\s+/` {
			rules[i].exempt = rmScratchExempt
		}
	}
	return rules
}

// yamlRule is the on-disk form of one whitelist entry.
type yamlRule struct {
	Pattern     string `yaml:"pattern"`
	Description string `yaml:"description"`
	SSHUser     string `yaml:"ssh_user"`
	Rationale   string `yaml:"rationale"`
}

type yamlWhitelist struct {
	AutoApproved   []yamlRule `yaml:"auto_approved"`
	ManualApproval []yamlRule `yaml:"manual_approval"`
	Blocked        []yamlRule `yaml:"blocked"`
}

// LoadWhitelist reads a whitelist override from a YAML file. A missing file
// yields the built-in default list. The three sections concatenate in order
// auto_approved, manual_approval, blocked, preserving first-match-wins.
func LoadWhitelist(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultWhitelist(), nil
		}
		return nil, fmt.Errorf("read whitelist %s: %w", path, err)
	}

	var doc yamlWhitelist
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse whitelist %s: %w", path, err)
	}

	var rules []Rule
	appendSection := func(entries []yamlRule, level policy.AuthLevel, fallbackUser policy.SSHRole) error {
		for _, e := range entries {
			if e.Pattern == "" {
				return fmt.Errorf("whitelist %s: %s entry without pattern", path, level)
			}
			re, err := regexp.Compile(anchored(e.Pattern))
			if err != nil {
				return fmt.Errorf("whitelist %s: pattern %q: %w", path, e.Pattern, err)
			}
			user := fallbackUser
			if e.SSHUser != "" {
				user = policy.NormalizeRole(e.SSHUser)
			}
			rules = append(rules, Rule{
				Pattern:     e.Pattern,
				Level:       level,
				SSHUser:     user,
				Description: e.Description,
				Rationale:   e.Rationale,
				re:          re,
			})
		}
		return nil
	}

	if err := appendSection(doc.AutoApproved, policy.AuthAuto, policy.RoleReader); err != nil {
		return nil, err
	}
	if err := appendSection(doc.ManualApproval, policy.AuthManual, policy.RoleExecutor); err != nil {
		return nil, err
	}
	if err := appendSection(doc.Blocked, policy.AuthBlocked, policy.RoleNone); err != nil {
		return nil, err
	}
	return rules, nil
}
