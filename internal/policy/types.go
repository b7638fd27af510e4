// Package policy holds the command authorization catalog: named plugins of
// command specs, and the risk classifier that turns a raw command line into
// a structured verdict.
package policy

import "regexp"

// RiskLevel grades how dangerous a command is. Orthogonal to the
// authorization level: a MANUAL command may be MEDIUM or HIGH risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
	RiskUnknown  RiskLevel = "UNKNOWN"
)

// rank orders risk levels for threshold comparisons. UNKNOWN ranks above
// CRITICAL so it never passes a "max risk" filter.
func (r RiskLevel) rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return 4
	}
}

// AtMost reports whether r is no riskier than max.
func (r RiskLevel) AtMost(max RiskLevel) bool {
	return r.rank() <= max.rank()
}

// AuthLevel is the authorization outcome for a command.
type AuthLevel string

const (
	// AuthAuto executes immediately via the reader identity.
	AuthAuto AuthLevel = "auto"
	// AuthManual requires an explicit human approval before dispatch.
	AuthManual AuthLevel = "manual"
	// AuthBlocked is a terminal denial.
	AuthBlocked AuthLevel = "blocked"
)

// SSHRole binds a command to one of the two privilege-separated SSH
// identities. Blocked commands carry RoleNone.
type SSHRole string

const (
	RoleReader   SSHRole = "mcp-reader"
	RoleExecutor SSHRole = "exec-runner"
	RoleNone     SSHRole = "none"
)

// NormalizeRole maps the deprecated pra-runner spelling onto the executor
// role. Accepted on read, never emitted.
func NormalizeRole(s string) SSHRole {
	switch s {
	case "pra-runner", string(RoleExecutor):
		return RoleExecutor
	case string(RoleReader):
		return RoleReader
	default:
		return RoleNone
	}
}

// CommandSpec describes one command shape inside a plugin.
type CommandSpec struct {
	Pattern     *regexp.Regexp
	Risk        RiskLevel
	Level       AuthLevel
	Role        SSHRole
	Description string
	Rationale   string
	Examples    []string
	Flags       []string
}

// entry keeps the declaration-ordered (key, spec) pairing inside a plugin.
type entry struct {
	key  string
	spec *CommandSpec
}

// Plugin is a named, ordered group of command specs. Within a plugin the
// first declared matching spec wins; across plugins registration order wins.
type Plugin struct {
	Name        string
	Category    string
	Description string

	entries []entry
	byKey   map[string]*CommandSpec
}

// SpecEntry pairs a command key with its spec for plugin construction.
type SpecEntry struct {
	Key  string
	Spec CommandSpec
}

// NewPlugin builds a plugin from declaration-ordered (key, spec) pairs.
func NewPlugin(name, category, description string, specs ...SpecEntry) *Plugin {
	p := &Plugin{
		Name:        name,
		Category:    category,
		Description: description,
		byKey:       make(map[string]*CommandSpec, len(specs)),
	}
	for i := range specs {
		s := specs[i].Spec
		p.entries = append(p.entries, entry{key: specs[i].Key, spec: &s})
		p.byKey[specs[i].Key] = &s
	}
	return p
}

// Spec returns the first declared spec whose pattern matches cmd.
func (p *Plugin) Spec(cmd string) (*CommandSpec, bool) {
	for _, e := range p.entries {
		if e.spec.Pattern.MatchString(cmd) {
			return e.spec, true
		}
	}
	return nil, false
}

// Keys returns the command keys in declaration order.
func (p *Plugin) Keys() []string {
	keys := make([]string, 0, len(p.entries))
	for _, e := range p.entries {
		keys = append(keys, e.key)
	}
	return keys
}

// Get returns the spec registered under an exact command key.
func (p *Plugin) Get(key string) (*CommandSpec, bool) {
	s, ok := p.byKey[key]
	return s, ok
}
