package policy

import (
	"regexp"
	"strings"
)

// builtinPlugins returns the fixed plugin set in registration order. Ordering
// is part of the policy contract: the first matching plugin wins.
func builtinPlugins() []*Plugin {
	return []*Plugin{
		monitoringPlugin(),
		networkPlugin(),
		filesystemPlugin(),
		systemdPlugin(),
		containersPlugin(),
		posixSystemPlugin(),
		posixProcessPlugin(),
		posixTextPlugin(),
	}
}

// argPattern anchors a command name and allows trailing arguments.
// Multi-word keys ("ip addr") tolerate any whitespace between words.
func argPattern(name string) *regexp.Regexp {
	parts := strings.Fields(name)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`^` + strings.Join(parts, `\s+`) + `(\s+.*)?$`)
}

// autoRead builds a LOW/AUTO spec dispatched via the reader identity.
func autoRead(key, desc, rationale string, examples ...string) SpecEntry {
	return SpecEntry{Key: key, Spec: CommandSpec{
		Pattern:     argPattern(key),
		Risk:        RiskLow,
		Level:       AuthAuto,
		Role:        RoleReader,
		Description: desc,
		Rationale:   rationale,
		Examples:    examples,
	}}
}

// manualExec builds a MANUAL spec dispatched via the executor identity.
func manualExec(key string, risk RiskLevel, desc, rationale string, examples ...string) SpecEntry {
	return SpecEntry{Key: key, Spec: CommandSpec{
		Pattern:     argPattern(key),
		Risk:        risk,
		Level:       AuthManual,
		Role:        RoleExecutor,
		Description: desc,
		Rationale:   rationale,
		Examples:    examples,
	}}
}

// withPattern overrides the default argument pattern, for commands that must
// match exactly or constrain their arguments.
func withPattern(e SpecEntry, pattern string) SpecEntry {
	e.Spec.Pattern = regexp.MustCompile(pattern)
	return e
}

// withFlags annotates a spec with notable flags for introspection output.
func withFlags(e SpecEntry, flags ...string) SpecEntry {
	e.Spec.Flags = flags
	return e
}
