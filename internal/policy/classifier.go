package policy

import (
	"regexp"
	"strings"
)

// Action is the classifier's recommendation for an unmatched or denied
// command.
type Action string

const (
	ActionAddAuto            Action = "ADD_AUTO"
	ActionAddManual          Action = "ADD_MANUAL"
	ActionBlockPermanently   Action = "BLOCK_PERMANENTLY"
	ActionManualReview       Action = "MANUAL_REVIEW"
	ActionAlreadyWhitelisted Action = "ALREADY_WHITELISTED"
)

// Verdict is the result of classifying a command string.
type Verdict struct {
	Command           string    `json:"command"`
	Risk              RiskLevel `json:"risk_level"`
	Category          string    `json:"category"`
	ReadOnly          bool      `json:"is_readonly"`
	SuggestedLevel    AuthLevel `json:"suggested_level,omitempty"`
	SuggestedRole     SSHRole   `json:"suggested_ssh_role"`
	Rationale         string    `json:"rationale"`
	CanAutoAdd        bool      `json:"can_auto_add"`
	RecommendedAction Action    `json:"recommended_action"`
	Plugin            string    `json:"plugin,omitempty"`
	Examples          []string  `json:"examples,omitempty"`
}

type riskPattern struct {
	re     *regexp.Regexp
	reason string
}

// Dangerous shapes are CRITICAL and suggest a permanent block. Matching is
// case-insensitive and unanchored: the shape is dangerous wherever it
// appears in a compound command line.
var dangerousPatterns = []riskPattern{
	{regexp.MustCompile(`(?i)rm\s+-rf\s+/(\S*)`), "Recursive delete from root, use configuration management for safe cleanup"},
	{regexp.MustCompile(`(?i)dd\s+.*of=/dev/[sv]d`), "Direct disk write, extremely dangerous"},
	{regexp.MustCompile(`(?i)mkfs\.`), "Format filesystem, data loss"},
	{regexp.MustCompile(`(?i)fdisk\s+`), "Partition manipulation, data loss risk"},
	{regexp.MustCompile(`(?i)parted\s+`), "Partition manipulation, data loss risk"},
	{regexp.MustCompile(`(?i)wipefs\s+`), "Wipe filesystem signatures, data loss"},
	{regexp.MustCompile(`:\(\)\{.*:\|:.*\};:`), "Fork bomb, denial of service"},
	{regexp.MustCompile(`(?i)>\s*/dev/sd[a-z]`), "Direct write to disk device"},
	{regexp.MustCompile(`(?i)chown\s+-R\s+.*\s+/`), "Recursive ownership change from root"},
	{regexp.MustCompile(`(?i)chmod\s+-R\s+777`), "World-writable permissions, security risk"},
}

// rmExempt matches the rm -rf shapes that target scratch space only.
var rmRoot = regexp.MustCompile(`(?i)rm\s+-rf\s+/(\S*)`)

var mediumPatterns = []riskPattern{
	{regexp.MustCompile(`(?i)^systemctl\s+(restart|reload|start|stop)\s+`), "Service state change"},
	{regexp.MustCompile(`(?i)^podman\s+(restart|stop|start)\s+`), "Container state change"},
	{regexp.MustCompile(`(?i)^docker\s+(restart|stop|start)\s+`), "Container state change"},
	{regexp.MustCompile(`(?i)^reboot`), "System reboot"},
	{regexp.MustCompile(`(?i)^shutdown`), "System shutdown"},
	{regexp.MustCompile(`(?i)^systemctl\s+enable\s+`), "Enable service at boot"},
	{regexp.MustCompile(`(?i)^systemctl\s+disable\s+`), "Disable service at boot"},
}

var readonlyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(htop|top|iotop|iftop|nethogs)(\s|$)`),
	regexp.MustCompile(`^(ls|cat|head|tail|less|more|grep|find)\s+`),
	regexp.MustCompile(`^(ps|pstree|pgrep)(\s|$)`),
	regexp.MustCompile(`^(df|du|free|uptime|w|who)(\s|$)`),
	regexp.MustCompile(`^(netstat|ss)(\s|$)`),
	regexp.MustCompile(`^ip\s+(addr|route|link)(\s|$)`),
	regexp.MustCompile(`^systemctl\s+(status|list-units|list-sockets|show)(\s|$)`),
	regexp.MustCompile(`^journalctl(\s|$)`),
	regexp.MustCompile(`^(podman|docker)\s+(ps|inspect|images|logs)(\s|$)`),
	regexp.MustCompile(`^ansible-playbook\s+.*--check`),
}

// Classify maps a command string to a verdict. Pure function, no side
// effects. Layer order is the contract: catalog, dangerous denylist, medium
// risk, read-only, then unknown.
func Classify(catalog *Catalog, cmd string) Verdict {
	cmd = strings.TrimSpace(cmd)

	if plugin, spec, ok := catalog.Find(cmd); ok {
		action := ActionAddManual
		if spec.Level == AuthAuto {
			action = ActionAddAuto
		}
		return Verdict{
			Command:           cmd,
			Risk:              spec.Risk,
			Category:          plugin.Category,
			ReadOnly:          spec.Risk == RiskLow && spec.Level == AuthAuto,
			SuggestedLevel:    spec.Level,
			SuggestedRole:     spec.Role,
			Rationale:         spec.Rationale,
			CanAutoAdd:        spec.Level == AuthAuto,
			RecommendedAction: action,
			Plugin:            plugin.Name,
			Examples:          spec.Examples,
		}
	}

	for _, dp := range dangerousPatterns {
		if !dp.re.MatchString(cmd) {
			continue
		}
		if dp.re == rmExemptSentinel && rmTargetsScratch(cmd) {
			continue
		}
		return Verdict{
			Command:           cmd,
			Risk:              RiskCritical,
			Category:          "destructive",
			SuggestedLevel:    AuthBlocked,
			SuggestedRole:     RoleNone,
			Rationale:         dp.reason,
			RecommendedAction: ActionBlockPermanently,
		}
	}

	for _, mp := range mediumPatterns {
		if mp.re.MatchString(cmd) {
			return Verdict{
				Command:           cmd,
				Risk:              RiskMedium,
				Category:          "system_modification",
				SuggestedLevel:    AuthManual,
				SuggestedRole:     RoleExecutor,
				Rationale:         mp.reason,
				RecommendedAction: ActionAddManual,
			}
		}
	}

	for _, rp := range readonlyPatterns {
		if rp.MatchString(cmd) {
			return Verdict{
				Command:           cmd,
				Risk:              RiskLow,
				Category:          "monitoring",
				ReadOnly:          true,
				SuggestedLevel:    AuthAuto,
				SuggestedRole:     RoleReader,
				Rationale:         "Read-only operation",
				CanAutoAdd:        true,
				RecommendedAction: ActionAddAuto,
			}
		}
	}

	return Verdict{
		Command:           cmd,
		Risk:              RiskUnknown,
		Category:          "unknown",
		SuggestedRole:     RoleNone,
		Rationale:         "Command not recognized, manual review required",
		RecommendedAction: ActionManualReview,
	}
}

var rmExemptSentinel = dangerousPatterns[0].re

// rmTargetsScratch reports whether an rm -rf targets /tmp or /var/tmp,
// which are exempt from the root-delete denylist entry. The match stops at
// the path segment: /tmpfoo is not scratch space.
func rmTargetsScratch(cmd string) bool {
	m := rmRoot.FindStringSubmatch(cmd)
	if m == nil {
		return false
	}
	return ScratchPath(m[1])
}

// ScratchPath reports whether a path relative to / is /tmp, /var/tmp, or
// inside either of them.
func ScratchPath(rest string) bool {
	for _, p := range []string{"tmp", "var/tmp"} {
		if rest == p || strings.HasPrefix(rest, p+"/") {
			return true
		}
	}
	return false
}
