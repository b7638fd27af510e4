package sshx

import (
	"os"

	"github.com/mipsou/mcp-linux-infra/internal/config"
)

// AuthMode is the authentication strategy the manager selected at startup.
type AuthMode string

const (
	// AuthAgent uses the running SSH agent. Private keys never enter the
	// broker process.
	AuthAgent AuthMode = "agent"
	// AuthDirect loads private keys from disk. Reduced security, used only
	// when no agent is reachable.
	AuthDirect AuthMode = "direct"
	// AuthNone means no method is available; the manager refuses to start.
	AuthNone AuthMode = "none"
)

// DetectAuthMode picks the best available authentication method: the agent
// when its socket is reachable, direct keys when both channel keys exist,
// otherwise none.
func DetectAuthMode(cfg config.Config) AuthMode {
	if agentAvailable(cfg) {
		return AuthAgent
	}
	if cfg.SSHKeyPath != "" && cfg.ExecKeyPath != "" {
		if fileExists(cfg.SSHKeyPath) && fileExists(cfg.ExecKeyPath) {
			return AuthDirect
		}
	}
	return AuthNone
}

func agentAvailable(cfg config.Config) bool {
	if cfg.DisableSSHAgent {
		return false
	}
	sock := os.Getenv("SSH_AUTH_SOCK")
	return sock != "" && fileExists(sock)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// AuthModeInfo describes the active mode for introspection tools.
type AuthModeInfo struct {
	Mode          AuthMode `json:"auth_mode"`
	SecurityLevel string   `json:"security_level"`
	Message       string   `json:"message"`
}

// DescribeAuthMode renders the mode for operators.
func DescribeAuthMode(mode AuthMode) AuthModeInfo {
	switch mode {
	case AuthAgent:
		return AuthModeInfo{
			Mode:          AuthAgent,
			SecurityLevel: "MAXIMUM",
			Message:       "Using SSH agent, private keys never in broker memory",
		}
	case AuthDirect:
		return AuthModeInfo{
			Mode:          AuthDirect,
			SecurityLevel: "REDUCED",
			Message:       "SSH agent not available, private keys loaded from disk",
		}
	default:
		return AuthModeInfo{
			Mode:          AuthNone,
			SecurityLevel: "NONE",
			Message:       ErrNoAuthMethod.Error(),
		}
	}
}
