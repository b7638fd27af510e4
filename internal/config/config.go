// Package config provides configuration loading for the broker.
// Configuration sources (in priority order): env vars > .env file > defaults.
// All variables use the LINUX_MCP_ prefix; a few legacy PRA_* spellings are
// still accepted on read.
package config

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all broker configuration.
type Config struct {
	// Default SSH user for the read-only channel. Falls back to the
	// process owner.
	User string `json:"user"`

	// Read-only channel key material
	SSHKeyPath      string `json:"ssh_key_path,omitempty"`
	SearchForSSHKey bool   `json:"search_for_ssh_key"`
	KeyPassphrase   string `json:"-"`

	// DisableSSHAgent forces direct-key authentication even when an agent
	// socket is present.
	DisableSSHAgent bool `json:"disable_ssh_agent"`

	// Executor channel key material
	ExecKeyPath       string `json:"exec_key_path,omitempty"`
	ExecUser          string `json:"exec_user"`
	ExecKeyPassphrase string `json:"-"`

	// Connection pooling
	SSHConnectionTimeout int `json:"ssh_connection_timeout"`
	SSHKeepaliveInterval int `json:"ssh_keepalive_interval"`
	SSHMaxConnections    int `json:"ssh_max_connections"`

	// Logging
	LogDir           string `json:"log_dir,omitempty"`
	LogLevel         string `json:"log_level"`
	LogRetentionDays int    `json:"log_retention_days"`

	// Security
	AllowedLogPaths string `json:"allowed_log_paths"`
	// AllowedHosts is the parsed allowlist; nil means every host.
	AllowedHosts    []string `json:"allowed_hosts,omitempty"`
	RequireApproval bool     `json:"require_approval_for_exec"`

	// Executor workflow
	ExecAuditLog  string `json:"exec_audit_log"`
	ExecMaxImpact string `json:"exec_max_impact"`

	// Diagnostics
	DefaultLogLines       int `json:"default_log_lines"`
	DefaultCommandTimeout int `json:"default_command_timeout"`

	// Whitelist override file, empty means built-in rules.
	WhitelistPath string `json:"whitelist_path,omitempty"`

	// Server
	ListenAddr string `json:"listen_addr"`
}

// Default returns configuration with sensible defaults.
func Default() Config {
	return Config{
		User:                  currentUser(),
		ExecUser:              "exec-runner",
		SSHConnectionTimeout:  30,
		SSHKeepaliveInterval:  60,
		SSHMaxConnections:     10,
		LogLevel:              "INFO",
		LogRetentionDays:      30,
		AllowedLogPaths:       "/var/log/*",
		RequireApproval:       true,
		ExecAuditLog:          "/var/log/mcp-pra.log",
		ExecMaxImpact:         "medium",
		DefaultLogLines:       100,
		DefaultCommandTimeout: 120,
		ListenAddr:            ":8080",
	}
}

// Load reads a .env file if present, then overlays environment variables on
// the defaults.
func Load(envFile string) Config {
	if envFile != "" {
		// Missing file is fine, explicit settings win over the file.
		_ = godotenv.Load(envFile)
	}

	cfg := Default()

	if v := getenv("USER"); v != "" {
		cfg.User = v
	}
	if v := getenv("SSH_KEY_PATH"); v != "" {
		cfg.SSHKeyPath = ExpandPath(v)
	}
	if v := getenv("SEARCH_FOR_SSH_KEY"); v != "" {
		cfg.SearchForSSHKey = isTrue(v)
	}
	if v := getenv("KEY_PASSPHRASE"); v != "" {
		cfg.KeyPassphrase = v
	}
	if v := getenv("DISABLE_SSH_AGENT"); v != "" {
		cfg.DisableSSHAgent = isTrue(v)
	}
	if v := getenv("EXEC_KEY_PATH", "PRA_KEY_PATH"); v != "" {
		cfg.ExecKeyPath = ExpandPath(v)
	}
	if v := getenv("EXEC_USER", "PRA_USER"); v != "" {
		cfg.ExecUser = v
	}
	if v := getenv("EXEC_KEY_PASSPHRASE", "PRA_KEY_PASSPHRASE"); v != "" {
		cfg.ExecKeyPassphrase = v
	}
	if n, ok := getint("SSH_CONNECTION_TIMEOUT"); ok {
		cfg.SSHConnectionTimeout = n
	}
	if n, ok := getint("SSH_KEEPALIVE_INTERVAL"); ok {
		cfg.SSHKeepaliveInterval = n
	}
	if n, ok := getint("SSH_MAX_CONNECTIONS"); ok {
		cfg.SSHMaxConnections = n
	}
	if v := getenv("LOG_DIR"); v != "" {
		cfg.LogDir = ExpandPath(v)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToUpper(v)
	}
	if n, ok := getint("LOG_RETENTION_DAYS"); ok {
		cfg.LogRetentionDays = n
	}
	if v := getenv("ALLOWED_LOG_PATHS"); v != "" {
		cfg.AllowedLogPaths = v
	}
	if v := getenv("ALLOWED_HOSTS"); v != "" {
		cfg.AllowedHosts = ParseAllowedHosts(v)
	}
	if v := getenv("REQUIRE_APPROVAL_FOR_EXEC", "REQUIRE_APPROVAL_FOR_PRA"); v != "" {
		cfg.RequireApproval = isTrue(v)
	}
	if v := getenv("EXEC_AUDIT_LOG", "PRA_AUDIT_LOG"); v != "" {
		cfg.ExecAuditLog = ExpandPath(v)
	}
	if v := getenv("EXEC_MAX_IMPACT", "PRA_MAX_IMPACT"); v != "" {
		cfg.ExecMaxImpact = strings.ToLower(v)
	}
	if n, ok := getint("DEFAULT_LOG_LINES"); ok {
		cfg.DefaultLogLines = n
	}
	if n, ok := getint("DEFAULT_COMMAND_TIMEOUT"); ok {
		cfg.DefaultCommandTimeout = n
	}
	if v := getenv("WHITELIST_PATH"); v != "" {
		cfg.WhitelistPath = ExpandPath(v)
	}
	if v := getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}

	return cfg
}

// IsHostAllowed reports whether host passes the allowlist. A nil list
// allows every host.
func (c Config) IsHostAllowed(host string) bool {
	if c.AllowedHosts == nil {
		return true
	}
	for _, h := range c.AllowedHosts {
		if h == host {
			return true
		}
	}
	return false
}

// ParseAllowedHosts splits a comma-separated host list. "*" or an empty
// string mean every host and yield nil.
func ParseAllowedHosts(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" || v == "*" {
		return nil
	}
	var hosts []string
	for _, h := range strings.Split(v, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	if len(hosts) == 0 {
		return nil
	}
	return hosts
}

// ExpandPath resolves a leading ~ and environment variables in a path.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
		}
	}
	return os.ExpandEnv(p)
}

// getenv returns the first non-empty LINUX_MCP_ variable among the given
// suffixes. Later suffixes are deprecated spellings kept for compatibility.
func getenv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv("LINUX_MCP_" + name); v != "" {
			return v
		}
	}
	return ""
}

func getint(names ...string) (int, bool) {
	v := getenv(names...)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isTrue(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}
