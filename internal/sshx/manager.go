// Package sshx maintains the broker's two SSH channels: a read-only channel
// for diagnostics and an executor channel for approved actions. Each channel
// has its own identity, key material, and connection pool, so a compromised
// read path can never run state-changing commands.
package sshx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/mipsou/mcp-linux-infra/internal/audit"
	"github.com/mipsou/mcp-linux-infra/internal/config"
)

// Channel selects which identity and pool a command uses.
type Channel string

const (
	// ChannelRead is the diagnostics channel, mcp-reader identity.
	ChannelRead Channel = "read"
	// ChannelExec is the action channel, exec-runner identity.
	ChannelExec Channel = "exec"
)

// Result is the outcome of one remote command.
type Result struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// runner abstracts one established connection, so tests can substitute the
// network layer.
type runner interface {
	Run(ctx context.Context, command string) (Result, error)
	Close() error
}

type dialFunc func(ctx context.Context, host, user string, ch Channel) (runner, error)

// Manager owns both channel pools. Safe for concurrent use; one mutex
// serializes pool membership for both channels.
type Manager struct {
	cfg   config.Config
	mode  AuthMode
	aud   *audit.Logger
	log   *zap.Logger
	dial  dialFunc
	hosts ssh.HostKeyCallback

	// direct mode key material
	readerSigner ssh.Signer
	execSigner   ssh.Signer

	// agent mode client, shared across dials
	agentClient agent.ExtendedAgent

	mu        sync.Mutex
	readConns map[string]runner
	execConns map[string]runner
}

// NewManager detects the authentication mode and prepares both channels.
// It fails when no authentication method is available.
func NewManager(cfg config.Config, aud *audit.Logger, log *zap.Logger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		cfg:       cfg,
		mode:      DetectAuthMode(cfg),
		aud:       aud,
		log:       log.Named("sshx"),
		readConns: make(map[string]runner),
		execConns: make(map[string]runner),
	}
	m.dial = m.dialSSH
	m.hosts = m.hostKeyCallback()

	switch m.mode {
	case AuthAgent:
		sock := os.Getenv("SSH_AUTH_SOCK")
		conn, err := net.Dial("unix", sock)
		if err != nil {
			return nil, fmt.Errorf("connect to SSH agent: %w", err)
		}
		m.agentClient = agent.NewClient(conn)
		m.log.Info("using SSH agent", zap.String("security_level", "MAXIMUM"))

	case AuthDirect:
		var err error
		if m.readerSigner, err = loadSigner(cfg.SSHKeyPath, cfg.KeyPassphrase); err != nil {
			return nil, fmt.Errorf("load reader key: %w", err)
		}
		if m.execSigner, err = loadSigner(cfg.ExecKeyPath, cfg.ExecKeyPassphrase); err != nil {
			return nil, fmt.Errorf("load exec key: %w", err)
		}
		m.log.Warn("SSH agent not available, using direct keys",
			zap.String("security_level", "REDUCED"))
		if aud != nil {
			aud.SecurityViolation("direct_key_fallback", "", map[string]any{
				"recommendation": "start an SSH agent and load keys with ssh-add",
			})
		}

	default:
		return nil, ErrNoAuthMethod
	}
	return m, nil
}

// Mode returns the active authentication mode.
func (m *Manager) Mode() AuthMode {
	return m.mode
}

func loadSigner(path, passphrase string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	}
	return ssh.ParsePrivateKey(data)
}

// hostKeyCallback verifies against ~/.ssh/known_hosts when present. Without
// a known_hosts file, verification is skipped with a warning; the broker is
// expected to run on a provisioned operations host.
func (m *Manager) hostKeyCallback() ssh.HostKeyCallback {
	path := config.ExpandPath("~/.ssh/known_hosts")
	cb, err := knownhosts.New(path)
	if err != nil {
		m.log.Warn("known_hosts not usable, host keys unverified",
			zap.String("path", path), zap.Error(err))
		return ssh.InsecureIgnoreHostKey()
	}
	return cb
}

func (m *Manager) authMethods(ch Channel) ([]ssh.AuthMethod, error) {
	switch m.mode {
	case AuthAgent:
		return []ssh.AuthMethod{ssh.PublicKeysCallback(m.agentClient.Signers)}, nil
	case AuthDirect:
		signer := m.readerSigner
		if ch == ChannelExec {
			signer = m.execSigner
		}
		if signer == nil {
			if ch == ChannelExec {
				return nil, &ExecKeyNotConfiguredError{}
			}
			return nil, ErrNoAuthMethod
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return nil, ErrNoAuthMethod
}

func (m *Manager) dialSSH(ctx context.Context, host, user string, ch Channel) (runner, error) {
	auth, err := m.authMethods(ch)
	if err != nil {
		return nil, err
	}

	clientCfg := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: m.hosts,
		Timeout:         time.Duration(m.cfg.SSHConnectionTimeout) * time.Second,
	}

	addr := host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}

	client, err := ssh.Dial("tcp", addr, clientCfg)
	if err != nil {
		if m.mode == AuthAgent && strings.Contains(err.Error(), "unable to authenticate") {
			role, keyPath := "mcp-reader", m.cfg.SSHKeyPath
			if ch == ChannelExec {
				role, keyPath = "exec-runner", m.cfg.ExecKeyPath
			}
			if m.aud != nil {
				m.aud.SecurityViolation("ssh_agent_key_missing", host, map[string]any{
					"username": user,
					"solution": (&AgentKeyMissingError{Role: role, KeyPath: keyPath}).Error(),
				})
			}
			return nil, &AgentKeyMissingError{Role: role, KeyPath: keyPath}
		}
		return nil, err
	}
	return newSSHRunner(client, time.Duration(m.cfg.SSHKeepaliveInterval)*time.Second), nil
}

// Execute runs a command over the given channel, reusing a pooled
// connection when one exists. A failed run on a pooled connection is
// retried once on a fresh connection.
func (m *Manager) Execute(ctx context.Context, ch Channel, host, command, username string) (Result, error) {
	if username == "" {
		username = m.cfg.User
		if ch == ChannelExec {
			username = m.cfg.ExecUser
		}
	}

	if !m.cfg.IsHostAllowed(host) {
		if m.aud != nil {
			m.aud.SecurityViolation("host_not_allowed", host, map[string]any{
				"channel": string(ch),
				"command": command,
			})
		}
		return Result{}, &HostNotAllowedError{Host: host}
	}

	conn, reused, err := m.connection(ctx, ch, host, username)
	if err != nil {
		if m.aud != nil {
			m.aud.SSHConnect(host, username, audit.StatusFailure, false, err.Error())
		}
		return Result{}, err
	}
	if m.aud != nil {
		m.aud.SSHConnect(host, username, audit.StatusSuccess, reused, "")
	}

	res, err := conn.Run(ctx, command)
	if err != nil && reused && ctx.Err() == nil {
		// Pooled connection likely went stale, retry on a fresh one.
		m.drop(ch, username, host, conn)
		if conn, _, err = m.connection(ctx, ch, host, username); err == nil {
			res, err = conn.Run(ctx, command)
		}
	}

	if m.aud != nil {
		status := audit.StatusSuccess
		var msg string
		if err != nil {
			status, msg = audit.StatusFailure, err.Error()
		}
		m.aud.SSHCommand(host, username, command, status, res.ExitCode, msg)
	}
	if err != nil {
		return Result{}, &TransportError{Host: host, Op: "command execution", Err: err}
	}
	return res, nil
}

// ExecuteRead runs a read-only command. Argv is joined with spaces, the
// remote shell does the word splitting.
func (m *Manager) ExecuteRead(ctx context.Context, host string, argv []string, username string) (Result, error) {
	return m.Execute(ctx, ChannelRead, host, strings.Join(argv, " "), username)
}

// ExecuteAction runs an approved action verbatim over the executor channel.
func (m *Manager) ExecuteAction(ctx context.Context, host, action, username string) (Result, error) {
	return m.Execute(ctx, ChannelExec, host, action, username)
}

func (m *Manager) pool(ch Channel) map[string]runner {
	if ch == ChannelExec {
		return m.execConns
	}
	return m.readConns
}

func (m *Manager) connection(ctx context.Context, ch Channel, host, username string) (runner, bool, error) {
	key := username + "@" + host

	m.mu.Lock()
	if conn, ok := m.pool(ch)[key]; ok {
		m.mu.Unlock()
		return conn, true, nil
	}
	m.mu.Unlock()

	conn, err := m.dial(ctx, host, username, ch)
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	pool := m.pool(ch)
	if existing, ok := pool[key]; ok {
		// Lost the race, keep the first connection.
		go conn.Close()
		return existing, true, nil
	}
	if m.cfg.SSHMaxConnections > 0 && len(pool) >= m.cfg.SSHMaxConnections {
		for victim, c := range pool {
			m.log.Debug("pool full, evicting connection", zap.String("target", victim))
			go c.Close()
			delete(pool, victim)
			break
		}
	}
	pool[key] = conn
	return conn, false, nil
}

func (m *Manager) drop(ch Channel, username, host string, conn runner) {
	key := username + "@" + host
	m.mu.Lock()
	if m.pool(ch)[key] == conn {
		delete(m.pool(ch), key)
	}
	m.mu.Unlock()
	conn.Close()
}

// CloseAll tears down every pooled connection on both channels.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, conn := range m.readConns {
		conn.Close()
		delete(m.readConns, key)
	}
	for key, conn := range m.execConns {
		conn.Close()
		delete(m.execConns, key)
	}
}

// PoolSizes reports pooled connections per channel.
func (m *Manager) PoolSizes() (read, exec int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.readConns), len(m.execConns)
}

// sshRunner runs commands over one *ssh.Client and keeps the connection
// alive between uses.
type sshRunner struct {
	client *ssh.Client
	stop   chan struct{}
	once   sync.Once
}

func newSSHRunner(client *ssh.Client, keepalive time.Duration) *sshRunner {
	r := &sshRunner{client: client, stop: make(chan struct{})}
	if keepalive > 0 {
		go func() {
			ticker := time.NewTicker(keepalive)
			defer ticker.Stop()
			for {
				select {
				case <-r.stop:
					return
				case <-ticker.C:
					if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
						return
					}
				}
			}
		}()
	}
	return r
}

func (r *sshRunner) Run(ctx context.Context, command string) (Result, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return Result{}, err
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case err := <-done:
		res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				res.ExitCode = exitErr.ExitStatus()
				return res, nil
			}
			return res, err
		}
		return res, nil
	case <-ctx.Done():
		// Closing the session unblocks the Run goroutine.
		session.Signal(ssh.SIGTERM)
		session.Close()
		return Result{}, ctx.Err()
	}
}

func (r *sshRunner) Close() error {
	r.once.Do(func() { close(r.stop) })
	return r.client.Close()
}
