// Package ansible wraps playbook execution behind the authorization
// facade. Check-mode runs match the auto-approved whitelist rule; real
// runs match the manual rule and come back as a pending approval.
package ansible

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mipsou/mcp-linux-infra/internal/executor"
	"github.com/mipsou/mcp-linux-infra/internal/sshx"
)

const (
	DefaultPlaybooksDir = "/opt/infra/playbooks"
	DefaultInventory    = "localhost,"
)

// ReadTransport fetches read-only listings over the reader channel.
type ReadTransport interface {
	ExecuteRead(ctx context.Context, host string, argv []string, username string) (sshx.Result, error)
}

// Runner drives playbooks through the policy engine.
type Runner struct {
	exec *executor.Executor
	read ReadTransport
	log  *zap.Logger
}

// NewRunner wires the wrapper. exec handles playbook runs, read handles
// the listing helpers.
func NewRunner(exec *executor.Executor, read ReadTransport, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{exec: exec, read: read, log: log.Named("ansible")}
}

// PlaybookOptions tunes one run. The zero value is a localhost check run.
type PlaybookOptions struct {
	Inventory string
	CheckMode bool
	ExtraVars map[string]string
	// AutoApprove skips the approval gate for non-check runs. The bypass
	// is audited as a security violation by the facade.
	AutoApprove bool
}

// buildCommand assembles the ansible-playbook invocation. Extra vars are
// sorted so the same request always produces the same command string and
// therefore the same authorization decision.
func buildCommand(playbookPath string, opts PlaybookOptions) string {
	inventory := opts.Inventory
	if inventory == "" {
		inventory = DefaultInventory
	}

	parts := []string{"ansible-playbook", playbookPath, "--inventory=" + inventory}
	if opts.CheckMode {
		parts = append(parts, "--check")
	}
	if len(opts.ExtraVars) > 0 {
		keys := make([]string, 0, len(opts.ExtraVars))
		for k := range opts.ExtraVars {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		kvs := make([]string, 0, len(keys))
		for _, k := range keys {
			kvs = append(kvs, k+"="+opts.ExtraVars[k])
		}
		parts = append(parts, fmt.Sprintf("--extra-vars %q", strings.Join(kvs, " ")))
	}
	return strings.Join(parts, " ")
}

// RunPlaybook executes a playbook on the remote host. Check-mode runs are
// auto-approved; anything that can change the host needs an approval
// unless opts.AutoApprove forces it through.
func (r *Runner) RunPlaybook(ctx context.Context, host, playbookPath, user string, opts PlaybookOptions) executor.Outcome {
	command := buildCommand(playbookPath, opts)
	r.log.Info("playbook run requested",
		zap.String("host", host),
		zap.String("playbook", playbookPath),
		zap.Bool("check_mode", opts.CheckMode))
	return r.exec.Execute(ctx, host, command, user, opts.AutoApprove)
}

// CheckPlaybook is a dry run. Always auto-approved, never bypasses.
func (r *Runner) CheckPlaybook(ctx context.Context, host, playbookPath, user string, opts PlaybookOptions) executor.Outcome {
	opts.CheckMode = true
	opts.AutoApprove = false
	return r.RunPlaybook(ctx, host, playbookPath, user, opts)
}

// ListPlaybooks lists playbook files in the playbooks directory.
func (r *Runner) ListPlaybooks(ctx context.Context, host, dir string) (string, error) {
	if dir == "" {
		dir = DefaultPlaybooksDir
	}
	res, err := r.read.ExecuteRead(ctx, host, []string{"ls", "-lh", dir + "/*.yml"}, "")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("No playbooks found in %s: %s", dir, strings.TrimSpace(res.Stderr)), nil
	}
	return fmt.Sprintf("## Playbooks in %s\n\n%s\n", dir, strings.TrimSpace(res.Stdout)), nil
}

// ShowInventory dumps the inventory file or directory.
func (r *Runner) ShowInventory(ctx context.Context, host, path string) (string, error) {
	if path == "" {
		path = "/opt/infra/inventory"
	}
	// Directory inventories keep their hosts file at the top level.
	res, err := r.read.ExecuteRead(ctx, host, []string{"cat", path + "/hosts", "||", "cat", path}, "")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("Error reading inventory %s: %s", path, strings.TrimSpace(res.Stderr)), nil
	}
	return fmt.Sprintf("## Inventory: %s\n\n%s\n", path, strings.TrimSpace(res.Stdout)), nil
}
