// Package learning tracks commands the authorization engine denied and
// ranks them into whitelist suggestions. Stats persist as JSON so the
// signal survives restarts; persistence failures are logged and swallowed,
// learning must never interfere with the decision path.
package learning

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mipsou/mcp-linux-infra/internal/policy"
)

// CommandStats accumulates denial observations for one exact command string.
type CommandStats struct {
	Command   string    `json:"command"`
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Users     []string  `json:"users"`
	Hosts     []string  `json:"hosts"`
	RiskLevel string    `json:"risk_level"`
	Category  string    `json:"category"`
}

// Suggestion is a ranked whitelist candidate derived from denial stats.
type Suggestion struct {
	Command           string           `json:"command"`
	Count             int              `json:"count"`
	Users             []string         `json:"users"`
	Hosts             []string         `json:"hosts"`
	AgeHours          int              `json:"age_hours"`
	RiskLevel         policy.RiskLevel `json:"risk_level"`
	Category          string           `json:"category"`
	SuggestedLevel    policy.AuthLevel `json:"suggested_level,omitempty"`
	SuggestedSSHRole  policy.SSHRole   `json:"suggested_ssh_user"`
	Rationale         string           `json:"rationale"`
	CanAutoAdd        bool             `json:"can_auto_add"`
	RecommendedAction policy.Action    `json:"recommended_action"`
}

// Summary is the aggregate view over all tracked commands.
type Summary struct {
	UniqueCommands    int            `json:"total_unique_commands"`
	TotalBlocks       int            `json:"total_block_attempts"`
	RiskBreakdown     map[string]int `json:"risk_breakdown"`
	CategoryBreakdown map[string]int `json:"category_breakdown"`
	StatsFile         string         `json:"stats_file"`
}

// Collector records denied commands keyed by exact command string. Safe for
// concurrent use.
type Collector struct {
	mu      sync.Mutex
	stats   map[string]*CommandStats
	path    string
	catalog *policy.Catalog
	log     *zap.Logger
}

// NewCollector loads existing stats from path. A missing or corrupt file
// starts the collector empty; it never fails construction.
func NewCollector(path string, catalog *policy.Catalog, log *zap.Logger) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	if catalog == nil {
		catalog = policy.Default()
	}
	c := &Collector{
		stats:   make(map[string]*CommandStats),
		path:    path,
		catalog: catalog,
		log:     log.Named("learning"),
	}
	c.load()
	return c
}

func (c *Collector) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn("could not read stats file", zap.String("path", c.path), zap.Error(err))
		}
		return
	}
	var stats map[string]*CommandStats
	if err := json.Unmarshal(data, &stats); err != nil {
		c.log.Warn("stats file corrupt, starting empty", zap.String("path", c.path), zap.Error(err))
		return
	}
	c.stats = stats
	if c.stats == nil {
		c.stats = make(map[string]*CommandStats)
	}
}

// saveLocked writes the stats file. Callers hold the mutex.
func (c *Collector) saveLocked() {
	if c.path == "" {
		return
	}
	data, err := json.MarshalIndent(c.stats, "", "  ")
	if err != nil {
		c.log.Warn("could not encode stats", zap.Error(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		c.log.Warn("could not create stats dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		c.log.Warn("could not save stats", zap.String("path", c.path), zap.Error(err))
	}
}

// Record counts one denied attempt. The command is classified on first
// sight; later attempts only bump counters and the seen sets.
func (c *Collector) Record(command, user, host string) {
	command = strings.TrimSpace(command)
	if command == "" {
		return
	}
	if user == "" {
		user = "unknown"
	}
	if host == "" {
		host = "unknown"
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	entry, ok := c.stats[command]
	if !ok {
		v := policy.Classify(c.catalog, command)
		entry = &CommandStats{
			Command:   command,
			FirstSeen: now,
			RiskLevel: string(v.Risk),
			Category:  v.Category,
		}
		c.stats[command] = entry
	}
	entry.Count++
	entry.LastSeen = now
	entry.Users = appendUnique(entry.Users, user)
	entry.Hosts = appendUnique(entry.Hosts, host)

	c.saveLocked()
}

// Get returns the stats for one exact command string.
func (c *Collector) Get(command string) (CommandStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.stats[command]
	if !ok {
		return CommandStats{}, false
	}
	return *entry, true
}

// All returns every tracked command, unordered.
func (c *Collector) All() []CommandStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CommandStats, 0, len(c.stats))
	for _, entry := range c.stats {
		out = append(out, *entry)
	}
	return out
}

// TopBlocked returns the most frequently denied commands, highest count
// first, at most limit entries.
func (c *Collector) TopBlocked(limit int) []CommandStats {
	out := c.All()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Command < out[j].Command
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Suggestions returns whitelist candidates that were denied at least
// minCount times, first seen at least minAge ago, and classified at or
// below maxRisk. UNKNOWN commands rank above CRITICAL and therefore never
// pass any threshold. Results sort by count, most requested first.
func (c *Collector) Suggestions(minCount int, minAge time.Duration, maxRisk policy.RiskLevel) []Suggestion {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	var out []Suggestion
	for _, entry := range c.stats {
		if entry.Count < minCount {
			continue
		}
		age := now.Sub(entry.FirstSeen)
		if age < minAge {
			continue
		}
		if !policy.RiskLevel(entry.RiskLevel).AtMost(maxRisk) {
			continue
		}

		v := policy.Classify(c.catalog, entry.Command)
		out = append(out, Suggestion{
			Command:           entry.Command,
			Count:             entry.Count,
			Users:             entry.Users,
			Hosts:             entry.Hosts,
			AgeHours:          int(age.Hours()),
			RiskLevel:         policy.RiskLevel(entry.RiskLevel),
			Category:          entry.Category,
			SuggestedLevel:    v.SuggestedLevel,
			SuggestedSSHRole:  v.SuggestedRole,
			Rationale:         v.Rationale,
			CanAutoAdd:        v.CanAutoAdd,
			RecommendedAction: v.RecommendedAction,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Command < out[j].Command
	})
	return out
}

// Clear drops the stats for one command.
func (c *Collector) Clear(command string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stats, command)
	c.saveLocked()
}

// ClearAll drops every tracked command.
func (c *Collector) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = make(map[string]*CommandStats)
	c.saveLocked()
}

// Summarize aggregates counts by risk level and category.
func (c *Collector) Summarize() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		UniqueCommands:    len(c.stats),
		RiskBreakdown:     make(map[string]int),
		CategoryBreakdown: make(map[string]int),
		StatsFile:         c.path,
	}
	for _, entry := range c.stats {
		s.TotalBlocks += entry.Count
		s.RiskBreakdown[entry.RiskLevel]++
		s.CategoryBreakdown[entry.Category]++
	}
	return s
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
