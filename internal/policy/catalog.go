package policy

import (
	"fmt"
	"strings"
	"sync"
)

// Catalog is the registry of command plugins. Built once at startup and
// read-only afterwards, so lookups take no lock.
type Catalog struct {
	plugins []*Plugin
	byName  map[string]*Plugin
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byName: make(map[string]*Plugin)}
}

// Register adds a plugin. Plugin names must be unique within the catalog.
func (c *Catalog) Register(p *Plugin) error {
	if _, dup := c.byName[p.Name]; dup {
		return fmt.Errorf("duplicate plugin %q", p.Name)
	}
	c.plugins = append(c.plugins, p)
	c.byName[p.Name] = p
	return nil
}

// Plugin returns a registered plugin by name.
func (c *Catalog) Plugin(name string) (*Plugin, bool) {
	p, ok := c.byName[name]
	return p, ok
}

// Plugins returns plugins in registration order.
func (c *Catalog) Plugins() []*Plugin {
	return c.plugins
}

// Find locates the first matching spec for a command. Within each plugin the
// first whitespace token is probed as a direct key first; if the keyed spec's
// pattern matches, it wins without scanning. Otherwise specs are tested in
// declaration order. Plugins are visited in registration order.
func (c *Catalog) Find(cmd string) (*Plugin, *CommandSpec, bool) {
	token := firstToken(cmd)
	for _, p := range c.plugins {
		if token != "" {
			if spec, ok := p.Get(token); ok && spec.Pattern.MatchString(cmd) {
				return p, spec, true
			}
		}
		if spec, ok := p.Spec(cmd); ok {
			return p, spec, true
		}
	}
	return nil, nil, false
}

// SearchResult is one hit from a catalog search.
type SearchResult struct {
	Plugin *Plugin
	Key    string
	Spec   *CommandSpec
}

// Search returns specs whose key, description, or rationale contains the
// query, case-insensitively.
func (c *Catalog) Search(query string) []SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []SearchResult
	for _, p := range c.plugins {
		for _, key := range p.Keys() {
			spec, _ := p.Get(key)
			if strings.Contains(strings.ToLower(key), q) ||
				strings.Contains(strings.ToLower(spec.Description), q) ||
				strings.Contains(strings.ToLower(spec.Rationale), q) {
				out = append(out, SearchResult{Plugin: p, Key: key, Spec: spec})
			}
		}
	}
	return out
}

// CommandsByCategory returns command keys grouped under the given category,
// in registration then declaration order.
func (c *Catalog) CommandsByCategory(category string) []string {
	var out []string
	for _, p := range c.plugins {
		if p.Category != category {
			continue
		}
		out = append(out, p.Keys()...)
	}
	return out
}

// Categories returns distinct categories in registration order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range c.plugins {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out
}

// Summary describes the catalog for introspection tools.
type Summary struct {
	Plugins       int            `json:"plugins"`
	Commands      int            `json:"commands"`
	ByCategory    map[string]int `json:"by_category"`
	ByLevel       map[string]int `json:"by_level"`
	PluginNames   []string       `json:"plugin_names"`
	CategoryNames []string       `json:"categories"`
}

// Summarize computes catalog-wide counts.
func (c *Catalog) Summarize() Summary {
	s := Summary{
		Plugins:       len(c.plugins),
		ByCategory:    make(map[string]int),
		ByLevel:       make(map[string]int),
		CategoryNames: c.Categories(),
	}
	for _, p := range c.plugins {
		s.PluginNames = append(s.PluginNames, p.Name)
		for _, key := range p.Keys() {
			spec, _ := p.Get(key)
			s.Commands++
			s.ByCategory[p.Category]++
			s.ByLevel[string(spec.Level)]++
		}
	}
	return s
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the process-wide catalog holding the built-in plugin set.
// The load is compute-once and safe for concurrent first use.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog = NewCatalog()
		for _, p := range builtinPlugins() {
			if err := defaultCatalog.Register(p); err != nil {
				panic(err)
			}
		}
	})
	return defaultCatalog
}

func firstToken(cmd string) string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
