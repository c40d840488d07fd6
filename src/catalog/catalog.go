// Package catalog is the registry of tools the model may be offered, and the
// gate that filters it by disabled names and available credentials.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/elee1766/dextra/src/agent"
)

// Render hints tell clients how to display a tool's result.
const (
	RenderDefault     = ""
	RenderCollapsible = "collapsible"
	RenderExpanded    = "expanded"
	RenderHidden      = "hidden"
)

var (
	ErrInvalidEntry  = errors.New("invalid catalog entry")
	ErrDuplicateName = errors.New("duplicate catalog name")
)

// Group is a named set of tools the orchestrator can ask for as a unit.
type Group struct {
	Name        string
	Description string
}

// Entry is the fixed record every registered tool is stored as.
type Entry struct {
	Tool                 agent.Tool
	Group                string
	RequiredCredentials  []string
	ConfirmationRequired bool
	RenderHint           string
	// ClientSide tools are answered by the client rather than executed.
	ClientSide bool
}

// Name returns the tool name.
func (e Entry) Name() string { return e.Tool.GetName() }

// Description returns the tool description.
func (e Entry) Description() string { return e.Tool.GetDescription() }

func (e Entry) validate() error {
	if e.Tool == nil {
		return fmt.Errorf("%w: nil tool", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.Tool.GetName()) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidEntry)
	}
	if e.Tool.GetParameters() == nil {
		return fmt.Errorf("%w: %s has no parameter schema", ErrInvalidEntry, e.Tool.GetName())
	}
	for _, cred := range e.RequiredCredentials {
		if strings.TrimSpace(cred) == "" {
			return fmt.Errorf("%w: %s has an empty credential name", ErrInvalidEntry, e.Tool.GetName())
		}
	}
	switch e.RenderHint {
	case RenderDefault, RenderCollapsible, RenderExpanded, RenderHidden:
	default:
		return fmt.Errorf("%w: %s has unknown render hint %q", ErrInvalidEntry, e.Tool.GetName(), e.RenderHint)
	}
	return nil
}

// Catalog holds groups and entries in registration order.
type Catalog struct {
	groups  []Group
	entries []Entry
	index   map[string]int
}

// New creates a catalog with the given groups.
func New(groups ...Group) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int)}
	seen := map[string]bool{}
	for _, g := range groups {
		if g.Name == "" {
			return nil, fmt.Errorf("%w: empty group name", ErrInvalidEntry)
		}
		if seen[g.Name] {
			return nil, fmt.Errorf("%w: group %s", ErrDuplicateName, g.Name)
		}
		seen[g.Name] = true
		c.groups = append(c.groups, g)
	}
	return c, nil
}

// Register validates and adds an entry. Tool names must not collide with
// other tools or with group names.
func (c *Catalog) Register(e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	if e.Group == "" || !c.hasGroup(e.Group) {
		return fmt.Errorf("%w: %s has unknown group %q", ErrInvalidEntry, e.Name(), e.Group)
	}
	if _, ok := c.index[e.Name()]; ok || c.hasGroup(e.Name()) {
		return fmt.Errorf("%w: %s", ErrDuplicateName, e.Name())
	}
	c.index[e.Name()] = len(c.entries)
	c.entries = append(c.entries, e)
	return nil
}

// MustRegister registers entries and panics on the first error.
func (c *Catalog) MustRegister(entries ...Entry) {
	for _, e := range entries {
		if err := c.Register(e); err != nil {
			panic(err)
		}
	}
}

func (c *Catalog) hasGroup(name string) bool {
	return slices.ContainsFunc(c.groups, func(g Group) bool { return g.Name == name })
}

// Groups returns the groups in registration order.
func (c *Catalog) Groups() []Group {
	return slices.Clone(c.groups)
}

// Entries returns every registered entry in registration order.
func (c *Catalog) Entries() []Entry {
	return slices.Clone(c.entries)
}

// Lookup finds an entry by tool name.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	i, ok := c.index[name]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// IsKnown reports whether name is a tool or a group.
func (c *Catalog) IsKnown(name string) bool {
	_, ok := c.index[name]
	return ok || c.hasGroup(name)
}

// Available is ListAvailable over the whole catalog.
func (c *Catalog) Available(disabled []string, env Env) []Entry {
	return ListAvailable(c.entries, disabled, env)
}

// ListAvailable drops entries that are disabled by name or that lack any of
// their required credentials in env. It has no side effects.
func ListAvailable(all []Entry, disabled []string, env Env) []Entry {
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if slices.Contains(disabled, e.Name()) {
			continue
		}
		if !hasCredentials(e, env) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func hasCredentials(e Entry, env Env) bool {
	for _, cred := range e.RequiredCredentials {
		if env == nil {
			return false
		}
		v, ok := env.LookupEnv(cred)
		if !ok || v == "" {
			return false
		}
	}
	return true
}

// ResolveByName maps tool and group names onto the available catalog. Group
// names expand to their available members. Unknown or unavailable names are
// dropped; the result is de-duplicated and follows request order.
func (c *Catalog) ResolveByName(names []string, disabled []string, env Env) []Entry {
	available := c.Available(disabled, env)
	byName := make(map[string]Entry, len(available))
	for _, e := range available {
		byName[e.Name()] = e
	}

	seen := make(map[string]bool)
	var out []Entry
	add := func(e Entry) {
		if seen[e.Name()] {
			return
		}
		seen[e.Name()] = true
		out = append(out, e)
	}
	for _, name := range names {
		if e, ok := byName[name]; ok {
			add(e)
			continue
		}
		if c.hasGroup(name) {
			for _, e := range available {
				if e.Group == name {
					add(e)
				}
			}
		}
	}
	return out
}

// Tools extracts the agent tools from entries.
func Tools(entries []Entry) []agent.Tool {
	out := make([]agent.Tool, len(entries))
	for i, e := range entries {
		out[i] = e.Tool
	}
	return out
}

// Without returns entries minus the named tools.
func Without(entries []Entry, names ...string) []Entry {
	return slices.DeleteFunc(slices.Clone(entries), func(e Entry) bool {
		return slices.Contains(names, e.Name())
	})
}
