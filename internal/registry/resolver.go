package registry

import (
	"fmt"
	"strings"
)

// PatternRule routes collection names containing Substring to a model.
// Rules are evaluated in order; the first match wins.
type PatternRule struct {
	Substring string `koanf:"substring" json:"substring"`
	ModelID   string `koanf:"model" json:"model"`
}

// Rules is the resolver configuration: explicit mappings first, then ordered
// substring patterns, then the default model. Aliases canonicalize legacy
// collection names before any lookup.
type Rules struct {
	DefaultModel string            `koanf:"default_model" json:"default_model"`
	Collections  map[string]string `koanf:"collections" json:"collections"`
	Patterns     []PatternRule     `koanf:"patterns" json:"patterns"`
	Aliases      map[string]string `koanf:"aliases" json:"aliases"`
}

// DefaultRules returns the routing tables vectord ships with. They mirror the
// deployment this gateway grew out of: precision-sensitive collections on the
// 1024-dim model, knowledge collections on the balanced 768-dim models, and
// fast-turnaround collections on MiniLM.
func DefaultRules() Rules {
	return Rules{
		DefaultModel: DefaultModelID,
		Collections: map[string]string{
			"legal_analysis":         "multilingual-e5-large",
			"legal_reference":        "multilingual-e5-large",
			"career_strategy":        "multilingual-e5-large",
			"lessons_learned":        "bge-base-en",
			"major_lessons":          "bge-base-en-v1.5",
			"working_solutions":      "all-minilm-l6-v2",
			"debugging_patterns":     "all-minilm-l6-v2",
			"troubleshooting_guides": "all-minilm-l6-v2",
		},
		Patterns: []PatternRule{
			{Substring: "legal", ModelID: "multilingual-e5-large"},
			{Substring: "career", ModelID: "multilingual-e5-large"},
			{Substring: "lessons", ModelID: "bge-base-en-v1.5"},
			{Substring: "knowledge", ModelID: "bge-base-en-v1.5"},
			{Substring: "analysis", ModelID: "bge-base-en-v1.5"},
			{Substring: "debug", ModelID: "all-minilm-l6-v2"},
			{Substring: "working", ModelID: "all-minilm-l6-v2"},
			{Substring: "solutions", ModelID: "all-minilm-l6-v2"},
			{Substring: "technical", ModelID: "all-minilm-l6-v2"},
		},
		Aliases: map[string]string{
			"working-solutions":  "working_solutions",
			"debugging-patterns": "debugging_patterns",
			"lessons-learned":    "lessons_learned",
			"legal-analysis":     "legal_analysis",
		},
	}
}

// Resolver maps collection names to model descriptors. Resolution is a pure
// function of the rules fixed at construction: alias canonicalization, then
// exact mapping, then ordered substring patterns, then the default model.
type Resolver struct {
	registry *Registry
	rules    Rules
	def      ModelDescriptor
}

// NewResolver validates the rules against the registry and builds a resolver.
// Every model ID referenced by a mapping, pattern, or the default must exist;
// a dangling reference refuses to start rather than misroute at runtime.
func NewResolver(reg *Registry, rules Rules) (*Resolver, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if rules.DefaultModel == "" {
		return nil, fmt.Errorf("default_model is required")
	}

	def, ok := reg.Lookup(rules.DefaultModel)
	if !ok {
		return nil, fmt.Errorf("default_model %q is not in the registry", rules.DefaultModel)
	}
	for name, id := range rules.Collections {
		if name == "" {
			return nil, fmt.Errorf("collection mapping with empty name")
		}
		if _, ok := reg.Lookup(id); !ok {
			return nil, fmt.Errorf("collection %q maps to unknown model %q", name, id)
		}
	}
	for i, p := range rules.Patterns {
		if p.Substring == "" {
			return nil, fmt.Errorf("pattern rule %d has an empty substring", i)
		}
		if _, ok := reg.Lookup(p.ModelID); !ok {
			return nil, fmt.Errorf("pattern %q maps to unknown model %q", p.Substring, p.ModelID)
		}
	}
	for alias, canonical := range rules.Aliases {
		if alias == "" || canonical == "" {
			return nil, fmt.Errorf("alias mapping with empty name")
		}
		if alias == canonical {
			return nil, fmt.Errorf("alias %q maps to itself", alias)
		}
	}

	return &Resolver{registry: reg, rules: rules, def: def}, nil
}

// Canonical resolves a legacy alias to its canonical collection name.
// Names without an alias entry pass through unchanged.
func (r *Resolver) Canonical(name string) string {
	if canonical, ok := r.rules.Aliases[name]; ok {
		return canonical
	}
	return name
}

// Resolve returns the model descriptor for a collection name. It never fails:
// names nothing matches use the default model.
func (r *Resolver) Resolve(name string) ModelDescriptor {
	name = r.Canonical(name)

	if id, ok := r.rules.Collections[name]; ok {
		m, _ := r.registry.Lookup(id)
		return m
	}

	lower := strings.ToLower(name)
	for _, p := range r.rules.Patterns {
		if strings.Contains(lower, p.Substring) {
			m, _ := r.registry.Lookup(p.ModelID)
			return m
		}
	}

	return r.def
}

// Registry returns the model catalogue backing this resolver.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// MappingsReport is the introspection view of the routing configuration.
type MappingsReport struct {
	DefaultModel string            `json:"default_model"`
	Collections  map[string]string `json:"collections"`
	Patterns     []PatternRule     `json:"patterns"`
	Aliases      map[string]string `json:"aliases,omitempty"`
	Models       []ModelDescriptor `json:"models"`
}

// Report snapshots the rules and the registry for introspection. Maps and
// slices are copied so callers can't mutate resolver state.
func (r *Resolver) Report() MappingsReport {
	collections := make(map[string]string, len(r.rules.Collections))
	for k, v := range r.rules.Collections {
		collections[k] = v
	}
	aliases := make(map[string]string, len(r.rules.Aliases))
	for k, v := range r.rules.Aliases {
		aliases[k] = v
	}
	patterns := make([]PatternRule, len(r.rules.Patterns))
	copy(patterns, r.rules.Patterns)

	return MappingsReport{
		DefaultModel: r.rules.DefaultModel,
		Collections:  collections,
		Patterns:     patterns,
		Aliases:      aliases,
		Models:       r.registry.Models(),
	}
}
