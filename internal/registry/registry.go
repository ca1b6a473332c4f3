// Package registry holds the catalogue of embedding models known to vectord
// and the resolver that maps collection names onto them.
//
// The catalogue and the resolver rules are built once at startup and never
// mutated afterwards; every accessor is safe for concurrent use without locks.
package registry

import (
	"fmt"
	"sort"
	"strings"
)

// Distance is the similarity metric a model's vector space is searched with.
type Distance string

const (
	DistanceCosine    Distance = "cosine"
	DistanceDot       Distance = "dot"
	DistanceEuclidean Distance = "euclidean"
)

// ParseDistance normalizes a configured distance string.
func ParseDistance(s string) (Distance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(DistanceCosine):
		return DistanceCosine, nil
	case string(DistanceDot):
		return DistanceDot, nil
	case string(DistanceEuclidean), "euclid":
		return DistanceEuclidean, nil
	default:
		return "", fmt.Errorf("unknown distance %q (must be cosine, dot, or euclidean)", s)
	}
}

// ModelDescriptor describes one embedding model. Immutable after registry
// construction.
type ModelDescriptor struct {
	// ID is the short identifier used in configuration and mappings.
	ID string `koanf:"id" json:"id"`

	// DisplayName is the canonical upstream model name. It is also the
	// input to the persisted vector-name slug, so it must never change
	// for a model that has already created collections.
	DisplayName string `koanf:"display_name" json:"display_name"`

	// Dimensions is the embedding vector length.
	Dimensions int `koanf:"dimensions" json:"dimensions"`

	// Distance is the similarity metric. Defaults to cosine.
	Distance Distance `koanf:"distance" json:"distance"`

	// Description explains when the model is a good routing target.
	Description string `koanf:"description" json:"description,omitempty"`
}

// VectorName returns the named-vector slot this model writes to.
func (m ModelDescriptor) VectorName() string {
	return VectorName(m.DisplayName)
}

// VectorName derives the backend named-vector slot from a model display name:
// lowercased, every run of characters outside [a-z0-9] collapsed to a single
// hyphen, leading and trailing hyphens trimmed.
//
// The result is part of the persisted collection format. Changing this
// derivation orphans every existing collection, so don't.
func VectorName(display string) string {
	var b strings.Builder
	b.Grow(len(display))
	pendingHyphen := false
	for _, r := range strings.ToLower(display) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// DefaultModelID is the registry entry used when no mapping matches.
const DefaultModelID = "all-minilm-l6-v2"

// builtinModels is the catalogue vectord ships with. Custom models from
// configuration may extend or override it.
func builtinModels() []ModelDescriptor {
	return []ModelDescriptor{
		{
			ID:          "multilingual-e5-large",
			DisplayName: "intfloat/multilingual-e5-large",
			Dimensions:  1024,
			Distance:    DistanceCosine,
			Description: "High-precision multilingual model for legal, career, and research collections",
		},
		{
			ID:          "bge-base-en-v1.5",
			DisplayName: "BAAI/bge-base-en-v1.5",
			Dimensions:  768,
			Distance:    DistanceCosine,
			Description: "Balanced quality for knowledge and analysis collections",
		},
		{
			ID:          "bge-base-en",
			DisplayName: "BAAI/bge-base-en",
			Dimensions:  768,
			Distance:    DistanceCosine,
			Description: "Legacy balanced model, kept for collections created before v1.5",
		},
		{
			ID:          "bge-small-en-v1.5",
			DisplayName: "BAAI/bge-small-en-v1.5",
			Dimensions:  384,
			Distance:    DistanceCosine,
			Description: "Compact English model",
		},
		{
			ID:          "bge-small-en",
			DisplayName: "BAAI/bge-small-en",
			Dimensions:  384,
			Distance:    DistanceCosine,
			Description: "Legacy compact model, kept for collections created before v1.5",
		},
		{
			ID:          "bge-small-zh-v1.5",
			DisplayName: "BAAI/bge-small-zh-v1.5",
			Dimensions:  512,
			Distance:    DistanceCosine,
			Description: "Compact Chinese model",
		},
		{
			ID:          "all-minilm-l6-v2",
			DisplayName: "sentence-transformers/all-MiniLM-L6-v2",
			Dimensions:  384,
			Distance:    DistanceCosine,
			Description: "Fast general-purpose default",
		},
	}
}

// Registry is the immutable model catalogue.
type Registry struct {
	models map[string]ModelDescriptor
}

// New builds a registry from the built-in catalogue plus custom descriptors.
// A custom descriptor with a built-in ID replaces the built-in entry;
// duplicate IDs within the custom list are an error.
func New(custom ...ModelDescriptor) (*Registry, error) {
	models := make(map[string]ModelDescriptor)
	for _, m := range builtinModels() {
		models[m.ID] = m
	}

	seen := make(map[string]struct{}, len(custom))
	for _, m := range custom {
		if err := validateDescriptor(m); err != nil {
			return nil, fmt.Errorf("model %q: %w", m.ID, err)
		}
		if _, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("model %q: duplicate custom descriptor", m.ID)
		}
		seen[m.ID] = struct{}{}
		if m.Distance == "" {
			m.Distance = DistanceCosine
		}
		models[m.ID] = m
	}

	return &Registry{models: models}, nil
}

func validateDescriptor(m ModelDescriptor) error {
	if m.ID == "" {
		return fmt.Errorf("id is required")
	}
	if m.DisplayName == "" {
		return fmt.Errorf("display_name is required")
	}
	if VectorName(m.DisplayName) == "" {
		return fmt.Errorf("display_name %q yields an empty vector name", m.DisplayName)
	}
	if m.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive, got %d", m.Dimensions)
	}
	if m.Distance != "" {
		if _, err := ParseDistance(string(m.Distance)); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the descriptor for a model ID.
func (r *Registry) Lookup(id string) (ModelDescriptor, bool) {
	m, ok := r.models[id]
	return m, ok
}

// Models returns every descriptor, ordered by ID.
func (r *Registry) Models() []ModelDescriptor {
	out := make([]ModelDescriptor, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	return len(r.models)
}
