// Package catalog holds the fixed set of breathing exercises and their
// safety profiles.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed exercises.yaml
var defaultCatalogYAML []byte

// ErrNotFound is returned when an exercise id is not in the catalog.
var ErrNotFound = errors.New("exercise not found")

type catalogYAML struct {
	Exercises []Exercise `yaml:"exercises"`
}

// Catalog is a read-only, ordered collection of exercises.
type Catalog struct {
	exercises []Exercise
	byID      map[string]int
}

// Parse builds a Catalog from YAML and validates every entry. Exercise order
// is preserved; lookups by category return exercises in that order.
func Parse(data []byte) (*Catalog, error) {
	var raw catalogYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return New(raw.Exercises)
}

// New builds a Catalog from already-decoded exercises.
func New(exercises []Exercise) (*Catalog, error) {
	c := &Catalog{
		exercises: make([]Exercise, 0, len(exercises)),
		byID:      make(map[string]int, len(exercises)),
	}
	for _, e := range exercises {
		if err := e.validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate exercise id %q", e.ID)
		}
		c.byID[e.ID] = len(c.exercises)
		c.exercises = append(c.exercises, e)
	}

	for _, e := range c.exercises {
		alt := e.Safety.TraumaSafeAlternativeID
		if alt == "" {
			continue
		}
		if _, ok := c.byID[alt]; !ok {
			return nil, fmt.Errorf("exercise %q: alternative %q not in catalog", e.ID, alt)
		}
	}
	for _, id := range []string{TraumaSafeID, CoherentID} {
		if _, ok := c.byID[id]; !ok {
			return nil, fmt.Errorf("catalog is missing required exercise %q", id)
		}
	}
	return c, nil
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the embedded catalog. It panics if the embedded data is
// malformed, which is a build-time defect.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(defaultCatalogYAML)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded exercises.yaml: %v", err))
		}
		defaultCat = c
	})
	return defaultCat
}

// All returns every exercise in catalog order.
func (c *Catalog) All() []Exercise {
	out := make([]Exercise, len(c.exercises))
	copy(out, c.exercises)
	return out
}

// ByID looks up an exercise. Returns ErrNotFound for unknown ids.
func (c *Catalog) ByID(id string) (Exercise, error) {
	i, ok := c.byID[id]
	if !ok {
		return Exercise{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return c.exercises[i], nil
}

// ByCategory returns the exercises of one category in catalog order.
func (c *Catalog) ByCategory(category Category) []Exercise {
	var out []Exercise
	for _, e := range c.exercises {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// TraumaSafe returns the designated lowest-risk exercise.
func (c *Catalog) TraumaSafe() Exercise {
	return c.exercises[c.byID[TraumaSafeID]]
}

// Coherent returns the default fallback exercise.
func (c *Catalog) Coherent() Exercise {
	return c.exercises[c.byID[CoherentID]]
}
