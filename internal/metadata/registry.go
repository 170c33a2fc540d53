package metadata

import (
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// Registry holds entity descriptions by name.
type Registry struct {
	entities map[string]*Entity
	linked   bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]*Entity)}
}

// Register adds e. Column aliases default to the property name and the
// table defaults to the entity name.
func (r *Registry) Register(e *Entity) error {
	if e == nil || e.Name == "" {
		return fmt.Errorf("entity name is required")
	}
	if _, exists := r.entities[e.Name]; exists {
		return fmt.Errorf("entity %s already registered", e.Name)
	}
	if e.Table == "" {
		e.Table = e.Name
	}
	for i := range e.Columns {
		if e.Columns[i].Alias == "" {
			e.Columns[i].Alias = e.Columns[i].Property
		}
		if e.Columns[i].Kind == "" {
			e.Columns[i].Kind = KindString
		}
	}
	r.entities[e.Name] = e
	r.linked = false
	return nil
}

// Link resolves parent entities and relation targets. It must be called
// after the last Register and before any lookup through relations.
func (r *Registry) Link() error {
	for _, e := range r.entities {
		e.parent = nil
		if e.Parent == "" {
			continue
		}
		parent, ok := r.entities[e.Parent]
		if !ok {
			return fmt.Errorf("entity %s: unknown parent %s", e.Name, e.Parent)
		}
		e.parent = parent
	}
	for _, e := range r.entities {
		seen := map[*Entity]bool{}
		for cur := e; cur != nil; cur = cur.parent {
			if seen[cur] {
				return fmt.Errorf("entity %s: inheritance cycle", e.Name)
			}
			seen[cur] = true
		}
	}
	for _, e := range r.entities {
		for i := range e.Relations {
			rel := &e.Relations[i]
			target, ok := r.entities[rel.Target]
			if !ok {
				return fmt.Errorf("entity %s: relation %s has unknown target %s", e.Name, rel.Property, rel.Target)
			}
			rel.entity = target
		}
	}
	r.linked = true
	return nil
}

// Entity returns the entity registered as name, or whose table is name.
func (r *Registry) Entity(name string) (*Entity, bool) {
	if e, ok := r.entities[name]; ok {
		return e, true
	}
	for _, e := range r.entities {
		if e.Table == name {
			return e, true
		}
	}
	return nil, false
}

// Names lists concrete (non-abstract) entity names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entities))
	for name, e := range r.entities {
		if !e.Abstract {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Linked reports whether Link has succeeded since the last Register.
func (r *Registry) Linked() bool {
	return r.linked
}

type schemaFile struct {
	Entities []*Entity `yaml:"entities"`
}

// LoadYAML reads a schema document and returns a linked registry.
func LoadYAML(rd io.Reader) (*Registry, error) {
	var doc schemaFile
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	reg := NewRegistry()
	for _, e := range doc.Entities {
		if err := reg.Register(e); err != nil {
			return nil, err
		}
	}
	if err := reg.Link(); err != nil {
		return nil, err
	}
	return reg, nil
}
