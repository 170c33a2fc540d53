// Package metadata describes entities (columns, relations, inheritance) and
// resolves dotted property paths against them. The registry is built once at
// startup, either in code or from a YAML schema, and is read-only afterwards.
package metadata

// ColumnKind classifies a column for operator semantics.
type ColumnKind string

const (
	KindString   ColumnKind = "string"
	KindNumber   ColumnKind = "number"
	KindBoolean  ColumnKind = "boolean"
	KindDate     ColumnKind = "date"
	KindDateTime ColumnKind = "datetime"
	KindTime     ColumnKind = "time"
	KindJSON     ColumnKind = "json"
)

// IsDateLike reports whether values of this kind compare as dates.
func (k ColumnKind) IsDateLike() bool {
	return k == KindDate || k == KindDateTime || k == KindTime
}

// IsBoolean reports whether the column holds booleans.
func (k ColumnKind) IsBoolean() bool {
	return k == KindBoolean
}

// Column is one stored property of an entity.
type Column struct {
	Property string     `yaml:"property"`
	Alias    string     `yaml:"alias"` // storage column name, defaults to Property
	Kind     ColumnKind `yaml:"kind"`
	Primary  bool       `yaml:"primary"`
}

// Relation links an entity to another one.
//
// For a many-to-one relation JoinColumn is the foreign key on the owning
// table. For a one-to-many relation (Many) InverseColumn is the foreign key
// on the target table pointing back at the owner.
type Relation struct {
	Property      string `yaml:"property"`
	Target        string `yaml:"target"`
	JoinColumn    string `yaml:"joinColumn"`
	InverseColumn string `yaml:"inverseColumn"`
	Many          bool   `yaml:"many"`

	entity *Entity
}

// Entity returns the resolved target entity, nil before Registry.Link.
func (r *Relation) Entity() *Entity {
	return r.entity
}

// Entity is the static description of one stored type.
type Entity struct {
	Name     string `yaml:"name"`
	Table    string `yaml:"table"`
	Abstract bool   `yaml:"abstract"`
	Parent   string `yaml:"parent"`

	Columns   []Column   `yaml:"columns"`
	Relations []Relation `yaml:"relations"`

	// Defaults handed to the filter compiler for this entity.
	TextFilterFields []string          `yaml:"textFilterFields"`
	MappedFields     map[string]string `yaml:"mappedFields"`

	parent *Entity
}

// ParentEntity returns the inherited entity, if any.
func (e *Entity) ParentEntity() *Entity {
	return e.parent
}

// Column looks up an own or inherited column by property name.
func (e *Entity) Column(property string) (*Column, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		for i := range cur.Columns {
			if cur.Columns[i].Property == property {
				return &cur.Columns[i], true
			}
		}
	}
	return nil, false
}

// Relation looks up an own or inherited relation by property name.
func (e *Entity) Relation(property string) (*Relation, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		for i := range cur.Relations {
			if cur.Relations[i].Property == property {
				return &cur.Relations[i], true
			}
		}
	}
	return nil, false
}

// AllColumns returns inherited columns first, then own columns.
func (e *Entity) AllColumns() []Column {
	if e.parent == nil {
		return append([]Column(nil), e.Columns...)
	}
	return append(e.parent.AllColumns(), e.Columns...)
}

// PrimaryKeys returns the property names of the primary-key columns.
func (e *Entity) PrimaryKeys() []string {
	var keys []string
	for _, c := range e.AllColumns() {
		if c.Primary {
			keys = append(keys, c.Property)
		}
	}
	return keys
}
