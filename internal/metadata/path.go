package metadata

import "strings"

// Walk resolves a dotted property path. It returns the relations traversed
// (in order) and the final column. ok is false when any segment is unknown.
func Walk(e *Entity, path string) (relations []*Relation, column *Column, ok bool) {
	if e == nil || path == "" {
		return nil, nil, false
	}
	parts := strings.Split(path, ".")
	cur := e
	for _, part := range parts[:len(parts)-1] {
		rel, found := cur.Relation(part)
		if !found || rel.entity == nil {
			return nil, nil, false
		}
		relations = append(relations, rel)
		cur = rel.entity
	}
	column, ok = cur.Column(parts[len(parts)-1])
	if !ok {
		return nil, nil, false
	}
	return relations, column, true
}

// WalkRelations resolves a dotted relation path, every segment a relation.
func WalkRelations(e *Entity, path string) ([]*Relation, bool) {
	if e == nil || path == "" {
		return nil, false
	}
	var relations []*Relation
	cur := e
	for _, part := range strings.Split(path, ".") {
		rel, found := cur.Relation(part)
		if !found || rel.entity == nil {
			return nil, false
		}
		relations = append(relations, rel)
		cur = rel.entity
	}
	return relations, true
}

// HasProperty reports whether path names a column, possibly through relations.
func HasProperty(e *Entity, path string) bool {
	_, _, ok := Walk(e, path)
	return ok
}

// GetProperty returns the column metadata at path.
func GetProperty(e *Entity, path string) (*Column, bool) {
	_, col, ok := Walk(e, path)
	return col, ok
}

// HasRelation reports whether path names a relation chain.
func HasRelation(e *Entity, path string) bool {
	_, ok := WalkRelations(e, path)
	return ok
}

// GetRelation returns the last relation of the chain at path.
func GetRelation(e *Entity, path string) (*Relation, bool) {
	rels, ok := WalkRelations(e, path)
	if !ok {
		return nil, false
	}
	return rels[len(rels)-1], true
}

// ParentPath returns everything before the last dot, "" for a top-level path.
func ParentPath(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return ""
}
