package filter

import (
	"sort"
	"strings"
)

// CondOp is the native comparison of a Condition.
type CondOp string

const (
	CondEqual           CondOp = "eq"
	CondMoreThan        CondOp = "gt"
	CondMoreThanOrEqual CondOp = "gte"
	CondLessThan        CondOp = "lt"
	CondLessThanOrEqual CondOp = "lte"
	CondLike            CondOp = "like"
	CondIn              CondOp = "in"
	CondBetween         CondOp = "between"
	CondIsNull          CondOp = "isNull"
	CondRaw             CondOp = "raw"
)

// RawCondition is a datastore expression. SQL references the keyed column
// as {alias}, other columns as {field:<property path>} and bound
// parameters as :name.
type RawCondition struct {
	SQL    string         `json:"sql"`
	Params map[string]any `json:"params,omitempty"`
}

// Condition is the predicate attached to one property path.
type Condition struct {
	Op     CondOp        `json:"op"`
	Not    bool          `json:"not,omitempty"`
	Value  any           `json:"value,omitempty"`
	Values []any         `json:"values,omitempty"`
	Raw    *RawCondition `json:"raw,omitempty"`
}

// Tree is a nested map keyed by path segment. Leaves are true for
// select/relations and a Direction for order.
type Tree map[string]any

// Where is one AND-conjunction, nested by relation. Leaves are Conditions.
type Where map[string]any

// QueryDescriptor is the compiled, backend-agnostic query. Where holds
// OR-ed alternatives. Empty parts are nil, never empty maps.
type QueryDescriptor struct {
	Select    Tree    `json:"select,omitempty"`
	Relations Tree    `json:"relations,omitempty"`
	Where     []Where `json:"where,omitempty"`
	Order     Tree    `json:"order,omitempty"`
	Take      *int    `json:"take,omitempty"`
	Skip      *int    `json:"skip,omitempty"`
}

// setPath stores value under a dotted path, creating intermediate maps. An
// existing subtree is never replaced by a leaf.
func setPath[M ~map[string]any](m M, path string, value any) {
	parts := strings.Split(path, ".")
	cur := map[string]any(m)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(cur[part])
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
	last := parts[len(parts)-1]
	if _, isMap := asMap(cur[last]); isMap {
		if _, valueIsMap := asMap(value); !valueIsMap {
			return
		}
	}
	cur[last] = value
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Tree:
		return m, true
	case Where:
		return m, true
	}
	return nil, false
}

// Paths flattens a tree into sorted dotted leaf paths.
func (t Tree) Paths() []string {
	var out []string
	walkLeaves(t, "", func(path string, _ any) { out = append(out, path) })
	sort.Strings(out)
	return out
}

// Get returns the leaf at a dotted path.
func (t Tree) Get(path string) (any, bool) {
	var found any
	ok := false
	walkLeaves(t, "", func(p string, v any) {
		if p == path {
			found, ok = v, true
		}
	})
	return found, ok
}

// FieldCondition is a flattened Where leaf.
type FieldCondition struct {
	Path      string
	Condition Condition
}

// Conditions flattens the conjunction, sorted by path.
func (w Where) Conditions() []FieldCondition {
	var out []FieldCondition
	walkLeaves(w, "", func(path string, v any) {
		if c, ok := v.(Condition); ok {
			out = append(out, FieldCondition{Path: path, Condition: c})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Condition returns the condition at a dotted path.
func (w Where) Condition(path string) (Condition, bool) {
	for _, fc := range w.Conditions() {
		if fc.Path == path {
			return fc.Condition, true
		}
	}
	return Condition{}, false
}

func walkLeaves[M ~map[string]any](m M, prefix string, fn func(path string, v any)) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if sub, ok := asMap(v); ok {
			walkLeaves(sub, path, fn)
			continue
		}
		fn(path, v)
	}
}

// Prune removes empty maps and slices and falsy scalars, recursively.
// Conditions are objects and always survive. Returns nil when nothing is
// left.
func Prune(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case Tree:
		if m := pruneMap(x); m != nil {
			return Tree(m)
		}
		return nil
	case Where:
		if m := pruneMap(x); m != nil {
			return Where(m)
		}
		return nil
	case map[string]any:
		if m := pruneMap(x); m != nil {
			return m
		}
		return nil
	case []Where:
		var out []Where
		for _, w := range x {
			if p, ok := Prune(w).(Where); ok {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []any:
		var out []any
		for _, item := range x {
			if p := Prune(item); p != nil {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case Condition, *Condition:
		return x
	case bool:
		if !x {
			return nil
		}
	case string:
		if x == "" {
			return nil
		}
	case Direction:
		if x == "" {
			return nil
		}
	case int:
		if x == 0 {
			return nil
		}
	case int64:
		if x == 0 {
			return nil
		}
	case float64:
		if x == 0 {
			return nil
		}
	}
	return v
}

func pruneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if p := Prune(v); p != nil {
			if sub, ok := asMap(p); ok {
				out[k] = map[string]any(sub)
				continue
			}
			out[k] = p
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (q *QueryDescriptor) prune() {
	q.Select, _ = Prune(q.Select).(Tree)
	q.Relations, _ = Prune(q.Relations).(Tree)
	q.Order, _ = Prune(q.Order).(Tree)
	q.Where, _ = Prune(q.Where).([]Where)
	if q.Take != nil && *q.Take == 0 {
		q.Take = nil
	}
	if q.Skip != nil && *q.Skip == 0 {
		q.Skip = nil
	}
}
