package ability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Action is an operation name.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionStream Action = "stream"
	ActionManage Action = "manage"
)

// SubjectAll matches every subject.
const SubjectAll = "all"

var canonicalActions = []Action{ActionCreate, ActionRead, ActionEdit, ActionDelete, ActionStream}

func (a Action) isReadType() bool { return a == ActionRead || a == ActionStream }
func (a Action) isEditType() bool { return a == ActionCreate || a == ActionEdit }

// Grant is the stored permission for one subject: either a blanket grant
// (All) or a set of per-action flags.
type Grant struct {
	All     bool
	Actions map[Action]bool
}

// GrantAll is a blanket grant.
func GrantAll() Grant { return Grant{All: true} }

// GrantActions grants exactly the listed actions.
func GrantActions(actions ...Action) Grant {
	g := Grant{Actions: make(map[Action]bool, len(actions))}
	for _, a := range actions {
		g.Actions[a] = true
	}
	return g
}

// granted lists the flagged actions in canonical order, custom ones last
// in lexical order.
func (g Grant) granted() []Action {
	var out []Action
	for _, a := range canonicalActions {
		if g.Actions[a] {
			out = append(out, a)
		}
	}
	var custom []string
	for a, ok := range g.Actions {
		if !ok || isCanonical(a) {
			continue
		}
		custom = append(custom, string(a))
	}
	sort.Strings(custom)
	for _, a := range custom {
		out = append(out, Action(a))
	}
	return out
}

func isCanonical(a Action) bool {
	for _, c := range canonicalActions {
		if c == a {
			return true
		}
	}
	return false
}

// MarshalJSON writes a blanket grant as a bare boolean.
func (g Grant) MarshalJSON() ([]byte, error) {
	if g.All {
		return []byte("true"), nil
	}
	if g.Actions == nil {
		return []byte("false"), nil
	}
	return json.Marshal(g.Actions)
}

// UnmarshalJSON accepts a boolean or an object of action flags.
func (g *Grant) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")):
		*g = Grant{All: true}
		return nil
	case bytes.Equal(data, []byte("false")), bytes.Equal(data, []byte("null")):
		*g = Grant{}
		return nil
	}
	var actions map[Action]bool
	if err := json.Unmarshal(data, &actions); err != nil {
		return fmt.Errorf("grant must be a boolean or an object of actions: %w", err)
	}
	*g = Grant{Actions: actions}
	return nil
}

// PermissionMatrix maps subject name to its grant.
type PermissionMatrix map[string]Grant

// FieldPermission restricts the fields an otherwise granted rule may touch.
type FieldPermission struct {
	Read []string `json:"read,omitempty"`
	Edit []string `json:"edit,omitempty"`
}

// FieldPermissionMatrix maps subject name to its field restrictions.
type FieldPermissionMatrix map[string]FieldPermission
