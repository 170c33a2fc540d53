package filter

// Operator is the type of a where clause.
type Operator string

const (
	OpOr Operator = "or"

	OpEquals              Operator = "equals"
	OpNotEquals           Operator = "notEquals"
	OpGreaterThan         Operator = "greaterThan"
	OpGreaterThanOrEquals Operator = "greaterThanOrEquals"
	OpLessThan            Operator = "lessThan"
	OpLessThanOrEquals    Operator = "lessThanOrEquals"
	OpLike                Operator = "like"
	OpContains            Operator = "contains"
	OpNotLike             Operator = "notLike"
	OpNotContains         Operator = "notContains"
	OpStartsWith          Operator = "startsWith"
	OpEndsWith            Operator = "endsWith"
	OpIn                  Operator = "in"
	OpNotIn               Operator = "notIn"
	OpBetween             Operator = "between"
	OpIsNull              Operator = "isNull"
	OpIsNotNull           Operator = "isNotNull"
	OpIsTrue              Operator = "isTrue"
	OpIsFalse             Operator = "isFalse"

	OpToday         Operator = "today"
	OpPast          Operator = "past"
	OpFuture        Operator = "future"
	OpLastSevenDays Operator = "lastSevenDays"

	// MySQL-family dialects only.
	OpLastXDays      Operator = "lastXDays"
	OpNextXDays      Operator = "nextXDays"
	OpOlderThanXDays Operator = "olderThanXDays"
	OpAfterXDays     Operator = "afterXDays"

	// Reserved, no condition is produced yet.
	OpCurrentMonth Operator = "currentMonth"
	OpLastMonth    Operator = "lastMonth"
	OpNextMonth    Operator = "nextMonth"
	OpCurrentYear  Operator = "currentYear"
	OpLastYear     Operator = "lastYear"
)

// WhereClause is one filter leaf, or an OR group when Type is OpOr.
//
// For an OR group Value holds the alternatives: each element is either a
// single clause or a list of clauses (AND-ed together inside that branch).
type WhereClause struct {
	Type      Operator `json:"type,omitempty"`
	Attribute string   `json:"attribute,omitempty"`
	Value     any      `json:"value,omitempty"`
}

// IsEmpty reports a clause with no content at all.
func (c WhereClause) IsEmpty() bool {
	return c.Type == "" && c.Attribute == "" && c.Value == nil
}

// Or builds an OR group from branches.
func Or(branches ...any) WhereClause {
	return WhereClause{Type: OpOr, Value: branches}
}

// Branches returns the alternatives of an OR group. Each branch is a
// conjunction list. Elements that are neither clauses nor clause lists are
// ignored.
func (c WhereClause) Branches() [][]WhereClause {
	switch v := c.Value.(type) {
	case []WhereClause:
		out := make([][]WhereClause, 0, len(v))
		for _, cl := range v {
			out = append(out, []WhereClause{cl})
		}
		return out
	case [][]WhereClause:
		return v
	case []any:
		out := make([][]WhereClause, 0, len(v))
		for _, item := range v {
			if group, ok := toClauses(item); ok {
				out = append(out, group)
			}
		}
		return out
	}
	return nil
}

func toClauses(item any) ([]WhereClause, bool) {
	switch v := item.(type) {
	case WhereClause:
		return []WhereClause{v}, true
	case []WhereClause:
		return v, true
	case map[string]any:
		return []WhereClause{clauseFromMap(v)}, true
	case []any:
		group := make([]WhereClause, 0, len(v))
		for _, inner := range v {
			m, ok := inner.(map[string]any)
			if !ok {
				continue
			}
			group = append(group, clauseFromMap(m))
		}
		return group, true
	}
	return nil, false
}

func clauseFromMap(m map[string]any) WhereClause {
	var cl WhereClause
	if t, ok := m["type"].(string); ok {
		cl.Type = Operator(t)
	}
	if a, ok := m["attribute"].(string); ok {
		cl.Attribute = a
	}
	cl.Value = m["value"]
	return cl
}
