// Package ability compiles stored permission matrices into ordered rule
// lists and evaluates can/cannot checks against them.
package ability

import (
	"sort"
	"sync"
)

// Rule grants Action on Subject, optionally limited to Fields.
type Rule struct {
	Action  Action   `json:"action"`
	Subject string   `json:"subject"`
	Fields  []string `json:"fields,omitempty"`
}

// BuildRules compiles the matrices into rules. Subjects are visited in
// lexical order. The admin catch-all, when present, is always the last
// rule.
func BuildRules(perms PermissionMatrix, fieldPerms FieldPermissionMatrix, admin bool) []Rule {
	subjects := make([]string, 0, len(perms))
	for s := range perms {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)

	var rules []Rule
	for _, subject := range subjects {
		grant := perms[subject]
		if grant.All {
			rules = append(rules, Rule{Action: ActionManage, Subject: subject})
			continue
		}
		fp := fieldPerms[subject]
		for _, action := range grant.granted() {
			rule := Rule{Action: action, Subject: subject}
			if action.isReadType() {
				rule.Fields = append(rule.Fields, fp.Read...)
			}
			if action.isEditType() {
				rule.Fields = append(rule.Fields, fp.Edit...)
			}
			rules = append(rules, rule)
		}
	}

	if admin {
		rules = append(rules, Rule{Action: ActionManage, Subject: SubjectAll})
	}
	return rules
}

func (r Rule) matches(action Action, subject string) bool {
	if r.Subject != subject && r.Subject != SubjectAll {
		return false
	}
	return r.Action == action || r.Action == ActionManage
}

func (r Rule) allowsField(field string) bool {
	if field == "" || len(r.Fields) == 0 {
		return true
	}
	for _, f := range r.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// Can evaluates rules in order; the last matching rule decides. field may
// be empty. No matching rule means deny.
func Can(rules []Rule, action Action, subject, field string) bool {
	var matched *Rule
	for i := range rules {
		if rules[i].matches(action, subject) {
			matched = &rules[i]
		}
	}
	if matched == nil {
		return false
	}
	return matched.allowsField(field)
}

// PermittedFields returns the field list of the rule that decides action on
// subject. ok is false when no rule matches; a nil list means every field.
func PermittedFields(rules []Rule, action Action, subject string) (fields []string, ok bool) {
	for i := range rules {
		if rules[i].matches(action, subject) {
			fields, ok = rules[i].Fields, true
		}
	}
	return fields, ok
}

// Cannot is the negation of Can.
func Cannot(rules []Rule, action Action, subject, field string) bool {
	return !Can(rules, action, subject, field)
}

// Holder is anything owning an ability rule set.
type Holder interface {
	AbilityRules() []Rule
	Can(action Action, subject, field string) bool
	Cannot(action Action, subject, field string) bool
}

// Cell memoizes a rule list. The first Rules call builds it; later calls
// return the cached list until Rebuild or Reset. Safe for concurrent use.
type Cell struct {
	mu    sync.Mutex
	rules []Rule
	built bool
}

// Rules returns the cached rules, building them on first use.
func (c *Cell) Rules(build func() []Rule) []Rule {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.built {
		c.rules = build()
		c.built = true
	}
	return c.rules
}

// Rebuild discards the cache and builds again.
func (c *Cell) Rebuild(build func() []Rule) []Rule {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = build()
	c.built = true
	return c.rules
}

// Reset discards the cache.
func (c *Cell) Reset() {
	c.mu.Lock()
	c.rules, c.built = nil, false
	c.mu.Unlock()
}

// Built reports whether the cell holds a rule list.
func (c *Cell) Built() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.built
}
