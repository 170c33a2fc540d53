package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"retail-backoffice/internal/metadata"
)

// where compiles a clause list into OR-ed alternatives. The primary
// conjunction always comes first; OR groups are spliced after it, flattened
// to a single level however deeply they nest.
func (c *compiler) where(clauses []WhereClause) []Where {
	primary := Where{}
	var alternatives []Where

	for _, cl := range clauses {
		if cl.IsEmpty() {
			continue
		}

		if cl.Type == OpOr {
			for _, branch := range cl.Branches() {
				alternatives = append(alternatives, c.where(branch)...)
			}
			continue
		}

		if cl.Attribute == "" {
			if cl.Type == "" {
				if text, ok := cl.Value.(string); ok && text != "" {
					c.textFilter(primary, text)
				}
			}
			continue
		}

		path := c.mapField(cl.Attribute)
		col, ok := metadata.GetProperty(c.entity, path)
		if !ok {
			continue
		}
		op := cl.Type
		if op == "" {
			op = OpEquals
		}
		if cond, ok := c.condition(op, cl.Value, col); ok {
			setPath(primary, path, cond)
		}
	}

	out := make([]Where, 0, len(alternatives)+1)
	for _, w := range append([]Where{primary}, alternatives...) {
		if len(w) > 0 {
			out = append(out, w)
		}
	}
	return out
}

// textFilter attaches one OR-across-fields LIKE condition, keyed by the
// first searchable field that exists on the entity.
func (c *compiler) textFilter(primary Where, text string) {
	var fields []string
	for _, f := range c.opts.TextFilterFields {
		path := c.mapField(f)
		if metadata.HasProperty(c.entity, path) {
			fields = append(fields, path)
		}
	}
	if len(fields) == 0 {
		return
	}

	parts := make([]string, 0, len(fields))
	parts = append(parts, "{alias} LIKE :text")
	for _, f := range fields[1:] {
		parts = append(parts, "{field:"+f+"} LIKE :text")
	}
	sql := strings.Join(parts, " OR ")
	if len(parts) > 1 {
		sql = "(" + sql + ")"
	}
	setPath(primary, fields[0], rawCondition(sql, map[string]any{"text": "%" + text + "%"}))
}

func rawCondition(sql string, params map[string]any) Condition {
	return Condition{Op: CondRaw, Raw: &RawCondition{SQL: sql, Params: params}}
}

func negate(c Condition) Condition {
	c.Not = !c.Not
	return c
}

// condition implements the operator table for one attribute.
func (c *compiler) condition(op Operator, value any, col *metadata.Column) (Condition, bool) {
	isDate := col.Kind.IsDateLike()
	value = normalize(value)

	switch op {
	case OpEquals, OpNotEquals:
		if value == nil {
			return Condition{}, false
		}
		var cond Condition
		switch {
		case isDate:
			cond = rawCondition("DATE({alias}) = DATE(:value)", map[string]any{"value": value})
		case col.Kind.IsBoolean():
			cond = Condition{Op: CondEqual, Value: coerceBool(value)}
		default:
			cond = Condition{Op: CondEqual, Value: value}
		}
		if op == OpNotEquals {
			cond = negate(cond)
		}
		return cond, true

	case OpGreaterThan:
		if value == nil {
			return Condition{}, false
		}
		if isDate {
			return rawCondition("DATE({alias}) > DATE(:value)", map[string]any{"value": value}), true
		}
		return Condition{Op: CondMoreThan, Value: value}, true

	case OpGreaterThanOrEquals:
		if value == nil {
			return Condition{}, false
		}
		return Condition{Op: CondMoreThanOrEqual, Value: value}, true

	case OpLessThan:
		if value == nil {
			return Condition{}, false
		}
		return Condition{Op: CondLessThan, Value: value}, true

	case OpLessThanOrEquals:
		if value == nil {
			return Condition{}, false
		}
		if isDate {
			return rawCondition("DATE({alias}) <= DATE(:value)", map[string]any{"value": value}), true
		}
		return Condition{Op: CondLessThanOrEqual, Value: value}, true

	case OpLike, OpContains:
		if value == nil {
			return Condition{}, false
		}
		return Condition{Op: CondLike, Value: "%" + toString(value) + "%"}, true

	case OpNotLike, OpNotContains:
		if value == nil {
			return Condition{}, false
		}
		return Condition{Op: CondLike, Not: true, Value: "%" + toString(value) + "%"}, true

	case OpStartsWith:
		if value == nil {
			return Condition{}, false
		}
		return Condition{Op: CondLike, Value: toString(value) + "%"}, true

	case OpEndsWith:
		if value == nil {
			return Condition{}, false
		}
		return Condition{Op: CondLike, Value: "%" + toString(value)}, true

	case OpIn, OpNotIn:
		values := toSlice(value)
		var cond Condition
		if isDate {
			if len(values) == 0 {
				return Condition{}, false
			}
			parts := make([]string, len(values))
			params := make(map[string]any, len(values))
			for i, v := range values {
				name := "v" + strconv.Itoa(i)
				parts[i] = "DATE({alias}) = DATE(:" + name + ")"
				params[name] = v
			}
			cond = rawCondition("("+strings.Join(parts, " OR ")+")", params)
		} else {
			cond = Condition{Op: CondIn, Values: values}
		}
		if op == OpNotIn {
			cond = negate(cond)
		}
		return cond, true

	case OpBetween:
		values := toSlice(value)
		if len(values) != 2 {
			return Condition{}, false
		}
		if isDate {
			return rawCondition("DATE({alias}) BETWEEN DATE(:from) AND DATE(:to)",
				map[string]any{"from": values[0], "to": values[1]}), true
		}
		return Condition{Op: CondBetween, Values: values}, true

	case OpIsNull:
		return Condition{Op: CondIsNull}, true
	case OpIsNotNull:
		return Condition{Op: CondIsNull, Not: true}, true
	case OpIsTrue:
		return Condition{Op: CondEqual, Value: true}, true
	case OpIsFalse:
		return Condition{Op: CondEqual, Value: false}, true

	case OpToday:
		return rawCondition("DATE({alias}) = DATE(:now)", map[string]any{"now": c.opts.now()}), true
	case OpPast:
		return rawCondition("{alias} < :now", map[string]any{"now": c.opts.now()}), true
	case OpFuture:
		return rawCondition("{alias} > :now", map[string]any{"now": c.opts.now()}), true
	case OpLastSevenDays:
		now := c.opts.now()
		return rawCondition("{alias} BETWEEN :from AND :now",
			map[string]any{"from": now.AddDate(0, 0, -7), "now": now}), true

	case OpLastXDays, OpNextXDays, OpOlderThanXDays, OpAfterXDays:
		if !IsMySQLFamily(c.opts.Dialect) {
			return Condition{}, false
		}
		days, ok := toInt(value)
		if !ok {
			return Condition{}, false
		}
		params := map[string]any{"days": days}
		switch op {
		case OpLastXDays:
			return rawCondition("{alias} BETWEEN DATE_SUB(NOW(), INTERVAL :days DAY) AND NOW()", params), true
		case OpNextXDays:
			return rawCondition("{alias} BETWEEN NOW() AND DATE_ADD(NOW(), INTERVAL :days DAY)", params), true
		case OpOlderThanXDays:
			return rawCondition("{alias} < DATE_SUB(NOW(), INTERVAL :days DAY)", params), true
		default:
			return rawCondition("{alias} > DATE_ADD(NOW(), INTERVAL :days DAY)", params), true
		}

	case OpCurrentMonth, OpLastMonth, OpNextMonth, OpCurrentYear, OpLastYear:
		// TODO: define month/year ranges (calendar vs rolling) before producing conditions.
		return Condition{}, false
	}
	return Condition{}, false
}

// normalize turns integral JSON numbers into int64 so parameters bind as
// integers.
func normalize(v any) any {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = normalize(item)
		}
		return out
	}
	return v
}

func toSlice(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out
	case string:
		if x == "" {
			return nil
		}
		parts := strings.Split(x, ",")
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		return out
	}
	return []any{v}
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		return n, err == nil
	}
	return 0, false
}

func coerceBool(v any) any {
	s, ok := v.(string)
	if !ok {
		if n, isNum := v.(int64); isNum {
			return n != 0
		}
		return v
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	}
	return s
}
