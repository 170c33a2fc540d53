package repository

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"retail-backoffice/internal/filter"
	"retail-backoffice/internal/metadata"
)

// Dialects understood by the renderer.
const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

// aliasSep joins relation path segments in result column aliases.
const aliasSep = "__"

// Statement is rendered SQL with its bound arguments. Columns holds the
// dotted property path of every selected column, in select-list order.
type Statement struct {
	SQL     string
	Args    []any
	Columns []string
}

// Renderer turns a QueryDescriptor into SQL for one dialect.
type Renderer struct {
	dialect string
}

// NewRenderer creates a renderer. MySQL-family names render as mysql;
// anything unknown renders as postgres.
func NewRenderer(dialect string) *Renderer {
	d := strings.ToLower(dialect)
	switch {
	case filter.IsMySQLFamily(d):
		d = DialectMySQL
	case d == DialectSQLite:
	default:
		d = DialectPostgres
	}
	return &Renderer{dialect: d}
}

// Dialect returns the normalized dialect name.
func (r *Renderer) Dialect() string { return r.dialect }

func (r *Renderer) quote(ident string) string {
	if r.dialect == DialectMySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// render state for one statement
type renderCtx struct {
	r      *Renderer
	entity *metadata.Entity
	joins  map[string]string // relation path -> table alias
	order  []string          // join paths in emission order
	args   []any
}

func (r *Renderer) newCtx(e *metadata.Entity) *renderCtx {
	return &renderCtx{r: r, entity: e, joins: map[string]string{"": "t0"}}
}

func (c *renderCtx) bind(v any) string {
	c.args = append(c.args, v)
	if c.r.dialect == DialectPostgres {
		return "$" + strconv.Itoa(len(c.args))
	}
	return "?"
}

// join registers every prefix of a relation path. Paths through to-many
// relations are rejected.
func (c *renderCtx) join(path string) error {
	if path == "" {
		return nil
	}
	rels, ok := metadata.WalkRelations(c.entity, path)
	if !ok {
		return fmt.Errorf("unknown relation path %s", path)
	}
	parts := strings.Split(path, ".")
	for i, rel := range rels {
		if rel.Many {
			return fmt.Errorf("relation %s is to-many and cannot be joined", strings.Join(parts[:i+1], "."))
		}
		prefix := strings.Join(parts[:i+1], ".")
		if _, done := c.joins[prefix]; done {
			continue
		}
		c.joins[prefix] = "t" + strconv.Itoa(len(c.joins))
		c.order = append(c.order, prefix)
	}
	return nil
}

// column resolves a property path to a qualified column reference.
func (c *renderCtx) column(path string) (string, error) {
	_, col, ok := metadata.Walk(c.entity, path)
	if !ok {
		return "", fmt.Errorf("unknown property path %s", path)
	}
	parent := metadata.ParentPath(path)
	if err := c.join(parent); err != nil {
		return "", err
	}
	return c.joins[parent] + "." + c.r.quote(col.Alias), nil
}

func (c *renderCtx) from() string {
	var b strings.Builder
	b.WriteString(c.r.quote(c.entity.Table))
	b.WriteString(" t0")
	for _, path := range c.order {
		rel, _ := metadata.GetRelation(c.entity, path)
		target := rel.Entity()
		pks := target.PrimaryKeys()
		pk := "id"
		if len(pks) > 0 {
			if col, ok := target.Column(pks[0]); ok {
				pk = col.Alias
			}
		}
		alias := c.joins[path]
		owner := c.joins[metadata.ParentPath(path)]
		fmt.Fprintf(&b, " LEFT JOIN %s %s ON %s.%s = %s.%s",
			c.r.quote(target.Table), alias, alias, c.r.quote(pk), owner, c.r.quote(rel.JoinColumn))
	}
	return b.String()
}

// Select renders the row query.
func (r *Renderer) Select(e *metadata.Entity, q *filter.QueryDescriptor) (*Statement, error) {
	if q == nil {
		q = &filter.QueryDescriptor{}
	}
	c := r.newCtx(e)

	fields, err := c.selectList(q)
	if err != nil {
		return nil, err
	}
	// where and order joins must be known before FROM is rendered
	where, err := c.where(q.Where)
	if err != nil {
		return nil, err
	}
	order, err := c.orderBy(q.Order)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	cols := make([]string, len(fields))
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.ref)
		b.WriteString(" AS ")
		b.WriteString(r.quote(strings.ReplaceAll(f.path, ".", aliasSep)))
		cols[i] = f.path
	}
	b.WriteString(" FROM ")
	b.WriteString(c.from())
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	if order != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(order)
	}
	b.WriteString(r.window(q.Take, q.Skip))

	return &Statement{SQL: b.String(), Args: c.args, Columns: cols}, nil
}

// Count renders the COUNT(*) query over the same predicates, ignoring
// order and window.
func (r *Renderer) Count(e *metadata.Entity, q *filter.QueryDescriptor) (*Statement, error) {
	if q == nil {
		q = &filter.QueryDescriptor{}
	}
	c := r.newCtx(e)
	where, err := c.where(q.Where)
	if err != nil {
		return nil, err
	}
	sql := "SELECT COUNT(*) FROM " + c.from()
	if where != "" {
		sql += " WHERE " + where
	}
	return &Statement{SQL: sql, Args: c.args}, nil
}

func (r *Renderer) window(take, skip *int) string {
	switch {
	case take != nil && skip != nil:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", *take, *skip)
	case take != nil:
		return fmt.Sprintf(" LIMIT %d", *take)
	case skip != nil:
		switch r.dialect {
		case DialectSQLite:
			return fmt.Sprintf(" LIMIT -1 OFFSET %d", *skip)
		case DialectMySQL:
			return fmt.Sprintf(" LIMIT 18446744073709551615 OFFSET %d", *skip)
		}
		return fmt.Sprintf(" OFFSET %d", *skip)
	}
	return ""
}

type selectField struct {
	path string
	ref  string
}

// selectList expands the projection. Without an explicit select every
// column of the root and of each loaded to-one relation is returned; a
// selected relation expands to all its columns.
func (c *renderCtx) selectList(q *filter.QueryDescriptor) ([]selectField, error) {
	var fields []selectField
	seen := map[string]bool{}
	add := func(path string) error {
		if seen[path] {
			return nil
		}
		ref, err := c.column(path)
		if err != nil {
			return err
		}
		seen[path] = true
		fields = append(fields, selectField{path: path, ref: ref})
		return nil
	}
	addEntity := func(prefix string, e *metadata.Entity) error {
		for _, col := range e.AllColumns() {
			path := col.Property
			if prefix != "" {
				path = prefix + "." + col.Property
			}
			if err := add(path); err != nil {
				return err
			}
		}
		return nil
	}

	explicit := map[string]bool{}
	if q.Select == nil {
		if err := addEntity("", c.entity); err != nil {
			return nil, err
		}
	} else {
		for _, path := range q.Select.Paths() {
			if rel, ok := metadata.GetRelation(c.entity, path); ok {
				if rel.Many {
					continue
				}
				explicit[path] = true
				if err := addEntity(path, rel.Entity()); err != nil {
					return nil, err
				}
				continue
			}
			if metadata.HasProperty(c.entity, path) {
				if hasToMany(c.entity, metadata.ParentPath(path)) {
					continue
				}
				explicit[metadata.ParentPath(path)] = true
				if err := add(path); err != nil {
					return nil, err
				}
			}
		}
	}

	loaded := map[string]bool{}
	for _, leaf := range q.Relations.Paths() {
		parts := strings.Split(leaf, ".")
		for i := range parts {
			path := strings.Join(parts[:i+1], ".")
			if hasToMany(c.entity, path) {
				break
			}
			if loaded[path] {
				continue
			}
			loaded[path] = true
			if err := c.join(path); err != nil {
				return nil, err
			}
			if explicit[path] {
				continue
			}
			rel, _ := metadata.GetRelation(c.entity, path)
			if err := addEntity(path, rel.Entity()); err != nil {
				return nil, err
			}
		}
	}
	return fields, nil
}

func hasToMany(e *metadata.Entity, path string) bool {
	if path == "" {
		return false
	}
	rels, ok := metadata.WalkRelations(e, path)
	if !ok {
		return true
	}
	for _, rel := range rels {
		if rel.Many {
			return true
		}
	}
	return false
}

func (c *renderCtx) orderBy(order filter.Tree) (string, error) {
	paths := order.Paths()
	parts := make([]string, 0, len(paths))
	for _, path := range paths {
		ref, err := c.column(path)
		if err != nil {
			return "", err
		}
		v, _ := order.Get(path)
		parts = append(parts, ref+" "+string(filter.ParseDirection(v)))
	}
	return strings.Join(parts, ", "), nil
}

func (c *renderCtx) where(alternatives []filter.Where) (string, error) {
	var ors []string
	for _, w := range alternatives {
		conds := w.Conditions()
		if len(conds) == 0 {
			continue
		}
		ands := make([]string, 0, len(conds))
		for _, fc := range conds {
			expr, err := c.condition(fc.Path, fc.Condition)
			if err != nil {
				return "", err
			}
			ands = append(ands, expr)
		}
		ors = append(ors, strings.Join(ands, " AND "))
	}
	switch len(ors) {
	case 0:
		return "", nil
	case 1:
		return ors[0], nil
	}
	for i := range ors {
		ors[i] = "(" + ors[i] + ")"
	}
	return strings.Join(ors, " OR "), nil
}

func (c *renderCtx) condition(path string, cond filter.Condition) (string, error) {
	ref, err := c.column(path)
	if err != nil {
		return "", err
	}

	var expr string
	switch cond.Op {
	case filter.CondEqual:
		expr = ref + " = " + c.bind(cond.Value)
	case filter.CondMoreThan:
		expr = ref + " > " + c.bind(cond.Value)
	case filter.CondMoreThanOrEqual:
		expr = ref + " >= " + c.bind(cond.Value)
	case filter.CondLessThan:
		expr = ref + " < " + c.bind(cond.Value)
	case filter.CondLessThanOrEqual:
		expr = ref + " <= " + c.bind(cond.Value)
	case filter.CondLike:
		expr = ref + " LIKE " + c.bind(cond.Value)
	case filter.CondIn:
		if len(cond.Values) == 0 {
			if cond.Not {
				return "1=1", nil
			}
			return "1=0", nil
		}
		holders := make([]string, len(cond.Values))
		for i, v := range cond.Values {
			holders[i] = c.bind(v)
		}
		expr = ref + " IN (" + strings.Join(holders, ", ") + ")"
	case filter.CondBetween:
		if len(cond.Values) != 2 {
			return "", fmt.Errorf("between on %s needs two values", path)
		}
		expr = ref + " BETWEEN " + c.bind(cond.Values[0]) + " AND " + c.bind(cond.Values[1])
	case filter.CondIsNull:
		if cond.Not {
			return ref + " IS NOT NULL", nil
		}
		return ref + " IS NULL", nil
	case filter.CondRaw:
		if cond.Raw == nil {
			return "", fmt.Errorf("raw condition on %s has no expression", path)
		}
		expr, err = c.expandRaw(ref, cond.Raw)
		if err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unsupported condition %q on %s", cond.Op, path)
	}

	if cond.Not {
		return "NOT (" + expr + ")", nil
	}
	return expr, nil
}

// expandRaw substitutes {alias}, {field:path} and :param references.
func (c *renderCtx) expandRaw(ref string, raw *filter.RawCondition) (string, error) {
	src := raw.SQL
	var b strings.Builder
	for i := 0; i < len(src); i++ {
		ch := src[i]
		switch {
		case ch == '{':
			end := strings.IndexByte(src[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("unterminated reference in %q", src)
			}
			token := src[i+1 : i+end]
			switch {
			case token == "alias":
				b.WriteString(ref)
			case strings.HasPrefix(token, "field:"):
				other, err := c.column(strings.TrimPrefix(token, "field:"))
				if err != nil {
					return "", err
				}
				b.WriteString(other)
			default:
				return "", fmt.Errorf("unknown reference {%s}", token)
			}
			i += end
		case ch == ':' && i+1 < len(src) && isIdentStart(src[i+1]) && (i == 0 || src[i-1] != ':'):
			j := i + 1
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			name := src[i+1 : j]
			v, ok := raw.Params[name]
			if !ok {
				return "", fmt.Errorf("missing parameter :%s", name)
			}
			b.WriteString(c.bind(v))
			i = j - 1
		default:
			b.WriteByte(ch)
		}
	}
	return b.String(), nil
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}

// relationPaths lists the to-one relation paths present in a column list,
// shortest first.
func relationPaths(columns []string) []string {
	set := map[string]bool{}
	for _, col := range columns {
		for p := metadata.ParentPath(col); p != ""; p = metadata.ParentPath(p) {
			set[p] = true
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := strings.Count(out[i], "."), strings.Count(out[j], ".")
		if di != dj {
			return di < dj
		}
		return out[i] < out[j]
	})
	return out
}
