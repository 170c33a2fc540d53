// Package filter compiles client search parameters into a backend-agnostic
// QueryDescriptor, validating every path against entity metadata.
//
// Paths that do not resolve are dropped silently, for select, relations,
// where and orderBy alike. Only malformed JSON is reported as an error.
package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"retail-backoffice/internal/metadata"
)

// DefaultPerPage is used when neither the request nor the options give a
// page size.
const DefaultPerPage = 25

// Options tune one compilation.
type Options struct {
	// TextFilterFields are the properties searched by a bare-value clause.
	TextFilterFields []string
	// MappedFields redirects external aliases to property paths.
	MappedFields map[string]string
	// PerPage is the default page size for list queries.
	PerPage int
	// Dialect of the target datastore. Date-difference operators are only
	// produced for MySQL-family dialects.
	Dialect string
	// Now is the reference time of date-relative operators.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) perPage() int {
	if o.PerPage > 0 {
		return o.PerPage
	}
	return DefaultPerPage
}

// IsMySQLFamily reports whether dialect is MySQL or MariaDB.
func IsMySQLFamily(dialect string) bool {
	switch strings.ToLower(dialect) {
	case "mysql", "mariadb", "aurora-mysql":
		return true
	}
	return false
}

type compiler struct {
	entity *metadata.Entity
	opts   Options
}

// Compile builds the query descriptor for params against entity.
func Compile(entity *metadata.Entity, params *SearchParams, opts Options) (*QueryDescriptor, error) {
	if entity == nil {
		return nil, fmt.Errorf("entity metadata is required")
	}
	if params == nil {
		params = &SearchParams{}
	}
	c := &compiler{entity: entity, opts: opts}

	q := &QueryDescriptor{}
	q.Select, q.Relations = c.selection(params)
	q.Where = c.where(params.Where)
	q.Order = c.order(params)
	if params.IsMany() {
		q.Take, q.Skip = c.window(params)
	}
	q.prune()
	return q, nil
}

// CompileRaw accepts the search params as a JSON document, either []byte,
// string or an already decoded *SearchParams.
func CompileRaw(entity *metadata.Entity, raw any, opts Options) (*QueryDescriptor, error) {
	var params *SearchParams
	switch v := raw.(type) {
	case nil:
		params = &SearchParams{}
	case *SearchParams:
		params = v
	case SearchParams:
		params = &v
	case string:
		p, err := ParseSearchParams([]byte(v))
		if err != nil {
			return nil, err
		}
		params = p
	case []byte:
		p, err := ParseSearchParams(v)
		if err != nil {
			return nil, err
		}
		params = p
	case json.RawMessage:
		p, err := ParseSearchParams(v)
		if err != nil {
			return nil, err
		}
		params = p
	default:
		return nil, fmt.Errorf("unsupported search params type %T", raw)
	}
	return Compile(entity, params, opts)
}

func (c *compiler) mapField(path string) string {
	if mapped, ok := c.opts.MappedFields[path]; ok && mapped != "" {
		return mapped
	}
	return path
}

func (c *compiler) selection(params *SearchParams) (Tree, Tree) {
	sel := Tree{}
	rels := Tree{}

	for _, raw := range params.Select {
		path := c.mapField(strings.TrimSpace(raw))
		switch {
		case metadata.HasProperty(c.entity, path):
			setPath(sel, path, true)
			if parent := metadata.ParentPath(path); parent != "" && metadata.HasRelation(c.entity, parent) {
				setPath(rels, parent, true)
			}
		case metadata.HasRelation(c.entity, path):
			setPath(sel, path, true)
			setPath(rels, path, true)
		}
	}

	for _, raw := range params.Relations {
		path := strings.TrimSpace(raw)
		if metadata.HasRelation(c.entity, path) {
			setPath(rels, path, true)
		}
	}

	if len(sel) > 0 {
		for _, pk := range c.entity.PrimaryKeys() {
			setPath(sel, pk, true)
		}
	}
	return sel, rels
}

func (c *compiler) order(params *SearchParams) Tree {
	if params.OrderBy == "" {
		return nil
	}
	path := c.mapField(strings.TrimSpace(params.OrderBy))
	if !metadata.HasProperty(c.entity, path) {
		return nil
	}
	dir := params.Order
	if dir == "" {
		dir = Asc
	}
	order := Tree{}
	setPath(order, path, dir)
	return order
}

func (c *compiler) window(params *SearchParams) (take, skip *int) {
	perPage := c.opts.perPage()
	if params.PerPage != nil {
		perPage = *params.PerPage
	}
	if perPage <= 0 {
		return nil, nil
	}
	page := 1
	if params.Page != nil && *params.Page > 1 {
		page = *params.Page
	}
	t, s := perPage, PageOffset(page, perPage)
	return &t, &s
}

// PageOffset returns (page-1)*size, saturating at math.MaxInt instead of
// overflowing. page and size are expected to be positive.
func PageOffset(page, size int) int {
	if page <= 1 || size <= 0 {
		return 0
	}
	if page-1 > (math.MaxInt-size)/size {
		return math.MaxInt
	}
	return (page - 1) * size
}
