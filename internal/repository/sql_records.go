package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"retail-backoffice/internal/filter"
	"retail-backoffice/internal/metadata"

	"go.uber.org/zap"
)

// ErrNotFound is returned when a single-record lookup matches nothing.
var ErrNotFound = errors.New("record not found")

// Record is one row, nested by relation: {"code": "A1", "branch": {"name": "Main"}}.
type Record map[string]any

// RecordRepository executes compiled queries for any registered entity.
type RecordRepository interface {
	FindAndCount(ctx context.Context, e *metadata.Entity, q *filter.QueryDescriptor) ([]Record, int, error)
	FindOne(ctx context.Context, e *metadata.Entity, q *filter.QueryDescriptor) (Record, error)
}

// SQLRepository runs rendered statements on database/sql.
type SQLRepository struct {
	db       *sql.DB
	renderer *Renderer
	logger   *zap.Logger
}

// NewSQLRepository creates a repository rendering for dialect.
func NewSQLRepository(db *sql.DB, dialect string, logger *zap.Logger) *SQLRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLRepository{db: db, renderer: NewRenderer(dialect), logger: logger}
}

var _ RecordRepository = (*SQLRepository)(nil)

// FindAndCount returns the window of rows and the total ignoring the window.
func (r *SQLRepository) FindAndCount(ctx context.Context, e *metadata.Entity, q *filter.QueryDescriptor) ([]Record, int, error) {
	countStmt, err := r.renderer.Count(e, q)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to render count: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countStmt.SQL, countStmt.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", e.Name, err)
	}

	records, err := r.find(ctx, e, q)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// FindOne returns the first matching row. Any window on q is replaced by
// a single-row limit.
func (r *SQLRepository) FindOne(ctx context.Context, e *metadata.Entity, q *filter.QueryDescriptor) (Record, error) {
	var one filter.QueryDescriptor
	if q != nil {
		one = *q
	}
	limit := 1
	one.Take, one.Skip = &limit, nil

	records, err := r.find(ctx, e, &one)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

func (r *SQLRepository) find(ctx context.Context, e *metadata.Entity, q *filter.QueryDescriptor) ([]Record, error) {
	stmt, err := r.renderer.Select(e, q)
	if err != nil {
		return nil, fmt.Errorf("failed to render select: %w", err)
	}
	r.logger.Debug("Executing query",
		zap.String("entity", e.Name),
		zap.String("sql", stmt.SQL),
		zap.Int("args", len(stmt.Args)),
	)

	rows, err := r.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", e.Name, err)
	}
	defer rows.Close()

	kinds := make([]metadata.ColumnKind, len(stmt.Columns))
	for i, path := range stmt.Columns {
		if col, ok := metadata.GetProperty(e, path); ok {
			kinds[i] = col.Kind
		}
	}
	relations := relationPaths(stmt.Columns)

	var out []Record
	for rows.Next() {
		values := make([]any, len(stmt.Columns))
		ptrs := make([]any, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", e.Name, err)
		}
		out = append(out, assemble(stmt.Columns, kinds, values, relations))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", e.Name, err)
	}
	return out, nil
}

// assemble nests a flat row by relation path. A relation whose columns are
// all NULL (unmatched LEFT JOIN) becomes nil.
func assemble(columns []string, kinds []metadata.ColumnKind, values []any, relations []string) Record {
	rec := Record{}
	for i, path := range columns {
		setRecordPath(rec, path, columnValue(kinds[i], values[i]))
	}
	// deepest first so an empty child collapses before its parent is checked
	for i := len(relations) - 1; i >= 0; i-- {
		parent, leaf := recordParent(rec, relations[i])
		if parent == nil {
			continue
		}
		if sub, ok := parent[leaf].(Record); ok && allNil(sub) {
			parent[leaf] = nil
		}
	}
	return rec
}

func setRecordPath(rec Record, path string, v any) {
	parts := strings.Split(path, ".")
	cur := rec
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(Record)
		if !ok {
			next = Record{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func recordParent(rec Record, path string) (Record, string) {
	parts := strings.Split(path, ".")
	cur := rec
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(Record)
		if !ok {
			return nil, ""
		}
		cur = next
	}
	return cur, parts[len(parts)-1]
}

func allNil(rec Record) bool {
	for _, v := range rec {
		if v != nil {
			return false
		}
	}
	return true
}

func columnValue(kind metadata.ColumnKind, v any) any {
	b, ok := v.([]byte)
	if !ok {
		if s, isString := v.(string); isString && kind == metadata.KindJSON {
			return jsonRawOrString(s)
		}
		return v
	}
	if kind == metadata.KindJSON {
		return jsonRawOrString(string(b))
	}
	return string(b)
}
