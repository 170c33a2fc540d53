package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection accepts asc/desc in any case and the numbers 1/-1.
// Anything else is ascending.
func ParseDirection(v any) Direction {
	switch d := v.(type) {
	case string:
		s := strings.TrimSpace(d)
		if strings.EqualFold(s, "desc") || s == "-1" {
			return Desc
		}
	case float64:
		if d < 0 {
			return Desc
		}
	case int:
		if d < 0 {
			return Desc
		}
	case Direction:
		if strings.EqualFold(string(d), "desc") {
			return Desc
		}
	}
	return Asc
}

// MalformedFilterError is returned when a string-encoded filter payload is
// not valid JSON.
type MalformedFilterError struct {
	Field string
	Err   error
}

func (e *MalformedFilterError) Error() string {
	return fmt.Sprintf("malformed %s: %v", e.Field, e.Err)
}

func (e *MalformedFilterError) Unwrap() error {
	return e.Err
}

// SearchParams is the client-supplied query intent.
type SearchParams struct {
	Page      *int
	PerPage   *int
	Select    []string
	Relations []string
	Where     []WhereClause
	OrderBy   string
	Order     Direction
}

// IsMany reports whether the params describe a list query. Only list
// queries receive a pagination window.
func (p *SearchParams) IsMany() bool {
	return p != nil && (p.Page != nil || p.PerPage != nil)
}

type rawSearchParams struct {
	Page       json.RawMessage `json:"page"`
	PerPage    json.RawMessage `json:"perPage"`
	PerPageAlt json.RawMessage `json:"per_page"`
	Select     json.RawMessage `json:"select"`
	Relations  json.RawMessage `json:"relations"`
	Where      json.RawMessage `json:"where"`
	OrderBy    string          `json:"orderBy"`
	OrderByAlt string          `json:"order_by"`
	Order      any             `json:"order"`
}

// UnmarshalJSON accepts camelCase and snake_case keys, numbers given as
// strings, comma-separated select/relations and a string-encoded where.
func (p *SearchParams) UnmarshalJSON(data []byte) error {
	var raw rawSearchParams
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	page, err := decodeInt(raw.Page)
	if err != nil {
		return fmt.Errorf("page: %w", err)
	}
	perPageRaw := raw.PerPage
	if len(perPageRaw) == 0 {
		perPageRaw = raw.PerPageAlt
	}
	perPage, err := decodeInt(perPageRaw)
	if err != nil {
		return fmt.Errorf("perPage: %w", err)
	}
	sel, err := decodeStrings(raw.Select)
	if err != nil {
		return fmt.Errorf("select: %w", err)
	}
	rels, err := decodeStrings(raw.Relations)
	if err != nil {
		return fmt.Errorf("relations: %w", err)
	}
	where, err := decodeWhere(raw.Where)
	if err != nil {
		return err
	}

	*p = SearchParams{
		Page:      page,
		PerPage:   perPage,
		Select:    sel,
		Relations: rels,
		Where:     where,
		OrderBy:   raw.OrderBy,
	}
	if p.OrderBy == "" {
		p.OrderBy = raw.OrderByAlt
	}
	if raw.Order != nil {
		p.Order = ParseDirection(raw.Order)
	}
	return nil
}

// ParseSearchParams decodes a JSON search payload.
func ParseSearchParams(raw []byte) (*SearchParams, error) {
	var p SearchParams
	if err := json.Unmarshal(raw, &p); err != nil {
		var mfe *MalformedFilterError
		if errors.As(err, &mfe) {
			return nil, mfe
		}
		return nil, &MalformedFilterError{Field: "search_params", Err: err}
	}
	return &p, nil
}

// ParseWhere decodes a JSON-encoded where list (query-string form).
func ParseWhere(raw string) ([]WhereClause, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return decodeWhere(json.RawMessage(raw))
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func decodeInt(raw json.RawMessage) (*int, error) {
	if isNull(raw) {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	switch n := v.(type) {
	case float64:
		i := int(n)
		return &i, nil
	case string:
		if strings.TrimSpace(n) == "" {
			return nil, nil
		}
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return nil, err
		}
		return &i, nil
	default:
		return nil, fmt.Errorf("expected integer, got %T", v)
	}
}

func decodeStrings(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return SplitList(s), nil
}

// SplitList splits a comma-separated list, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func decodeWhere(raw json.RawMessage) ([]WhereClause, error) {
	if isNull(raw) {
		return nil, nil
	}
	t := bytes.TrimSpace(raw)
	if t[0] == '"' {
		var encoded string
		if err := json.Unmarshal(t, &encoded); err != nil {
			return nil, &MalformedFilterError{Field: "where", Err: err}
		}
		if strings.TrimSpace(encoded) == "" {
			return nil, nil
		}
		t = []byte(encoded)
	}
	var list []WhereClause
	if err := json.Unmarshal(t, &list); err != nil {
		return nil, &MalformedFilterError{Field: "where", Err: err}
	}
	return list, nil
}
