// Package pagination wraps a find-and-count repository call in a page
// envelope.
package pagination

import (
	"context"
	"fmt"

	"retail-backoffice/internal/filter"
)

// Finder runs a compiled query and counts all rows matching its predicates,
// ignoring the window.
type Finder[T any] interface {
	FindAndCount(ctx context.Context, q *filter.QueryDescriptor) ([]T, int, error)
}

// FinderFunc adapts a function to Finder.
type FinderFunc[T any] func(ctx context.Context, q *filter.QueryDescriptor) ([]T, int, error)

func (f FinderFunc[T]) FindAndCount(ctx context.Context, q *filter.QueryDescriptor) ([]T, int, error) {
	return f(ctx, q)
}

// Paginated is one page of results.
type Paginated[T any] struct {
	Total       int `json:"total"`
	PerPage     int `json:"per_page"`
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	From        int `json:"from"`
	To          int `json:"to"`
	Data        []T `json:"data"`
}

// Paginate resolves the window, runs the finder and fills the envelope.
//
// perPage comes from the argument, then the descriptor's Take, then
// defaultPerPage. A zero perPage disables windowing. page defaults to the
// page implied by the descriptor's Skip, then 1. q itself is not modified.
func Paginate[T any](ctx context.Context, finder Finder[T], page, perPage *int, q *filter.QueryDescriptor, defaultPerPage int) (*Paginated[T], error) {
	var query filter.QueryDescriptor
	if q != nil {
		query = *q
	}

	size := defaultPerPage
	switch {
	case perPage != nil:
		size = *perPage
	case query.Take != nil:
		size = *query.Take
	}
	if size < 0 {
		size = 0
	}

	current := 1
	switch {
	case page != nil:
		current = *page
	case query.Skip != nil && size > 0 && *query.Skip >= 0:
		// ceil((skip+1)/size)
		current = *query.Skip/size + 1
	}
	if current < 1 {
		current = 1
	}

	skip := 0
	if size > 0 {
		skip = filter.PageOffset(current, size)
		take := size
		query.Take = &take
		query.Skip = nil
		if skip > 0 {
			s := skip
			query.Skip = &s
		}
	} else {
		query.Take = nil
		query.Skip = nil
	}

	data, total, err := finder.FindAndCount(ctx, &query)
	if err != nil {
		return nil, fmt.Errorf("failed to find page %d: %w", current, err)
	}

	result := &Paginated[T]{
		Total:       total,
		PerPage:     size,
		CurrentPage: current,
		LastPage:    lastPage(total, size),
		Data:        data,
	}
	switch {
	case skip >= total:
		result.Data = []T{}
	case size == 0:
		result.From = 1
		result.To = total
	default:
		result.From = skip + 1
		result.To = min(skip+size, total)
	}
	if result.Data == nil {
		result.Data = []T{}
	}
	return result, nil
}

func lastPage(total, perPage int) int {
	if perPage <= 0 || total == 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}
