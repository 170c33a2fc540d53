package pagination

import (
	"context"
	"errors"
	"math"
	"testing"

	"retail-backoffice/internal/filter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceFinder serves a fixed row set and records the last query.
type sliceFinder struct {
	rows []int
	last *filter.QueryDescriptor
}

func newSliceFinder(total int) *sliceFinder {
	rows := make([]int, total)
	for i := range rows {
		rows[i] = i + 1
	}
	return &sliceFinder{rows: rows}
}

func (f *sliceFinder) FindAndCount(_ context.Context, q *filter.QueryDescriptor) ([]int, int, error) {
	f.last = q
	start, end := 0, len(f.rows)
	if q.Skip != nil {
		start = min(*q.Skip, len(f.rows))
	}
	if q.Take != nil {
		end = min(start+*q.Take, len(f.rows))
	}
	return append([]int(nil), f.rows[start:end]...), len(f.rows), nil
}

func intPtr(i int) *int { return &i }

func TestPaginate_MiddlePage(t *testing.T) {
	f := newSliceFinder(25)

	p, err := Paginate[int](context.Background(), f, intPtr(2), intPtr(10), &filter.QueryDescriptor{}, 25)
	require.NoError(t, err)

	assert.Equal(t, 25, p.Total)
	assert.Equal(t, 10, p.PerPage)
	assert.Equal(t, 2, p.CurrentPage)
	assert.Equal(t, 3, p.LastPage)
	assert.Equal(t, 11, p.From)
	assert.Equal(t, 20, p.To)
	assert.Len(t, p.Data, 10)
	assert.Equal(t, 11, p.Data[0])
}

func TestPaginate_PageBeyondRange(t *testing.T) {
	p, err := Paginate[int](context.Background(), newSliceFinder(25), intPtr(5), intPtr(10), nil, 25)
	require.NoError(t, err)

	assert.Equal(t, 0, p.From)
	assert.Equal(t, 0, p.To)
	assert.Empty(t, p.Data)
	assert.NotNil(t, p.Data)
}

func TestPaginate_OutOfRangeRowsAreDiscarded(t *testing.T) {
	f := FinderFunc[int](func(context.Context, *filter.QueryDescriptor) ([]int, int, error) {
		return []int{1, 2, 3}, 2, nil
	})
	p, err := Paginate[int](context.Background(), f, intPtr(3), intPtr(1), nil, 25)
	require.NoError(t, err)
	assert.Empty(t, p.Data)
}

func TestPaginate_Bounds(t *testing.T) {
	for total := 0; total <= 23; total++ {
		for perPage := 1; perPage <= 7; perPage++ {
			for page := 1; page <= 6; page++ {
				p, err := Paginate[int](context.Background(), newSliceFinder(total), intPtr(page), intPtr(perPage), nil, 25)
				require.NoError(t, err)

				skip := (page - 1) * perPage
				if skip < total {
					assert.Equal(t, skip+1, p.From)
					assert.Equal(t, min(page*perPage, total), p.To)
					assert.Len(t, p.Data, p.To-p.From+1)
				} else {
					assert.Equal(t, 0, p.From)
					assert.Equal(t, 0, p.To)
					assert.Empty(t, p.Data)
				}
			}
		}
	}
}

func TestPaginate_ResolvesFromDescriptor(t *testing.T) {
	f := newSliceFinder(40)
	q := &filter.QueryDescriptor{Take: intPtr(10), Skip: intPtr(20)}

	p, err := Paginate[int](context.Background(), f, nil, nil, q, 25)
	require.NoError(t, err)

	assert.Equal(t, 10, p.PerPage)
	assert.Equal(t, 3, p.CurrentPage)
	assert.Equal(t, 21, p.From)
	assert.Equal(t, 30, p.To)

	assert.Equal(t, 10, *q.Take, "caller descriptor untouched")
	assert.Equal(t, 20, *q.Skip)
}

func TestPaginate_DefaultPerPage(t *testing.T) {
	f := newSliceFinder(30)
	p, err := Paginate[int](context.Background(), f, nil, nil, nil, 25)
	require.NoError(t, err)

	assert.Equal(t, 25, p.PerPage)
	assert.Equal(t, 1, p.CurrentPage)
	assert.Equal(t, 2, p.LastPage)
	assert.Equal(t, 25, *f.last.Take)
	assert.Nil(t, f.last.Skip)
}

func TestPaginate_Unlimited(t *testing.T) {
	f := newSliceFinder(12)
	p, err := Paginate[int](context.Background(), f, intPtr(3), intPtr(0), nil, 25)
	require.NoError(t, err)

	assert.Equal(t, 0, p.PerPage)
	assert.Equal(t, 1, p.LastPage)
	assert.Equal(t, 1, p.From)
	assert.Equal(t, 12, p.To)
	assert.Len(t, p.Data, 12)
	assert.Nil(t, f.last.Take)
	assert.Nil(t, f.last.Skip)
}

func TestPaginate_PageClamped(t *testing.T) {
	p, err := Paginate[int](context.Background(), newSliceFinder(5), intPtr(-2), intPtr(2), nil, 25)
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentPage)
	assert.Equal(t, 1, p.From)
}

func TestPaginate_FinderError(t *testing.T) {
	boom := errors.New("boom")
	f := FinderFunc[int](func(context.Context, *filter.QueryDescriptor) ([]int, int, error) {
		return nil, 0, boom
	})
	_, err := Paginate[int](context.Background(), f, nil, nil, nil, 25)
	assert.ErrorIs(t, err, boom)
}

func TestPaginate_HugePageSaturates(t *testing.T) {
	f := newSliceFinder(25)
	page := math.MaxInt / 5

	p, err := Paginate[int](context.Background(), f, intPtr(page), intPtr(10), nil, 25)
	require.NoError(t, err)

	assert.Equal(t, page, p.CurrentPage)
	assert.Equal(t, 25, p.Total)
	assert.Equal(t, 0, p.From)
	assert.Equal(t, 0, p.To)
	assert.Empty(t, p.Data)
	require.NotNil(t, f.last.Skip)
	assert.Equal(t, math.MaxInt, *f.last.Skip)
}

func TestPaginate_PageFromHugeSkip(t *testing.T) {
	skip := math.MaxInt - 3
	p, err := Paginate[int](context.Background(), newSliceFinder(25), nil, intPtr(10), &filter.QueryDescriptor{Skip: &skip}, 25)
	require.NoError(t, err)
	assert.Equal(t, skip/10+1, p.CurrentPage)
	assert.Empty(t, p.Data)
}
