package service

import (
	"context"
	"errors"
	"fmt"

	"retail-backoffice/internal/filter"
	"retail-backoffice/internal/metadata"
	"retail-backoffice/internal/pagination"
	"retail-backoffice/internal/repository"

	"go.uber.org/zap"
)

// ErrUnknownEntity is returned for entity names missing from the registry.
var ErrUnknownEntity = errors.New("unknown entity")

// ListService answers search requests for any registered entity.
type ListService struct {
	registry *metadata.Registry
	repo     repository.RecordRepository
	perPage  int
	dialect  string
	logger   *zap.Logger
}

func NewListService(registry *metadata.Registry, repo repository.RecordRepository, perPage int, dialect string, logger *zap.Logger) *ListService {
	if perPage <= 0 {
		perPage = filter.DefaultPerPage
	}
	return &ListService{registry: registry, repo: repo, perPage: perPage, dialect: dialect, logger: logger}
}

// Entity resolves a concrete entity by name or table.
func (s *ListService) Entity(name string) (*metadata.Entity, error) {
	e, ok := s.registry.Entity(name)
	if !ok || e.Abstract {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownEntity)
	}
	return e, nil
}

// Entities lists the searchable entity names.
func (s *ListService) Entities() []string {
	return s.registry.Names()
}

func (s *ListService) options(e *metadata.Entity) filter.Options {
	return filter.Options{
		TextFilterFields: e.TextFilterFields,
		MappedFields:     e.MappedFields,
		PerPage:          s.perPage,
		Dialect:          s.dialect,
	}
}

// Compile builds the descriptor for params without running it.
func (s *ListService) Compile(e *metadata.Entity, params *filter.SearchParams) (*filter.QueryDescriptor, error) {
	q, err := filter.Compile(e, params, s.options(e))
	if err != nil {
		return nil, err
	}
	if params != nil {
		kept := 0
		for _, w := range q.Where {
			kept += len(w.Conditions())
		}
		if dropped := countLeaves(params.Where) - kept; dropped > 0 {
			s.logger.Debug("Filter clauses dropped",
				zap.String("entity", e.Name),
				zap.Int("dropped", dropped),
			)
		}
	}
	return q, nil
}

// countLeaves counts attribute and free-text clauses, descending into OR groups.
func countLeaves(clauses []filter.WhereClause) int {
	n := 0
	for _, cl := range clauses {
		switch {
		case cl.IsEmpty():
		case cl.Type == filter.OpOr:
			for _, branch := range cl.Branches() {
				n += countLeaves(branch)
			}
		default:
			n++
		}
	}
	return n
}

// List returns one page of records.
func (s *ListService) List(ctx context.Context, entity string, params *filter.SearchParams) (*pagination.Paginated[repository.Record], error) {
	e, err := s.Entity(entity)
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = &filter.SearchParams{}
	}
	q, err := s.Compile(e, params)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Compiled search",
		zap.String("entity", e.Name),
		zap.Int("alternatives", len(q.Where)),
		zap.Intp("take", q.Take),
		zap.Intp("skip", q.Skip),
	)

	finder := pagination.FinderFunc[repository.Record](func(ctx context.Context, q *filter.QueryDescriptor) ([]repository.Record, int, error) {
		return s.repo.FindAndCount(ctx, e, q)
	})
	page, err := pagination.Paginate[repository.Record](ctx, finder, params.Page, params.PerPage, q, s.perPage)
	if err != nil {
		s.logger.Warn("List query failed", zap.String("entity", e.Name), zap.Error(err))
		return nil, err
	}
	return page, nil
}

// One returns a single record. Any page or perPage in params is ignored.
func (s *ListService) One(ctx context.Context, entity string, params *filter.SearchParams) (repository.Record, error) {
	e, err := s.Entity(entity)
	if err != nil {
		return nil, err
	}
	single := filter.SearchParams{}
	if params != nil {
		single = *params
	}
	single.Page, single.PerPage = nil, nil

	q, err := s.Compile(e, &single)
	if err != nil {
		return nil, err
	}
	rec, err := s.repo.FindOne(ctx, e, q)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("Find one failed", zap.String("entity", e.Name), zap.Error(err))
		}
		return nil, err
	}
	return rec, nil
}
