package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"retail-backoffice/internal/ability"
	"retail-backoffice/internal/domain"
	"retail-backoffice/internal/filter"
	"retail-backoffice/internal/metadata"
	"retail-backoffice/internal/pagination"
	"retail-backoffice/internal/repository"
	"retail-backoffice/internal/service"

	"go.uber.org/zap"
)

// RecordLister is the search side of the list service.
type RecordLister interface {
	Entity(name string) (*metadata.Entity, error)
	List(ctx context.Context, entity string, params *filter.SearchParams) (*pagination.Paginated[repository.Record], error)
	One(ctx context.Context, entity string, params *filter.SearchParams) (repository.Record, error)
}

type EntityHandler struct {
	lister   RecordLister
	accesses AccessLoader
	logger   *zap.Logger
}

func NewEntityHandler(lister RecordLister, accesses AccessLoader, logger *zap.Logger) *EntityHandler {
	return &EntityHandler{lister: lister, accesses: accesses, logger: logger}
}

// parseSearchParams reads search_params (JSON) and then lets the individual
// query parameters override it.
func parseSearchParams(q url.Values) (*filter.SearchParams, error) {
	params := &filter.SearchParams{}
	if raw := q.Get("search_params"); raw != "" {
		p, err := filter.ParseSearchParams([]byte(raw))
		if err != nil {
			return nil, err
		}
		params = p
	}

	if v := q.Get("page"); v != "" {
		params.Page = parseIntPtr(v)
	}
	perPage := q.Get("per_page")
	if perPage == "" {
		perPage = q.Get("perPage")
	}
	if perPage != "" {
		params.PerPage = parseIntPtr(perPage)
	}
	if v := q.Get("select"); v != "" {
		params.Select = filter.SplitList(v)
	}
	if v := q.Get("relations"); v != "" {
		params.Relations = filter.SplitList(v)
	}
	if v := q.Get("where"); v != "" {
		where, err := filter.ParseWhere(v)
		if err != nil {
			return nil, err
		}
		params.Where = where
	}
	orderBy := q.Get("order_by")
	if orderBy == "" {
		orderBy = q.Get("orderBy")
	}
	if orderBy != "" {
		params.OrderBy = orderBy
	}
	if v := q.Get("order"); v != "" {
		params.Order = filter.ParseDirection(v)
	}
	return params, nil
}

// authorize checks read on the entity. When the read rule restricts fields,
// every path the request touches must be readable: select, relations, where
// attributes (OR branches included), free-text fields and order. A request
// without select is narrowed to the readable fields.
func (h *EntityHandler) authorize(w http.ResponseWriter, actor *domain.Access, e *metadata.Entity, params *filter.SearchParams) bool {
	allowed := actor.Can(ability.ActionRead, e.Name, "")
	Metrics.ObserveAbility(string(ability.ActionRead), allowed)
	if !allowed {
		writeJSON(w, http.StatusForbidden, Fail("forbidden"))
		return false
	}

	fields, _ := ability.PermittedFields(actor.AbilityRules(), ability.ActionRead, e.Name)
	if len(fields) == 0 {
		return true
	}
	if len(params.Select) == 0 {
		params.Select = append(append([]string{}, fields...), e.PrimaryKeys()...)
	}

	if field, ok := forbiddenPath(actor, e, requestedPaths(e, params)); !ok {
		Metrics.ObserveAbility(string(ability.ActionRead), false)
		writeJSON(w, http.StatusForbidden, Fail(fmt.Sprintf("forbidden field: %s", field)))
		return false
	}
	return true
}

// requestedPaths lists every property path a search reads.
func requestedPaths(e *metadata.Entity, params *filter.SearchParams) []string {
	var paths []string
	paths = append(paths, params.Select...)
	paths = append(paths, params.Relations...)
	paths = append(paths, wherePaths(e, params.Where)...)
	if params.OrderBy != "" {
		paths = append(paths, params.OrderBy)
	}
	return paths
}

func wherePaths(e *metadata.Entity, clauses []filter.WhereClause) []string {
	var paths []string
	for _, cl := range clauses {
		switch {
		case cl.Type == filter.OpOr:
			for _, branch := range cl.Branches() {
				paths = append(paths, wherePaths(e, branch)...)
			}
		case cl.Attribute != "":
			paths = append(paths, cl.Attribute)
		case cl.Type == "" && cl.Value != nil:
			paths = append(paths, e.TextFilterFields...)
		}
	}
	return paths
}

// forbiddenPath returns the first path the actor may not read. Primary keys
// are always returned, so they always pass. A mapped alias passes when
// either the alias or its target is readable.
func forbiddenPath(actor *domain.Access, e *metadata.Entity, paths []string) (string, bool) {
	pks := e.PrimaryKeys()
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" || slices.Contains(pks, path) || actor.Can(ability.ActionRead, e.Name, path) {
			continue
		}
		if mapped, ok := e.MappedFields[path]; ok && actor.Can(ability.ActionRead, e.Name, mapped) {
			continue
		}
		return path, false
	}
	return "", true
}

// prepare runs the shared steps of list and one; nil means a response was written.
func (h *EntityHandler) prepare(w http.ResponseWriter, r *http.Request, entity string) (*metadata.Entity, *filter.SearchParams) {
	e, err := h.lister.Entity(entity)
	if err != nil {
		writeJSON(w, http.StatusNotFound, Fail("unknown entity"))
		return nil, nil
	}
	params, err := parseSearchParams(r.URL.Query())
	if err != nil {
		h.writeError(w, e, err)
		return nil, nil
	}
	actor := resolveActor(w, r, h.accesses, h.logger)
	if actor == nil {
		return nil, nil
	}
	if !h.authorize(w, actor, e, params) {
		return nil, nil
	}
	return e, params
}

// List handles GET /api/v1/entities/{entity}
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request, entity string) {
	e, params := h.prepare(w, r, entity)
	if e == nil {
		return
	}

	export := r.URL.Query().Get("format") == "xlsx"
	kind := "list"
	if export {
		kind = "export"
	}
	Metrics.SearchesCompiled.WithLabelValues(e.Name, kind).Inc()

	page, err := h.lister.List(r.Context(), e.Name, params)
	if err != nil {
		h.writeError(w, e, err)
		return
	}

	if export {
		data, err := GenerateRecordsExport(e.Name, page.Data)
		if err != nil {
			h.logger.Error("Failed to generate export", zap.String("entity", e.Name), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export"))
			return
		}
		filename := fmt.Sprintf("%s_page_%d.xlsx", strings.ToLower(e.Name), page.CurrentPage)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	writeJSON(w, http.StatusOK, Ok(page))
}

// One handles GET /api/v1/entities/{entity}/one
func (h *EntityHandler) One(w http.ResponseWriter, r *http.Request, entity string) {
	e, params := h.prepare(w, r, entity)
	if e == nil {
		return
	}
	Metrics.SearchesCompiled.WithLabelValues(e.Name, "one").Inc()

	rec, err := h.lister.One(r.Context(), e.Name, params)
	if err != nil {
		h.writeError(w, e, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(rec))
}

func (h *EntityHandler) writeError(w http.ResponseWriter, e *metadata.Entity, err error) {
	var malformed *filter.MalformedFilterError
	switch {
	case errors.As(err, &malformed):
		Metrics.MalformedFilters.Inc()
		writeJSON(w, http.StatusBadRequest, Fail(malformed.Error()))
	case errors.Is(err, service.ErrUnknownEntity):
		writeJSON(w, http.StatusNotFound, Fail("unknown entity"))
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Fail("not found"))
	default:
		h.logger.Error("Search failed", zap.String("entity", e.Name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("search failed"))
	}
}
