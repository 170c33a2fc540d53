package httpapi

import (
	"context"
	"errors"
	"net/http"

	"retail-backoffice/internal/domain"
	"retail-backoffice/internal/repository"

	"go.uber.org/zap"
)

// HeaderAccessID carries the caller's access record ID.
const HeaderAccessID = "X-Access-ID"

// AccessLoader loads the permission holder of a request.
type AccessLoader interface {
	Get(ctx context.Context, id string) (*domain.Access, error)
}

// resolveActor loads the caller or writes the error response and returns nil.
func resolveActor(w http.ResponseWriter, r *http.Request, loader AccessLoader, logger *zap.Logger) *domain.Access {
	id := r.Header.Get(HeaderAccessID)
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, Fail("missing "+HeaderAccessID))
		return nil
	}
	actor, err := loader.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusUnauthorized, Fail("unknown access"))
			return nil
		}
		logger.Error("Failed to load access", zap.String("access_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to load access"))
		return nil
	}
	return actor
}
