package service

import (
	"context"
	"errors"
	"time"

	commonredis "retail-backoffice/common/redis"
	"retail-backoffice/internal/ability"
	"retail-backoffice/internal/domain"
	"retail-backoffice/internal/repository"
	"retail-backoffice/internal/store"

	"go.uber.org/zap"
)

// AccessEvent is published to the access event stream on every change.
type AccessEvent struct {
	Type     string    `json:"type"`
	AccessID string    `json:"access_id"`
	TenantID string    `json:"tenant_id,omitempty"`
	At       time.Time `json:"at"`
}

const (
	EventAccessCreated = "access.created"
	EventAccessUpdated = "access.updated"
	EventAccessDeleted = "access.deleted"
)

// AccessService loads permission holders through the cache and keeps the
// cache and event stream in step with writes. cache and events may be nil.
type AccessService struct {
	repo   repository.AccessRepository
	cache  *store.AccessCache
	events *commonredis.Client
	stream string
	logger *zap.Logger
}

func NewAccessService(repo repository.AccessRepository, cache *store.AccessCache, events *commonredis.Client, stream string, logger *zap.Logger) *AccessService {
	return &AccessService{repo: repo, cache: cache, events: events, stream: stream, logger: logger}
}

// Get returns a freshly loaded access; its rule set is built on first use.
func (s *AccessService) Get(ctx context.Context, id string) (*domain.Access, error) {
	if s.cache != nil {
		a, err := s.cache.Get(ctx, id)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, store.ErrMiss) {
			s.logger.Warn("Access cache read failed", zap.String("access_id", id), zap.Error(err))
		}
	}

	a, err := s.repo.GetAccess(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, a); err != nil {
			s.logger.Warn("Access cache write failed", zap.String("access_id", id), zap.Error(err))
		}
	}
	return a, nil
}

func (s *AccessService) List(ctx context.Context, tenantID string) ([]*domain.Access, error) {
	return s.repo.ListAccesses(ctx, tenantID)
}

func (s *AccessService) Create(ctx context.Context, a *domain.Access) (string, error) {
	id, err := s.repo.CreateAccess(ctx, a)
	if err != nil {
		return "", err
	}
	s.publish(ctx, EventAccessCreated, id, a.TenantID)
	return id, nil
}

// UpdatePermissions stores new matrices, drops the cached copy and
// announces the change.
func (s *AccessService) UpdatePermissions(ctx context.Context, id string, perms ability.PermissionMatrix, fieldPerms ability.FieldPermissionMatrix, admin bool) error {
	if err := s.repo.UpdatePermissions(ctx, id, perms, fieldPerms, admin); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.publish(ctx, EventAccessUpdated, id, "")
	return nil
}

func (s *AccessService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteAccess(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.publish(ctx, EventAccessDeleted, id, "")
	return nil
}

func (s *AccessService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("Access cache invalidation failed", zap.String("access_id", id), zap.Error(err))
	}
}

func (s *AccessService) publish(ctx context.Context, eventType, id, tenantID string) {
	if s.events == nil || s.stream == "" {
		return
	}
	event := AccessEvent{Type: eventType, AccessID: id, TenantID: tenantID, At: time.Now().UTC()}
	if _, err := commonredis.PublishEvent(ctx, s.events, s.stream, eventType, event, commonredis.DefaultStreamMaxLen); err != nil {
		s.logger.Warn("Failed to publish access event",
			zap.String("type", eventType),
			zap.String("access_id", id),
			zap.Error(err),
		)
	}
}
