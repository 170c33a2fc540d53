package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"retail-backoffice/internal/ability"
	"retail-backoffice/internal/domain"
	"retail-backoffice/internal/repository"
	"retail-backoffice/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryAccessRepo is an in-memory AccessRepository counting reads.
type memoryAccessRepo struct {
	items map[string]*domain.Access
	reads int
}

func newMemoryAccessRepo(items ...*domain.Access) *memoryAccessRepo {
	r := &memoryAccessRepo{items: map[string]*domain.Access{}}
	for _, a := range items {
		r.items[a.ID] = a
	}
	return r
}

func (r *memoryAccessRepo) GetAccess(_ context.Context, id string) (*domain.Access, error) {
	r.reads++
	a, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &domain.Access{
		ID: a.ID, TenantID: a.TenantID, Name: a.Name,
		Permissions: a.Permissions, FieldPermissions: a.FieldPermissions, AdminPermission: a.AdminPermission,
	}, nil
}

func (r *memoryAccessRepo) ListAccesses(_ context.Context, tenantID string) ([]*domain.Access, error) {
	var out []*domain.Access
	for _, a := range r.items {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryAccessRepo) CreateAccess(_ context.Context, a *domain.Access) (string, error) {
	if a.ID == "" {
		a.ID = "generated"
	}
	r.items[a.ID] = a
	return a.ID, nil
}

func (r *memoryAccessRepo) UpdatePermissions(_ context.Context, id string, perms ability.PermissionMatrix, fieldPerms ability.FieldPermissionMatrix, admin bool) error {
	a, ok := r.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Permissions, a.FieldPermissions, a.AdminPermission = perms, fieldPerms, admin
	return nil
}

func (r *memoryAccessRepo) DeleteAccess(_ context.Context, id string) error {
	if _, ok := r.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

var _ repository.AccessRepository = (*memoryAccessRepo)(nil)

func setupAccessService(t *testing.T, repo repository.AccessRepository) (*miniredis.Miniredis, *AccessService) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := store.NewAccessCache(store.NewRedisKV(client), time.Minute)
	return mr, NewAccessService(repo, cache, client, "access:events", zap.NewNop())
}

func TestAccessService_GetUsesCache(t *testing.T) {
	repo := newMemoryAccessRepo(&domain.Access{
		ID: "a1", TenantID: "t1", Name: "viewer",
		Permissions: ability.PermissionMatrix{"Order": ability.GrantActions(ability.ActionRead)},
	})
	mr, svc := setupAccessService(t, repo)
	ctx := context.Background()

	a, err := svc.Get(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, a.Can(ability.ActionRead, "Order", ""))
	assert.True(t, mr.Exists("access:cache:a1"))

	_, err = svc.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.reads)
}

func TestAccessService_UpdateInvalidatesAndPublishes(t *testing.T) {
	repo := newMemoryAccessRepo(&domain.Access{ID: "a1", TenantID: "t1", Name: "viewer"})
	mr, svc := setupAccessService(t, repo)
	ctx := context.Background()

	before, err := svc.Get(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, before.Can(ability.ActionEdit, "Order", ""))

	require.NoError(t, svc.UpdatePermissions(ctx, "a1",
		ability.PermissionMatrix{"Order": ability.GrantAll()}, nil, false))
	assert.False(t, mr.Exists("access:cache:a1"))

	after, err := svc.Get(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, after.Can(ability.ActionEdit, "Order", ""))
	assert.Equal(t, 2, repo.reads)

	entries, err := mr.Stream("access:events")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EventAccessUpdated, streamField(entries[0].Values, "type"))
	assert.NotEmpty(t, streamField(entries[0].Values, "ts"))
	var event AccessEvent
	require.NoError(t, json.Unmarshal([]byte(streamField(entries[0].Values, "data")), &event))
	assert.Equal(t, EventAccessUpdated, event.Type)
	assert.Equal(t, "a1", event.AccessID)
}

func TestAccessService_CreateAndDelete(t *testing.T) {
	repo := newMemoryAccessRepo()
	mr, svc := setupAccessService(t, repo)
	ctx := context.Background()

	id, err := svc.Create(ctx, &domain.Access{TenantID: "t1", Name: "stock"})
	require.NoError(t, err)
	assert.Equal(t, "generated", id)

	list, err := svc.List(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, id))
	assert.ErrorIs(t, svc.Delete(ctx, id), repository.ErrNotFound)

	entries, err := mr.Stream("access:events")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestAccessService_WithoutCacheOrEvents(t *testing.T) {
	repo := newMemoryAccessRepo(&domain.Access{ID: "a1", AdminPermission: true})
	svc := NewAccessService(repo, nil, nil, "", zap.NewNop())

	a, err := svc.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, a.Can(ability.ActionDelete, "Sale", ""))
	require.NoError(t, svc.UpdatePermissions(context.Background(), "a1", nil, nil, false))

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

// streamField reads a field from a flat [k1, v1, k2, v2...] stream entry.
func streamField(values []string, key string) string {
	for i := 0; i+1 < len(values); i += 2 {
		if values[i] == key {
			return values[i+1]
		}
	}
	return ""
}
