package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"retail-backoffice/common/database"
	"retail-backoffice/internal/ability"
	"retail-backoffice/internal/config"
	"retail-backoffice/internal/domain"
	httpapi "retail-backoffice/internal/http"
	"retail-backoffice/internal/repository"
	"retail-backoffice/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRouter_SQLite(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE branches (id INTEGER PRIMARY KEY, created_at TEXT, updated_at TEXT, code TEXT, name TEXT, address TEXT, active INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO branches (id, code, name, active) VALUES (1, 'LIM', 'Lima Centro', 1)`)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Dialect = "sqlite"
	cfg.Pagination.PerPage = 10
	cfg.Access.EventStream = "access:events"

	registry, err := domain.LoadSchema("")
	require.NoError(t, err)
	cache := store.NewAccessCache(store.NewRedisKV(rdb), time.Minute)

	router, err := newRouter(ctx, cfg, db, registry, rdb, cache, zap.NewNop())
	require.NoError(t, err)

	// newRouter created the accesses table.
	id, err := repository.NewSQLiteAccessRepository(db).CreateAccess(ctx, &domain.Access{
		TenantID:    "t1",
		Name:        "viewer",
		Permissions: ability.PermissionMatrix{"Branch": ability.GrantActions(ability.ActionRead)},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entities/Branch?page=1", nil)
	req.Header.Set(httpapi.HeaderAccessID, id)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Result struct {
			Total int              `json:"total"`
			Data  []map[string]any `json:"data"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Result.Total)
	assert.Equal(t, "LIM", resp.Result.Data[0]["code"])
	assert.True(t, mr.Exists("access:cache:"+id))
}

func TestNewRouter_UnsupportedDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Driver = "oracle"
	_, err := newRouter(context.Background(), cfg, nil, nil, nil, nil, zap.NewNop())
	assert.Error(t, err)
}
