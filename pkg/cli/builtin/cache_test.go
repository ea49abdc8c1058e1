package builtin

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/openzim/cmsctl/pkg/cache"
	"github.com/openzim/cmsctl/pkg/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withCache(t *testing.T, env *testEnv) *cache.Store {
	t.Helper()
	store, err := cache.NewWithDir(filepath.Join(t.TempDir(), "responses"), time.Hour)
	require.NoError(t, err)
	env.Cache = store
	return store
}

func TestWarehousePathsList_Cached(t *testing.T) {
	env := newTestEnv(t, withFormat("json"))
	store := withCache(t, env)

	require.NoError(t, env.run(t, NewWarehousePathsCommand(env.Env), "list"))

	var cached []resources.WarehousePath
	require.NoError(t, store.Load(env.backend.URL+"/v1/warehouse-paths", &cached))
	assert.Len(t, cached, 2)

	require.NoError(t, store.Save(env.backend.URL+"/v1/warehouse-paths", cached[:1]))

	env.stdout.Reset()
	require.NoError(t, env.run(t, NewWarehousePathsCommand(env.Env), "list"))
	var paths []resources.WarehousePath
	env.decodeJSON(t, &paths)
	assert.Len(t, paths, 1)

	env.stdout.Reset()
	require.NoError(t, env.run(t, NewWarehousePathsCommand(env.Env), "list", "--refresh"))
	env.decodeJSON(t, &paths)
	assert.Len(t, paths, 2)
}

func TestCacheCommands(t *testing.T) {
	env := newTestEnv(t, withFormat("json"))
	store := withCache(t, env)
	require.NoError(t, store.Save("a", []string{"x"}))
	require.NoError(t, store.Save("b", []string{"y"}))

	require.NoError(t, env.run(t, NewCacheCommand(env.Env), "info"))
	var stats cache.Stats
	env.decodeJSON(t, &stats)
	assert.Equal(t, 2, stats.Entries)
	assert.Zero(t, stats.Expired)
	assert.Equal(t, store.Dir(), stats.Dir)

	require.NoError(t, env.run(t, NewCacheCommand(env.Env), "clear", "--expired"))
	after, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, after.Entries)

	require.NoError(t, env.run(t, NewCacheCommand(env.Env), "clear"))
	after, err = store.Stats()
	require.NoError(t, err)
	assert.Zero(t, after.Entries)
}
