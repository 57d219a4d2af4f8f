package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jbweber/homelab/ploi/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDSN returns a unique in-memory SQLite DSN for each test.
// This ensures tests do not share state and remain independent.
func testDSN(testID string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", testID)
}

func newTestDatastore(t *testing.T) *Datastore {
	t.Helper()
	ds, err := New(context.Background(), testDSN(strings.ReplaceAll(t.Name(), "/", "_")))
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	return ds
}

// stores runs a subtest against every Store implementation.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestDatastore(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore(nil)) })
}

func TestNew_CreatesSchema(t *testing.T) {
	ds := newTestDatastore(t)

	var count int
	err := ds.DB.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='cache_entries'").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_GetMissing(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		v, ok, err := s.Get(context.Background(), "nope")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)
	})
}

func TestStore_SetGet(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "resource-list", "[]"))

		v, ok, err := s.Get(ctx, "resource-list")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "[]", v)

		// overwrite is visible to the next read
		require.NoError(t, s.Set(ctx, "resource-list", `[{"id":1}]`))
		v, _, err = s.Get(ctx, "resource-list")
		require.NoError(t, err)
		assert.Equal(t, `[{"id":1}]`, v)
	})
}

func TestStore_GetAll(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "resource-list", "a"))
		require.NoError(t, s.Set(ctx, "resource-sites-1", "b"))
		require.NoError(t, s.Set(ctx, "resource-sites-2", "c"))

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"resource-list":    "a",
			"resource-sites-1": "b",
			"resource-sites-2": "c",
		}, all)

		// the returned map is a copy
		delete(all, "resource-list")
		_, ok, err := s.Get(ctx, "resource-list")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestStore_DeleteAndClear(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "a", "1"))
		require.NoError(t, s.Set(ctx, "b", "2"))

		require.NoError(t, s.Delete(ctx, "a"))
		require.NoError(t, s.Delete(ctx, "missing"))
		_, ok, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Clear(ctx))
		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestStore_RoundTripServerList(t *testing.T) {
	servers := []domain.Server{
		{ID: 1, Name: "alpha", IPAddress: "10.0.0.1", SSHPort: 22, OPcache: true, CreatedAt: "2021-01-01 10:00:00"},
		{ID: 2, Name: "Bravo", IPAddress: "10.0.0.2", SitesCount: 4, StatusID: 2, Status: "active"},
	}
	sites := []domain.Site{
		{ID: 10, Domain: "a.test", Attributes: map[string]any{"healthUrl": "https://a.test/up", "testDomain": nil}},
		{ID: 11, Domain: "b.test", HasRepository: true},
	}

	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		raw, err := json.Marshal(servers)
		require.NoError(t, err)
		require.NoError(t, s.Set(ctx, "resource-list", string(raw)))

		rawSites, err := json.Marshal(sites)
		require.NoError(t, err)
		require.NoError(t, s.Set(ctx, "resource-sites-1", string(rawSites)))

		v, ok, err := s.Get(ctx, "resource-list")
		require.NoError(t, err)
		require.True(t, ok)
		var gotServers []domain.Server
		require.NoError(t, json.Unmarshal([]byte(v), &gotServers))
		assert.Equal(t, servers, gotServers)

		v, ok, err = s.Get(ctx, "resource-sites-1")
		require.NoError(t, err)
		require.True(t, ok)
		var gotSites []domain.Site
		require.NoError(t, json.Unmarshal([]byte(v), &gotSites))
		assert.Equal(t, sites, gotSites)
	})
}

func TestDatastore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	ds, err := New(ctx, path)
	require.NoError(t, err)
	require.NoError(t, ds.Set(ctx, "resource-list", `[{"id":7}]`))
	require.NoError(t, ds.Close())

	ds, err = New(ctx, path)
	require.NoError(t, err)
	defer ds.Close()

	v, ok, err := ds.Get(ctx, "resource-list")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":7}]`, v)
}

func TestDatastore_ConcurrentWrites(t *testing.T) {
	ds := newTestDatastore(t)
	// shared-cache memory databases lock per table; serialize like the CLI does
	ds.DB.SetMaxOpenConns(1)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, ds.Set(ctx, fmt.Sprintf("resource-sites-%d", i), "[]"))
		}(i)
	}
	wg.Wait()

	all, err := ds.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestPreparedStatementCache(t *testing.T) {
	ds := newTestDatastore(t)
	ctx := context.Background()

	c := NewPreparedStatementCache(ds.DB)
	s1, err := c.Get(ctx, getQuery)
	require.NoError(t, err)
	s2, err := c.Get(ctx, getQuery)
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, c.Size())

	_, err = c.Get(ctx, "SELECT FROM nowhere")
	assert.Error(t, err)

	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Size())
}
