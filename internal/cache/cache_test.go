package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s BlobStore) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, KeySnapshot)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, KeySnapshot, []byte("v1")))
	require.NoError(t, s.Put(ctx, KeySnapshot, []byte("v2")))
	got, err := s.Get(ctx, KeySnapshot)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, s.Delete(ctx, KeySnapshot))
	require.NoError(t, s.Delete(ctx, KeySnapshot))
	_, err = s.Get(ctx, KeySnapshot)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")
	d, err := NewDir(root)
	require.NoError(t, err)
	exerciseStore(t, d)

	require.NoError(t, d.Put(context.Background(), KeySyncVersion, []byte("abc")))
	info, err := os.Stat(filepath.Join(root, KeySyncVersion))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestDirRejectsPathKeys(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)
	require.Error(t, d.Put(context.Background(), "../escape", []byte("x")))
	_, err = d.Get(context.Background(), "a/b")
	require.Error(t, err)
}

func TestRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	r, err := NewRedis(RedisConfig{Addr: srv.Addr(), Prefix: "moneysync-test:"})
	require.NoError(t, err)
	defer r.Close()
	exerciseStore(t, r)

	ctx := context.Background()
	require.NoError(t, r.Put(ctx, KeySyncVersion, []byte("v7")))
	raw, err := srv.Get("moneysync-test:" + KeySyncVersion)
	require.NoError(t, err)
	assert.Equal(t, "v7", raw, "values live under the key prefix")
}

func TestRedisDefaultPrefix(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	r := NewRedisWithClient(client, "")
	defer r.Close()

	require.NoError(t, r.Put(context.Background(), KeySnapshot, []byte{0, 1, 2}))
	assert.True(t, srv.Exists("moneysync:"+KeySnapshot))
	got, err := r.Get(context.Background(), KeySnapshot)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, got, "binary values survive")
}

func TestRedisUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()
	_, err := NewRedis(RedisConfig{Addr: addr})
	require.Error(t, err)
}

func TestRedisServerErrors(t *testing.T) {
	srv := miniredis.RunT(t)
	r, err := NewRedis(RedisConfig{Addr: srv.Addr()})
	require.NoError(t, err)
	defer r.Close()

	srv.SetError("LOADING server is loading")
	_, err = r.Get(context.Background(), KeySyncVersion)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	require.Error(t, r.Put(context.Background(), KeySyncVersion, []byte("x")))
}
