package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hkd-sync/internal/domain"
	"github.com/jhoicas/hkd-sync/internal/infrastructure/redis"
	"github.com/jhoicas/hkd-sync/internal/infrastructure/remote"
	"github.com/jhoicas/hkd-sync/internal/infrastructure/remote/remotetest"
)

func newMiniTree(t *testing.T) (*redis.Tree, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: srv.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return redis.NewTree(rdb, "hkd-test"), srv
}

func TestTree_Contrato(t *testing.T) {
	remotetest.RunTreeContract(t, func(t *testing.T) remote.Tree {
		tree, _ := newMiniTree(t)
		return tree
	})
}

func TestTree_ClavesBajoPrefijo(t *testing.T) {
	tree, srv := newMiniTree(t)
	ctx := context.Background()
	require.NoError(t, tree.Set(ctx, "units/u1/info", []byte(`{"name":"u1"}`)))

	assert.True(t, srv.Exists("hkd-test:node:units/u1/info"))
	members, err := srv.ZMembers("hkd-test:paths")
	require.NoError(t, err)
	assert.Equal(t, []string{"units/u1/info"}, members)

	require.NoError(t, tree.Set(ctx, "units/u1/info", nil))
	assert.False(t, srv.Exists("hkd-test:node:units/u1/info"))
	nodes, err := tree.List(ctx, "units")
	require.NoError(t, err)
	assert.Empty(t, nodes, "la ruta sale del índice al borrar la hoja")
}

func TestTree_IndiceConHojaHuerfanaSeIgnora(t *testing.T) {
	tree, srv := newMiniTree(t)
	ctx := context.Background()
	require.NoError(t, tree.Set(ctx, "units/u1/products/p1", []byte(`{"name":"A"}`)))
	srv.Del("hkd-test:node:units/u1/products/p1")

	nodes, err := tree.List(ctx, "units/u1")
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestTree_ServidorCaidoEsRemoteUnavailable(t *testing.T) {
	tree, srv := newMiniTree(t)
	ctx := context.Background()
	require.NoError(t, tree.Ping(ctx))

	srv.Close()
	assert.ErrorIs(t, tree.Ping(ctx), domain.ErrRemoteUnavailable)
	assert.ErrorIs(t, tree.Set(ctx, "units/u1/info", []byte(`{}`)), domain.ErrRemoteUnavailable)
}

func TestTree_SinServidor_RemoteUnavailable(t *testing.T) {
	// puerto reservado sin servicio: la conexión falla de inmediato
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	tree := redis.NewTree(rdb, "hkd-test")

	ctx := context.Background()
	require.Error(t, tree.Ping(ctx))
	assert.ErrorIs(t, tree.Ping(ctx), domain.ErrRemoteUnavailable)

	_, err := tree.Get(ctx, "units/u1/info")
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
}
