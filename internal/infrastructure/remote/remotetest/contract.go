// Package remotetest pruebas de contrato que todo backend de remote.Tree debe cumplir.
package remotetest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hkd-sync/internal/domain"
	"github.com/jhoicas/hkd-sync/internal/infrastructure/remote"
)

// Factory devuelve un árbol vacío y alcanzable; se llama una vez por subtest.
type Factory func(t *testing.T) remote.Tree

// RunTreeContract ejecuta el contrato completo contra los árboles que produce newTree.
func RunTreeContract(t *testing.T, newTree Factory) {
	t.Run("GetInexistenteEsNotFound", func(t *testing.T) {
		tree := newTree(t)
		_, err := tree.Get(context.Background(), "units/u1/products/p1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("SetYGet", func(t *testing.T) {
		tree := newTree(t)
		ctx := context.Background()
		set(t, tree, "units/u1/products/p1", `{"name":"Phở bò","price":"45000"}`)

		got, err := tree.Get(ctx, "units/u1/products/p1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"Phở bò","price":"45000"}`, string(got))
	})

	t.Run("SetReemplaza", func(t *testing.T) {
		tree := newTree(t)
		set(t, tree, "units/u1/info", `{"name":"v1"}`)
		set(t, tree, "units/u1/info", `{"name":"v2"}`)

		got, err := tree.Get(context.Background(), "units/u1/info")
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"v2"}`, string(got))
	})

	t.Run("SetIdempotente", func(t *testing.T) {
		tree := newTree(t)
		for range 3 {
			set(t, tree, "units/u1/invoices/i1", `{"totalQuantity":2}`)
		}
		nodes := list(t, tree, "units/u1")
		require.Len(t, nodes, 1, "repetir la escritura no duplica la hoja")
		assert.JSONEq(t, `{"totalQuantity":2}`, string(nodes[0].Value))
	})

	t.Run("SetNilBorra", func(t *testing.T) {
		tree := newTree(t)
		ctx := context.Background()
		set(t, tree, "units/u1/products/p1", `{"name":"A"}`)
		set(t, tree, "units/u1/products/p2", `{"name":"B"}`)

		require.NoError(t, tree.Set(ctx, "units/u1/products/p1", nil))
		_, err := tree.Get(ctx, "units/u1/products/p1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, []string{"units/u1/products/p2"}, paths(list(t, tree, "units/u1")))

		require.NoError(t, tree.Set(ctx, "units/u1/products/p1", nil), "borrar lo inexistente no es error")
	})

	t.Run("ListOrdenadoPorRuta", func(t *testing.T) {
		tree := newTree(t)
		for _, p := range []string{
			"units/u1/products/p2",
			"units/u1/info",
			"units/u1/categories/c1",
			"units/u1/products/p1",
			"units/u1/invoices/i1",
		} {
			set(t, tree, p, `{"x":1}`)
		}
		assert.Equal(t, []string{
			"units/u1/categories/c1",
			"units/u1/info",
			"units/u1/invoices/i1",
			"units/u1/products/p1",
			"units/u1/products/p2",
		}, paths(list(t, tree, "units/u1")))
	})

	t.Run("ListAisladoPorPrefijo", func(t *testing.T) {
		tree := newTree(t)
		set(t, tree, "units/u1/info", `{"name":"u1"}`)
		set(t, tree, "units/u10/info", `{"name":"u10"}`)
		set(t, tree, "units/u1-b/info", `{"name":"u1-b"}`)

		assert.Equal(t, []string{"units/u1/info"}, paths(list(t, tree, "units/u1")))
		assert.Equal(t, []string{"units/u1/info"}, paths(list(t, tree, "/units/u1/")), "las barras de los extremos no cambian el prefijo")
		assert.Equal(t, []string{"units/u10/info"}, paths(list(t, tree, "units/u10")))
		assert.Equal(t, []string{"units/u1-b/info", "units/u1/info", "units/u10/info"}, paths(list(t, tree, "units")))
	})

	t.Run("ListIncluyeLaHojaDelPrefijo", func(t *testing.T) {
		tree := newTree(t)
		set(t, tree, "units/u1/info", `{"name":"u1"}`)
		assert.Equal(t, []string{"units/u1/info"}, paths(list(t, tree, "units/u1/info")))
	})

	t.Run("ListSinHojasEsVacio", func(t *testing.T) {
		tree := newTree(t)
		assert.Empty(t, list(t, tree, "units/nadie"))
	})

	t.Run("Ping", func(t *testing.T) {
		tree := newTree(t)
		assert.NoError(t, tree.Ping(context.Background()))
	})
}

func set(t *testing.T, tree remote.Tree, path, value string) {
	t.Helper()
	require.NoError(t, tree.Set(context.Background(), path, json.RawMessage(value)), "set %s", path)
}

func list(t *testing.T, tree remote.Tree, prefix string) []remote.Node {
	t.Helper()
	nodes, err := tree.List(context.Background(), prefix)
	require.NoError(t, err, "list %s", prefix)
	return nodes
}

func paths(nodes []remote.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Path)
	}
	return out
}
