package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hkd-sync/internal/domain"
	"github.com/jhoicas/hkd-sync/internal/domain/entity"
	"github.com/jhoicas/hkd-sync/internal/infrastructure/remote"
	"github.com/jhoicas/hkd-sync/pkg/phone"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

func newClient(t *testing.T, connected bool) (*remote.Client, *remote.MemoryTree, *remote.Monitor) {
	t.Helper()
	tree := remote.NewMemoryTree()
	mon := remote.NewMonitor(connected, nil)
	return remote.NewClient(tree, mon, phone.NewNormalizer("VN"), 0, nil), tree, mon
}

func seedUnit(t *testing.T, tree *remote.MemoryTree, u entity.BusinessUnit) {
	t.Helper()
	require.NoError(t, tree.Put(entity.PathFor(entity.CollectionUnits, u.ID, u.ID), u))
}

// ──────────────────────────────────────────────────────────────────────────────
// ReadUnit
// ──────────────────────────────────────────────────────────────────────────────

func TestReadUnit_SubarbolCompleto(t *testing.T) {
	c, tree, _ := newClient(t, true)
	seedUnit(t, tree, entity.BusinessUnit{ID: "u1", Phone: "0900000001", Role: entity.RoleOperator, Name: "Quán Phở"})
	require.NoError(t, tree.Put("units/u1/products/p1", map[string]any{"name": "Phở bò", "price": "45000"}))
	require.NoError(t, tree.Put("units/u1/categories/c1", map[string]any{"name": "Món nước"}))
	require.NoError(t, tree.Put("units/u1/invoices/i1", map[string]any{"totalQuantity": 2, "totalPrice": "90000"}))
	require.NoError(t, tree.Put("units/u2/products/p9", map[string]any{"name": "otra unidad"}))
	require.NoError(t, tree.Put("units/u10/info", map[string]any{"name": "prefijo parecido"}))

	snap, err := c.ReadUnit(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "u1", snap.Info.ID)
	assert.Equal(t, "Quán Phở", snap.Info.Name)
	require.Len(t, snap.Products, 1)
	assert.Equal(t, "p1", snap.Products[0].ID)
	assert.Equal(t, "u1", snap.Products[0].BusinessUnitID, "el dueño se toma de la ruta")
	assert.True(t, decimal.NewFromInt(45000).Equal(snap.Products[0].Price))
	require.Len(t, snap.Categories, 1)
	require.Len(t, snap.Invoices, 1)
	assert.Equal(t, 2, snap.Invoices[0].TotalQuantity)
}

func TestReadUnit_SinInfo_NotFound(t *testing.T) {
	c, _, _ := newClient(t, true)

	_, err := c.ReadUnit(context.Background(), "fantasma")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReadUnit_Desconectado_RemoteUnavailable(t *testing.T) {
	c, tree, _ := newClient(t, false)
	seedUnit(t, tree, entity.BusinessUnit{ID: "u1", Role: entity.RoleOperator})

	_, err := c.ReadUnit(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
}

func TestReadUnit_CaidaDelBackendMarcaDesconectado(t *testing.T) {
	c, tree, mon := newClient(t, true)
	tree.SetReachable(false)

	_, err := c.ReadUnit(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	assert.False(t, mon.Connected(), "un fallo de transporte debe marcar el remoto como caído")
}

// ──────────────────────────────────────────────────────────────────────────────
// WriteField
// ──────────────────────────────────────────────────────────────────────────────

func TestWriteField_EscribeYBorra(t *testing.T) {
	ctx := context.Background()
	c, tree, _ := newClient(t, true)

	require.NoError(t, c.WriteField(ctx, "units/u1/products/p1", json.RawMessage(`{"name":"Trà"}`)))
	got, err := tree.Get(ctx, "units/u1/products/p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Trà"}`, string(got))

	require.NoError(t, c.WriteField(ctx, "units/u1/products/p1", nil))
	_, err = tree.Get(ctx, "units/u1/products/p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWriteField_RutaInvalida(t *testing.T) {
	c, _, _ := newClient(t, true)

	err := c.WriteField(context.Background(), "units/u1", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWriteField_DesconectadoNoEscribe(t *testing.T) {
	c, tree, _ := newClient(t, false)

	err := c.WriteField(context.Background(), "units/u1/products/p1", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	assert.Empty(t, tree.Writes(), "el cliente remoto nunca encola")
}

func TestWriteField_RechazoNoEsCaida(t *testing.T) {
	c, tree, mon := newClient(t, true)
	tree.FailWrites("units/u1/products/p1", errors.New("permission denied"))

	err := c.WriteField(context.Background(), "units/u1/products/p1", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRemoteUnavailable)
	assert.True(t, mon.Connected())
}

// ──────────────────────────────────────────────────────────────────────────────
// FindUnitByCredential
// ──────────────────────────────────────────────────────────────────────────────

func TestFindUnitByCredential_PrimeraCoincidenciaGana(t *testing.T) {
	c, tree, _ := newClient(t, true)
	seedUnit(t, tree, entity.BusinessUnit{ID: "a-admin", Phone: "0900000002", Secret: "s2", Role: entity.RoleAdmin})
	seedUnit(t, tree, entity.BusinessUnit{ID: "b-first", Phone: "+84900000002", Secret: "s2", Role: entity.RoleOperator})
	seedUnit(t, tree, entity.BusinessUnit{ID: "c-dup", Phone: "0900000002", Secret: "s2", Role: entity.RoleOperator})

	u, err := c.FindUnitByCredential(context.Background(), "0900000002", "s2")
	require.NoError(t, err)
	assert.Equal(t, "b-first", u.ID, "gana la primera unidad operator en orden de ruta")
}

func TestFindUnitByCredential_SecretIncorrecto_NotFound(t *testing.T) {
	c, tree, _ := newClient(t, true)
	seedUnit(t, tree, entity.BusinessUnit{ID: "u1", Phone: "0900000002", Secret: "s2", Role: entity.RoleOperator})

	_, err := c.FindUnitByCredential(context.Background(), "0900000002", "otra")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
