package cli_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hkd-sync/internal/application/dto"
	"github.com/jhoicas/hkd-sync/internal/domain/entity"
	"github.com/jhoicas/hkd-sync/internal/interfaces/cli"
	"github.com/jhoicas/hkd-sync/pkg/config"
	"github.com/jhoicas/hkd-sync/pkg/logger"
	"github.com/jhoicas/hkd-sync/pkg/phone"
)

const fixtureYAML = `
units:
  - id: unit-pho
    phone: "0900 000 001"
    name: Phở Hà Nội
    address: 12 Hàng Bông
    secret: "1234"
    categories:
      - id: cat-mon
        name: Món chính
    products:
      - id: p-bo
        category: cat-mon
        name: Phở bò
        price: "45000"
        unit: tô
      - id: p-tra
        name: Trà đá
        price: "5000"
`

func TestParseFixture(t *testing.T) {
	f, err := cli.ParseFixture(strings.NewReader(fixtureYAML))
	require.NoError(t, err)
	require.Len(t, f.Units, 1)
	assert.Len(t, f.Units[0].Products, 2)

	recs := f.Records(phone.NewNormalizer("VN"), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Len(t, recs, 4, "unidad, categoría y dos productos")

	u, ok := recs[0].(entity.BusinessUnit)
	require.True(t, ok)
	assert.Equal(t, "+84900000001", u.Phone, "el teléfono se guarda en E.164")
	assert.Equal(t, entity.RoleOperator, u.Role)

	p, ok := recs[2].(entity.Product)
	require.True(t, ok)
	assert.Equal(t, "45000", p.Price.String())
	assert.Equal(t, "unit-pho", p.BusinessUnitID)
}

func TestParseFixture_Errores(t *testing.T) {
	cases := map[string]string{
		"campo desconocido":     "units:\n  - id: u\n    phone: '1'\n    secret: s\n    color: rojo\n",
		"sin secreto":           "units:\n  - id: u\n    phone: '1'\n",
		"categoría inexistente": "units:\n  - id: u\n    phone: '1'\n    secret: s\n    products:\n      - id: p\n        category: nope\n        price: '1'\n",
		"precio inválido":       "units:\n  - id: u\n    phone: '1'\n    secret: s\n    products:\n      - id: p\n        price: gratis\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := cli.ParseFixture(strings.NewReader(raw))
			assert.Error(t, err)
		})
	}
}

// TestSeed_LoginRemotoYDescarga siembra el árbol en memoria y entra como operador:
// el login va al remoto y la descarga deja el menú en la copia local.
func TestSeed_LoginRemotoYDescarga(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "test")
	t.Setenv("LOCAL_DB_PATH", filepath.Join(t.TempDir(), "terminal.db"))
	cfg, err := config.Load()
	require.NoError(t, err)

	ctx := context.Background()
	a, err := cli.Build(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	f, err := cli.ParseFixture(strings.NewReader(fixtureYAML))
	require.NoError(t, err)
	n, err := cli.Seed(ctx, a.Remote, f.Records(phone.NewNormalizer(cfg.Auth.PhoneRegion), time.Now().UTC()))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	sess, err := a.Resolver.Login(ctx, "+84 900 000 001", "1234")
	require.NoError(t, err)
	assert.Equal(t, "unit-pho", sess.BusinessUnitID)
	require.NoError(t, a.Sync.WaitReady(ctx, sess.BusinessUnitID))

	list, err := a.Catalog.ListProducts(ctx, dto.PageRequest{Query: "pho"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Phở bò", list.Items[0].Name)
	assert.True(t, list.Items[0].Synced)
}
