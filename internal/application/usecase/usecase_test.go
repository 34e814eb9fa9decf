package usecase_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hkd-sync/internal/application/auth"
	"github.com/jhoicas/hkd-sync/internal/application/dto"
	"github.com/jhoicas/hkd-sync/internal/application/usecase"
	"github.com/jhoicas/hkd-sync/internal/domain"
	"github.com/jhoicas/hkd-sync/internal/domain/entity"
	"github.com/jhoicas/hkd-sync/internal/infrastructure/sqlite"
	"github.com/jhoicas/hkd-sync/pkg/phone"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

type syncerSpy struct {
	mu      sync.Mutex
	units   []string
	waited  []string
	pending chan struct{} // si no es nil, WaitReady espera a que se cierre
}

func (s *syncerSpy) WaitReady(ctx context.Context, unitID string) error {
	s.mu.Lock()
	s.waited = append(s.waited, unitID)
	pending := s.pending
	s.mu.Unlock()
	if pending == nil {
		return nil
	}
	select {
	case <-pending:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *syncerSpy) RequestDrain(_ context.Context, unitID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units = append(s.units, unitID)
}

func (s *syncerSpy) requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.units...)
}

type env struct {
	store   *sqlite.EntityStore
	queue   *sqlite.MutationQueue
	syncer  *syncerSpy
	session *auth.SessionContext
	catalog *usecase.CatalogUseCase
	units   *usecase.UnitUseCase
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "hkd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := &env{
		store:   sqlite.NewEntityStore(db),
		queue:   sqlite.NewMutationQueue(db),
		syncer:  &syncerSpy{},
		session: auth.NewSessionContext(),
	}
	now := func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }
	e.catalog = usecase.NewCatalogUseCase(e.store, e.queue, e.syncer, e.session, now)
	e.units = usecase.NewUnitUseCase(e.store, e.queue, e.syncer, e.session, phone.NewNormalizer("VN"), now)
	return e
}

// loginAs crea la unidad localmente y abre su sesión.
func (e *env) loginAs(t *testing.T, unitID, role string) {
	t.Helper()
	doc, err := entity.NewDocument(entity.BusinessUnit{ID: unitID, Phone: unitID, Name: unitID, Role: role, Secret: "x"}, true)
	require.NoError(t, err)
	require.NoError(t, e.store.Put(context.Background(), doc))
	e.session.Set(entity.Session{UserID: unitID, BusinessUnitID: unitID, Role: role})
}

func (e *env) saveProduct(t *testing.T, name string, price int64) *dto.ProductResponse {
	t.Helper()
	p, err := e.catalog.SaveProduct(context.Background(), "", "", dto.SaveProductRequest{Name: name, Price: decimal.NewFromInt(price)})
	require.NoError(t, err)
	return p
}

// ──────────────────────────────────────────────────────────────────────────────
// Productos y categorías
// ──────────────────────────────────────────────────────────────────────────────

func TestSaveProduct_LocalSinSincronizarYEncolado(t *testing.T) {
	e := newEnv(t)
	e.loginAs(t, "u1", entity.RoleOperator)

	p := e.saveProduct(t, "Phở bò", 45000)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "u1", p.BusinessUnitID)
	assert.False(t, p.Synced)

	doc, err := e.store.Get(context.Background(), entity.CollectionProducts, p.ID)
	require.NoError(t, err)
	assert.False(t, doc.Synced)

	batch, err := e.queue.PeekBatch(context.Background(), "u1", 10, time.Now())
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, entity.OpPut, batch[0].Op)
	assert.Equal(t, p.ID, batch[0].EntityID)
	assert.Equal(t, []string{"u1"}, e.syncer.requested())
}

func TestSaveProduct_EdicionesSeFusionanEnLaCola(t *testing.T) {
	e := newEnv(t)
	e.loginAs(t, "u1", entity.RoleOperator)
	p := e.saveProduct(t, "Bún", 30000)

	for _, name := range []string{"Bún bò", "Bún bò Huế"} {
		_, err := e.catalog.SaveProduct(context.Background(), "", p.ID, dto.SaveProductRequest{Name: name, Price: decimal.NewFromInt(40000)})
		require.NoError(t, err)
	}

	size, err := e.queue.SizeOf(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, size, "las ediciones del mismo producto ocupan una sola entrada")
}

func TestSaveProduct_Validaciones(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.catalog.SaveProduct(ctx, "", "", dto.SaveProductRequest{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "sin sesión")

	e.session.Set(entity.Session{BusinessUnitID: "fantasma", Role: entity.RoleOperator})
	_, err = e.catalog.SaveProduct(ctx, "", "", dto.SaveProductRequest{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "la unidad debe existir localmente")

	e.loginAs(t, "u1", entity.RoleOperator)
	_, err = e.catalog.SaveProduct(ctx, "", "", dto.SaveProductRequest{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = e.catalog.SaveProduct(ctx, "", "", dto.SaveProductRequest{Name: "x", Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = e.catalog.SaveProduct(ctx, "", "", dto.SaveProductRequest{Name: "x", CategoryID: "no-existe"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = e.catalog.SaveProduct(ctx, "u2", "", dto.SaveProductRequest{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrForbidden, "un operador no escribe en otra unidad")
}

func TestSaveProduct_ConCategoria(t *testing.T) {
	e := newEnv(t)
	e.loginAs(t, "u1", entity.RoleOperator)
	cat, err := e.catalog.SaveCategory(context.Background(), "", "", dto.SaveCategoryRequest{Name: "Đồ uống"})
	require.NoError(t, err)

	p, err := e.catalog.SaveProduct(context.Background(), "", "", dto.SaveProductRequest{
		Name: "Cà phê", CategoryID: cat.ID, Price: decimal.NewFromInt(20000),
	})
	require.NoError(t, err)
	assert.Equal(t, cat.ID, p.CategoryID)

	cats, err := e.catalog.ListCategories(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, cats.Items, 1)
	assert.Equal(t, "Đồ uống", cats.Items[0].Name)
}

func TestListProducts_BusquedaSinTildesYPaginada(t *testing.T) {
	e := newEnv(t)
	e.loginAs(t, "u1", entity.RoleOperator)
	e.saveProduct(t, "Phở gà", 40000)
	e.saveProduct(t, "Cà phê sữa", 25000)
	e.saveProduct(t, "Phở bò", 45000)

	res, err := e.catalog.ListProducts(context.Background(), dto.PageRequest{Query: "pho"})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Phở bò", res.Items[0].Name, "orden alfabético")
	assert.Equal(t, "Phở gà", res.Items[1].Name)

	res, err = e.catalog.ListProducts(context.Background(), dto.PageRequest{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 3, res.Page.Total)
	assert.Equal(t, "Phở bò", res.Items[0].Name)
}

func TestListProducts_EsperaElPullEnCurso(t *testing.T) {
	e := newEnv(t)
	e.loginAs(t, "u1", entity.RoleOperator)
	e.syncer.pending = make(chan struct{})

	got := make(chan *dto.ProductListResponse)
	go func() {
		resp, err := e.catalog.ListProducts(context.Background(), dto.PageRequest{})
		assert.NoError(t, err)
		got <- resp
	}()

	// Llega el producto mientras el pull sigue abierto.
	doc, err := entity.NewDocument(entity.Product{ID: "p1", BusinessUnitID: "u1", Name: "Chả giò", Price: decimal.NewFromInt(20000)}, true)
	require.NoError(t, err)
	require.NoError(t, e.store.Put(context.Background(), doc))
	close(e.syncer.pending)

	resp := <-got
	require.Len(t, resp.Items, 1, "la lectura ve lo que trajo el pull")
	assert.Equal(t, "Chả giò", resp.Items[0].Name)
}

func TestListProducts_CancelacionDuranteLaEspera(t *testing.T) {
	e := newEnv(t)
	e.loginAs(t, "u1", entity.RoleOperator)
	e.syncer.pending = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.catalog.ListProducts(ctx, dto.PageRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeleteProduct_EncolaBorrado(t *testing.T) {
	e := newEnv(t)
	e.loginAs(t, "u1", entity.RoleOperator)
	p := e.saveProduct(t, "Xôi", 15000)

	require.NoError(t, e.catalog.DeleteProduct(context.Background(), "", p.ID))

	_, err := e.store.Get(context.Background(), entity.CollectionProducts, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	batch, err := e.queue.PeekBatch(context.Background(), "u1", 10, time.Now())
	require.NoError(t, err)
	require.Len(t, batch, 1, "el borrado reemplaza al put pendiente")
	assert.Equal(t, entity.OpDelete, batch[0].Op)
	assert.Nil(t, batch[0].Payload)

	err = e.catalog.DeleteProduct(context.Background(), "", p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetProduct_DeOtraUnidadEsNotFound(t *testing.T) {
	e := newEnv(t)
	e.loginAs(t, "u2", entity.RoleOperator)
	p := e.saveProduct(t, "Chè", 12000)

	e.loginAs(t, "admin", entity.RoleAdmin)
	_, err := e.catalog.GetProduct(context.Background(), "u9", p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := e.catalog.GetProduct(context.Background(), "u2", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chè", got.Name)
}

// ──────────────────────────────────────────────────────────────────────────────
// Facturas
// ──────────────────────────────────────────────────────────────────────────────

func TestRecordInvoice_CalculaTotalesDesdeProductosLocales(t *testing.T) {
	e := newEnv(t)
	e.loginAs(t, "u1", entity.RoleOperator)
	pho := e.saveProduct(t, "Phở", 30000)
	tra := e.saveProduct(t, "Trà đá", 15000)

	inv, err := e.catalog.RecordInvoice(context.Background(), "", dto.CreateInvoiceRequest{Items: []dto.InvoiceItemRequest{
		{ProductID: pho.ID, Quantity: 2},
		{ProductID: tra.ID, Quantity: 1},
	}})
	require.NoError(t, err)
	assert.Equal(t, 3, inv.TotalQuantity)
	assert.True(t, decimal.NewFromInt(75000).Equal(inv.TotalPrice), "total = 2*30000 + 15000")
	assert.Equal(t, "Phở", inv.Items[0].Name)
	assert.True(t, decimal.NewFromInt(60000).Equal(inv.Items[0].Subtotal))

	list, err := e.catalog.ListInvoices(context.Background(), dto.PageRequest{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, inv.ID, list.Items[0].ID)
}

func TestRecordInvoice_Validaciones(t *testing.T) {
	e := newEnv(t)
	e.loginAs(t, "u1", entity.RoleOperator)
	p := e.saveProduct(t, "Bánh mì", 20000)

	_, err := e.catalog.RecordInvoice(context.Background(), "", dto.CreateInvoiceRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = e.catalog.RecordInvoice(context.Background(), "", dto.CreateInvoiceRequest{Items: []dto.InvoiceItemRequest{{ProductID: p.ID}}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = e.catalog.RecordInvoice(context.Background(), "", dto.CreateInvoiceRequest{Items: []dto.InvoiceItemRequest{{ProductID: "nada", Quantity: 1}}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ──────────────────────────────────────────────────────────────────────────────
// Unidades
// ──────────────────────────────────────────────────────────────────────────────

func TestRegisterUnit_SoloAdminYTelefonoUnico(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	req := dto.RegisterUnitRequest{Phone: "0912345678", Name: "Quán Bún", Secret: "s"}

	e.loginAs(t, "u1", entity.RoleOperator)
	_, err := e.units.Register(ctx, req)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	e.loginAs(t, "admin", entity.RoleAdmin)
	u, err := e.units.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "+84912345678", u.Phone, "el teléfono se guarda normalizado")
	assert.Equal(t, entity.RoleOperator, u.Role)

	_, err = e.units.Register(ctx, dto.RegisterUnitRequest{Phone: "+84 912 345 678", Name: "Otra", Secret: "s"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	_, err = e.units.Register(ctx, dto.RegisterUnitRequest{Phone: "abc", Name: "Otra", Secret: "s"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	size, err := e.queue.SizeOf(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, size, "la info de la unidad nueva se encola")

	list, err := e.units.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list.Items, 3)
}

func TestListUnits_OperadorSoloVeLaSuya(t *testing.T) {
	e := newEnv(t)
	e.loginAs(t, "u2", entity.RoleOperator)
	e.loginAs(t, "u1", entity.RoleOperator)

	list, err := e.units.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "u1", list.Items[0].ID)
}
