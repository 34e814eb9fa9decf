package sync_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hkd-sync/internal/application/ports"
	appsync "github.com/jhoicas/hkd-sync/internal/application/sync"
	"github.com/jhoicas/hkd-sync/internal/domain"
	"github.com/jhoicas/hkd-sync/internal/domain/entity"
	"github.com/jhoicas/hkd-sync/internal/domain/repository"
	"github.com/jhoicas/hkd-sync/internal/infrastructure/remote"
	"github.com/jhoicas/hkd-sync/internal/infrastructure/sqlite"
	"github.com/jhoicas/hkd-sync/pkg/phone"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type event struct {
	name   string
	fields map[string]string
}

type sinkRecorder struct {
	mu     sync.Mutex
	events []event
}

func (s *sinkRecorder) Notify(name string, fields map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event{name: name, fields: fields})
}

func (s *sinkRecorder) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.name)
	}
	return out
}

type harness struct {
	orch    *appsync.Orchestrator
	store   *sqlite.EntityStore
	queue   *sqlite.MutationQueue
	tree    *remote.MemoryTree
	monitor *remote.Monitor
	sink    *sinkRecorder
	clock   *clock
}

func newHarness(t *testing.T, connected bool, cfg appsync.Config) *harness {
	t.Helper()
	return newHarnessWithQueue(t, connected, cfg, nil)
}

// newHarnessWithQueue permite envolver la cola real para inyectar ganchos.
func newHarnessWithQueue(t *testing.T, connected bool, cfg appsync.Config, wrap func(*harness, repository.MutationQueue) repository.MutationQueue) *harness {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "hkd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{
		store:   sqlite.NewEntityStore(db),
		queue:   sqlite.NewMutationQueue(db),
		tree:    remote.NewMemoryTree(),
		monitor: remote.NewMonitor(connected, nil),
		sink:    &sinkRecorder{},
		clock:   &clock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)},
	}
	client := remote.NewClient(h.tree, h.monitor, phone.NewNormalizer("VN"), time.Second, nil)
	cfg.Clock = h.clock.Now
	var queue repository.MutationQueue = h.queue
	if wrap != nil {
		queue = wrap(h, queue)
	}
	h.orch = appsync.New(h.store, queue, client, h.sink, cfg, nil)
	t.Cleanup(h.orch.Wait)
	return h
}

// write simula una escritura de usuario: put local sin sincronizar y encolado.
func (h *harness) write(t *testing.T, p entity.Product) entity.SyncQueueEntry {
	t.Helper()
	ctx := context.Background()
	if p.UpdatedAt.IsZero() {
		h.clock.Advance(time.Millisecond)
		p.UpdatedAt = h.clock.Now()
	}
	doc, err := entity.NewDocument(p, false)
	require.NoError(t, err)
	require.NoError(t, h.store.Put(ctx, doc))
	e, err := h.queue.Enqueue(ctx, entity.SyncQueueEntry{
		BusinessUnitID: p.BusinessUnitID,
		Collection:     entity.CollectionProducts,
		EntityID:       p.ID,
		Op:             entity.OpPut,
		Payload:        doc.Data,
		Version:        doc.UpdatedAt,
	})
	require.NoError(t, err)
	return e
}

func (h *harness) remoteProduct(t *testing.T, unitID, id string) entity.Product {
	t.Helper()
	raw, err := h.tree.Get(context.Background(), entity.PathFor(entity.CollectionProducts, unitID, id))
	require.NoError(t, err, "el producto debe existir en remoto")
	var p entity.Product
	require.NoError(t, json.Unmarshal(raw, &p))
	return p
}

func (h *harness) localIDs(t *testing.T, c entity.Collection, unitID string) []string {
	t.Helper()
	var ids []string
	for doc, err := range h.store.Query(context.Background(), c, repository.Filter{BusinessUnitID: unitID}) {
		require.NoError(t, err)
		ids = append(ids, doc.ID)
	}
	return ids
}

// peekHook cola que invoca onEmpty la primera vez que PeekBatch no encuentra entradas.
type peekHook struct {
	repository.MutationQueue
	once    sync.Once
	onEmpty func()
}

func (q *peekHook) PeekBatch(ctx context.Context, unitID string, max int, now time.Time) ([]entity.SyncQueueEntry, error) {
	batch, err := q.MutationQueue.PeekBatch(ctx, unitID, max, now)
	if err == nil && len(batch) == 0 {
		q.once.Do(q.onEmpty)
	}
	return batch, err
}

func product(unitID, id, name string) entity.Product {
	return entity.Product{ID: id, BusinessUnitID: unitID, Name: name, Price: decimal.NewFromInt(30000)}
}

func seedRemoteUnit(t *testing.T, tree *remote.MemoryTree, unitID string) {
	t.Helper()
	require.NoError(t, tree.Put(entity.PathFor(entity.CollectionUnits, unitID, unitID), entity.BusinessUnit{
		ID: unitID, Phone: "+84900000002", Name: "Quán Phở", Role: entity.RoleOperator, Secret: "s2",
	}))
}

// ──────────────────────────────────────────────────────────────────────────────
// Drain
// ──────────────────────────────────────────────────────────────────────────────

func TestDrain_FusionEntregaSoloLaUltimaCarga(t *testing.T) {
	h := newHarness(t, true, appsync.Config{})
	h.write(t, product("u1", "p1", "Phở bò v1"))
	h.write(t, product("u1", "p1", "Phở bò v2"))
	h.write(t, product("u1", "p1", "Phở bò v3"))

	res, err := h.orch.Drain(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)

	writes := h.tree.Writes()
	require.Len(t, writes, 1, "la cola fusionada debe producir una sola escritura")
	assert.Equal(t, "Phở bò v3", h.remoteProduct(t, "u1", "p1").Name)

	doc, err := h.store.Get(context.Background(), entity.CollectionProducts, "p1")
	require.NoError(t, err)
	assert.True(t, doc.Synced, "tras el ack el documento local queda sincronizado")

	size, err := h.queue.Size(context.Background())
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestDrain_UnSoloDrenadoConcurrentePorUnidad(t *testing.T) {
	h := newHarness(t, true, appsync.Config{})
	h.write(t, product("u1", "p1", "Cà phê sữa"))
	h.write(t, product("u1", "p2", "Trà đá"))

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h.tree.BeforeSet(func(string) {
		once.Do(func() {
			close(entered)
			<-release
		})
	})

	done := make(chan appsync.DrainResult)
	go func() {
		res, err := h.orch.Drain(context.Background(), "u1")
		assert.NoError(t, err)
		done <- res
	}()
	<-entered

	second, err := h.orch.Drain(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, second.Skipped, "un segundo drenado solapado no debe recorrer la cola")
	assert.Zero(t, second.Delivered)

	close(release)
	first := <-done
	assert.Equal(t, 2, first.Delivered)
	assert.Len(t, h.tree.Writes(), 2, "cada entrada se escribe exactamente una vez")
}

func TestDrain_EntradaReemplazadaDuranteEntregaNoSePierde(t *testing.T) {
	h := newHarness(t, true, appsync.Config{})
	h.write(t, product("u1", "p1", "Bánh mì v1"))

	var once sync.Once
	h.tree.BeforeSet(func(string) {
		once.Do(func() { h.write(t, product("u1", "p1", "Bánh mì v2")) })
	})

	res, err := h.orch.Drain(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Delivered, "el ack de la carga vieja no retira la nueva")
	assert.Equal(t, "Bánh mì v2", h.remoteProduct(t, "u1", "p1").Name)

	doc, err := h.store.Get(context.Background(), entity.CollectionProducts, "p1")
	require.NoError(t, err)
	assert.True(t, doc.Synced)
}

func TestDrain_RemotoCaidoSeDetieneSinPerderEntradas(t *testing.T) {
	h := newHarness(t, true, appsync.Config{})
	h.write(t, product("u1", "p1", "Cơm tấm"))
	h.write(t, product("u1", "p2", "Bún chả"))
	h.tree.SetReachable(false)

	res, err := h.orch.Drain(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.Zero(t, res.Delivered)
	assert.Zero(t, res.Retried, "una caída del remoto no consume intentos")

	size, err := h.queue.SizeOf(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, size)
	assert.False(t, h.monitor.Connected(), "el fallo de transporte marca el remoto como desconectado")
}

func TestDrain_RechazoReencolaConBackoff(t *testing.T) {
	h := newHarness(t, true, appsync.Config{BaseBackoff: time.Second, MaxBackoff: time.Minute, MaxAttempts: 5})
	h.write(t, product("u1", "p1", "Gỏi cuốn"))
	h.tree.FailWrites(entity.PathFor(entity.CollectionProducts, "u1", "p1"), errors.New("permiso denegado"))

	res, err := h.orch.Drain(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retried, "dentro del backoff la entrada no se reintenta en la misma pasada")

	res, err = h.orch.Drain(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, res.Retried)

	h.clock.Advance(1100 * time.Millisecond)
	res, err = h.orch.Drain(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retried)

	batch, err := h.queue.PeekBatch(context.Background(), "u1", 10, h.clock.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, 2, batch[0].Attempts)
	assert.Equal(t, h.clock.Now().Add(2*time.Second).UnixNano(), batch[0].NextAttemptAt.UnixNano(),
		"el segundo reintento espera BaseBackoff*2")
	assert.Contains(t, batch[0].LastError, "permiso denegado")
}

func TestDrain_DeadLetterTrasMaxAttempts(t *testing.T) {
	h := newHarness(t, true, appsync.Config{MaxAttempts: 3, BaseBackoff: time.Second})
	h.write(t, product("u1", "p1", "Chè"))
	h.write(t, product("u1", "p2", "Xôi"))
	h.tree.FailWrites(entity.PathFor(entity.CollectionProducts, "u1", "p1"), errors.New("regla de validación"))

	res, err := h.orch.Drain(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retried)
	assert.Equal(t, 1, res.Delivered, "una entrada rechazada no bloquea a las siguientes")

	h.clock.Advance(1100 * time.Millisecond)
	res, err = h.orch.Drain(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retried)

	h.clock.Advance(2100 * time.Millisecond)
	res, err = h.orch.Drain(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeadLettered)

	size, err := h.queue.Size(context.Background())
	require.NoError(t, err)
	assert.Zero(t, size)

	dead, err := h.orch.DeadLetters(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "p1", dead[0].EntityID)
	assert.Contains(t, dead[0].Reason, "regla de validación")
	assert.Contains(t, h.sink.names(), ports.EventMutationDeadLettered)
}

func TestDrain_BackoffPorDefectoNoAgotaIntentosEnUnaPasada(t *testing.T) {
	h := newHarness(t, true, appsync.Config{MaxAttempts: 3})
	h.write(t, product("u1", "p1", "Bánh cuốn"))
	h.tree.FailWrites(entity.PathFor(entity.CollectionProducts, "u1", "p1"), errors.New("regla de validación"))

	res, err := h.orch.Drain(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retried, "sin BaseBackoff explícito la entrada espera antes de reintentar")
	assert.Zero(t, res.DeadLettered)

	size, err := h.queue.SizeOf(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestDrain_EntradaReemplazadaAntesDelDeadLetterNoSeNotifica(t *testing.T) {
	h := newHarness(t, true, appsync.Config{MaxAttempts: 1})
	h.write(t, product("u1", "p1", "Lẩu v1"))
	h.tree.FailWrites(entity.PathFor(entity.CollectionProducts, "u1", "p1"), errors.New("regla de validación"))

	var once sync.Once
	h.tree.BeforeSet(func(string) {
		once.Do(func() { h.write(t, product("u1", "p1", "Lẩu v2")) })
	})

	res, err := h.orch.Drain(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeadLettered, "solo la carga vigente llega a dead letters")

	dead, err := h.orch.DeadLetters(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, dead, 1)
	var p entity.Product
	require.NoError(t, json.Unmarshal(dead[0].Payload, &p))
	assert.Equal(t, "Lẩu v2", p.Name)

	n := 0
	for _, name := range h.sink.names() {
		if name == ports.EventMutationDeadLettered {
			n++
		}
	}
	assert.Equal(t, 1, n, "la entrada reemplazada no genera evento")
}

func TestDrain_PedidoDuranteElCierreRepiteLaPasada(t *testing.T) {
	h := newHarnessWithQueue(t, true, appsync.Config{}, func(h *harness, q repository.MutationQueue) repository.MutationQueue {
		return &peekHook{MutationQueue: q, onEmpty: func() {
			// Llega una escritura justo después del último lote vacío del drenado en curso.
			h.write(t, product("u1", "p2", "Cà phê trứng"))
			res, err := h.orch.Drain(context.Background(), "u1")
			assert.NoError(t, err)
			assert.True(t, res.Skipped)
		}}
	})
	h.write(t, product("u1", "p1", "Bạc xỉu"))

	res, err := h.orch.Drain(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Delivered, "el pedido omitido se atiende antes de liberar la unidad")

	size, err := h.queue.SizeOf(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, size)

	st, err := h.orch.Status(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, st.Draining)
}

// ──────────────────────────────────────────────────────────────────────────────
// Conectividad
// ──────────────────────────────────────────────────────────────────────────────

func TestConectividad_EscrituraOfflineSeEntregaUnaVezAlReconectar(t *testing.T) {
	h := newHarness(t, false, appsync.Config{})
	stop := h.orch.Start(context.Background())
	defer stop()

	h.write(t, product("u1", "p1", "Nước mía"))
	h.orch.RequestDrain(context.Background(), "u1")
	h.orch.Wait()
	assert.Empty(t, h.tree.Writes(), "sin conexión no se llama al remoto")

	h.monitor.Report(true)
	h.orch.Wait()

	writes := h.tree.Writes()
	require.Len(t, writes, 1, "al reconectar se entrega exactamente una escritura")
	assert.Equal(t, entity.PathFor(entity.CollectionProducts, "u1", "p1"), writes[0].Path)
	assert.Equal(t, "Nước mía", h.remoteProduct(t, "u1", "p1").Name)

	h.monitor.Report(false)
	assert.Equal(t, []string{ports.EventRemoteConnected, ports.EventRemoteDisconnected}, h.sink.names())
}

func TestConectividad_EstadoInicialOnlineDrenaPendientes(t *testing.T) {
	h := newHarness(t, true, appsync.Config{})
	h.write(t, product("u1", "p1", "Bò kho"))
	h.write(t, product("u2", "p2", "Hủ tiếu"))

	stop := h.orch.Start(context.Background())
	defer stop()
	h.orch.Wait()

	assert.Len(t, h.tree.Writes(), 2)
	assert.Empty(t, h.sink.names(), "el evento sintético inicial no se notifica")
}

// ──────────────────────────────────────────────────────────────────────────────
// Pull
// ──────────────────────────────────────────────────────────────────────────────

func TestPull_RoundTripIgualaAlSubarbolRemoto(t *testing.T) {
	h := newHarness(t, true, appsync.Config{})
	ctx := context.Background()
	seedRemoteUnit(t, h.tree, "u1")
	require.NoError(t, h.tree.Put(entity.PathFor(entity.CollectionProducts, "u1", "p1"), product("u1", "p1", "Phở gà")))
	require.NoError(t, h.tree.Put(entity.PathFor(entity.CollectionProducts, "u1", "p2"), product("u1", "p2", "Phở tái")))
	require.NoError(t, h.tree.Put(entity.PathFor(entity.CollectionCategories, "u1", "c1"), entity.Category{Name: "Món nước"}))
	require.NoError(t, h.tree.Put(entity.PathFor(entity.CollectionInvoices, "u1", "i1"), entity.Invoice{TotalQuantity: 1}))

	// sincronizado pero ya borrado en remoto
	stale, err := entity.NewDocument(product("u1", "old", "Món cũ"), true)
	require.NoError(t, err)
	require.NoError(t, h.store.Put(ctx, stale))
	// pendiente de entrega: se conserva
	h.write(t, product("u1", "draft", "Món mới"))

	require.NoError(t, h.orch.Pull(ctx, "u1"))

	assert.ElementsMatch(t, []string{"p1", "p2", "draft"}, h.localIDs(t, entity.CollectionProducts, "u1"))
	assert.Equal(t, []string{"c1"}, h.localIDs(t, entity.CollectionCategories, "u1"))
	assert.Equal(t, []string{"i1"}, h.localIDs(t, entity.CollectionInvoices, "u1"))

	for _, id := range []string{"p1", "p2"} {
		doc, err := h.store.Get(ctx, entity.CollectionProducts, id)
		require.NoError(t, err)
		assert.True(t, doc.Synced, "todo lo traído del remoto queda sincronizado")
		assert.Equal(t, "u1", doc.BusinessUnitID)
	}
	info, err := h.store.Get(ctx, entity.CollectionUnits, "u1")
	require.NoError(t, err)
	assert.True(t, info.Synced)
}

func TestPull_NoPisaEdicionLocalPendiente(t *testing.T) {
	h := newHarness(t, true, appsync.Config{})
	ctx := context.Background()
	seedRemoteUnit(t, h.tree, "u1")
	require.NoError(t, h.tree.Put(entity.PathFor(entity.CollectionProducts, "u1", "p1"), product("u1", "p1", "Phở bò")))

	edit := product("u1", "p1", "Phở bò")
	edit.Price = decimal.NewFromInt(45000)
	h.write(t, edit)

	require.NoError(t, h.orch.Pull(ctx, "u1"))

	doc, err := h.store.Get(ctx, entity.CollectionProducts, "p1")
	require.NoError(t, err)
	assert.False(t, doc.Synced, "la edición pendiente sigue sin sincronizar")
	var local entity.Product
	require.NoError(t, json.Unmarshal(doc.Data, &local))
	assert.True(t, local.Price.Equal(decimal.NewFromInt(45000)), "el pull no pisa la edición local")

	res, err := h.orch.Drain(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)

	remotePrice := h.remoteProduct(t, "u1", "p1").Price
	doc, err = h.store.Get(ctx, entity.CollectionProducts, "p1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(doc.Data, &local))
	assert.True(t, doc.Synced)
	assert.True(t, remotePrice.Equal(local.Price), "sincronizado implica local igual a remoto")
	assert.True(t, remotePrice.Equal(decimal.NewFromInt(45000)))
}

func TestPull_UnidadInexistenteEsNoOp(t *testing.T) {
	h := newHarness(t, true, appsync.Config{})
	require.NoError(t, h.orch.Pull(context.Background(), "solo-local"))
	assert.Empty(t, h.localIDs(t, entity.CollectionUnits, "solo-local"))
}

func TestPull_RemotoCaidoConservaDatosLocales(t *testing.T) {
	h := newHarness(t, true, appsync.Config{})
	ctx := context.Background()
	doc, err := entity.NewDocument(product("u1", "p1", "Cháo"), true)
	require.NoError(t, err)
	require.NoError(t, h.store.Put(ctx, doc))
	h.tree.SetReachable(false)

	err = h.orch.Pull(ctx, "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	assert.Equal(t, []string{"p1"}, h.localIDs(t, entity.CollectionProducts, "u1"), "datos viejos antes que vacíos")
	assert.Contains(t, h.sink.names(), ports.EventPullFailed)

	st, err := h.orch.Status(ctx, "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, st.LastPullError)
	assert.False(t, st.Connected)
}

func TestPullInBackground_WaitReadyEsBarrera(t *testing.T) {
	h := newHarness(t, true, appsync.Config{})
	seedRemoteUnit(t, h.tree, "u2")
	require.NoError(t, h.tree.Put(entity.PathFor(entity.CollectionProducts, "u2", "p9"), product("u2", "p9", "Bánh xèo")))

	ctx, cancel := context.WithCancel(context.Background())
	h.orch.PullInBackground(ctx, "u2")
	cancel() // la cancelación del llamador no aborta el pull

	require.NoError(t, h.orch.WaitReady(context.Background(), "u2"))
	assert.Equal(t, []string{"p9"}, h.localIDs(t, entity.CollectionProducts, "u2"))
}

// ──────────────────────────────────────────────────────────────────────────────
// Status
// ──────────────────────────────────────────────────────────────────────────────

func TestStatus_CuentaPendientes(t *testing.T) {
	h := newHarness(t, false, appsync.Config{})
	h.write(t, product("u1", "p1", "Sữa chua"))
	h.write(t, product("u1", "p2", "Sinh tố"))

	st, err := h.orch.Status(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", st.UnitID)
	assert.Equal(t, 2, st.Pending)
	assert.False(t, st.Draining)
	assert.False(t, st.Connected)
}
