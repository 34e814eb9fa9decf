// Package sync coordina la convergencia entre el almacén local y el remoto:
// pull del subárbol de una unidad al iniciar sesión y drenado de la cola
// de mutaciones cuando hay conexión.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/hkd-sync/internal/application/ports"
	"github.com/jhoicas/hkd-sync/internal/domain"
	"github.com/jhoicas/hkd-sync/internal/domain/entity"
	"github.com/jhoicas/hkd-sync/internal/domain/repository"
	"github.com/jhoicas/hkd-sync/pkg/logger"
)

// Config parámetros del orquestador. Los valores cero toman los defaults de withDefaults.
type Config struct {
	BatchSize     int
	MaxAttempts   int
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	RemoteTimeout time.Duration // tope de las operaciones en segundo plano
	TickInterval  time.Duration
	Clock         func() time.Time
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 2 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Minute
	}
	if c.RemoteTimeout <= 0 {
		c.RemoteTimeout = 30 * time.Second
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 30 * time.Second
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// DrainResult resumen de una pasada de drenado.
type DrainResult struct {
	Delivered    int  `json:"delivered"`
	Retried      int  `json:"retried"`
	DeadLettered int  `json:"dead_lettered"`
	Skipped      bool `json:"skipped"`     // ya había un drenado en curso para la unidad
	Interrupted  bool `json:"interrupted"` // se cortó por pérdida de conexión
}

func (r *DrainResult) add(o DrainResult) {
	r.Delivered += o.Delivered
	r.Retried += o.Retried
	r.DeadLettered += o.DeadLettered
	r.Interrupted = r.Interrupted || o.Interrupted
}

// UnitStatus foto del estado de sincronización de una unidad.
type UnitStatus struct {
	UnitID        string `json:"unit_id"`
	Connected     bool   `json:"connected"`
	Pulling       bool   `json:"pulling"`
	Draining      bool   `json:"draining"`
	Pending       int    `json:"pending"`
	DeadLetters   int    `json:"dead_letters"`
	LastPullError string `json:"last_pull_error,omitempty"`
}

type pullCall struct {
	done chan struct{}
	err  error
}

type unitState struct {
	pull        *pullCall
	lastPullErr error
	draining    bool
	rerun       bool // se pidió un drenado mientras otro estaba en curso
}

// Orchestrator máquina de estados por unidad: Idle, Pulling, Draining.
// Garantiza como máximo un drenado en curso por unidad y comparte el resultado
// de un pull en curso con quien lo pida mientras tanto.
type Orchestrator struct {
	store  repository.EntityStore
	queue  repository.MutationQueue
	remote ports.RemoteStore
	sink   ports.NotificationSink
	cfg    Config
	log    *logger.Logger

	mu    sync.Mutex
	units map[string]*unitState
	wg    sync.WaitGroup
}

// New construye el orquestador con sus dependencias.
func New(
	store repository.EntityStore,
	queue repository.MutationQueue,
	remote ports.RemoteStore,
	sink ports.NotificationSink,
	cfg Config,
	log *logger.Logger,
) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	if sink == nil {
		sink = nopSink{}
	}
	return &Orchestrator{
		store:  store,
		queue:  queue,
		remote: remote,
		sink:   sink,
		cfg:    cfg.withDefaults(),
		log:    log.Component("sync"),
		units:  make(map[string]*unitState),
	}
}

type nopSink struct{}

func (nopSink) Notify(string, map[string]string) {}

// state devuelve el estado de la unidad. Requiere o.mu.
func (o *Orchestrator) state(unitID string) *unitState {
	st, ok := o.units[unitID]
	if !ok {
		st = &unitState{}
		o.units[unitID] = st
	}
	return st
}

func (o *Orchestrator) background(fn func()) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		fn()
	}()
}

// Wait espera a que termine todo el trabajo en segundo plano lanzado hasta ahora.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// ═══════════════════════════════════════════════════════════════════════════
// Pull
// ═══════════════════════════════════════════════════════════════════════════

// beginPull registra un pull nuevo o devuelve el que está en curso (owner=false).
func (o *Orchestrator) beginPull(unitID string) (*pullCall, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.state(unitID)
	if st.pull != nil {
		return st.pull, false
	}
	call := &pullCall{done: make(chan struct{})}
	st.pull = call
	return call, true
}

func (o *Orchestrator) finishPull(unitID string, call *pullCall, err error) {
	o.mu.Lock()
	st := o.state(unitID)
	st.pull = nil
	st.lastPullErr = err
	o.mu.Unlock()

	call.err = err
	close(call.done)
}

// Pull copia el subárbol remoto de la unidad al almacén local.
// NotFound no es error: la unidad puede existir solo localmente.
// Con el remoto caído devuelve el error y deja intactos los datos locales.
func (o *Orchestrator) Pull(ctx context.Context, unitID string) error {
	call, owner := o.beginPull(unitID)
	if !owner {
		return waitCall(ctx, call)
	}
	err := o.pull(ctx, unitID)
	o.finishPull(unitID, call, err)
	return err
}

// PullInBackground lanza un pull desacoplado de la cancelación del llamador y
// acotado por RemoteTimeout. Si ya hay uno en curso no lanza otro.
func (o *Orchestrator) PullInBackground(ctx context.Context, unitID string) {
	call, owner := o.beginPull(unitID)
	if !owner {
		return
	}
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.RemoteTimeout)
	o.background(func() {
		defer cancel()
		err := o.pull(bg, unitID)
		o.finishPull(unitID, call, err)
	})
}

// WaitReady barrera de lectura: espera el pull en curso de la unidad y devuelve su error.
// Sin pull en curso devuelve el resultado del último.
func (o *Orchestrator) WaitReady(ctx context.Context, unitID string) error {
	o.mu.Lock()
	st := o.state(unitID)
	call, last := st.pull, st.lastPullErr
	o.mu.Unlock()
	if call == nil {
		return last
	}
	return waitCall(ctx, call)
}

func waitCall(ctx context.Context, call *pullCall) error {
	select {
	case <-call.done:
		return call.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) pull(ctx context.Context, unitID string) error {
	snap, err := o.remote.ReadUnit(ctx, unitID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		o.log.Debug().Str("unit_id", unitID).Msg("unidad sin subárbol remoto, pull omitido")
		return nil
	case err != nil:
		o.log.Warn().Err(err).Str("unit_id", unitID).Msg("pull fallido, se conservan los datos locales")
		o.sink.Notify(ports.EventPullFailed, map[string]string{"unit_id": unitID, "error": err.Error()})
		return fmt.Errorf("pull %s: %w", unitID, err)
	}

	remoteIDs := make(map[entity.Collection]map[string]struct{})
	kept := 0
	for _, rec := range snap.Records() {
		doc, err := entity.NewDocument(rec, true)
		if err != nil {
			return fmt.Errorf("pull %s: %w", unitID, err)
		}
		// Una copia local sin sincronizar tiene su mutación en cola; el drenado la entregará.
		written, err := o.store.Refresh(ctx, doc)
		if err != nil {
			return fmt.Errorf("pull %s: %w", unitID, err)
		}
		if !written {
			kept++
		}
		ids, ok := remoteIDs[doc.Collection]
		if !ok {
			ids = make(map[string]struct{})
			remoteIDs[doc.Collection] = ids
		}
		ids[doc.ID] = struct{}{}
	}

	pruned, err := o.prune(ctx, unitID, remoteIDs)
	if err != nil {
		return fmt.Errorf("pull %s: %w", unitID, err)
	}
	o.log.Info().Str("unit_id", unitID).
		Int("products", len(snap.Products)).
		Int("categories", len(snap.Categories)).
		Int("invoices", len(snap.Invoices)).
		Int("pruned", pruned).
		Int("kept_local", kept).
		Msg("pull completado")
	return nil
}

// prune borra los documentos sincronizados de la unidad que ya no existen en remoto.
// Los no sincronizados tienen una mutación pendiente y se conservan.
func (o *Orchestrator) prune(ctx context.Context, unitID string, remoteIDs map[entity.Collection]map[string]struct{}) (int, error) {
	synced := true
	n := 0
	for _, c := range []entity.Collection{entity.CollectionProducts, entity.CollectionCategories, entity.CollectionInvoices} {
		var stale []string
		for doc, err := range o.store.Query(ctx, c, repository.Filter{BusinessUnitID: unitID, Synced: &synced}) {
			if err != nil {
				return n, err
			}
			if _, ok := remoteIDs[c][doc.ID]; !ok {
				stale = append(stale, doc.ID)
			}
		}
		for _, id := range stale {
			if err := o.store.Delete(ctx, c, id); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Drain
// ═══════════════════════════════════════════════════════════════════════════

// Drain entrega la cola de la unidad en orden FIFO mientras haya conexión y entradas listas.
// Un segundo Drain concurrente para la misma unidad devuelve Skipped sin tocar la cola.
func (o *Orchestrator) Drain(ctx context.Context, unitID string) (DrainResult, error) {
	o.mu.Lock()
	st := o.state(unitID)
	if st.draining {
		st.rerun = true
		o.mu.Unlock()
		return DrainResult{Skipped: true}, nil
	}
	st.draining = true
	o.mu.Unlock()

	var res DrainResult
	for {
		pass, err := o.drainPass(ctx, unitID)
		res.add(pass)

		o.mu.Lock()
		st := o.state(unitID)
		again := err == nil && !pass.Interrupted && st.rerun
		st.rerun = false
		if !again {
			st.draining = false
		}
		o.mu.Unlock()

		if err != nil {
			return res, fmt.Errorf("drain %s: %w", unitID, err)
		}
		if !again {
			break
		}
	}
	if res.Delivered+res.Retried+res.DeadLettered > 0 {
		o.log.Info().Str("unit_id", unitID).
			Int("delivered", res.Delivered).
			Int("retried", res.Retried).
			Int("dead_lettered", res.DeadLettered).
			Msg("drenado completado")
	}
	return res, nil
}

// drainPass entrega lotes hasta vaciar las entradas listas o perder la conexión.
func (o *Orchestrator) drainPass(ctx context.Context, unitID string) (DrainResult, error) {
	var res DrainResult
	for o.remote.Connected() {
		batch, err := o.queue.PeekBatch(ctx, unitID, o.cfg.BatchSize, o.cfg.Clock())
		if err != nil {
			return res, err
		}
		if len(batch) == 0 {
			break
		}
		for _, e := range batch {
			step, err := o.deliver(ctx, e)
			res.add(step)
			if err != nil {
				return res, err
			}
			if step.Interrupted {
				o.log.Info().Str("unit_id", unitID).Msg("drenado interrumpido: remoto no disponible")
				return res, nil
			}
		}
	}
	return res, nil
}

// deliver intenta una entrada. El error devuelto es solo del almacenamiento local.
func (o *Orchestrator) deliver(ctx context.Context, e entity.SyncQueueEntry) (DrainResult, error) {
	var value []byte
	if e.Op == entity.OpPut {
		value = e.Payload
	}
	werr := o.remote.WriteField(ctx, e.Path(), value)
	if werr == nil {
		if err := o.queue.Acknowledge(ctx, e.ID); err != nil {
			return DrainResult{}, err
		}
		if e.Op == entity.OpPut {
			if _, err := o.store.MarkSynced(ctx, e.Collection, e.EntityID, e.Version); err != nil {
				return DrainResult{}, err
			}
		}
		return DrainResult{Delivered: 1}, nil
	}
	if errors.Is(werr, domain.ErrRemoteUnavailable) {
		return DrainResult{Interrupted: true}, nil
	}

	log := o.log.Warn().Err(werr).Str("entry_id", e.ID).Str("path", e.Path()).Int("attempts", e.Attempts+1)
	if errors.Is(werr, domain.ErrInvalidInput) || e.Attempts+1 >= o.cfg.MaxAttempts {
		moved, err := o.queue.DeadLetter(ctx, e.ID, werr.Error())
		if err != nil {
			return DrainResult{}, err
		}
		if !moved {
			// Reemplazada durante el envío: la versión nueva sigue en cola.
			return DrainResult{}, nil
		}
		log.Msg("mutación enviada a dead letters")
		o.sink.Notify(ports.EventMutationDeadLettered, map[string]string{
			"unit_id":  e.BusinessUnitID,
			"entry_id": e.ID,
			"path":     e.Path(),
			"reason":   werr.Error(),
		})
		return DrainResult{DeadLettered: 1}, nil
	}

	next := o.cfg.Clock().Add(o.backoff(e.Attempts))
	requeued, err := o.queue.Requeue(ctx, e.ID, werr.Error(), next)
	if err != nil {
		return DrainResult{}, err
	}
	if !requeued {
		return DrainResult{}, nil
	}
	log.Time("next_attempt_at", next).Msg("mutación reencolada")
	return DrainResult{Retried: 1}, nil
}

// backoff BaseBackoff * 2^attempts, acotado por MaxBackoff.
func (o *Orchestrator) backoff(attempts int) time.Duration {
	d := o.cfg.BaseBackoff
	for i := 0; i < attempts && d > 0; i++ {
		d *= 2
		if o.cfg.MaxBackoff > 0 && d >= o.cfg.MaxBackoff {
			return o.cfg.MaxBackoff
		}
	}
	if o.cfg.MaxBackoff > 0 && d > o.cfg.MaxBackoff {
		return o.cfg.MaxBackoff
	}
	return d
}

// DrainAll drena en segundo plano cada unidad con cola no vacía; las unidades se intercalan.
func (o *Orchestrator) DrainAll(ctx context.Context) {
	bg := context.WithoutCancel(ctx)
	o.background(func() {
		units, err := o.queue.PendingUnits(bg)
		if err != nil {
			o.log.Error().Err(err).Msg("no se pudieron listar las unidades pendientes")
			return
		}
		for _, u := range units {
			o.RequestDrain(bg, u)
		}
	})
}

// RequestDrain drena la unidad en segundo plano.
func (o *Orchestrator) RequestDrain(ctx context.Context, unitID string) {
	bg := context.WithoutCancel(ctx)
	o.background(func() {
		if _, err := o.Drain(bg, unitID); err != nil {
			o.log.Error().Err(err).Str("unit_id", unitID).Msg("drenado fallido")
		}
	})
}

// ═══════════════════════════════════════════════════════════════════════════
// Conectividad y ciclo de vida
// ═══════════════════════════════════════════════════════════════════════════

// Start se suscribe a la conectividad: al pasar a online (incluido el estado inicial)
// drena todas las unidades pendientes. Devuelve la función para desuscribirse.
func (o *Orchestrator) Start(ctx context.Context) (stop func()) {
	first := true
	return o.remote.OnConnectivityChange(func(connected bool) {
		initial := first
		first = false
		if !initial {
			event := ports.EventRemoteDisconnected
			if connected {
				event = ports.EventRemoteConnected
			}
			o.sink.Notify(event, nil)
		}
		if connected {
			o.DrainAll(ctx)
		}
	})
}

// Run mantiene el orquestador activo hasta que ctx termine: reacciona a la conectividad
// y cada TickInterval retoma las entradas cuyo backoff ya venció.
func (o *Orchestrator) Run(ctx context.Context) {
	stop := o.Start(ctx)
	defer stop()

	ticker := time.NewTicker(o.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if o.remote.Connected() {
				o.DrainAll(ctx)
			}
		}
	}
}

// Connected estado actual de la conexión con el remoto.
func (o *Orchestrator) Connected() bool { return o.remote.Connected() }

// Status estado de sincronización de la unidad.
func (o *Orchestrator) Status(ctx context.Context, unitID string) (UnitStatus, error) {
	pending, err := o.queue.SizeOf(ctx, unitID)
	if err != nil {
		return UnitStatus{}, fmt.Errorf("status %s: %w", unitID, err)
	}
	dead, err := o.queue.DeadLetters(ctx, unitID)
	if err != nil {
		return UnitStatus{}, fmt.Errorf("status %s: %w", unitID, err)
	}

	o.mu.Lock()
	st := o.state(unitID)
	out := UnitStatus{
		UnitID:      unitID,
		Connected:   o.remote.Connected(),
		Pulling:     st.pull != nil,
		Draining:    st.draining,
		Pending:     pending,
		DeadLetters: len(dead),
	}
	if st.lastPullErr != nil {
		out.LastPullError = st.lastPullErr.Error()
	}
	o.mu.Unlock()
	return out, nil
}

// DeadLetters mutaciones descartadas de la unidad.
func (o *Orchestrator) DeadLetters(ctx context.Context, unitID string) ([]entity.DeadLetter, error) {
	return o.queue.DeadLetters(ctx, unitID)
}
