package remote

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/hkd-sync/internal/application/ports"
	"github.com/jhoicas/hkd-sync/pkg/logger"
)

// Monitor estado de conectividad con el remoto. Notifica a los listeners una vez
// por transición y una vez, sincrónicamente, al suscribirse.
// Los listeners no deben bloquear ni llamar de vuelta al Monitor.
type Monitor struct {
	notifyMu  sync.Mutex // serializa entregas para que el orden de eventos sea el de las transiciones
	mu        sync.Mutex
	connected bool
	listeners map[uint64]func(bool)
	order     []uint64
	nextID    uint64
	log       *logger.Logger
}

var _ ports.Connectivity = (*Monitor)(nil)

// NewMonitor crea el monitor con el estado inicial dado.
func NewMonitor(initial bool, log *logger.Logger) *Monitor {
	if log == nil {
		log = logger.Nop()
	}
	return &Monitor{
		connected: initial,
		listeners: make(map[uint64]func(bool)),
		log:       log.Component("connectivity"),
	}
}

func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// OnConnectivityChange registra listener y lo invoca con el estado actual.
func (m *Monitor) OnConnectivityChange(listener func(connected bool)) func() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = listener
	m.order = append(m.order, id)
	state := m.connected
	m.mu.Unlock()

	listener(state)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.listeners, id)
			for i, v := range m.order {
				if v == id {
					m.order = append(m.order[:i], m.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Report registra el estado observado. Solo un cambio real notifica.
func (m *Monitor) Report(connected bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.connected == connected {
		m.mu.Unlock()
		return
	}
	m.connected = connected
	fns := make([]func(bool), 0, len(m.order))
	for _, id := range m.order {
		fns = append(fns, m.listeners[id])
	}
	m.mu.Unlock()

	m.log.Info().Bool("connected", connected).Msg("cambio de conectividad")
	for _, fn := range fns {
		fn(connected)
	}
}

// Run sondea probe cada interval hasta que ctx termine. Cada sondeo tiene su propio timeout.
func (m *Monitor) Run(ctx context.Context, probe func(context.Context) error, interval, timeout time.Duration) {
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		err := probe(pctx)
		if err != nil && ctx.Err() == nil {
			m.log.Debug().Err(err).Msg("sondeo remoto fallido")
		}
		if ctx.Err() == nil {
			m.Report(err == nil)
		}
	}
	check()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
