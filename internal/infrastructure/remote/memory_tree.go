package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jhoicas/hkd-sync/internal/domain"
)

// MemoryTree árbol remoto en memoria: backend "memory" para desarrollo y doble de tests.
// Permite simular caídas (SetReachable), rechazos por ruta (FailWrites) y observar escrituras.
type MemoryTree struct {
	mu         sync.Mutex
	nodes      map[string]json.RawMessage
	reachable  bool
	failures   map[string]error
	writes     []Node
	beforeSet  func(path string)
	beforeList func(prefix string)
}

var _ Tree = (*MemoryTree)(nil)

// NewMemoryTree crea un árbol vacío y alcanzable.
func NewMemoryTree() *MemoryTree {
	return &MemoryTree{
		nodes:     make(map[string]json.RawMessage),
		reachable: true,
		failures:  make(map[string]error),
	}
}

func (t *MemoryTree) Get(_ context.Context, path string) (json.RawMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.reachable {
		return nil, domain.ErrRemoteUnavailable
	}
	v, ok := t.nodes[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRaw(v), nil
}

func (t *MemoryTree) List(_ context.Context, prefix string) ([]Node, error) {
	t.mu.Lock()
	hook := t.beforeList
	t.mu.Unlock()
	if hook != nil {
		hook(prefix)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.reachable {
		return nil, domain.ErrRemoteUnavailable
	}
	var out []Node
	for p, v := range t.nodes {
		if UnderPrefix(p, prefix) {
			out = append(out, Node{Path: p, Value: cloneRaw(v)})
		}
	}
	SortNodes(out)
	return out, nil
}

func (t *MemoryTree) Set(_ context.Context, path string, value json.RawMessage) error {
	t.mu.Lock()
	hook := t.beforeSet
	t.mu.Unlock()
	if hook != nil {
		hook(path)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.reachable {
		return domain.ErrRemoteUnavailable
	}
	if err, ok := t.failures[path]; ok {
		return err
	}
	t.writes = append(t.writes, Node{Path: path, Value: cloneRaw(value)})
	if value == nil {
		delete(t.nodes, path)
		return nil
	}
	t.nodes[path] = cloneRaw(value)
	return nil
}

func (t *MemoryTree) Ping(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.reachable {
		return domain.ErrRemoteUnavailable
	}
	return nil
}

// Put siembra una hoja sin contarla como escritura.
func (t *MemoryTree) Put(path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[path] = raw
	return nil
}

// SetReachable simula la caída o recuperación del backend.
func (t *MemoryTree) SetReachable(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reachable = ok
}

// FailWrites hace que Set sobre path devuelva err; nil elimina el fallo.
func (t *MemoryTree) FailWrites(path string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.failures, path)
		return
	}
	t.failures[path] = err
}

// BeforeSet registra un gancho invocado antes de cada Set, fuera del lock.
func (t *MemoryTree) BeforeSet(fn func(path string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.beforeSet = fn
}

// BeforeList registra un gancho invocado antes de cada List, fuera del lock.
func (t *MemoryTree) BeforeList(fn func(prefix string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.beforeList = fn
}

// Writes escrituras aplicadas, en orden.
func (t *MemoryTree) Writes() []Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Node, len(t.writes))
	copy(out, t.writes)
	return out
}

func cloneRaw(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}
