package repository

import (
	"context"
	"time"

	"github.com/jhoicas/hkd-sync/internal/domain/entity"
)

// MutationQueue define el puerto de la cola durable de mutaciones pendientes.
type MutationQueue interface {
	// Enqueue agrega la entrada o fusiona con la pendiente de la misma (colección, id).
	Enqueue(ctx context.Context, e entity.SyncQueueEntry) (entity.SyncQueueEntry, error)
	// PeekBatch entradas listas de la unidad en orden FIFO, sin retirarlas.
	PeekBatch(ctx context.Context, unitID string, max int, now time.Time) ([]entity.SyncQueueEntry, error)
	Acknowledge(ctx context.Context, entryID string) error
	// Requeue incrementa attempts y mueve la entrada al final. false si ya fue reemplazada.
	Requeue(ctx context.Context, entryID, lastErr string, nextAttemptAt time.Time) (bool, error)
	// DeadLetter mueve la entrada a dead letters. false si ya fue reemplazada o confirmada.
	DeadLetter(ctx context.Context, entryID, reason string) (bool, error)
	DeadLetters(ctx context.Context, unitID string) ([]entity.DeadLetter, error)
	Size(ctx context.Context) (int, error)
	SizeOf(ctx context.Context, unitID string) (int, error)
	PendingUnits(ctx context.Context) ([]string, error)
}
