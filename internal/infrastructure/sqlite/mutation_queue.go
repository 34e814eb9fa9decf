package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/hkd-sync/internal/domain"
	"github.com/jhoicas/hkd-sync/internal/domain/entity"
	"github.com/jhoicas/hkd-sync/internal/domain/repository"
)

const queueColumns = `id, seq, business_unit_id, collection, entity_id, op, payload, version,
	enqueued_at, attempts, next_attempt_at, last_error`

// MutationQueue cola durable de mutaciones sobre la tabla sync_queue.
type MutationQueue struct {
	db  *DB
	now func() time.Time
}

var _ repository.MutationQueue = (*MutationQueue)(nil)

// NewMutationQueue construye la cola.
func NewMutationQueue(db *DB) *MutationQueue {
	return &MutationQueue{db: db, now: time.Now}
}

// Enqueue inserta la entrada o, si ya hay una pendiente para la misma (colección, id),
// reemplaza su carga útil y su id manteniendo seq y enqueued_at.
// Los intentos se reinician: la carga útil nueva no hereda fallos de la anterior.
func (q *MutationQueue) Enqueue(ctx context.Context, e entity.SyncQueueEntry) (entity.SyncQueueEntry, error) {
	if e.BusinessUnitID == "" || e.EntityID == "" || !e.Collection.Valid() {
		return entity.SyncQueueEntry{}, fmt.Errorf("%w: entrada de cola incompleta", domain.ErrInvalidInput)
	}
	if e.Op == "" {
		e.Op = entity.OpPut
	}
	if e.Op == entity.OpDelete {
		e.Payload = nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return entity.SyncQueueEntry{}, fmt.Errorf("entry id: %w", err)
	}
	e.ID = id.String()
	if e.EnqueuedAt.IsZero() {
		e.EnqueuedAt = q.now()
	}

	var stored entity.SyncQueueEntry
	err = q.db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sync_queue (id, seq, business_unit_id, collection, entity_id, op, payload, version,
				enqueued_at, attempts, next_attempt_at, last_error)
			VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM sync_queue), ?, ?, ?, ?, ?, ?, ?, 0, 0, '')
			ON CONFLICT(collection, entity_id) DO UPDATE SET
				id               = excluded.id,
				business_unit_id = excluded.business_unit_id,
				op               = excluded.op,
				payload          = excluded.payload,
				version          = excluded.version,
				attempts         = 0,
				next_attempt_at  = 0,
				last_error       = ''`,
			e.ID, e.BusinessUnitID, string(e.Collection), e.EntityID, e.Op, nullablePayload(e.Payload),
			toNanos(e.Version), toNanos(e.EnqueuedAt),
		)
		if err != nil {
			return fmt.Errorf("enqueue %s %s: %w", e.Collection, e.EntityID, err)
		}
		row := tx.QueryRowContext(ctx, "SELECT "+queueColumns+" FROM sync_queue WHERE id = ?", e.ID)
		stored, err = scanEntry(row)
		if err != nil {
			return fmt.Errorf("read enqueued %s: %w", e.ID, err)
		}
		return nil
	})
	return stored, err
}

// PeekBatch devuelve hasta max entradas listas de la unidad, en orden FIFO.
func (q *MutationQueue) PeekBatch(ctx context.Context, unitID string, max int, now time.Time) ([]entity.SyncQueueEntry, error) {
	if max <= 0 {
		return nil, nil
	}
	rows, err := q.db.db.QueryContext(ctx, "SELECT "+queueColumns+` FROM sync_queue
		WHERE business_unit_id = ? AND next_attempt_at <= ?
		ORDER BY seq ASC, enqueued_at ASC
		LIMIT ?`, unitID, toNanos(now), max)
	if err != nil {
		return nil, fmt.Errorf("peek batch %s: %w", unitID, err)
	}
	defer rows.Close()

	var out []entity.SyncQueueEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Acknowledge retira la entrada si sigue presente.
func (q *MutationQueue) Acknowledge(ctx context.Context, entryID string) error {
	if _, err := q.db.db.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", entryID); err != nil {
		return fmt.Errorf("acknowledge %s: %w", entryID, err)
	}
	return nil
}

func (q *MutationQueue) Requeue(ctx context.Context, entryID, lastErr string, nextAttemptAt time.Time) (bool, error) {
	res, err := q.db.db.ExecContext(ctx, `
		UPDATE sync_queue SET
			attempts        = attempts + 1,
			seq             = (SELECT MAX(seq) + 1 FROM sync_queue),
			next_attempt_at = ?,
			last_error      = ?
		WHERE id = ?`, toNanos(nextAttemptAt), lastErr, entryID)
	if err != nil {
		return false, fmt.Errorf("requeue %s: %w", entryID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("requeue %s: %w", entryID, err)
	}
	return n > 0, nil
}

// DeadLetter mueve la entrada a dead_letters y la retira de la cola en una sola transacción.
// Si la entrada ya no está (reemplazada o confirmada) no hace nada y devuelve false.
func (q *MutationQueue) DeadLetter(ctx context.Context, entryID, reason string) (bool, error) {
	moved := false
	err := q.db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dead_letters (id, seq, business_unit_id, collection, entity_id, op, payload, version,
				enqueued_at, attempts, last_error, reason, dead_at)
			SELECT id, seq, business_unit_id, collection, entity_id, op, payload, version,
				enqueued_at, attempts, last_error, ?, ?
			FROM sync_queue WHERE id = ?
			ON CONFLICT(id) DO NOTHING`, reason, toNanos(q.now()), entryID)
		if err != nil {
			return fmt.Errorf("dead letter %s: %w", entryID, err)
		}
		del, err := tx.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", entryID)
		if err != nil {
			return fmt.Errorf("dead letter %s: %w", entryID, err)
		}
		d, err := del.RowsAffected()
		if err != nil {
			return fmt.Errorf("dead letter %s: %w", entryID, err)
		}
		moved = d > 0
		return nil
	})
	return moved, err
}

func (q *MutationQueue) DeadLetters(ctx context.Context, unitID string) ([]entity.DeadLetter, error) {
	rows, err := q.db.db.QueryContext(ctx, `
		SELECT id, seq, business_unit_id, collection, entity_id, op, payload, version,
			enqueued_at, attempts, 0, last_error, reason, dead_at
		FROM dead_letters WHERE business_unit_id = ? ORDER BY dead_at, id`, unitID)
	if err != nil {
		return nil, fmt.Errorf("list dead letters %s: %w", unitID, err)
	}
	defer rows.Close()

	var out []entity.DeadLetter
	for rows.Next() {
		var (
			dl     entity.DeadLetter
			deadAt int64
		)
		e, err := scanEntry(rows, &dl.Reason, &deadAt)
		if err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		dl.SyncQueueEntry = e
		dl.DeadAt = fromNanos(deadAt)
		out = append(out, dl)
	}
	return out, rows.Err()
}

func (q *MutationQueue) Size(ctx context.Context) (int, error) {
	var n int
	if err := q.db.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_queue").Scan(&n); err != nil {
		return 0, fmt.Errorf("queue size: %w", err)
	}
	return n, nil
}

func (q *MutationQueue) SizeOf(ctx context.Context, unitID string) (int, error) {
	var n int
	err := q.db.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sync_queue WHERE business_unit_id = ?", unitID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("queue size %s: %w", unitID, err)
	}
	return n, nil
}

// PendingUnits unidades con al menos una entrada en cola, ordenadas por id.
func (q *MutationQueue) PendingUnits(ctx context.Context) ([]string, error) {
	rows, err := q.db.db.QueryContext(ctx,
		"SELECT DISTINCT business_unit_id FROM sync_queue ORDER BY business_unit_id")
	if err != nil {
		return nil, fmt.Errorf("pending units: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan unit id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func nullablePayload(p []byte) any {
	if p == nil {
		return nil
	}
	return string(p)
}

func scanEntry(r scanner, extra ...any) (entity.SyncQueueEntry, error) {
	var (
		e                              entity.SyncQueueEntry
		collection                     string
		payload                        sql.NullString
		version, enqueuedAt, nextAfter int64
	)
	dest := []any{&e.ID, &e.Seq, &e.BusinessUnitID, &collection, &e.EntityID, &e.Op, &payload,
		&version, &enqueuedAt, &e.Attempts, &nextAfter, &e.LastError}
	if err := r.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.SyncQueueEntry{}, domain.ErrNotFound
		}
		return entity.SyncQueueEntry{}, err
	}
	e.Collection = entity.Collection(collection)
	if payload.Valid {
		e.Payload = []byte(payload.String)
	}
	e.Version = fromNanos(version)
	e.EnqueuedAt = fromNanos(enqueuedAt)
	e.NextAttemptAt = fromNanos(nextAfter)
	return e, nil
}
