package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/hkd-sync/internal/domain"
	"github.com/jhoicas/hkd-sync/internal/domain/entity"
	"github.com/jhoicas/hkd-sync/internal/domain/repository"
)

// Syncer lo que los casos de uso necesitan del orquestador.
type Syncer interface {
	RequestDrain(ctx context.Context, unitID string)
	// WaitReady bloquea mientras haya un pull de la unidad en curso.
	WaitReady(ctx context.Context, unitID string) error
}

// writer aplica una escritura de usuario: put local sin sincronizar, encolado
// hacia el remoto y pedido de drenado. Es el único camino de salida de los cambios locales.
type writer struct {
	store  repository.EntityStore
	queue  repository.MutationQueue
	syncer Syncer
	now    func() time.Time
}

func (w writer) put(ctx context.Context, rec entity.Record) (entity.Document, error) {
	doc, err := entity.NewDocument(rec, false)
	if err != nil {
		return entity.Document{}, err
	}
	if err := w.store.Put(ctx, doc); err != nil {
		return entity.Document{}, fmt.Errorf("put %s %s: %w", doc.Collection, doc.ID, err)
	}
	if _, err := w.queue.Enqueue(ctx, entity.SyncQueueEntry{
		BusinessUnitID: doc.BusinessUnitID,
		Collection:     doc.Collection,
		EntityID:       doc.ID,
		Op:             entity.OpPut,
		Payload:        doc.Data,
		Version:        doc.UpdatedAt,
	}); err != nil {
		return entity.Document{}, fmt.Errorf("enqueue %s %s: %w", doc.Collection, doc.ID, err)
	}
	w.syncer.RequestDrain(ctx, doc.BusinessUnitID)
	return doc, nil
}

func (w writer) delete(ctx context.Context, c entity.Collection, unitID, id string) error {
	if _, err := w.owned(ctx, c, unitID, id); err != nil {
		return err
	}
	if err := w.store.Delete(ctx, c, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", c, id, err)
	}
	if _, err := w.queue.Enqueue(ctx, entity.SyncQueueEntry{
		BusinessUnitID: unitID,
		Collection:     c,
		EntityID:       id,
		Op:             entity.OpDelete,
		Version:        w.now().UTC(),
	}); err != nil {
		return fmt.Errorf("enqueue delete %s %s: %w", c, id, err)
	}
	w.syncer.RequestDrain(ctx, unitID)
	return nil
}

// ready espera el pull en curso de la unidad. Un pull fallido no bloquea:
// las lecturas siguen con los datos locales que haya.
func (w writer) ready(ctx context.Context, unitID string) error {
	if err := w.syncer.WaitReady(ctx, unitID); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// requireUnit verifica que la unidad exista localmente.
func (w writer) requireUnit(ctx context.Context, unitID string) error {
	_, err := w.store.Get(ctx, entity.CollectionUnits, unitID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: unidad %s inexistente", domain.ErrInvalidInput, unitID)
	}
	return err
}

// owned obtiene un documento de la unidad; de otra unidad se trata como inexistente.
func (w writer) owned(ctx context.Context, c entity.Collection, unitID, id string) (entity.Document, error) {
	doc, err := w.store.Get(ctx, c, id)
	if err != nil {
		return entity.Document{}, err
	}
	if doc.BusinessUnitID != unitID {
		return entity.Document{}, domain.ErrNotFound
	}
	return doc, nil
}

// collect lee todos los documentos de la unidad que cumplan match.
func collect(ctx context.Context, store repository.EntityStore, c entity.Collection, unitID string, match func(entity.Document) bool) ([]entity.Document, error) {
	var out []entity.Document
	for doc, err := range store.Query(ctx, c, repository.Filter{BusinessUnitID: unitID, Match: match}) {
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", c, err)
		}
		out = append(out, doc)
	}
	return out, nil
}
