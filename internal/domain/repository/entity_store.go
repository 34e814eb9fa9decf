package repository

import (
	"context"
	"iter"
	"time"

	"github.com/jhoicas/hkd-sync/internal/domain/entity"
)

// Filter criterio de consulta sobre una colección. Los campos vacíos no filtran.
// Match se evalúa en memoria sobre cada documento candidato.
type Filter struct {
	BusinessUnitID string
	Synced         *bool
	Match          func(entity.Document) bool
}

// EntityStore define el puerto del almacén local de entidades (DIP).
// Get devuelve domain.ErrNotFound si el documento no existe.
// Query es perezosa y reiniciable: cada recorrido reevalúa contra el estado actual.
type EntityStore interface {
	Get(ctx context.Context, c entity.Collection, id string) (entity.Document, error)
	Put(ctx context.Context, doc entity.Document) error
	// Refresh escribe la copia remota solo si no hay copia local o la local ya está sincronizada.
	// Devuelve false cuando la local tiene cambios pendientes y se conservó.
	Refresh(ctx context.Context, doc entity.Document) (bool, error)
	Delete(ctx context.Context, c entity.Collection, id string) error
	Query(ctx context.Context, c entity.Collection, f Filter) iter.Seq2[entity.Document, error]
	// MarkSynced marca el documento como sincronizado solo si su UpdatedAt sigue siendo version.
	MarkSynced(ctx context.Context, c entity.Collection, id string, version time.Time) (bool, error)
}
