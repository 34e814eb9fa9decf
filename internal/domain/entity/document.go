package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Collection nombre de una colección local; coincide con el segmento del árbol remoto.
type Collection string

const (
	CollectionUnits      Collection = "units"
	CollectionProducts   Collection = "products"
	CollectionCategories Collection = "categories"
	CollectionInvoices   Collection = "invoices"
)

// Collections devuelve las colecciones persistidas localmente.
func Collections() []Collection {
	return []Collection{CollectionUnits, CollectionProducts, CollectionCategories, CollectionInvoices}
}

// Valid indica si c es una colección conocida.
func (c Collection) Valid() bool {
	switch c {
	case CollectionUnits, CollectionProducts, CollectionCategories, CollectionInvoices:
		return true
	}
	return false
}

// Record es cualquier entidad almacenable en el EntityStore.
type Record interface {
	Collection() Collection
	RecordID() string
	// OwnerID id de la BusinessUnit dueña (la propia unidad para BusinessUnit).
	OwnerID() string
	Version() time.Time
}

// Document sobre genérico con el que el EntityStore guarda cada entidad.
// Synced corresponde a la marca _synced: true si el contenido coincide con el remoto.
type Document struct {
	Collection     Collection
	ID             string
	BusinessUnitID string
	Data           json.RawMessage
	Synced         bool
	UpdatedAt      time.Time
}

// NewDocument serializa un Record.
func NewDocument(r Record, synced bool) (Document, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return Document{}, fmt.Errorf("marshal %s %s: %w", r.Collection(), r.RecordID(), err)
	}
	updated := r.Version()
	if updated.IsZero() {
		updated = time.Now()
	}
	return Document{
		Collection:     r.Collection(),
		ID:             r.RecordID(),
		BusinessUnitID: r.OwnerID(),
		Data:           data,
		Synced:         synced,
		UpdatedAt:      updated.UTC(),
	}, nil
}

// Decode deserializa el contenido de un Document al tipo concreto.
func Decode[T Record](d Document) (T, error) {
	var out T
	if err := json.Unmarshal(d.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s %s: %w", d.Collection, d.ID, err)
	}
	return out, nil
}
