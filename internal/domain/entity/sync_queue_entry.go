package entity

import (
	"encoding/json"
	"time"
)

// Operaciones de una mutación encolada.
const (
	OpPut    = "put"
	OpDelete = "delete"
)

// SyncQueueEntry intención de escritura pendiente hacia el almacén remoto.
// Las entradas se fusionan por (Collection, EntityID): la última carga útil
// reemplaza a la anterior conservando su posición (Seq) y EnqueuedAt.
type SyncQueueEntry struct {
	ID             string
	Seq            int64
	BusinessUnitID string
	Collection     Collection
	EntityID       string
	Op             string
	Payload        json.RawMessage // nil para OpDelete
	Version        time.Time       // UpdatedAt del documento local que originó la mutación
	EnqueuedAt     time.Time
	Attempts       int
	NextAttemptAt  time.Time
	LastError      string
}

// Path ruta remota a la que se entrega la mutación.
func (e SyncQueueEntry) Path() string {
	return PathFor(e.Collection, e.BusinessUnitID, e.EntityID)
}

// DeadLetter mutación retirada de la cola tras agotar sus reintentos, sin aplicarse en remoto.
type DeadLetter struct {
	SyncQueueEntry
	Reason string
	DeadAt time.Time
}
