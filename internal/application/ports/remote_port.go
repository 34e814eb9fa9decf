package ports

import (
	"context"
	"encoding/json"

	"github.com/jhoicas/hkd-sync/internal/domain/entity"
)

// RemoteStore define el puerto de salida hacia el almacén remoto autoritativo
// (árbol jerárquico units/{unitId}/...).
// Ningún método encola: sin conexión devuelven domain.ErrRemoteUnavailable
// y reintentar es responsabilidad de la MutationQueue.
type RemoteStore interface {
	// ReadUnit lee el subárbol completo de la unidad. domain.ErrNotFound si no existe su info.
	ReadUnit(ctx context.Context, unitID string) (entity.UnitSnapshot, error)
	// WriteField escribe (o borra, con value nil) el documento en path. Idempotente.
	WriteField(ctx context.Context, path string, value json.RawMessage) error
	// FindUnitByCredential recorre todas las unidades en orden de ruta y devuelve
	// la primera con rol operator cuyo teléfono y secreto coinciden.
	FindUnitByCredential(ctx context.Context, phone, secret string) (entity.BusinessUnit, error)
	Connectivity
}

// Connectivity flujo booleano del estado de conexión.
// El listener recibe el estado actual al suscribirse y luego una vez por transición.
type Connectivity interface {
	OnConnectivityChange(listener func(connected bool)) (unsubscribe func())
	Connected() bool
}
