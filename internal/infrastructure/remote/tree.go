// Package remote cliente del almacén remoto autoritativo: un árbol de documentos
// JSON direccionado por rutas units/{unitId}/... sobre un backend intercambiable.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/jhoicas/hkd-sync/internal/domain"
)

// Node hoja del árbol: un documento de entidad y su ruta.
type Node struct {
	Path  string
	Value json.RawMessage
}

// Tree backend del árbol remoto. Solo trabaja con hojas (entity.IsLeafPath).
// Los fallos de transporte deben envolver domain.ErrRemoteUnavailable.
type Tree interface {
	// Get lee una hoja; domain.ErrNotFound si no existe.
	Get(ctx context.Context, path string) (json.RawMessage, error)
	// List devuelve las hojas bajo prefix ordenadas por ruta.
	List(ctx context.Context, prefix string) ([]Node, error)
	// Set escribe la hoja; value nil la borra. Repetir la misma escritura no tiene efecto adicional.
	Set(ctx context.Context, path string, value json.RawMessage) error
	Ping(ctx context.Context) error
}

// IsTransportError indica si err es un fallo de red o de plazo, no un rechazo del backend.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrRemoteUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Unavailable envuelve err como domain.ErrRemoteUnavailable conservando la causa.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrRemoteUnavailable, err)
}

// UnderPrefix indica si path está en el subárbol prefix (incluida la hoja prefix misma).
func UnderPrefix(path, prefix string) bool {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// SortNodes ordena por ruta, el orden de iteración del árbol.
func SortNodes(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Path < nodes[j].Path })
}
