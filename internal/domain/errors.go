package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")

	// ErrStorageUnavailable el almacenamiento local no se pudo abrir: no es posible trabajar sin conexión.
	ErrStorageUnavailable = errors.New("almacenamiento local no disponible")
	// ErrRemoteUnavailable el almacén remoto no es alcanzable; es transitorio.
	ErrRemoteUnavailable = errors.New("almacén remoto no disponible")
	ErrInvalidCredential = errors.New("credenciales inválidas")
	ErrSessionExpired    = errors.New("sesión expirada")
)
