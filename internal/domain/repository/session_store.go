package repository

import "context"

// SessionStore ranura durable, separada del EntityStore, con el token de la sesión actual.
// Load devuelve "" si la ranura está vacía.
type SessionStore interface {
	Save(ctx context.Context, token string) error
	Load(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}
