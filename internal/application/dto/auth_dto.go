package dto

import "time"

// LoginRequest entrada para login: teléfono (o identificador admin) y secreto.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Secret     string `json:"secret" validate:"required"`
}

// SessionResponse sesión vigente.
type SessionResponse struct {
	UserID         string    `json:"user_id"`
	BusinessUnitID string    `json:"business_unit_id"`
	Role           string    `json:"role"`
	LoginTimestamp time.Time `json:"login_timestamp"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// LoginResponse salida con el token de la sesión (bearer para la API local).
type LoginResponse struct {
	Token   string          `json:"token"`
	Session SessionResponse `json:"session"`
}
