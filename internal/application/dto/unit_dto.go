package dto

import "time"

// RegisterUnitRequest entrada para registrar una unidad operadora (solo admin).
type RegisterUnitRequest struct {
	Phone   string `json:"phone" yaml:"phone" validate:"required"`
	Name    string `json:"name" yaml:"name" validate:"required,min=1,max=200"`
	Address string `json:"address" yaml:"address"`
	Secret  string `json:"secret" yaml:"secret" validate:"required"`
}

// ChangeSecretRequest body de PUT /api/units/:id/secret.
type ChangeSecretRequest struct {
	Secret string `json:"secret" validate:"required"`
}

// UnitResponse salida de una unidad (sin secreto).
type UnitResponse struct {
	ID          string    `json:"id"`
	Phone       string    `json:"phone"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Role        string    `json:"role"`
	Synced      bool      `json:"synced"`
	LastUpdated time.Time `json:"last_updated"`
}

// UnitListResponse lista de unidades.
type UnitListResponse struct {
	Items []UnitResponse `json:"items"`
}
