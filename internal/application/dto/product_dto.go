package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaveProductRequest entrada para crear o reemplazar un producto.
type SaveProductRequest struct {
	CategoryID string          `json:"category_id"`
	Name       string          `json:"name" validate:"required,min=1,max=200"`
	Price      decimal.Decimal `json:"price" swaggertype:"string" example:"45000"`
	Unit       string          `json:"unit"`
}

// ProductResponse salida de un producto.
type ProductResponse struct {
	ID             string          `json:"id"`
	BusinessUnitID string          `json:"business_unit_id"`
	CategoryID     string          `json:"category_id,omitempty"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price" swaggertype:"string" example:"45000"`
	Unit           string          `json:"unit,omitempty"`
	Synced         bool            `json:"synced"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ProductListResponse lista paginada de productos.
type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}

// SaveCategoryRequest entrada para crear o renombrar una categoría.
type SaveCategoryRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// CategoryResponse salida de una categoría.
type CategoryResponse struct {
	ID             string    `json:"id"`
	BusinessUnitID string    `json:"business_unit_id"`
	Name           string    `json:"name"`
	Synced         bool      `json:"synced"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CategoryListResponse lista de categorías.
type CategoryListResponse struct {
	Items []CategoryResponse `json:"items"`
}
