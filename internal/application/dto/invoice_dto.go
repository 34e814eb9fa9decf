package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateInvoiceRequest body para POST /api/invoices.
// Nombre y precio de cada línea se toman del producto local al momento de la venta.
type CreateInvoiceRequest struct {
	Items []InvoiceItemRequest `json:"items" validate:"required,min=1"`
}

// InvoiceItemRequest línea pedida (producto y cantidad).
type InvoiceItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// InvoiceItemResponse línea de factura.
type InvoiceItemResponse struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" swaggertype:"string" example:"40000"`
	Subtotal  decimal.Decimal `json:"subtotal" swaggertype:"string" example:"80000"`
}

// InvoiceResponse factura emitida.
type InvoiceResponse struct {
	ID             string                `json:"id"`
	BusinessUnitID string                `json:"business_unit_id"`
	Items          []InvoiceItemResponse `json:"items"`
	TotalQuantity  int                   `json:"total_quantity"`
	TotalPrice     decimal.Decimal       `json:"total_price" swaggertype:"string" example:"80000"`
	Timestamp      time.Time             `json:"timestamp"`
	Synced         bool                  `json:"synced"`
}

// InvoiceListResponse lista paginada de facturas, más recientes primero.
type InvoiceListResponse struct {
	Items []InvoiceResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}
