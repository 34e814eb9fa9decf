package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceItem línea de una factura; guarda nombre y precio vigentes al momento de la venta.
type InvoiceItem struct {
	ProductID string          `json:"productId" yaml:"productId"`
	Name      string          `json:"name" yaml:"name"`
	Quantity  int             `json:"quantity" yaml:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice" yaml:"unitPrice"`
}

// Subtotal cantidad * precio unitario.
func (i InvoiceItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Invoice factura emitida por el flujo de pedidos. Inmutable una vez creada
// (solo cambia la marca de sincronización del documento que la contiene).
type Invoice struct {
	ID             string          `json:"id" yaml:"id"`
	BusinessUnitID string          `json:"businessUnitId" yaml:"businessUnitId"`
	Items          []InvoiceItem   `json:"items" yaml:"items"`
	TotalQuantity  int             `json:"totalQuantity" yaml:"totalQuantity"`
	TotalPrice     decimal.Decimal `json:"totalPrice" yaml:"totalPrice"`
	Timestamp      time.Time       `json:"timestamp" yaml:"timestamp"`
}

func (i Invoice) Collection() Collection { return CollectionInvoices }
func (i Invoice) RecordID() string       { return i.ID }
func (i Invoice) OwnerID() string        { return i.BusinessUnitID }
func (i Invoice) Version() time.Time     { return i.Timestamp }

// ComputeTotals recalcula TotalQuantity y TotalPrice a partir de las líneas.
func (i *Invoice) ComputeTotals() {
	qty := 0
	total := decimal.Zero
	for _, it := range i.Items {
		qty += it.Quantity
		total = total.Add(it.Subtotal())
	}
	i.TotalQuantity = qty
	i.TotalPrice = total
}
