package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/jhoicas/hkd-sync/internal/application/dto"
	"github.com/jhoicas/hkd-sync/internal/domain"
	"github.com/jhoicas/hkd-sync/internal/domain/entity"
)

// RecordInvoice registra una venta. Cada línea toma nombre y precio del producto local;
// los totales se calculan aquí y la factura no vuelve a modificarse.
func (uc *CatalogUseCase) RecordInvoice(ctx context.Context, unitID string, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	unitID, err := uc.unit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: factura sin líneas", domain.ErrInvalidInput)
	}
	if err := uc.w.requireUnit(ctx, unitID); err != nil {
		return nil, err
	}

	inv := entity.Invoice{
		ID:             uuid.New().String(),
		BusinessUnitID: unitID,
		Items:          make([]entity.InvoiceItem, 0, len(in.Items)),
		Timestamp:      uc.w.now().UTC(),
	}
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: cantidad inválida para %s", domain.ErrInvalidInput, it.ProductID)
		}
		doc, err := uc.w.owned(ctx, entity.CollectionProducts, unitID, it.ProductID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: producto %s inexistente", domain.ErrInvalidInput, it.ProductID)
		}
		if err != nil {
			return nil, err
		}
		p, err := entity.Decode[entity.Product](doc)
		if err != nil {
			return nil, err
		}
		inv.Items = append(inv.Items, entity.InvoiceItem{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  it.Quantity,
			UnitPrice: p.Price,
		})
	}
	inv.ComputeTotals()

	doc, err := uc.w.put(ctx, inv)
	if err != nil {
		return nil, err
	}
	resp := toInvoiceResponse(inv, doc.Synced)
	return &resp, nil
}

// ListInvoices lista las facturas de la unidad, más recientes primero.
func (uc *CatalogUseCase) ListInvoices(ctx context.Context, page dto.PageRequest) (*dto.InvoiceListResponse, error) {
	unitID, err := uc.unit(ctx, page.UnitID)
	if err != nil {
		return nil, err
	}
	page.Normalize()

	docs, err := collect(ctx, uc.w.store, entity.CollectionInvoices, unitID, nil)
	if err != nil {
		return nil, err
	}
	items := make([]dto.InvoiceResponse, 0, len(docs))
	for _, d := range docs {
		inv, err := entity.Decode[entity.Invoice](d)
		if err != nil {
			return nil, err
		}
		items = append(items, toInvoiceResponse(inv, d.Synced))
	}
	slices.SortFunc(items, func(a, b dto.InvoiceResponse) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	from, to := page.Window(len(items))
	return &dto.InvoiceListResponse{
		Items: items[from:to],
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: len(items)},
	}, nil
}

func toInvoiceResponse(inv entity.Invoice, synced bool) dto.InvoiceResponse {
	items := make([]dto.InvoiceItemResponse, 0, len(inv.Items))
	for _, it := range inv.Items {
		items = append(items, dto.InvoiceItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal(),
		})
	}
	return dto.InvoiceResponse{
		ID:             inv.ID,
		BusinessUnitID: inv.BusinessUnitID,
		Items:          items,
		TotalQuantity:  inv.TotalQuantity,
		TotalPrice:     inv.TotalPrice,
		Timestamp:      inv.Timestamp,
		Synced:         synced,
	}
}
